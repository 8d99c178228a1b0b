// Package store is the durable Game Store: games, rosters and the public
// objective board, backed by PostgreSQL. The live session layer reads from it
// for validation and event payloads; it never holds session locks across
// these calls.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scepter-game/scepter-server/internal/models"
)

var (
	// ErrNotFound is returned when a game, player or objective does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint is violated
	// (game name taken, objective already on the board).
	ErrDuplicate = errors.New("already exists")
)

// Repository handles game persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a game repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateGame inserts a new game with its roster. Every roster entry gets a
// fresh player id.
func (r *Repository) CreateGame(ctx context.Context, name string, playerNames []string) (*models.Game, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	g := &models.Game{Name: name, PlayerCount: len(playerNames)}
	const q = `INSERT INTO games (name) VALUES ($1) RETURNING id, created_at, last_updated`
	if err := tx.QueryRow(ctx, q, name).Scan(&g.ID, &g.CreatedAt, &g.LastUpdated); err != nil {
		return nil, mapErr(err)
	}
	for _, pn := range playerNames {
		const pq = `INSERT INTO game_players (id, game_id, name) VALUES ($1, $2, $3)`
		if _, err := tx.Exec(ctx, pq, uuid.New(), g.ID, pn); err != nil {
			return nil, mapErr(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return g, nil
}

// GetGameByName returns a game by its unique name.
func (r *Repository) GetGameByName(ctx context.Context, name string) (*models.Game, error) {
	const q = `SELECT g.id, g.name, g.created_at, g.last_updated,
		(SELECT COUNT(*) FROM game_players p WHERE p.game_id = g.id)
		FROM games g WHERE g.name = $1`
	var g models.Game
	err := r.pool.QueryRow(ctx, q, name).Scan(&g.ID, &g.Name, &g.CreatedAt, &g.LastUpdated, &g.PlayerCount)
	if err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

// ListGames returns all games, most recently updated first.
func (r *Repository) ListGames(ctx context.Context) ([]models.Game, error) {
	const q = `SELECT g.id, g.name, g.created_at, g.last_updated,
		(SELECT COUNT(*) FROM game_players p WHERE p.game_id = g.id)
		FROM games g ORDER BY g.last_updated DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Game
	for rows.Next() {
		var g models.Game
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.LastUpdated, &g.PlayerCount); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// TouchGame bumps the game's last_updated timestamp.
func (r *Repository) TouchGame(ctx context.Context, gameID uuid.UUID) error {
	const q = `UPDATE games SET last_updated = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, gameID)
	return err
}

// ListRoster returns the registered players of a game, ordered by name.
func (r *Repository) ListRoster(ctx context.Context, gameID uuid.UUID) ([]models.Player, error) {
	const q = `SELECT id, game_id, name, faction, victory_points
		FROM game_players WHERE game_id = $1 ORDER BY name`
	rows, err := r.pool.Query(ctx, q, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.GameID, &p.Name, &p.Faction, &p.VictoryPoints); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// UpdatePlayerFaction sets a roster player's faction.
func (r *Repository) UpdatePlayerFaction(ctx context.Context, playerID uuid.UUID, faction string) error {
	const q = `UPDATE game_players SET faction = $1 WHERE id = $2`
	tag, err := r.pool.Exec(ctx, q, faction, playerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
