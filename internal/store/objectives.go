package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/scepter-game/scepter-server/internal/models"
)

// AddPublicObjective reveals an objective on the game's shared board.
func (r *Repository) AddPublicObjective(ctx context.Context, gameID uuid.UUID, key, name, objType string, victoryPoints, slotIndex int) (*models.PublicObjective, error) {
	obj := &models.PublicObjective{
		GameID:        gameID,
		Key:           key,
		Name:          name,
		Type:          objType,
		VictoryPoints: victoryPoints,
		SlotIndex:     slotIndex,
	}
	const q = `INSERT INTO public_objectives (game_id, objective_key, name, type, victory_points, slot_index)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING added_at`
	if err := r.pool.QueryRow(ctx, q, gameID, key, name, objType, victoryPoints, slotIndex).Scan(&obj.AddedAt); err != nil {
		return nil, mapErr(err)
	}
	return obj, nil
}

// RemovePublicObjective takes an objective off the board, returning the
// removed row so callers can build the removal event payload. Scores for the
// objective are removed by cascade.
func (r *Repository) RemovePublicObjective(ctx context.Context, gameID uuid.UUID, key string) (*models.PublicObjective, error) {
	const q = `DELETE FROM public_objectives
		WHERE game_id = $1 AND objective_key = $2
		RETURNING objective_key, name, type, victory_points, slot_index, added_at`
	var obj models.PublicObjective
	obj.GameID = gameID
	err := r.pool.QueryRow(ctx, q, gameID, key).Scan(&obj.Key, &obj.Name, &obj.Type, &obj.VictoryPoints, &obj.SlotIndex, &obj.AddedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &obj, nil
}

// SetObjectiveScored marks a player's completion state for a public objective.
// Victory points move only on an actual state transition: repeating the same
// state is a no-op, so a double "completed" never double-counts and clearing a
// never-scored player never deducts.
func (r *Repository) SetObjectiveScored(ctx context.Context, gameID uuid.UUID, key string, playerID uuid.UUID, completed bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var points int
	const oq = `SELECT victory_points FROM public_objectives WHERE game_id = $1 AND objective_key = $2`
	if err := tx.QueryRow(ctx, oq, gameID, key).Scan(&points); err != nil {
		return mapErr(err)
	}

	// The player must belong to this game; the id alone could reference
	// another game's roster.
	var one int
	const vq = `SELECT 1 FROM game_players WHERE id = $1 AND game_id = $2`
	if err := tx.QueryRow(ctx, vq, playerID, gameID).Scan(&one); err != nil {
		return mapErr(err)
	}

	prev := false
	const cq = `SELECT completed FROM public_objective_scores
		WHERE game_id = $1 AND objective_key = $2 AND player_id = $3`
	if err := tx.QueryRow(ctx, cq, gameID, key, playerID).Scan(&prev); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if completed == prev {
		return tx.Commit(ctx)
	}

	var completedAt *time.Time
	if completed {
		now := time.Now()
		completedAt = &now
	}
	const sq = `INSERT INTO public_objective_scores (game_id, objective_key, player_id, completed, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (game_id, objective_key, player_id)
		DO UPDATE SET completed = $4, completed_at = $5`
	if _, err := tx.Exec(ctx, sq, gameID, key, playerID, completed, completedAt); err != nil {
		return mapErr(err)
	}

	delta := points
	if !completed {
		delta = -points
	}
	const pq = `UPDATE game_players SET victory_points = victory_points + $1 WHERE id = $2`
	if _, err := tx.Exec(ctx, pq, delta, playerID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListPublicObjectives returns the board with per-objective scoring players,
// ordered by slot.
func (r *Repository) ListPublicObjectives(ctx context.Context, gameID uuid.UUID) ([]models.PublicObjective, error) {
	const q = `SELECT objective_key, name, type, victory_points, slot_index, added_at
		FROM public_objectives WHERE game_id = $1 ORDER BY slot_index`
	rows, err := r.pool.Query(ctx, q, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.PublicObjective
	for rows.Next() {
		var obj models.PublicObjective
		obj.GameID = gameID
		if err := rows.Scan(&obj.Key, &obj.Name, &obj.Type, &obj.VictoryPoints, &obj.SlotIndex, &obj.AddedAt); err != nil {
			return nil, err
		}
		list = append(list, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range list {
		scores, err := r.listObjectiveScores(ctx, gameID, list[i].Key)
		if err != nil {
			return nil, err
		}
		list[i].ScoredBy = scores
	}
	return list, nil
}

func (r *Repository) listObjectiveScores(ctx context.Context, gameID uuid.UUID, key string) ([]models.ObjectiveScore, error) {
	const q = `SELECT s.player_id, p.name, p.faction, s.completed, s.completed_at
		FROM public_objective_scores s
		JOIN game_players p ON p.id = s.player_id
		WHERE s.game_id = $1 AND s.objective_key = $2 AND s.completed
		ORDER BY s.completed_at`
	rows, err := r.pool.Query(ctx, q, gameID, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []models.ObjectiveScore
	for rows.Next() {
		var s models.ObjectiveScore
		if err := rows.Scan(&s.PlayerID, &s.PlayerName, &s.Faction, &s.Completed, &s.CompletedAt); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}
