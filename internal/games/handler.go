// Package games exposes the request/response surface around the Game Store:
// game creation, listings, rosters and the public objective board. Board
// mutations are pushed to the game's live session through the controller.
package games

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scepter-game/scepter-server/internal/models"
	"github.com/scepter-game/scepter-server/internal/session"
	"github.com/scepter-game/scepter-server/internal/store"
	"github.com/scepter-game/scepter-server/pkg/response"
)

// Handler handles game and objective board endpoints.
type Handler struct {
	repo       *store.Repository
	controller *session.Controller
	logger     *zap.Logger
}

// NewHandler creates a games handler.
func NewHandler(repo *store.Repository, controller *session.Controller, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, controller: controller, logger: logger}
}

type createGameRequest struct {
	Name    string `json:"name" binding:"required"`
	Players []struct {
		Name string `json:"name" binding:"required"`
	} `json:"players" binding:"required,min=1,dive"`
}

// Create handles POST /api/games.
func (h *Handler) Create(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name and at least one player are required")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		response.BadRequest(c, "game name cannot be empty")
		return
	}
	names := make([]string, 0, len(req.Players))
	for _, p := range req.Players {
		pn := strings.TrimSpace(p.Name)
		if pn == "" {
			response.BadRequest(c, "all players must have a name")
			return
		}
		names = append(names, pn)
	}

	game, err := h.repo.CreateGame(c.Request.Context(), name, names)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			response.Conflict(c, "game with this name already exists")
			return
		}
		h.logger.Error("create game", zap.String("game", name), zap.Error(err))
		response.Internal(c, "failed to create game")
		return
	}
	response.Created(c, game)
}

// List handles GET /api/games.
func (h *Handler) List(c *gin.Context) {
	games, err := h.repo.ListGames(c.Request.Context())
	if err != nil {
		h.logger.Error("list games", zap.Error(err))
		response.Internal(c, "failed to list games")
		return
	}
	response.OK(c, gin.H{"games": games})
}

// Roster handles GET /api/games/:name/players.
func (h *Handler) Roster(c *gin.Context) {
	game, ok := h.gameByName(c)
	if !ok {
		return
	}
	roster, err := h.repo.ListRoster(c.Request.Context(), game.ID)
	if err != nil {
		h.logger.Error("list roster", zap.String("game", game.Name), zap.Error(err))
		response.Internal(c, "failed to load players")
		return
	}
	response.OK(c, gin.H{"players": roster})
}

type setFactionRequest struct {
	Faction string `json:"faction" binding:"required"`
}

// SetFaction handles PATCH /api/games/:name/players/:playerId/faction.
func (h *Handler) SetFaction(c *gin.Context) {
	game, ok := h.gameByName(c)
	if !ok {
		return
	}
	playerID, err := uuid.Parse(c.Param("playerId"))
	if err != nil {
		response.BadRequest(c, "invalid player id")
		return
	}
	var req setFactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "faction is required")
		return
	}
	if err := h.repo.UpdatePlayerFaction(c.Request.Context(), playerID, req.Faction); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(c, "player not found")
			return
		}
		h.logger.Error("set faction", zap.Error(err))
		response.Internal(c, "failed to update faction")
		return
	}
	h.touch(c.Request.Context(), game.ID)
	response.OK(c, gin.H{"playerId": playerID, "faction": req.Faction})
}

// ActiveSessions handles GET /api/sessions: the games being hosted right now.
func (h *Handler) ActiveSessions(c *gin.Context) {
	response.OK(c, gin.H{"sessions": h.controller.ActiveSessions()})
}

func (h *Handler) gameByName(c *gin.Context) (*models.Game, bool) {
	name := c.Param("name")
	game, err := h.repo.GetGameByName(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(c, "game not found")
		} else {
			h.logger.Error("get game", zap.String("game", name), zap.Error(err))
			response.Internal(c, "failed to load game")
		}
		return nil, false
	}
	return game, true
}

func (h *Handler) touch(ctx context.Context, gameID uuid.UUID) {
	if err := h.repo.TouchGame(ctx, gameID); err != nil {
		h.logger.Warn("touch game", zap.Error(err))
	}
}
