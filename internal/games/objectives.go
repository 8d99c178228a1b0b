package games

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scepter-game/scepter-server/internal/store"
	"github.com/scepter-game/scepter-server/pkg/response"
)

// ListObjectives handles GET /api/games/:name/objectives.
func (h *Handler) ListObjectives(c *gin.Context) {
	game, ok := h.gameByName(c)
	if !ok {
		return
	}
	objectives, err := h.repo.ListPublicObjectives(c.Request.Context(), game.ID)
	if err != nil {
		h.logger.Error("list objectives", zap.String("game", game.Name), zap.Error(err))
		response.Internal(c, "failed to load public objectives")
		return
	}
	response.OK(c, gin.H{"objectives": objectives})
}

type addObjectiveRequest struct {
	Key           string `json:"objectiveKey" binding:"required"`
	Name          string `json:"name" binding:"required"`
	Type          string `json:"type" binding:"required,oneof=public_1 public_2"`
	VictoryPoints int    `json:"victoryPoints"`
	SlotIndex     int    `json:"slotIndex"`
}

// AddObjective handles POST /api/games/:name/objectives. The revealed
// objective is broadcast to the game's live session, if any.
func (h *Handler) AddObjective(c *gin.Context) {
	game, ok := h.gameByName(c)
	if !ok {
		return
	}
	var req addObjectiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "objectiveKey, name and type (public_1|public_2) are required")
		return
	}
	if req.VictoryPoints <= 0 {
		req.VictoryPoints = 1
	}

	obj, err := h.repo.AddPublicObjective(c.Request.Context(), game.ID, req.Key, req.Name, req.Type, req.VictoryPoints, req.SlotIndex)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			response.Conflict(c, "objective is already on the board")
			return
		}
		h.logger.Error("add objective", zap.String("game", game.Name), zap.Error(err))
		response.Internal(c, "failed to add objective")
		return
	}
	h.touch(c.Request.Context(), game.ID)
	h.controller.ObjectiveAdded(game.Name, obj)
	response.Created(c, gin.H{"objective": obj})
}

// RemoveObjective handles DELETE /api/games/:name/objectives/:key.
func (h *Handler) RemoveObjective(c *gin.Context) {
	game, ok := h.gameByName(c)
	if !ok {
		return
	}
	obj, err := h.repo.RemovePublicObjective(c.Request.Context(), game.ID, c.Param("key"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(c, "objective is not on the board")
			return
		}
		h.logger.Error("remove objective", zap.String("game", game.Name), zap.Error(err))
		response.Internal(c, "failed to remove objective")
		return
	}
	h.touch(c.Request.Context(), game.ID)
	h.controller.ObjectiveRemoved(game.Name, obj)
	response.OK(c, gin.H{"objective": obj})
}

type scoreObjectiveRequest struct {
	PlayerID  uuid.UUID `json:"playerId" binding:"required"`
	Completed *bool     `json:"completed" binding:"required"`
}

// SetScored handles POST /api/games/:name/objectives/:key/score.
func (h *Handler) SetScored(c *gin.Context) {
	game, ok := h.gameByName(c)
	if !ok {
		return
	}
	var req scoreObjectiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "playerId and completed are required")
		return
	}
	key := c.Param("key")
	if err := h.repo.SetObjectiveScored(c.Request.Context(), game.ID, key, req.PlayerID, *req.Completed); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(c, "objective or player not found in this game")
			return
		}
		h.logger.Error("score objective", zap.String("game", game.Name), zap.Error(err))
		response.Internal(c, "failed to update scoring state")
		return
	}
	h.touch(c.Request.Context(), game.ID)

	// Re-read the board entry so the event carries current type/slot fields.
	objectives, err := h.repo.ListPublicObjectives(c.Request.Context(), game.ID)
	if err == nil {
		for i := range objectives {
			if objectives[i].Key == key {
				h.controller.ObjectiveScoringChanged(game.Name, &objectives[i], req.PlayerID, *req.Completed)
				break
			}
		}
	}
	response.OK(c, gin.H{"objectiveKey": key, "playerId": req.PlayerID, "completed": *req.Completed})
}
