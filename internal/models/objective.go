package models

import (
	"time"

	"github.com/google/uuid"
)

// Objective stage/type keys as used by the board ("public_1", "public_2").
const (
	ObjectiveTypeStageOne = "public_1"
	ObjectiveTypeStageTwo = "public_2"
)

// PublicObjective is one revealed objective on the shared board.
type PublicObjective struct {
	GameID        uuid.UUID        `json:"-"`
	Key           string           `json:"objectiveKey"`
	Name          string           `json:"name"`
	Type          string           `json:"type"`
	VictoryPoints int              `json:"victoryPoints"`
	SlotIndex     int              `json:"slotIndex"`
	AddedAt       time.Time        `json:"addedAt"`
	ScoredBy      []ObjectiveScore `json:"scoredBy"`
}

// ObjectiveScore records one player's completion state for a public objective.
type ObjectiveScore struct {
	PlayerID    uuid.UUID  `json:"playerId"`
	PlayerName  string     `json:"playerName"`
	Faction     string     `json:"faction,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
