package models

import (
	"time"

	"github.com/google/uuid"
)

// Game is the durable record of one game, independent of whether it is
// currently hosted.
type Game struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	PlayerCount int       `json:"playerCount"`
	CreatedAt   time.Time `json:"created"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Player is one roster entry of a game. Roster membership is durable;
// whether the player is connected is session state, not stored here.
type Player struct {
	ID            uuid.UUID `json:"playerId"`
	GameID        uuid.UUID `json:"-"`
	Name          string    `json:"name"`
	Faction       string    `json:"faction,omitempty"`
	VictoryPoints int       `json:"victoryPoints"`
}
