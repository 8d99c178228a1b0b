package realtime

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/scepter-game/scepter-server/internal/models"
)

// EventType enumerates every event the server can push to a connection.
// The set is closed; receivers can switch exhaustively on it.
type EventType string

const (
	EventHostingStarted         EventType = "hosting_started"
	EventPlayerJoined           EventType = "player_joined"
	EventPlayerLeft             EventType = "player_left"
	EventJoinedGame             EventType = "joined_game"
	EventLeftGame               EventType = "left_game"
	EventSessionEnded           EventType = "session_ended"
	EventError                  EventType = "error"
	EventPublicObjectiveAdded   EventType = "public_objective_added"
	EventPublicObjectiveRemoved EventType = "public_objective_removed"
	EventObjectiveScoringState  EventType = "objective_scoring_state"
)

// Event is the outbound message envelope.
type Event struct {
	Type EventType       `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an event, marshalling the payload into the envelope.
func NewEvent(t EventType, payload interface{}) Event {
	data, _ := json.Marshal(payload)
	return Event{Type: t, Data: data}
}

// Message is the inbound message envelope (client -> server).
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound message kinds.
const (
	MsgHostGame  = "host_game"
	MsgJoinGame  = "join_game"
	MsgLeaveGame = "leave_game"
)

// HostGameRequest is the payload of a host_game message.
type HostGameRequest struct {
	GameName string `json:"gameName"`
}

// JoinGameRequest is the payload of a join_game message.
type JoinGameRequest struct {
	GameName   string `json:"gameName"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// HostingStartedPayload is sent to the host after a successful host_game.
type HostingStartedPayload struct {
	GameName string          `json:"gameName"`
	HostAddr string          `json:"hostAddr"`
	Players  []models.Player `json:"players"`
}

// PlayerEventPayload carries player identity for join/leave events.
type PlayerEventPayload struct {
	GameName   string `json:"gameName"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// SessionEndedPayload is sent to every player of a torn-down session.
type SessionEndedPayload struct {
	GameName string `json:"gameName"`
	Reason   string `json:"reason"`
}

// ErrorPayload is sent only to the connection whose request failed.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ObjectiveBoardPayload carries a public objective for board add/remove events.
type ObjectiveBoardPayload struct {
	GameName  string                  `json:"gameName"`
	Objective *models.PublicObjective `json:"objective"`
}

// ObjectiveScoringPayload carries one player's completion flag for a public
// objective.
type ObjectiveScoringPayload struct {
	GameName  string    `json:"gameName"`
	Key       string    `json:"objectiveKey"`
	Type      string    `json:"type"`
	SlotIndex int       `json:"slotIndex"`
	PlayerID  uuid.UUID `json:"playerId"`
	Completed bool      `json:"completed"`
}
