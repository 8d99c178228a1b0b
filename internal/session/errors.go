package session

import "errors"

// Error taxonomy of the live-session layer. All four are recoverable: they
// are reported to the originating connection as an error event and never tear
// down a session or close the connection.
var (
	// ErrAlreadyHosted: host-start for a game that already has a live host.
	ErrAlreadyHosted = errors.New("game is already being hosted")
	// ErrUnknownGame: the game is absent from the store, or a join lost the
	// race against a teardown.
	ErrUnknownGame = errors.New("game not found")
	// ErrUnknownPlayer: join with a playerId that is not in the game's roster.
	ErrUnknownPlayer = errors.New("player is not in the game roster")
	// ErrNotInSession: leave or action from a connection with no session.
	ErrNotInSession = errors.New("connection is not in a session")
)
