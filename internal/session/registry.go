// Package session tracks which games are being hosted right now, which
// connections belong to them in which role, and drives the host-start, join,
// leave and teardown transitions.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlayerConnection is one player's live connection within a session.
type PlayerConnection struct {
	ConnID     string
	PlayerID   string
	PlayerName string
	JoinedAt   time.Time
}

// Session is the live, in-memory record of one hosted game. A session exists
// only while its host connection is up; player connections come and go.
type Session struct {
	GameName   string
	GameID     uuid.UUID
	HostConnID string
	HostAddr   string
	CreatedAt  time.Time

	mu           sync.Mutex
	tornDown     bool
	lastActivity time.Time
	players      map[string]*PlayerConnection // playerID -> connection
}

// attach adds or migrates a player's connection. If the playerID already has
// a live connection, the old one is replaced and its connID returned so the
// caller can force-close it.
func (s *Session) attach(playerID, playerName, connID string) (prevConnID string) {
	if prev, ok := s.players[playerID]; ok {
		prevConnID = prev.ConnID
	}
	s.players[playerID] = &PlayerConnection{
		ConnID:     connID,
		PlayerID:   playerID,
		PlayerName: playerName,
		JoinedAt:   time.Now(),
	}
	s.lastActivity = time.Now()
	return prevConnID
}

// detach removes a player by connID. Returns nil if the connection is not an
// attached player (e.g. it was already migrated away).
func (s *Session) detach(connID string) *PlayerConnection {
	for id, pc := range s.players {
		if pc.ConnID == connID {
			delete(s.players, id)
			s.lastActivity = time.Now()
			return pc
		}
	}
	return nil
}

func (s *Session) touch() {
	s.lastActivity = time.Now()
}

// Info is a read-only snapshot of a session for listings.
type Info struct {
	GameName     string    `json:"name"`
	HostAddr     string    `json:"hostAddr"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	Connected    int       `json:"connectedPlayers"`
}

// TeardownSet is what Destroy hands back: every connection that must be
// notified and released.
type TeardownSet struct {
	HostConnID string
	Players    []PlayerConnection
}

// Registry is the authoritative table of active sessions, keyed by game name.
// Lookups take a short registry-wide lock; the longer mutate-and-notify path
// of a single session is serialized on that session's own mutex, so sessions
// for different games proceed independently.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Create registers a new session for gameName. Fails with ErrAlreadyHosted if
// one exists. fn, if given, runs before any other goroutine can observe the
// session, so the caller can seat the host in its room atomically with
// session creation.
func (r *Registry) Create(gameName string, gameID uuid.UUID, hostConnID, hostAddr string, fn func(*Session)) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[gameName]; ok {
		return nil, ErrAlreadyHosted
	}
	now := time.Now()
	s := &Session{
		GameName:     gameName,
		GameID:       gameID,
		HostConnID:   hostConnID,
		HostAddr:     hostAddr,
		CreatedAt:    now,
		lastActivity: now,
		players:      make(map[string]*PlayerConnection),
	}
	r.sessions[gameName] = s
	if fn != nil {
		fn(s)
	}
	r.logger.Info("session created", zap.String("game", gameName), zap.String("host_conn", hostConnID))
	return s, nil
}

// Get returns the session for gameName, or nil.
func (r *Registry) Get(gameName string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[gameName]
}

// Mutate runs fn with exclusive access to the session for gameName. Returns
// ErrUnknownGame if no session exists or a teardown won the race: a teardown
// requested before fn acquires the session always wins.
func (r *Registry) Mutate(gameName string, fn func(*Session) error) error {
	r.mu.RLock()
	s := r.sessions[gameName]
	r.mu.RUnlock()
	if s == nil {
		return ErrUnknownGame
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tornDown {
		return ErrUnknownGame
	}
	return fn(s)
}

// Destroy removes the session and marks it torn down. Idempotent: the second
// call for the same game returns ok=false and an empty set, so players are
// never notified twice.
func (r *Registry) Destroy(gameName string) (TeardownSet, bool) {
	r.mu.Lock()
	s := r.sessions[gameName]
	delete(r.sessions, gameName)
	r.mu.Unlock()
	if s == nil {
		return TeardownSet{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tornDown {
		return TeardownSet{}, false
	}
	s.tornDown = true

	set := TeardownSet{HostConnID: s.HostConnID}
	for _, pc := range s.players {
		set.Players = append(set.Players, *pc)
	}
	s.players = make(map[string]*PlayerConnection)
	r.logger.Info("session destroyed", zap.String("game", gameName), zap.Int("players", len(set.Players)))
	return set, true
}

// Snapshot returns read-only info for every active session.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		infos = append(infos, Info{
			GameName:     s.GameName,
			HostAddr:     s.HostAddr,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.lastActivity,
			Connected:    len(s.players),
		})
		s.mu.Unlock()
	}
	return infos
}
