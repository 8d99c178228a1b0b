package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scepter-game/scepter-server/internal/models"
	"github.com/scepter-game/scepter-server/internal/realtime"
)

// GameStore is the durable collaborator the controller validates against.
// Store reads happen outside the per-session critical section.
type GameStore interface {
	GetGameByName(ctx context.Context, name string) (*models.Game, error)
	ListRoster(ctx context.Context, gameID uuid.UUID) ([]models.Player, error)
}

// StoreNotFound reports whether a store error means "no such record".
// Wired to store.ErrNotFound in cmd; a var so controller tests can use a fake.
type StoreNotFound func(err error) bool

type connInfo struct {
	gameName string
	playerID string
	host     bool
}

// Controller orchestrates host-start, join, leave, disconnect and teardown.
// It is the only writer of the registry and the only producer of session
// events.
type Controller struct {
	registry *Registry
	hub      *realtime.Hub
	store    GameStore
	notFound StoreNotFound
	logger   *zap.Logger
	addr     string // host-reachable address advertised in hosting_started

	mu    sync.Mutex
	conns map[string]connInfo // connID -> session association
}

// NewController creates the session lifecycle controller. port is the HTTP
// server port, used to advertise the host's reachable address.
func NewController(registry *Registry, hub *realtime.Hub, store GameStore, notFound StoreNotFound, port string, logger *zap.Logger) *Controller {
	return &Controller{
		registry: registry,
		hub:      hub,
		store:    store,
		notFound: notFound,
		logger:   logger,
		addr:     hostAddr(port),
		conns:    make(map[string]connInfo),
	}
}

// HostGame handles a host_game message: validate the game, create the
// session, seat the host and reply with hosting_started.
func (c *Controller) HostGame(ctx context.Context, cl *realtime.Client, gameName string) {
	if cl.Role != realtime.RoleHost {
		c.sendError(cl.ID, "only host connections can host a game")
		return
	}
	if _, ok := c.lookup(cl.ID); ok {
		c.sendError(cl.ID, "connection is already in a session")
		return
	}

	game, err := c.store.GetGameByName(ctx, gameName)
	if err != nil {
		if c.notFound(err) {
			c.sendError(cl.ID, fmt.Sprintf("game %q not found", gameName))
		} else {
			c.logger.Error("game lookup failed", zap.String("game", gameName), zap.Error(err))
			c.sendError(cl.ID, "game store unavailable")
		}
		return
	}
	roster, err := c.store.ListRoster(ctx, game.ID)
	if err != nil {
		c.logger.Error("roster lookup failed", zap.String("game", gameName), zap.Error(err))
		c.sendError(cl.ID, "game store unavailable")
		return
	}

	_, err = c.registry.Create(gameName, game.ID, cl.ID, c.addr, func(s *Session) {
		c.hub.JoinRoom(gameName, cl.ID)
		c.associate(cl.ID, connInfo{gameName: gameName, host: true})
		c.hub.Send(cl.ID, realtime.NewEvent(realtime.EventHostingStarted, realtime.HostingStartedPayload{
			GameName: gameName,
			HostAddr: c.addr,
			Players:  roster,
		}))
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyHosted) {
			c.sendError(cl.ID, fmt.Sprintf("game %q is already being hosted", gameName))
		} else {
			c.sendError(cl.ID, err.Error())
		}
		return
	}
	c.logger.Info("hosting started", zap.String("game", gameName), zap.String("host_addr", c.addr))
}

// JoinGame handles a join_game message. The player's name comes from the
// roster, not from the client. A second join with the same playerId migrates
// the live connection: the old socket is closed, nobody else is notified.
func (c *Controller) JoinGame(ctx context.Context, cl *realtime.Client, gameName, playerID, playerName string) {
	if cl.Role != realtime.RolePlayer {
		c.sendError(cl.ID, "only player connections can join a game")
		return
	}
	if _, ok := c.lookup(cl.ID); ok {
		c.sendError(cl.ID, "connection is already in a session")
		return
	}

	game, err := c.store.GetGameByName(ctx, gameName)
	if err != nil {
		if c.notFound(err) {
			c.sendError(cl.ID, fmt.Sprintf("game %q not found", gameName))
		} else {
			c.logger.Error("game lookup failed", zap.String("game", gameName), zap.Error(err))
			c.sendError(cl.ID, "game store unavailable")
		}
		return
	}
	roster, err := c.store.ListRoster(ctx, game.ID)
	if err != nil {
		c.logger.Error("roster lookup failed", zap.String("game", gameName), zap.Error(err))
		c.sendError(cl.ID, "game store unavailable")
		return
	}
	rosterName := ""
	for _, p := range roster {
		if p.ID.String() == playerID {
			rosterName = p.Name
			break
		}
	}
	if rosterName == "" {
		c.sendError(cl.ID, fmt.Sprintf("player %q is not in the roster of %q", playerID, gameName))
		return
	}

	var prevConnID string
	err = c.registry.Mutate(gameName, func(s *Session) error {
		prevConnID = s.attach(playerID, rosterName, cl.ID)
		if prevConnID != "" {
			c.hub.LeaveRoom(gameName, prevConnID)
			c.dissociate(prevConnID)
		}
		c.hub.JoinRoom(gameName, cl.ID)
		c.associate(cl.ID, connInfo{gameName: gameName, playerID: playerID})
		c.hub.Send(cl.ID, realtime.NewEvent(realtime.EventJoinedGame, realtime.PlayerEventPayload{
			GameName: gameName, PlayerID: playerID, PlayerName: rosterName,
		}))
		if prevConnID == "" {
			c.hub.BroadcastToRoomAndPublish(gameName, realtime.NewEvent(realtime.EventPlayerJoined, realtime.PlayerEventPayload{
				GameName: gameName, PlayerID: playerID, PlayerName: rosterName,
			}), cl.ID)
		}
		return nil
	})
	if err != nil {
		// Session gone, or torn down while this join was in flight.
		c.sendError(cl.ID, fmt.Sprintf("game %q is not being hosted", gameName))
		return
	}
	if prevConnID != "" {
		c.hub.CloseConn(prevConnID)
		c.logger.Info("player connection migrated", zap.String("game", gameName), zap.String("player", rosterName))
	} else {
		c.logger.Info("player joined", zap.String("game", gameName), zap.String("player", rosterName))
	}
}

// LeaveGame handles an explicit leave_game message from a player.
func (c *Controller) LeaveGame(cl *realtime.Client) {
	info, ok := c.lookup(cl.ID)
	if !ok || info.host {
		c.sendError(cl.ID, "connection has not joined a game")
		return
	}
	err := c.registry.Mutate(info.gameName, func(s *Session) error {
		pc := s.detach(cl.ID)
		if pc == nil {
			return ErrNotInSession
		}
		c.hub.LeaveRoom(info.gameName, cl.ID)
		c.dissociate(cl.ID)
		c.hub.Send(cl.ID, realtime.NewEvent(realtime.EventLeftGame, realtime.PlayerEventPayload{
			GameName: info.gameName, PlayerID: pc.PlayerID, PlayerName: pc.PlayerName,
		}))
		c.hub.BroadcastToRoomAndPublish(info.gameName, realtime.NewEvent(realtime.EventPlayerLeft, realtime.PlayerEventPayload{
			GameName: info.gameName, PlayerID: pc.PlayerID, PlayerName: pc.PlayerName,
		}), cl.ID)
		c.logger.Info("player left", zap.String("game", info.gameName), zap.String("player", pc.PlayerName))
		return nil
	})
	if err != nil {
		c.sendError(cl.ID, "connection has not joined a game")
	}
}

// Disconnect handles a transport-level connection loss. For a host this
// tears the whole session down; for a player it is an implicit leave, except
// nothing is sent to the connection itself (it is gone).
func (c *Controller) Disconnect(cl *realtime.Client) {
	info, ok := c.lookup(cl.ID)
	if !ok {
		return
	}
	if info.host {
		c.Teardown(info.gameName, "host disconnected")
		return
	}
	_ = c.registry.Mutate(info.gameName, func(s *Session) error {
		pc := s.detach(cl.ID)
		if pc == nil {
			return nil
		}
		c.hub.LeaveRoom(info.gameName, cl.ID)
		c.hub.BroadcastToRoomAndPublish(info.gameName, realtime.NewEvent(realtime.EventPlayerLeft, realtime.PlayerEventPayload{
			GameName: info.gameName, PlayerID: pc.PlayerID, PlayerName: pc.PlayerName,
		}), cl.ID)
		c.logger.Info("player disconnected", zap.String("game", info.gameName), zap.String("player", pc.PlayerName))
		return nil
	})
	c.dissociate(cl.ID)
}

// Teardown ends the session for gameName: every attached player receives
// session_ended as the final event of its connection and is then closed.
// The final-event path guarantees delivery even when a player's send buffer
// is saturated. Idempotent; the losing caller of two concurrent teardowns
// does nothing.
func (c *Controller) Teardown(gameName, reason string) {
	set, ok := c.registry.Destroy(gameName)
	if !ok {
		return
	}
	ended := realtime.NewEvent(realtime.EventSessionEnded, realtime.SessionEndedPayload{
		GameName: gameName,
		Reason:   reason,
	})
	for _, pc := range set.Players {
		c.dissociate(pc.ConnID)
		c.hub.CloseConnWith(pc.ConnID, ended)
	}
	c.hub.PublishToRoom(gameName, ended)
	c.dissociate(set.HostConnID)
	c.hub.DestroyRoom(gameName)
	c.logger.Info("session torn down", zap.String("game", gameName), zap.String("reason", reason))
}

// SweepDeadHosts tears down every session whose host connection is no longer
// registered in the hub. Safety net for hosts that vanished without a close
// frame; the pong timeout usually catches them first.
func (c *Controller) SweepDeadHosts() {
	for _, info := range c.registry.Snapshot() {
		s := c.registry.Get(info.GameName)
		if s == nil {
			continue
		}
		if !c.hub.Alive(s.HostConnID) {
			c.logger.Warn("host connection dead, sweeping session", zap.String("game", info.GameName))
			c.Teardown(info.GameName, "host connection lost")
		}
	}
}

// ActiveSessions lists the sessions currently being hosted.
func (c *Controller) ActiveSessions() []Info {
	return c.registry.Snapshot()
}

// ObjectiveAdded broadcasts a public_objective_added event to the game's
// session, if one is active.
func (c *Controller) ObjectiveAdded(gameName string, obj *models.PublicObjective) {
	if c.registry.Get(gameName) == nil {
		return
	}
	c.hub.BroadcastToRoomAndPublish(gameName, realtime.NewEvent(realtime.EventPublicObjectiveAdded, realtime.ObjectiveBoardPayload{
		GameName: gameName, Objective: obj,
	}))
}

// ObjectiveRemoved broadcasts a public_objective_removed event to the game's
// session, if one is active.
func (c *Controller) ObjectiveRemoved(gameName string, obj *models.PublicObjective) {
	if c.registry.Get(gameName) == nil {
		return
	}
	c.hub.BroadcastToRoomAndPublish(gameName, realtime.NewEvent(realtime.EventPublicObjectiveRemoved, realtime.ObjectiveBoardPayload{
		GameName: gameName, Objective: obj,
	}))
}

// ObjectiveScoringChanged broadcasts an objective_scoring_state event to the
// game's session, if one is active.
func (c *Controller) ObjectiveScoringChanged(gameName string, obj *models.PublicObjective, playerID uuid.UUID, completed bool) {
	if c.registry.Get(gameName) == nil {
		return
	}
	c.hub.BroadcastToRoomAndPublish(gameName, realtime.NewEvent(realtime.EventObjectiveScoringState, realtime.ObjectiveScoringPayload{
		GameName:  gameName,
		Key:       obj.Key,
		Type:      obj.Type,
		SlotIndex: obj.SlotIndex,
		PlayerID:  playerID,
		Completed: completed,
	}))
}

func (c *Controller) sendError(connID, msg string) {
	c.hub.Send(connID, realtime.NewEvent(realtime.EventError, realtime.ErrorPayload{Message: msg}))
}

func (c *Controller) lookup(connID string) (connInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.conns[connID]
	return info, ok
}

func (c *Controller) associate(connID string, info connInfo) {
	c.mu.Lock()
	c.conns[connID] = info
	c.mu.Unlock()
}

func (c *Controller) dissociate(connID string) {
	c.mu.Lock()
	delete(c.conns, connID)
	c.mu.Unlock()
}
