package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait (seconds) drive the heartbeat; a host whose
	// process vanished stops answering pings and its readPump exits within
	// PongWait.
	PingInterval = 30
	PongWait     = 60
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// Role classifies a connection at upgrade time. It is fixed for the
// connection's lifetime; a player connection can never become a host.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// SessionHandler receives the protocol messages of one connection. Implemented
// by the session controller. The context is cancelled when the connection is
// gone, so in-flight store lookups for it stop.
type SessionHandler interface {
	HostGame(ctx context.Context, c *Client, gameName string)
	JoinGame(ctx context.Context, c *Client, gameName, playerID, playerName string)
	LeaveGame(c *Client)
	Disconnect(c *Client)
}

// Client represents a single websocket connection.
type Client struct {
	ID   string
	Role Role

	hub    *Hub
	conn   *websocket.Conn
	send   chan Event
	logger *zap.Logger

	mu      sync.Mutex
	closing bool
	final   *Event // delivered after the queue drains, before the close frame
}

// ServeWs handles the websocket upgrade and runs the connection loop. The
// connection declares its role via the "role" query parameter.
func ServeWs(hub *Hub, logger *zap.Logger, handler SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c.Query("role"))
		if role != RoleHost && role != RolePlayer {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be host or player"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:     uuid.New().String(),
			Role:   role,
			hub:    hub,
			conn:   conn,
			send:   make(chan Event, 256),
			logger: logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump(handler)
	}
}

func (c *Client) readPump(handler SessionHandler) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		handler.Disconnect(c)
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case MsgHostGame:
			var req HostGameRequest
			if err := json.Unmarshal(msg.Data, &req); err != nil || req.GameName == "" {
				c.sendError("gameName is required")
				continue
			}
			handler.HostGame(ctx, c, req.GameName)
		case MsgJoinGame:
			var req JoinGameRequest
			if err := json.Unmarshal(msg.Data, &req); err != nil || req.GameName == "" || req.PlayerID == "" {
				c.sendError("gameName and playerId are required")
				continue
			}
			handler.JoinGame(ctx, c, req.GameName, req.PlayerID, req.PlayerName)
		case MsgLeaveGame:
			handler.LeaveGame(c)
		default:
			// ignore
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				// Forced close: the buffered queue is already drained
				// (closed channels yield pending values first). Deliver the
				// final event, then the close frame.
				c.mu.Lock()
				final := c.final
				c.mu.Unlock()
				if final != nil {
					_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
					_ = c.conn.WriteJSON(*final)
				}
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue queues an event for delivery; drops it if the buffer is full or the
// connection is shutting down.
func (c *Client) enqueue(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return
	}
	select {
	case c.send <- ev:
	default:
		// buffer full, skip
	}
}

func (c *Client) sendError(msg string) {
	c.enqueue(NewEvent(EventError, ErrorPayload{Message: msg}))
}

// shutdown stops accepting events and closes the send channel so writePump
// flushes everything already queued, emits the optional final event, and only
// then sends the close frame. The final event bypasses the buffer and is
// never dropped.
func (c *Client) shutdown(final *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return
	}
	c.closing = true
	c.final = final
	close(c.send)
}
