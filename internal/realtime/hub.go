// Package realtime pushes change events to connected clients over
// websockets. Events are invalidation signals: a client that receives one
// re-fetches what it shows.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/chatline/internal/models"
	"go.uber.org/zap"
)

// wireEvent is what clients receive; recipients stay server-side.
type wireEvent struct {
	Type           string     `json:"type"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Data           any        `json:"data,omitempty"`
}

// Hub tracks the open connections of every user on this instance.
type Hub struct {
	mu       sync.RWMutex
	conns    map[uuid.UUID]map[string]*Connection
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		conns: make(map[uuid.UUID]map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers on other origins authenticate with a bearer token, not
			// cookies, so there is nothing for a cross-site request to ride on.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve upgrades the request and holds the session until the client leaves.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	conn := NewConnection(userID, ws)
	h.register(conn)
	defer h.unregister(conn)

	go conn.writeLoop()
	conn.readLoop()
	conn.Close(websocket.CloseNormalClosure, "")
	return nil
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.conns[c.UserID]
	if !ok {
		sessions = make(map[string]*Connection)
		h.conns[c.UserID] = sessions
	}
	sessions[c.ID] = c
	h.logger.Debug("websocket connected",
		zap.String("user_id", c.UserID.String()),
		zap.Int("sessions", len(sessions)),
	)
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions := h.conns[c.UserID]
	delete(sessions, c.ID)
	if len(sessions) == 0 {
		delete(h.conns, c.UserID)
	}
	h.logger.Debug("websocket disconnected", zap.String("user_id", c.UserID.String()))
}

// Sessions returns how many connections userID has open here.
func (h *Hub) Sessions(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Deliver sends ev to every local connection of its recipients.
func (h *Hub) Deliver(ev models.Event) {
	payload, err := json.Marshal(wireEvent{
		Type:           ev.Type,
		ConversationID: ev.ConversationID,
		Data:           ev.Data,
	})
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	var targets []*Connection
	for _, userID := range ev.Recipients {
		for _, c := range h.conns[userID] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			h.logger.Debug("dropped event for connection",
				zap.String("user_id", c.UserID.String()),
				zap.Error(err),
			)
		}
	}
}
