package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// Message - envelope pushed to subscribers
type Message struct {
	Type      string `json:"type"`
	SessionId string `json:"sessionId"`
	Payload   any    `json:"payload,omitempty"`
}

// SnapshotFunc - current payload for a newly connected client; an error rejects the connection
type SnapshotFunc func(ctx context.Context, sessionID string) (any, error)

// client - one websocket connection subscribed to a session
type client struct {
	id        string
	conn      *websocket.Conn
	sessionId string
	send      chan []byte
}

// room - subscribers of one session
type room struct {
	id           string
	clients      map[string]*client
	mutex        sync.RWMutex
	createdAt    time.Time
	lastActivity time.Time
}

// Stats - hub counters
type Stats struct {
	ActiveRooms      int       `json:"activeRooms"`
	CurrentClients   int       `json:"currentClients"`
	TotalConnections int       `json:"totalConnections"`
	MessagesSent     int       `json:"messagesSent"`
	StartTime        time.Time `json:"startTime"`
}

// Hub - fans session events out to websocket subscribers
type Hub struct {
	rooms    map[string]*room
	mutex    sync.RWMutex
	upgrader websocket.Upgrader
	snapshot SnapshotFunc
	log      *zap.Logger

	statsMutex       sync.Mutex
	totalConnections int
	messagesSent     int
	startTime        time.Time
}

func NewHub(snapshot SnapshotFunc, log *zap.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]*room),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		snapshot:  snapshot,
		log:       log,
		startTime: time.Now(),
	}
}

// subscribe - add c to its session's room, creating the room under the same hub lock
// so CleanupEmptyRooms never sees it empty
func (h *Hub) subscribe(sessionId string, c *client) (*room, int) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	rm, exists := h.rooms[sessionId]
	if !exists {
		now := time.Now()
		rm = &room{id: sessionId, clients: make(map[string]*client), createdAt: now, lastActivity: now}
		h.rooms[sessionId] = rm
		h.log.Debug("✅ [Realtime] Room created", zap.String("session", sessionId))
	}
	return rm, rm.add(c)
}

func (rm *room) add(c *client) int {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	rm.clients[c.id] = c
	rm.lastActivity = time.Now()
	return len(rm.clients)
}

func (rm *room) remove(id string) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	if c, ok := rm.clients[id]; ok {
		close(c.send)
		delete(rm.clients, id)
		rm.lastActivity = time.Now()
	}
}

// broadcast - queue data for every client; a full buffer drops that client
func (rm *room) broadcast(data []byte) int {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	sent := 0
	for id, c := range rm.clients {
		select {
		case c.send <- data:
			sent++
		default:
			close(c.send)
			delete(rm.clients, id)
		}
	}
	return sent
}

// Publish - send an event to everyone subscribed to sessionID
func (h *Hub) Publish(sessionID, eventType string, payload any) {
	h.mutex.RLock()
	rm, ok := h.rooms[sessionID]
	h.mutex.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(Message{Type: eventType, SessionId: sessionID, Payload: payload})
	if err != nil {
		h.log.Error("❌ [Realtime] Error marshaling message", zap.Error(err))
		return
	}

	sent := rm.broadcast(data)
	h.statsMutex.Lock()
	h.messagesSent += sent
	h.statsMutex.Unlock()
}

// ServeWS - upgrade and subscribe to ?session=<id>
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionId := r.URL.Query().Get("session")
	if sessionId == "" {
		http.Error(w, "missing session parameter", http.StatusBadRequest)
		return
	}

	var initial any
	if h.snapshot != nil {
		payload, err := h.snapshot(r.Context(), sessionId)
		if err != nil {
			h.log.Warn("⚠️ [Realtime] Subscription rejected", zap.String("session", sessionId), zap.Error(err))
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		initial = payload
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("⚠️ [Realtime] WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{id: uuid.New().String(), conn: conn, sessionId: sessionId, send: make(chan []byte, sendBuffer)}
	if initial != nil {
		if data, err := json.Marshal(Message{Type: "session_state", SessionId: sessionId, Payload: initial}); err == nil {
			c.send <- data
		}
	}

	rm, count := h.subscribe(sessionId, c)

	h.statsMutex.Lock()
	h.totalConnections++
	h.statsMutex.Unlock()

	h.log.Info("👤 [Realtime] Client subscribed",
		zap.String("session", sessionId), zap.String("client", c.id), zap.Int("clients", count))

	go c.writePump(h.log)
	go c.readPump(rm, h.log)
}

// readPump - discards inbound messages; returns and unsubscribes on close
func (c *client) readPump(rm *room, log *zap.Logger) {
	defer func() {
		rm.remove(c.id)
		c.conn.Close()
		log.Info("👋 [Realtime] Client left", zap.String("session", c.sessionId), zap.String("client", c.id))
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("⚠️ [Realtime] WebSocket error", zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump(log *zap.Logger) {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Warn("⚠️ [Realtime] WebSocket write error", zap.Error(err))
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// CleanupEmptyRooms - drop rooms without subscribers
func (h *Hub) CleanupEmptyRooms() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	cleaned := 0
	for id, rm := range h.rooms {
		rm.mutex.RLock()
		empty := len(rm.clients) == 0
		rm.mutex.RUnlock()
		if empty {
			delete(h.rooms, id)
			cleaned++
		}
	}
	if cleaned > 0 {
		h.log.Info("🧹 [Realtime] Cleaned up empty rooms", zap.Int("count", cleaned), zap.Int("active", len(h.rooms)))
	}
	return cleaned
}

// StartCleanupRoutine - periodic CleanupEmptyRooms until ctx is done
func (h *Hub) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.CleanupEmptyRooms()
			}
		}
	}()
}

// Stats - counters for /metrics
func (h *Hub) Stats() Stats {
	h.mutex.RLock()
	rooms := len(h.rooms)
	clients := 0
	for _, rm := range h.rooms {
		rm.mutex.RLock()
		clients += len(rm.clients)
		rm.mutex.RUnlock()
	}
	h.mutex.RUnlock()

	h.statsMutex.Lock()
	defer h.statsMutex.Unlock()
	return Stats{
		ActiveRooms:      rooms,
		CurrentClients:   clients,
		TotalConnections: h.totalConnections,
		MessagesSent:     h.messagesSent,
		StartTime:        h.startTime,
	}
}
