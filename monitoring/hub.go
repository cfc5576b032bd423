// Package monitoring streams serving events to websocket subscribers and
// keeps aggregate serving stats.
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventType tags a monitor message.
type EventType string

const (
	EventPrediction  EventType = "prediction"
	EventModelReload EventType = "model_reload"
	EventHeartbeat   EventType = "heartbeat"
)

// Event is one monitor message.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// PredictionEvent summarizes one served prediction.
type PredictionEvent struct {
	SymptomCount int           `json:"symptom_count"`
	InvalidCount int           `json:"invalid_count"`
	TopDisease   string        `json:"top_disease"`
	Probability  float64       `json:"probability"`
	Duration     time.Duration `json:"duration_ns"`
}

// Stats are cumulative serving counters.
type Stats struct {
	Predictions      int64     `json:"predictions"`
	Errors           int64     `json:"errors"`
	ConnectedClients int64     `json:"connected_clients"`
	StartTime        time.Time `json:"start_time"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans monitor events out to connected websocket clients. Slow clients
// are dropped rather than allowed to block the broadcast loop.
type Hub struct {
	logger      *zap.Logger
	upgrader    websocket.Upgrader
	mu          sync.RWMutex
	clients     map[*client]bool
	broadcast   chan []byte
	predictions atomic.Int64
	errors      atomic.Int64
	startTime   time.Time
}

// NewHub builds an idle hub; call Run to start broadcasting.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:   make(map[*client]bool),
		broadcast: make(chan []byte, 256),
		startTime: time.Now(),
	}
}

// Run pumps broadcasts and heartbeats until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case payload := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					go h.drop(c)
				}
			}
			h.mu.RUnlock()
		case <-heartbeat.C:
			h.publish(EventHeartbeat, h.SnapshotStats())
		}
	}
}

// ServeWS upgrades the request and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 64)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// RecordPrediction publishes a prediction event and bumps counters.
func (h *Hub) RecordPrediction(ev PredictionEvent) {
	h.predictions.Add(1)
	h.publish(EventPrediction, ev)
}

// RecordError bumps the error counter.
func (h *Hub) RecordError() {
	h.errors.Add(1)
}

// RecordReload publishes a model reload notification.
func (h *Hub) RecordReload(modelType string) {
	h.publish(EventModelReload, map[string]string{"model_type": modelType})
}

// SnapshotStats returns current counters.
func (h *Hub) SnapshotStats() Stats {
	h.mu.RLock()
	connected := int64(len(h.clients))
	h.mu.RUnlock()
	return Stats{
		Predictions:      h.predictions.Load(),
		Errors:           h.errors.Load(),
		ConnectedClients: connected,
		StartTime:        h.startTime,
	}
}

func (h *Hub) publish(kind EventType, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Warn("monitor event marshal failed", zap.Error(err))
		return
	}
	payload, err := json.Marshal(Event{Type: kind, Timestamp: time.Now(), Data: raw})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		// Monitor stream is best effort; never block the request path.
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		c.conn.Close()
		delete(h.clients, c)
	}
}
