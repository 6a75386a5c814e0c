package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"stockpipe/internal/infrastructure"
	"stockpipe/internal/operations"
)

// Message types sent to clients
const (
	TypeConnection = "connection"
)

// broadcastBuffer bounds messages waiting for the hub loop
const broadcastBuffer = 64

// Message is the envelope of every frame sent to clients
type Message struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts run updates to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu        sync.RWMutex
	snapshots SnapshotSource
	running   bool

	logger  *slog.Logger
	metrics *OTelMetrics

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *OTelMetrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics, _ = NewOTelMetrics(nil)
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// SetSnapshotSource sets where the latest run snapshot for new clients comes from
func (h *Hub) SetSnapshotSource(src SnapshotSource) {
	h.mu.Lock()
	h.snapshots = src
	h.mu.Unlock()
}

// Start runs the hub loop in a goroutine
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			h.closeAll()
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			ctx := client.context()
			h.metrics.RecordConnection(ctx)
			h.logger.InfoContext(ctx, "client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count))

			h.greet(ctx, client)

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				ctx := client.context()
				h.metrics.RecordDisconnection(ctx, time.Since(client.connectedAt), "closed")
				h.logger.InfoContext(ctx, "client unregistered",
					slog.String("client_id", client.id),
					slog.Int("total_clients", count),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// greet sends the connection message and, when a run has been seen, its
// latest snapshot so a new client never waits for the next change.
func (h *Hub) greet(ctx context.Context, client *Client) {
	h.enqueue(ctx, client, Message{
		Type:      TypeConnection,
		Status:    "connected",
		Data:      map[string]string{"client_id": client.id},
		Timestamp: time.Now(),
	})

	h.mu.RLock()
	src := h.snapshots
	h.mu.RUnlock()
	if src == nil {
		return
	}
	if snap, ok := src.Latest(); ok {
		h.enqueue(ctx, client, newSnapshotMessage(snap.RunID, string(snap.Status), snap))
	}
}

func (h *Hub) enqueue(ctx context.Context, client *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal message",
			slog.String("type", msg.Type),
			slog.String("error", err.Error()))
		return
	}
	select {
	case client.send <- data:
	default:
		h.metrics.RecordDroppedMessage(ctx, "client_buffer_full")
		h.logger.WarnContext(ctx, "client buffer full, message dropped",
			slog.String("client_id", client.id),
			slog.String("type", msg.Type))
	}
}

func (h *Hub) fanOut(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	failed := 0
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			failed++
			close(client.send)
			delete(h.clients, client)
			h.logger.WarnContext(client.context(), "client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}

	h.logger.Debug("broadcast delivered",
		slog.Int("client_count", len(h.clients)),
		slog.Int("failed", failed),
		slog.Int("message_size", len(message)))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func newSnapshotMessage(runID, status string, payload any) Message {
	return Message{
		Type:      operations.EventTypeRunSnapshot,
		RunID:     runID,
		Status:    status,
		Data:      payload,
		Timestamp: time.Now(),
	}
}

// BroadcastUpdate queues an update for every connected client. It never
// blocks the caller: when the queue is full the message is dropped.
func (h *Hub) BroadcastUpdate(eventType, runID, status string, payload any) {
	msg := newSnapshotMessage(runID, status, payload)
	msg.Type = eventType

	ctx := infrastructure.WithTraceID(context.Background(), runID)
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal broadcast",
			slog.String("type", eventType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.quit:
	default:
		h.metrics.RecordDroppedMessage(ctx, "broadcast_queue_full")
		h.logger.WarnContext(ctx, "broadcast queue full, update dropped",
			slog.String("type", eventType),
			slog.String("run_id", runID))
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes every client and ends the hub loop
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		h.mu.RLock()
		running := h.running
		h.mu.RUnlock()
		if running {
			<-h.done
		}
	})
}
