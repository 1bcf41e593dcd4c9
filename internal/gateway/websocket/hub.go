// Package websocket provides the unified WebSocket gateway: one connection
// per client, action-based requests, and per-project event notifications.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/logger"
	ws "github.com/beaverai/beaver/pkg/websocket"
)

// SubscriptionListener is notified when a project gains its first
// subscriber or loses its last one. The notifications bridge uses it to
// manage event bus subscriptions lazily.
type SubscriptionListener interface {
	ProjectSubscribed(projectID string)
	ProjectUnsubscribed(projectID string)
}

// Hub manages all WebSocket client connections.
type Hub struct {
	clients map[*Client]bool

	// Clients subscribed to specific projects
	projectSubscribers map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *ws.Message

	dispatcher *ws.Dispatcher
	listener   SubscriptionListener

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(dispatcher *ws.Dispatcher, log *logger.Logger) *Hub {
	return &Hub{
		clients:            make(map[*Client]bool),
		projectSubscribers: make(map[string]map[*Client]bool),
		register:           make(chan *Client),
		unregister:         make(chan *Client),
		broadcast:          make(chan *ws.Message, 256),
		dispatcher:         dispatcher,
		logger:             log.WithFields(zap.String("component", "ws_hub")),
	}
}

// SetSubscriptionListener registers the listener for project subscription
// lifecycle. Must be called before Run.
func (h *Hub) SetSubscriptionListener(listener SubscriptionListener) {
	h.listener = listener
}

// Run starts the hub's main processing loop.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer h.logger.Info("WebSocket hub stopped")

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("Client registered", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.projectSubscribers = make(map[string]map[*Client]bool)
}

func (h *Hub) removeClient(client *Client) {
	var released []string

	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)

		for projectID := range client.subscriptions {
			if clients, ok := h.projectSubscribers[projectID]; ok {
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.projectSubscribers, projectID)
					released = append(released, projectID)
				}
			}
		}
	}
	h.mu.Unlock()

	for _, projectID := range released {
		h.notifyUnsubscribed(projectID)
	}
	h.logger.Debug("Client unregistered", zap.String("client_id", client.ID))
}

func (h *Hub) broadcastMessage(msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Client buffer full, will be cleaned up by write pump
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast sends a notification to all connected clients.
func (h *Hub) Broadcast(msg *ws.Message) {
	h.broadcast <- msg
}

// BroadcastToProject sends a notification to clients subscribed to a
// specific project.
func (h *Hub) BroadcastToProject(projectID string, msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := h.projectSubscribers[projectID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Buffer full
		}
	}
}

// SubscribeToProject subscribes a client to a project's notifications.
func (h *Hub) SubscribeToProject(client *Client, projectID string) {
	h.mu.Lock()
	first := false
	if _, ok := h.projectSubscribers[projectID]; !ok {
		h.projectSubscribers[projectID] = make(map[*Client]bool)
		first = true
	}
	h.projectSubscribers[projectID][client] = true
	client.subscriptions[projectID] = true
	h.mu.Unlock()

	if first && h.listener != nil {
		h.listener.ProjectSubscribed(projectID)
	}

	h.logger.Debug("Client subscribed to project",
		zap.String("client_id", client.ID),
		zap.String("project_id", projectID))
}

// UnsubscribeFromProject unsubscribes a client from a project.
func (h *Hub) UnsubscribeFromProject(client *Client, projectID string) {
	h.mu.Lock()
	released := false
	delete(client.subscriptions, projectID)
	if clients, ok := h.projectSubscribers[projectID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.projectSubscribers, projectID)
			released = true
		}
	}
	h.mu.Unlock()

	if released {
		h.notifyUnsubscribed(projectID)
	}
}

func (h *Hub) notifyUnsubscribed(projectID string) {
	if h.listener != nil {
		h.listener.ProjectUnsubscribed(projectID)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dispatcher returns the message dispatcher.
func (h *Hub) Dispatcher() *ws.Dispatcher {
	return h.dispatcher
}
