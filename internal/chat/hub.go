package chat

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Event types exchanged over the websocket
const (
	EventJoin       = "chat:join"
	EventLeave      = "chat:leave"
	EventSend       = "chat:send"
	EventNewMessage = "chat:new-message"
	EventAck        = "chat:ack"
	EventPing       = "ping"
	EventPong       = "pong"
)

// Event is an outbound websocket frame
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type roomEvent struct {
	groupID string
	event   Event
}

// Hub tracks connected clients and the group rooms they joined
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	broadcast  chan roomEvent
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan roomEvent, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and room broadcasts until ctx is cancelled
func (h *Hub) Run(ctx context.Context) error {
	defer h.stopOnce.Do(func() { close(h.done) })

	for {
		// Lifecycle events first so a client is registered before any message
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAllClients()
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Broadcast queues message for every client in the group's room
func (h *Hub) Broadcast(_ context.Context, groupID string, message Message) {
	h.Publish(groupID, Event{Type: EventNewMessage, Data: message})
}

// Publish queues an event for a room, dropping it when the queue is full
func (h *Hub) Publish(groupID string, event Event) {
	select {
	case h.broadcast <- roomEvent{groupID: groupID, event: event}:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("group_id", groupID),
			zap.String("type", event.Type))
	}
}

// Join adds the client to a group room
func (h *Hub) Join(client *Client, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return
	}
	room, ok := h.rooms[groupID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[groupID] = room
	}
	room[client] = true
}

// Leave removes the client from a group room
func (h *Hub) Leave(client *Client, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, groupID)
}

// sendTo offers an event to one client; dropped if the client is gone or slow
func (h *Hub) sendTo(client *Client, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.clients[client] {
		return
	}
	select {
	case client.send <- event:
	default:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of clients in a group room
func (h *Hub) RoomSize(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[groupID])
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("Websocket client connected", zap.String("user_id", client.userID), zap.Int("total_clients", total))
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		h.removeLocked(client)
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("Websocket client disconnected", zap.String("user_id", client.userID), zap.Int("total_clients", total))
}

// deliver sends to room members in client id order; slow clients are dropped
func (h *Hub) deliver(msg roomEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[msg.groupID]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- msg.event:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		h.removeLocked(client)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := len(h.clients)
	for client := range h.clients {
		h.removeLocked(client)
	}
	h.logger.Info("Websocket hub stopped", zap.Int("clients_closed", count))
}

func (h *Hub) removeLocked(client *Client) {
	for groupID := range h.rooms {
		h.leaveLocked(client, groupID)
	}
	delete(h.clients, client)
	close(client.send)
}

func (h *Hub) leaveLocked(client *Client, groupID string) {
	room, ok := h.rooms[groupID]
	if !ok {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, groupID)
	}
}
