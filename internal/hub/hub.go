package hub

import (
	"log/slog"
	"sync"
)

// Connection is one attached client as the relay sees it: a stable id and a
// fire-and-forget event sink. The websocket adapter implements it; tests use
// in-memory fakes.
type Connection interface {
	ID() string
	Send(event string, payload interface{}) error
	Close() error
}

// Hub maps each room id to the set of connections subscribed to that room's
// broadcasts. Subscription changes happen synchronously on join and on
// disconnect cleanup, so a broadcast is a pure function of this mapping.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[string]Connection
}

func New() *Hub {
	return &Hub{groups: make(map[string]map[string]Connection)}
}

// Subscribe adds conn to roomID's broadcast group, creating the group if
// needed.
func (h *Hub) Subscribe(roomID string, conn Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[roomID]
	if !ok {
		g = make(map[string]Connection)
		h.groups[roomID] = g
	}
	g[conn.ID()] = conn
}

// Unsubscribe removes the connection from roomID's group. Removing the last
// subscriber deletes the group. Unknown room or connection is a no-op.
func (h *Hub) Unsubscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[roomID]
	if !ok {
		return
	}
	delete(g, connID)
	if len(g) == 0 {
		delete(h.groups, roomID)
	}
}

// DropGroup removes a room's entire broadcast group (room closed).
func (h *Hub) DropGroup(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.groups, roomID)
}

// Rooms returns the room ids the connection is currently subscribed to.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var rooms []string
	for roomID, g := range h.groups {
		if _, ok := g[connID]; ok {
			rooms = append(rooms, roomID)
		}
	}
	return rooms
}

// Broadcast sends the event to every connection in roomID's group. Send
// failures are logged and skipped; delivery is fire-and-forget.
func (h *Hub) Broadcast(roomID, event string, payload interface{}) {
	h.mu.RLock()
	conns := make([]Connection, 0, len(h.groups[roomID]))
	for _, c := range h.groups[roomID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.Send(event, payload); err != nil {
			slog.Debug("broadcast send failed", "room", roomID, "clientId", c.ID(), "event", event, "error", err)
		}
	}
}

// Unicast sends the event to a single connection.
func (h *Hub) Unicast(conn Connection, event string, payload interface{}) {
	if err := conn.Send(event, payload); err != nil {
		slog.Debug("unicast send failed", "clientId", conn.ID(), "event", event, "error", err)
	}
}

// Stats reports the current number of groups and total subscriptions.
func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms = len(h.groups)
	for _, g := range h.groups {
		clients += len(g)
	}
	return rooms, clients
}
