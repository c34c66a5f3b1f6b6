package hub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConn struct {
	id       string
	mu       sync.Mutex
	received []string
	sendErr  error
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(event string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, event)
	return nil
}

func (m *mockConn) Close() error { return nil }

func (m *mockConn) getReceived() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

func TestHub_Broadcast(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(*Hub) []*mockConn
		room         string
		wantReceived map[string]int
	}{
		{
			name: "broadcast to room members",
			setup: func(h *Hub) []*mockConn {
				c1 := &mockConn{id: "c1"}
				c2 := &mockConn{id: "c2"}
				h.Subscribe("r1", c1)
				h.Subscribe("r1", c2)
				return []*mockConn{c1, c2}
			},
			room:         "r1",
			wantReceived: map[string]int{"c1": 1, "c2": 1},
		},
		{
			name: "no cross-room broadcast",
			setup: func(h *Hub) []*mockConn {
				c1 := &mockConn{id: "c1"}
				c2 := &mockConn{id: "c2"}
				h.Subscribe("r1", c1)
				h.Subscribe("r2", c2)
				return []*mockConn{c1, c2}
			},
			room:         "r1",
			wantReceived: map[string]int{"c1": 1, "c2": 0},
		},
		{
			name: "unknown room is a no-op",
			setup: func(h *Hub) []*mockConn {
				c1 := &mockConn{id: "c1"}
				h.Subscribe("r1", c1)
				return []*mockConn{c1}
			},
			room:         "r9",
			wantReceived: map[string]int{"c1": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			conns := tt.setup(h)

			h.Broadcast(tt.room, "testEvent", nil)

			for _, c := range conns {
				assert.Len(t, c.getReceived(), tt.wantReceived[c.id], "conn %s", c.id)
			}
		})
	}
}

func TestHub_UnsubscribeCleanup(t *testing.T) {
	h := New()
	c1 := &mockConn{id: "c1"}
	c2 := &mockConn{id: "c2"}
	h.Subscribe("r1", c1)
	h.Subscribe("r1", c2)

	h.Unsubscribe("r1", "c1")
	rooms, clients := h.Stats()
	require.Equal(t, 1, rooms)
	require.Equal(t, 1, clients)

	// Last subscriber leaving removes the group.
	h.Unsubscribe("r1", "c2")
	rooms, clients = h.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, clients)

	// Unknown room/conn stays a no-op.
	h.Unsubscribe("r1", "c1")
	h.Unsubscribe("r9", "c9")
}

func TestHub_DropGroup(t *testing.T) {
	h := New()
	c1 := &mockConn{id: "c1"}
	c2 := &mockConn{id: "c2"}
	h.Subscribe("r1", c1)
	h.Subscribe("r1", c2)
	h.Subscribe("r2", c2)

	h.DropGroup("r1")

	rooms, clients := h.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, clients)
	h.Broadcast("r1", "testEvent", nil)
	assert.Empty(t, c1.getReceived())
}

func TestHub_Rooms(t *testing.T) {
	h := New()
	c1 := &mockConn{id: "c1"}
	h.Subscribe("r1", c1)
	h.Subscribe("r2", c1)

	assert.ElementsMatch(t, []string{"r1", "r2"}, h.Rooms("c1"))
	assert.Empty(t, h.Rooms("c9"))
}

func TestHub_BroadcastSendFailure(t *testing.T) {
	h := New()
	bad := &mockConn{id: "bad", sendErr: assert.AnError}
	good := &mockConn{id: "good"}
	h.Subscribe("r1", bad)
	h.Subscribe("r1", good)

	h.Broadcast("r1", "testEvent", nil)

	// A failing recipient never blocks the rest of the group.
	assert.Len(t, good.getReceived(), 1)
	rooms, clients := h.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 2, clients)
}
