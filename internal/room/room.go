package room

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/xingzihai/soundroom/internal/protocol"
)

var ErrCodeSpaceExhausted = errors.New("could not generate an unused room code")

// Member is one joined connection as recorded in a room, in join order.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Room is the shared state of one listening room. The creating connection is
// the host for the room's whole lifetime; only the host may mutate playback
// state or the current track.
type Room struct {
	ID            string
	HostID        string
	Members       []Member
	CurrentTrack  json.RawMessage
	PlaybackState protocol.PlayState
	Position      float64
}

// MemberList returns the members in join order in wire form.
func (r *Room) MemberList() []protocol.MemberInfo {
	list := make([]protocol.MemberInfo, 0, len(r.Members))
	for _, m := range r.Members {
		list = append(list, protocol.MemberInfo{ID: m.ID, Name: m.Name})
	}
	return list
}

// AddMember appends a member; join order is preserved.
func (r *Room) AddMember(connID, name string) {
	r.Members = append(r.Members, Member{ID: connID, Name: name})
}

// RemoveMember deletes the member with the given connection id. Returns false
// if no such member exists.
func (r *Room) RemoveMember(connID string) bool {
	for i, m := range r.Members {
		if m.ID == connID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return true
		}
	}
	return false
}

// Manager is the in-memory room registry. It lives for the process lifetime;
// nothing is persisted. The relay serializes all handler access, the
// Manager's own lock covers out-of-band readers such as the stats endpoint.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewManager() *Manager {
	return &Manager{rooms: make(map[string]*Room)}
}

// CreateRoom generates an unused room code and registers a new room with the
// given connection as host and sole initial member. Code collisions retry
// rather than overwrite.
func (m *Manager) CreateRoom(hostID, hostName string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var code string
	for attempt := 0; ; attempt++ {
		if attempt == 100 {
			return nil, ErrCodeSpaceExhausted
		}
		code = generateCode()
		if _, exists := m.rooms[code]; !exists {
			break
		}
	}

	rm := &Room{
		ID:            code,
		HostID:        hostID,
		Members:       []Member{{ID: hostID, Name: hostName}},
		PlaybackState: protocol.StatePaused,
	}
	m.rooms[code] = rm
	return rm, nil
}

func (m *Manager) GetRoom(id string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[id]
}

func (m *Manager) DeleteRoom(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
}

// GetRooms returns a snapshot of all live rooms, for disconnect cleanup and
// stats.
func (m *Manager) GetRooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// generateCode produces a 6-character uppercase base-36 room code, short
// enough to share by voice.
func generateCode() string {
	s := strconv.FormatUint(rand.Uint64(), 36)
	for len(s) < 6 {
		s = "0" + s
	}
	return strings.ToUpper(s[:6])
}
