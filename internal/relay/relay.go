// Package relay implements the room lifecycle and playback control handlers.
// Every inbound event and every disconnect notification is handled to
// completion under a single mutex, so each handler's registry access is
// atomic with respect to all others.
package relay

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xingzihai/soundroom/internal/hub"
	"github.com/xingzihai/soundroom/internal/protocol"
	"github.com/xingzihai/soundroom/internal/room"
)

type Relay struct {
	mu    sync.Mutex
	rooms *room.Manager
	hub   *hub.Hub
	now   func() time.Time
}

func New(rooms *room.Manager, h *hub.Hub) *Relay {
	return &Relay{rooms: rooms, hub: h, now: time.Now}
}

// Dispatch decodes one inbound frame and runs the matching handler. Malformed
// or unknown frames are rejected at the boundary with an error reply to the
// sender and never touch room state.
func (rl *Relay) Dispatch(conn hub.Connection, data []byte) {
	event, payload, err := protocol.Decode(data)
	if err != nil {
		slog.Warn("rejected message", "clientId", conn.ID(), "event", event, "error", err)
		if errors.Is(err, protocol.ErrBadPayload) || errors.Is(err, protocol.ErrUnknownEvent) {
			rl.hub.Unicast(conn, protocol.EventError, protocol.Error{Message: err.Error()})
		}
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	switch p := payload.(type) {
	case *protocol.CreateRoom:
		rl.createRoom(conn, p)
	case *protocol.JoinRoom:
		rl.joinRoom(conn, p)
	case *protocol.PlaybackEvent:
		rl.playbackEvent(conn, p)
	case *protocol.ChangeTrack:
		rl.changeTrack(conn, p)
	case *protocol.SendMessage:
		rl.sendMessage(conn, p)
	}
}

func (rl *Relay) createRoom(conn hub.Connection, p *protocol.CreateRoom) {
	rm, err := rl.rooms.CreateRoom(conn.ID(), p.Username)
	if err != nil {
		slog.Error("create room failed", "clientId", conn.ID(), "error", err)
		rl.hub.Unicast(conn, protocol.EventError, protocol.Error{Message: "Could not create room"})
		return
	}
	rl.hub.Subscribe(rm.ID, conn)
	rl.hub.Unicast(conn, protocol.EventRoomCreated, protocol.RoomCreated{RoomID: rm.ID})
	slog.Info("room created", "room", rm.ID, "host", conn.ID(), "username", p.Username)
}

func (rl *Relay) joinRoom(conn hub.Connection, p *protocol.JoinRoom) {
	rm := rl.rooms.GetRoom(p.RoomID)
	if rm == nil {
		rl.hub.Unicast(conn, protocol.EventError, protocol.Error{Message: "Room not found"})
		return
	}

	rl.hub.Subscribe(rm.ID, conn)
	rm.AddMember(conn.ID(), p.Username)

	rl.hub.Broadcast(rm.ID, protocol.EventUserJoined, protocol.UserJoined{
		User:  p.Username,
		Users: rm.MemberList(),
	})
	rl.hub.Unicast(conn, protocol.EventRoomState, protocol.RoomState{
		CurrentTrack:  rm.CurrentTrack,
		PlaybackState: rm.PlaybackState,
		Position:      rm.Position,
	})
	slog.Info("user joined", "room", rm.ID, "clientId", conn.ID(), "username", p.Username)
}

func (rl *Relay) playbackEvent(conn hub.Connection, p *protocol.PlaybackEvent) {
	rm := rl.rooms.GetRoom(p.RoomID)
	if rm == nil || rm.HostID != conn.ID() {
		// Non-host control attempts are dropped without a reply.
		return
	}

	pos := 0.0
	if p.Position != nil {
		pos = *p.Position
	}
	rm.PlaybackState = p.State
	rm.Position = pos

	rl.hub.Broadcast(rm.ID, protocol.EventPlaybackUpdate, protocol.PlaybackUpdate{
		State:    p.State,
		Position: pos,
	})
}

func (rl *Relay) changeTrack(conn hub.Connection, p *protocol.ChangeTrack) {
	rm := rl.rooms.GetRoom(p.RoomID)
	if rm == nil || rm.HostID != conn.ID() {
		return
	}

	// A track change always starts playback from the beginning.
	rm.CurrentTrack = p.Track
	rm.PlaybackState = protocol.StatePlaying
	rm.Position = 0

	rl.hub.Broadcast(rm.ID, protocol.EventTrackChanged, protocol.TrackChanged{Track: p.Track})
}

func (rl *Relay) sendMessage(conn hub.Connection, p *protocol.SendMessage) {
	if rl.rooms.GetRoom(p.RoomID) == nil {
		return
	}
	rl.hub.Broadcast(p.RoomID, protocol.EventNewMessage, protocol.NewMessage{
		User:      p.User,
		Message:   p.Message,
		Timestamp: rl.now().UTC().Format(time.RFC3339),
	})
}

// Disconnect runs transport-loss cleanup for one connection. Every live room
// is checked: rooms the connection hosts are closed outright, rooms it merely
// joined drop its member entry. Safe to call for connections no room knows.
func (rl *Relay) Disconnect(conn hub.Connection) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for _, rm := range rl.rooms.GetRooms() {
		if rm.HostID == conn.ID() {
			rl.hub.Broadcast(rm.ID, protocol.EventRoomClosed, struct{}{})
			rl.hub.DropGroup(rm.ID)
			rl.rooms.DeleteRoom(rm.ID)
			slog.Info("room closed", "room", rm.ID, "host", conn.ID())
			continue
		}
		if rm.RemoveMember(conn.ID()) {
			rl.hub.Unsubscribe(rm.ID, conn.ID())
			rl.hub.Broadcast(rm.ID, protocol.EventUserLeft, protocol.UserLeft{
				UserID: conn.ID(),
				Users:  rm.MemberList(),
			})
			slog.Info("user left", "room", rm.ID, "clientId", conn.ID())
		}
	}
}
