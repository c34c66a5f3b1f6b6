package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound event names.
const (
	EventCreateRoom    = "createRoom"
	EventJoinRoom      = "joinRoom"
	EventPlaybackEvent = "playbackEvent"
	EventChangeTrack   = "changeTrack"
	EventSendMessage   = "sendMessage"
)

// Outbound event names.
const (
	EventRoomCreated    = "roomCreated"
	EventError          = "error"
	EventUserJoined     = "userJoined"
	EventRoomState      = "roomState"
	EventPlaybackUpdate = "playbackUpdate"
	EventTrackChanged   = "trackChanged"
	EventNewMessage     = "newMessage"
	EventUserLeft       = "userLeft"
	EventRoomClosed     = "roomClosed"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrBadPayload   = errors.New("invalid payload")
)

// PlayState is the wire representation of a room's playback state.
type PlayState string

const (
	StatePlaying PlayState = "playing"
	StatePaused  PlayState = "paused"
)

func (s PlayState) Valid() bool {
	return s == StatePlaying || s == StatePaused
}

// Envelope is the wire framing for every message in both directions:
// a named event plus an event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads, one variant per event.

type CreateRoom struct {
	Username string `json:"username"`
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type PlaybackEvent struct {
	RoomID   string    `json:"roomId"`
	State    PlayState `json:"state"`
	Position *float64  `json:"position,omitempty"`
}

type ChangeTrack struct {
	RoomID string          `json:"roomId"`
	Track  json.RawMessage `json:"track"`
}

type SendMessage struct {
	RoomID  string `json:"roomId"`
	User    string `json:"user"`
	Message string `json:"message"`
}

// Inbound is implemented by every inbound payload variant. Validate rejects
// payloads with missing or out-of-range required fields before they reach a
// handler.
type Inbound interface {
	Validate() error
}

func (p *CreateRoom) Validate() error { return nil }

func (p *JoinRoom) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("%w: joinRoom requires roomId", ErrBadPayload)
	}
	return nil
}

func (p *PlaybackEvent) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("%w: playbackEvent requires roomId", ErrBadPayload)
	}
	if !p.State.Valid() {
		return fmt.Errorf("%w: playbackEvent state must be %q or %q", ErrBadPayload, StatePlaying, StatePaused)
	}
	return nil
}

func (p *ChangeTrack) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("%w: changeTrack requires roomId", ErrBadPayload)
	}
	if len(bytes.TrimSpace(p.Track)) == 0 || bytes.Equal(bytes.TrimSpace(p.Track), []byte("null")) {
		return fmt.Errorf("%w: changeTrack requires track", ErrBadPayload)
	}
	return nil
}

func (p *SendMessage) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("%w: sendMessage requires roomId", ErrBadPayload)
	}
	return nil
}

// Decode parses a raw frame into its typed payload variant and validates it.
func Decode(data []byte) (string, Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	var payload Inbound
	switch env.Event {
	case EventCreateRoom:
		payload = &CreateRoom{}
	case EventJoinRoom:
		payload = &JoinRoom{}
	case EventPlaybackEvent:
		payload = &PlaybackEvent{}
	case EventChangeTrack:
		payload = &ChangeTrack{}
	case EventSendMessage:
		payload = &SendMessage{}
	default:
		return env.Event, nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, payload); err != nil {
			return env.Event, nil, fmt.Errorf("%w: %s: %v", ErrBadPayload, env.Event, err)
		}
	}
	if err := payload.Validate(); err != nil {
		return env.Event, nil, err
	}
	return env.Event, payload, nil
}

// Encode frames an outbound payload under its event name.
func Encode(event string, payload interface{}) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Outbound payloads.

type RoomCreated struct {
	RoomID string `json:"roomId"`
}

type Error struct {
	Message string `json:"message"`
}

// MemberInfo is the wire form of one room member in userJoined/userLeft lists.
type MemberInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UserJoined struct {
	User  string       `json:"user"`
	Users []MemberInfo `json:"users"`
}

type RoomState struct {
	CurrentTrack  json.RawMessage `json:"currentTrack"`
	PlaybackState PlayState       `json:"playbackState"`
	Position      float64         `json:"position"`
}

type PlaybackUpdate struct {
	State    PlayState `json:"state"`
	Position float64   `json:"position"`
}

type TrackChanged struct {
	Track json.RawMessage `json:"track"`
}

type NewMessage struct {
	User      string `json:"user"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type UserLeft struct {
	UserID string       `json:"userId"`
	Users  []MemberInfo `json:"users"`
}
