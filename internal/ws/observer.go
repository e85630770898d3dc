package ws

import "time"

type EventKind string

const (
	RoomOpened   EventKind = "room_opened"
	MemberJoined EventKind = "member_joined"
	MemberLeft   EventKind = "member_left"
	RoomClosed   EventKind = "room_closed"
	ChatPosted   EventKind = "chat_posted"
	StrokeDrawn  EventKind = "stroke_drawn"
)

// RoomEvent describes a change in a room's lifecycle or activity
type RoomEvent struct {
	Kind      EventKind
	RoomID    string
	Members   int
	HasSecret bool
	At        time.Time
}

// Observer receives room events on the hub goroutine and must not block
type Observer interface {
	OnRoomEvent(RoomEvent)
}

// Adapts a plain function to Observer
type ObserverFunc func(RoomEvent)

func (f ObserverFunc) OnRoomEvent(e RoomEvent) { f(e) }
