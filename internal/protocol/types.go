package protocol

import "encoding/json"

// Position is a point on the shared canvas
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Author identifies who produced a chat message, stroke or shape
type Author struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
	Color        string `json:"color"`
}

// Participant is a connection's live presence in a room
type Participant struct {
	ConnectionID string   `json:"connectionId"`
	DisplayName  string   `json:"displayName"`
	Color        string   `json:"color"`
	Position     Position `json:"position"`
}

func (p Participant) Author() Author {
	return Author{
		ConnectionID: p.ConnectionID,
		DisplayName:  p.DisplayName,
		Color:        p.Color,
	}
}

type ChatMessage struct {
	ID        string `json:"id"`
	Author    Author `json:"author"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Stroke is one freehand line segment
type Stroke struct {
	ID        string   `json:"id"`
	Author    Author   `json:"author"`
	From      Position `json:"from"`
	To        Position `json:"to"`
	Color     string   `json:"color"`
	Width     float64  `json:"width"`
	Timestamp int64    `json:"timestamp"`
}

// Shape is relayed to the room but never stored
type Shape struct {
	ID        string   `json:"id"`
	Author    Author   `json:"author"`
	Shape     string   `json:"shape"`
	From      Position `json:"from"`
	To        Position `json:"to"`
	Color     string   `json:"color"`
	Width     float64  `json:"width"`
	Timestamp int64    `json:"timestamp"`
}

type Note struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Color   string  `json:"color"`
	Content string  `json:"content"`
	Author  string  `json:"author"`
}

type Image struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Payload string  `json:"payload"`
}

// RoomInfo is the public summary of a live room
type RoomInfo struct {
	RoomID      string `json:"roomId"`
	MemberCount int    `json:"memberCount"`
	HasSecret   bool   `json:"hasSecret"`
}

// Outbound payloads

type JoinSuccessPayload struct {
	RoomID string      `json:"roomId"`
	Self   Participant `json:"self"`
}

type JoinErrorPayload struct {
	Message string `json:"message"`
}

type ParticipantPayload struct {
	Participant Participant `json:"participant"`
}

type ParticipantLeftPayload struct {
	ConnectionID string `json:"connectionId"`
}

type ParticipantRosterPayload struct {
	List []Participant `json:"list"`
}

type ParticipantClickedPayload struct {
	ConnectionID string   `json:"connectionId"`
	Position     Position `json:"position"`
	Color        string   `json:"color"`
}

type RoomMemberCountPayload struct {
	Count int `json:"count"`
}

type RoomMetadataPayload struct {
	RoomID      string `json:"roomId"`
	MemberCount int    `json:"memberCount"`
}

type RoomListPayload struct {
	Rooms []RoomInfo `json:"rooms"`
}

type ChatMessagePayload struct {
	Message ChatMessage `json:"message"`
}

type ChatHistoryPayload struct {
	Messages []ChatMessage `json:"messages"`
}

type StrokePayload struct {
	Stroke Stroke `json:"stroke"`
}

type DrawHistoryPayload struct {
	Strokes []Stroke `json:"strokes"`
}

type DrawUndonePayload struct {
	ID string `json:"id"`
}

type DrawRedonePayload struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ShapeDrawnPayload struct {
	Shape Shape `json:"shape"`
}

type EmojiReceivedPayload struct {
	Emoji    string   `json:"emoji"`
	Position Position `json:"position"`
}

type PingReceivedPayload struct {
	Position Position `json:"position"`
	Color    string   `json:"color"`
	Name     string   `json:"name"`
}

type NotePayload struct {
	Note Note `json:"note"`
}

type NoteMovedPayload struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type NoteUpdatedPayload struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type IDPayload struct {
	ID string `json:"id"`
}

type NoteListPayload struct {
	Notes []Note `json:"notes"`
}

type ImagePayload struct {
	Image Image `json:"image"`
}

type ImageMovedPayload struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type ImageListPayload struct {
	Images []Image `json:"images"`
}
