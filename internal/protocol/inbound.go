package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxRoomIDLength      = 64
	MaxItemIDLength      = 64
	MaxColorLength       = 32
	MaxEmojiLength       = 32
	MaxStrokeWidth       = 100.0
	MaxNoteContentLength = 2000
	MaxImagePayload      = 512 * 1024
)

var (
	ErrMalformed      = errors.New("malformed message")
	ErrUnknownType    = errors.New("unknown message type")
	ErrInvalidPayload = errors.New("invalid payload")
)

var shapeKinds = map[string]bool{
	"line":   true,
	"rect":   true,
	"circle": true,
	"arrow":  true,
}

// Inbound is one of the typed messages a connection may send
type Inbound interface {
	Type() MessageType
	validate() error
}

type Join struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname,omitempty"`
	Password string `json:"password,omitempty"`
}

type Move struct {
	Position Position `json:"position"`
}

type Click struct {
	Position Position `json:"position"`
}

type Chat struct {
	Text string `json:"text"`
}

type DrawLine struct {
	From  Position `json:"from"`
	To    Position `json:"to"`
	Color string   `json:"color"`
	Width float64  `json:"width"`
}

type DrawClear struct{}

type DrawUndo struct {
	ID string `json:"id"`
}

type DrawRedo struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
}

type DrawShape struct {
	Shape string   `json:"shape"`
	From  Position `json:"from"`
	To    Position `json:"to"`
	Color string   `json:"color"`
	Width float64  `json:"width"`
}

type EmojiSend struct {
	Emoji string `json:"emoji"`
}

type PingSend struct {
	Position Position `json:"position"`
}

type NoteAdd struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Color   string  `json:"color"`
	Content string  `json:"content"`
}

type NoteMove struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type NoteUpdate struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type NoteDelete struct {
	ID string `json:"id"`
}

type ImageAdd struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Payload string  `json:"payload"`
}

type ImageMove struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type ImageDelete struct {
	ID string `json:"id"`
}

type ListRooms struct{}

func (*Join) Type() MessageType        { return TypeJoin }
func (*Move) Type() MessageType        { return TypeMove }
func (*Click) Type() MessageType       { return TypeClick }
func (*Chat) Type() MessageType        { return TypeChat }
func (*DrawLine) Type() MessageType    { return TypeDrawLine }
func (*DrawClear) Type() MessageType   { return TypeDrawClear }
func (*DrawUndo) Type() MessageType    { return TypeDrawUndo }
func (*DrawRedo) Type() MessageType    { return TypeDrawRedo }
func (*DrawShape) Type() MessageType   { return TypeDrawShape }
func (*EmojiSend) Type() MessageType   { return TypeEmojiSend }
func (*PingSend) Type() MessageType    { return TypePingSend }
func (*NoteAdd) Type() MessageType     { return TypeNoteAdd }
func (*NoteMove) Type() MessageType    { return TypeNoteMove }
func (*NoteUpdate) Type() MessageType  { return TypeNoteUpdate }
func (*NoteDelete) Type() MessageType  { return TypeNoteDelete }
func (*ImageAdd) Type() MessageType    { return TypeImageAdd }
func (*ImageMove) Type() MessageType   { return TypeImageMove }
func (*ImageDelete) Type() MessageType { return TypeImageDelete }
func (*ListRooms) Type() MessageType   { return TypeListRooms }

var inboundKinds = map[MessageType]func() Inbound{
	TypeJoin:        func() Inbound { return &Join{} },
	TypeMove:        func() Inbound { return &Move{} },
	TypeClick:       func() Inbound { return &Click{} },
	TypeChat:        func() Inbound { return &Chat{} },
	TypeDrawLine:    func() Inbound { return &DrawLine{} },
	TypeDrawClear:   func() Inbound { return &DrawClear{} },
	TypeDrawUndo:    func() Inbound { return &DrawUndo{} },
	TypeDrawRedo:    func() Inbound { return &DrawRedo{} },
	TypeDrawShape:   func() Inbound { return &DrawShape{} },
	TypeEmojiSend:   func() Inbound { return &EmojiSend{} },
	TypePingSend:    func() Inbound { return &PingSend{} },
	TypeNoteAdd:     func() Inbound { return &NoteAdd{} },
	TypeNoteMove:    func() Inbound { return &NoteMove{} },
	TypeNoteUpdate:  func() Inbound { return &NoteUpdate{} },
	TypeNoteDelete:  func() Inbound { return &NoteDelete{} },
	TypeImageAdd:    func() Inbound { return &ImageAdd{} },
	TypeImageMove:   func() Inbound { return &ImageMove{} },
	TypeImageDelete: func() Inbound { return &ImageDelete{} },
	TypeListRooms:   func() Inbound { return &ListRooms{} },
}

// Decode parses and validates a raw inbound frame
func Decode(data []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	newMessage, ok := inboundKinds[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	msg := newMessage()
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Type, err)
		}
	}

	if err := msg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Type, err)
	}
	return msg, nil
}

func (m *Join) validate() error {
	m.RoomID = strings.TrimSpace(m.RoomID)
	if m.RoomID == "" {
		return errors.New("roomId is required")
	}
	if len(m.RoomID) > MaxRoomIDLength {
		return fmt.Errorf("roomId longer than %d bytes", MaxRoomIDLength)
	}
	return nil
}

func (m *Move) validate() error  { return nil }
func (m *Click) validate() error { return nil }

func (m *Chat) validate() error {
	if strings.TrimSpace(m.Text) == "" {
		return errors.New("text is required")
	}
	return nil
}

func (m *DrawLine) validate() error {
	if err := validateColor(m.Color, true); err != nil {
		return err
	}
	return validateWidth(m.Width)
}

func (m *DrawClear) validate() error { return nil }

func (m *DrawUndo) validate() error { return validateID(m.ID) }

func (m *DrawRedo) validate() error { return validateID(m.ID) }

func (m *DrawShape) validate() error {
	if !shapeKinds[m.Shape] {
		return fmt.Errorf("unsupported shape %q", m.Shape)
	}
	if err := validateColor(m.Color, true); err != nil {
		return err
	}
	return validateWidth(m.Width)
}

func (m *EmojiSend) validate() error {
	if m.Emoji == "" {
		return errors.New("emoji is required")
	}
	if len(m.Emoji) > MaxEmojiLength {
		return fmt.Errorf("emoji longer than %d bytes", MaxEmojiLength)
	}
	return nil
}

func (m *PingSend) validate() error { return nil }

func (m *NoteAdd) validate() error {
	if err := validateID(m.ID); err != nil {
		return err
	}
	if err := validateColor(m.Color, false); err != nil {
		return err
	}
	return validateContent(m.Content)
}

func (m *NoteMove) validate() error { return validateID(m.ID) }

func (m *NoteUpdate) validate() error {
	if err := validateID(m.ID); err != nil {
		return err
	}
	return validateContent(m.Content)
}

func (m *NoteDelete) validate() error { return validateID(m.ID) }

func (m *ImageAdd) validate() error {
	if err := validateID(m.ID); err != nil {
		return err
	}
	if m.Payload == "" {
		return errors.New("payload is required")
	}
	if len(m.Payload) > MaxImagePayload {
		return fmt.Errorf("payload larger than %d bytes", MaxImagePayload)
	}
	return nil
}

func (m *ImageMove) validate() error   { return validateID(m.ID) }
func (m *ImageDelete) validate() error { return validateID(m.ID) }
func (m *ListRooms) validate() error   { return nil }

func validateID(id string) error {
	if id == "" {
		return errors.New("id is required")
	}
	if len(id) > MaxItemIDLength {
		return fmt.Errorf("id longer than %d bytes", MaxItemIDLength)
	}
	return nil
}

func validateColor(color string, required bool) error {
	if required && color == "" {
		return errors.New("color is required")
	}
	if len(color) > MaxColorLength {
		return fmt.Errorf("color longer than %d bytes", MaxColorLength)
	}
	return nil
}

func validateWidth(width float64) error {
	if width <= 0 || width > MaxStrokeWidth {
		return fmt.Errorf("width must be in (0, %g]", MaxStrokeWidth)
	}
	return nil
}

func validateContent(content string) error {
	if utf8.RuneCountInString(content) > MaxNoteContentLength {
		return fmt.Errorf("content longer than %d characters", MaxNoteContentLength)
	}
	return nil
}
