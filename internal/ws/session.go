package ws

import (
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manpreetbhatti/sketchroom/internal/protocol"
	"github.com/manpreetbhatti/sketchroom/internal/room"
)

const wrongPasswordMessage = "Incorrect room password"

// Session tracks one connection's membership. All methods run on the hub goroutine.
type Session struct {
	hub    *Hub
	client *Client
	roomID string
	self   protocol.Participant
}

func newSession(h *Hub, c *Client) *Session {
	return &Session{hub: h, client: c}
}

func (s *Session) handle(msg protocol.Inbound) {
	switch m := msg.(type) {
	case *protocol.Join:
		s.join(m)
	case *protocol.ListRooms:
		s.listRooms()
	case *protocol.Move:
		s.move(m)
	case *protocol.Click:
		s.click(m)
	case *protocol.Chat:
		s.chat(m)
	case *protocol.DrawLine:
		s.drawLine(m)
	case *protocol.DrawClear:
		s.drawClear()
	case *protocol.DrawUndo:
		s.drawUndo(m)
	case *protocol.DrawRedo:
		s.drawRedo(m)
	case *protocol.DrawShape:
		s.drawShape(m)
	case *protocol.EmojiSend:
		s.emoji(m)
	case *protocol.PingSend:
		s.ping(m)
	case *protocol.NoteAdd:
		s.noteAdd(m)
	case *protocol.NoteMove:
		s.noteMove(m)
	case *protocol.NoteUpdate:
		s.noteUpdate(m)
	case *protocol.NoteDelete:
		s.noteDelete(m)
	case *protocol.ImageAdd:
		s.imageAdd(m)
	case *protocol.ImageMove:
		s.imageMove(m)
	case *protocol.ImageDelete:
		s.imageDelete(m)
	default:
		log.Printf("[Hub] Unhandled message %T from client %s", msg, s.client.id)
	}
}

// Returns the session's room, or nil outside a room
func (s *Session) currentRoom() *room.Room {
	if s.roomID == "" {
		return nil
	}
	r, ok := s.hub.store.Get(s.roomID)
	if !ok {
		return nil
	}
	return r
}

func (s *Session) reply(t protocol.MessageType, payload any) {
	s.hub.sendTo(s.client, s.hub.encode(t, payload))
}

func (s *Session) toOthers(t protocol.MessageType, payload any) {
	s.hub.broadcast(s.roomID, s.hub.encode(t, payload), s.client)
}

func (s *Session) toRoom(t protocol.MessageType, payload any) {
	s.hub.broadcast(s.roomID, s.hub.encode(t, payload), nil)
}

func (s *Session) join(m *protocol.Join) {
	if s.roomID == m.RoomID {
		if r := s.currentRoom(); r != nil {
			s.sendSnapshot(r)
		}
		return
	}

	if existing, ok := s.hub.store.Get(m.RoomID); ok && !existing.CheckSecret(m.Password) {
		log.Printf("[Room %s] Rejected client %s: wrong password", m.RoomID, s.client.id)
		s.reply(protocol.TypeJoinError, protocol.JoinErrorPayload{Message: wrongPasswordMessage})
		return
	}

	if s.roomID != "" {
		s.leave()
	}

	r, created := s.hub.store.GetOrCreate(m.RoomID)
	if created {
		r.SetSecretIfEmpty(m.Password)
		log.Printf("[Room %s] Opened (secured: %v)", r.ID, r.HasSecret())
		s.hub.notify(RoomOpened, r)
	}

	id := s.hub.ids.Generate(s.client.id, m.Nickname)
	s.self = protocol.Participant{
		ConnectionID: id.ID,
		DisplayName:  id.Name,
		Color:        id.Color,
	}
	r.AddParticipant(s.self)
	s.roomID = r.ID
	s.hub.subscribe(r.ID, s.client)

	s.sendSnapshot(r)
	s.toOthers(protocol.TypeParticipantJoined, protocol.ParticipantPayload{Participant: s.self})
	s.toRoom(protocol.TypeRoomMemberCount, protocol.RoomMemberCountPayload{Count: r.MemberCount()})

	log.Printf("[Room %s] %s joined as %q (members: %d)", r.ID, s.client.id, s.self.DisplayName, r.MemberCount())
	s.hub.notify(MemberJoined, r)
}

func (s *Session) sendSnapshot(r *room.Room) {
	self, _ := r.Participant(s.client.id)
	snap := r.Snapshot()

	s.reply(protocol.TypeJoinSuccess, protocol.JoinSuccessPayload{RoomID: r.ID, Self: self})
	s.reply(protocol.TypeParticipantRoster, protocol.ParticipantRosterPayload{List: r.Participants(s.client.id)})
	s.reply(protocol.TypeChatHistory, protocol.ChatHistoryPayload{Messages: snap.Chat})
	s.reply(protocol.TypeDrawHistory, protocol.DrawHistoryPayload{Strokes: snap.Strokes})
	s.reply(protocol.TypeNoteList, protocol.NoteListPayload{Notes: snap.Notes})
	s.reply(protocol.TypeImageList, protocol.ImageListPayload{Images: snap.Images})
	s.reply(protocol.TypeRoomMetadata, protocol.RoomMetadataPayload{RoomID: r.ID, MemberCount: r.MemberCount()})
}

// Removes the participant from its room and closes the room once empty
func (s *Session) leave() {
	if s.roomID == "" {
		return
	}
	roomID := s.roomID
	s.hub.unsubscribe(roomID, s.client)
	s.roomID = ""
	s.self = protocol.Participant{}

	r, ok := s.hub.store.Get(roomID)
	if !ok {
		return
	}
	r.RemoveParticipant(s.client.id)

	remaining := r.MemberCount()
	if remaining == 0 {
		s.hub.store.Remove(roomID)
		log.Printf("[Room %s] Closed (empty)", roomID)
		s.hub.notify(RoomClosed, r)
		return
	}

	s.hub.broadcast(roomID, s.hub.encode(protocol.TypeParticipantLeft, protocol.ParticipantLeftPayload{ConnectionID: s.client.id}), nil)
	s.hub.broadcast(roomID, s.hub.encode(protocol.TypeRoomMemberCount, protocol.RoomMemberCountPayload{Count: remaining}), nil)
	log.Printf("[Room %s] %s left (remaining: %d)", roomID, s.client.id, remaining)
	s.hub.notify(MemberLeft, r)
}

func (s *Session) listRooms() {
	s.reply(protocol.TypeRoomList, protocol.RoomListPayload{Rooms: s.hub.store.List()})
}

func (s *Session) move(m *protocol.Move) {
	r := s.currentRoom()
	if r == nil {
		return
	}
	p, ok := r.MoveParticipant(s.client.id, m.Position)
	if !ok {
		return
	}
	s.self = p
	s.toOthers(protocol.TypeParticipantMoved, protocol.ParticipantPayload{Participant: p})
}

func (s *Session) click(m *protocol.Click) {
	r := s.currentRoom()
	if r == nil {
		return
	}
	p, ok := r.MoveParticipant(s.client.id, m.Position)
	if !ok {
		return
	}
	s.self = p
	s.toOthers(protocol.TypeParticipantClicked, protocol.ParticipantClickedPayload{
		ConnectionID: p.ConnectionID,
		Position:     p.Position,
		Color:        p.Color,
	})
}

func (s *Session) chat(m *protocol.Chat) {
	r := s.currentRoom()
	if r == nil || strings.TrimSpace(m.Text) == "" {
		return
	}
	msg := r.AppendChat(s.self.Author(), m.Text)
	s.toRoom(protocol.TypeChatMessage, protocol.ChatMessagePayload{Message: msg})
	s.hub.notify(ChatPosted, r)
}

func (s *Session) drawLine(m *protocol.DrawLine) {
	r := s.currentRoom()
	if r == nil {
		return
	}
	stroke := r.AppendStroke(s.self.Author(), m.From, m.To, m.Color, m.Width)
	s.toRoom(protocol.TypeDrawLineOut, protocol.StrokePayload{Stroke: stroke})
	s.hub.notify(StrokeDrawn, r)
}

func (s *Session) drawClear() {
	r := s.currentRoom()
	if r == nil {
		return
	}
	r.ClearStrokes()
	s.toRoom(protocol.TypeDrawCleared, nil)
}

func (s *Session) drawUndo(m *protocol.DrawUndo) {
	r := s.currentRoom()
	if r == nil || !r.RemoveStroke(m.ID) {
		return
	}
	s.toOthers(protocol.TypeDrawUndone, protocol.DrawUndonePayload{ID: m.ID})
}

// Redo is relayed only. The stroke is not put back into the log.
func (s *Session) drawRedo(m *protocol.DrawRedo) {
	if s.currentRoom() == nil {
		return
	}
	s.toOthers(protocol.TypeDrawRedone, protocol.DrawRedonePayload{ID: m.ID, Data: m.Data})
}

func (s *Session) drawShape(m *protocol.DrawShape) {
	if s.currentRoom() == nil {
		return
	}
	s.toOthers(protocol.TypeShapeDrawn, protocol.ShapeDrawnPayload{Shape: protocol.Shape{
		ID:        uuid.NewString(),
		Author:    s.self.Author(),
		Shape:     m.Shape,
		From:      m.From,
		To:        m.To,
		Color:     m.Color,
		Width:     m.Width,
		Timestamp: time.Now().UnixMilli(),
	}})
}

// Emoji land at a random spot, normalized to the middle of the canvas
func (s *Session) emoji(m *protocol.EmojiSend) {
	if s.currentRoom() == nil {
		return
	}
	pos := protocol.Position{
		X: 0.1 + s.hub.ids.Float64()*0.8,
		Y: 0.1 + s.hub.ids.Float64()*0.8,
	}
	s.toRoom(protocol.TypeEmojiReceived, protocol.EmojiReceivedPayload{Emoji: m.Emoji, Position: pos})
}

func (s *Session) ping(m *protocol.PingSend) {
	if s.currentRoom() == nil {
		return
	}
	s.toOthers(protocol.TypePingReceived, protocol.PingReceivedPayload{
		Position: m.Position,
		Color:    s.self.Color,
		Name:     s.self.DisplayName,
	})
}

func (s *Session) noteAdd(m *protocol.NoteAdd) {
	r := s.currentRoom()
	if r == nil {
		return
	}
	note := protocol.Note{
		ID:      m.ID,
		X:       m.X,
		Y:       m.Y,
		Color:   m.Color,
		Content: m.Content,
		Author:  s.self.DisplayName,
	}
	r.PutNote(note)
	s.toRoom(protocol.TypeNoteAdded, protocol.NotePayload{Note: note})
}

func (s *Session) noteMove(m *protocol.NoteMove) {
	r := s.currentRoom()
	if r == nil || !r.MoveNote(m.ID, m.X, m.Y) {
		return
	}
	s.toOthers(protocol.TypeNoteMoved, protocol.NoteMovedPayload{ID: m.ID, X: m.X, Y: m.Y})
}

func (s *Session) noteUpdate(m *protocol.NoteUpdate) {
	r := s.currentRoom()
	if r == nil || !r.UpdateNote(m.ID, m.Content) {
		return
	}
	s.toOthers(protocol.TypeNoteUpdated, protocol.NoteUpdatedPayload{ID: m.ID, Content: m.Content})
}

func (s *Session) noteDelete(m *protocol.NoteDelete) {
	r := s.currentRoom()
	if r == nil || !r.DeleteNote(m.ID) {
		return
	}
	s.toOthers(protocol.TypeNoteDeleted, protocol.IDPayload{ID: m.ID})
}

func (s *Session) imageAdd(m *protocol.ImageAdd) {
	r := s.currentRoom()
	if r == nil {
		return
	}
	img := protocol.Image{ID: m.ID, X: m.X, Y: m.Y, Payload: m.Payload}
	r.PutImage(img)
	s.toRoom(protocol.TypeImageAdded, protocol.ImagePayload{Image: img})
}

func (s *Session) imageMove(m *protocol.ImageMove) {
	r := s.currentRoom()
	if r == nil || !r.MoveImage(m.ID, m.X, m.Y) {
		return
	}
	s.toOthers(protocol.TypeImageMoved, protocol.ImageMovedPayload{ID: m.ID, X: m.X, Y: m.Y})
}

func (s *Session) imageDelete(m *protocol.ImageDelete) {
	r := s.currentRoom()
	if r == nil || !r.DeleteImage(m.ID) {
		return
	}
	s.toOthers(protocol.TypeImageDeleted, protocol.IDPayload{ID: m.ID})
}
