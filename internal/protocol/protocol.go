// Package protocol defines the JSON messages exchanged over a room connection.
//
// Every frame is an envelope {"type": ..., "payload": ...}. Inbound frames are
// decoded into a closed set of typed messages and validated here, before the
// hub ever sees them.
package protocol

import "encoding/json"

// Represents the kind of a message
type MessageType string

// Inbound message kinds (connection to server)
const (
	TypeJoin        MessageType = "join"
	TypeMove        MessageType = "move"
	TypeClick       MessageType = "click"
	TypeChat        MessageType = "chat"
	TypeDrawLine    MessageType = "drawLine"
	TypeDrawClear   MessageType = "drawClear"
	TypeDrawUndo    MessageType = "drawUndo"
	TypeDrawRedo    MessageType = "drawRedo"
	TypeDrawShape   MessageType = "drawShape"
	TypeEmojiSend   MessageType = "emojiSend"
	TypePingSend    MessageType = "pingSend"
	TypeNoteAdd     MessageType = "noteAdd"
	TypeNoteMove    MessageType = "noteMove"
	TypeNoteUpdate  MessageType = "noteUpdate"
	TypeNoteDelete  MessageType = "noteDelete"
	TypeImageAdd    MessageType = "imageAdd"
	TypeImageMove   MessageType = "imageMove"
	TypeImageDelete MessageType = "imageDelete"
	TypeListRooms   MessageType = "listRooms"
)

// Outbound message kinds (server to connections)
const (
	TypeJoinSuccess        MessageType = "joinSuccess"
	TypeJoinError          MessageType = "joinError"
	TypeParticipantJoined  MessageType = "participantJoined"
	TypeParticipantMoved   MessageType = "participantMoved"
	TypeParticipantLeft    MessageType = "participantLeft"
	TypeParticipantRoster  MessageType = "participantRoster"
	TypeParticipantClicked MessageType = "participantClicked"
	TypeRoomMemberCount    MessageType = "roomMemberCount"
	TypeRoomMetadata       MessageType = "roomMetadata"
	TypeRoomList           MessageType = "roomList"
	TypeChatMessage        MessageType = "chatMessage"
	TypeChatHistory        MessageType = "chatHistory"
	TypeDrawLineOut        MessageType = "drawLine"
	TypeDrawHistory        MessageType = "drawHistory"
	TypeDrawCleared        MessageType = "drawCleared"
	TypeDrawUndone         MessageType = "drawUndone"
	TypeDrawRedone         MessageType = "drawRedone"
	TypeShapeDrawn         MessageType = "shapeDrawn"
	TypeEmojiReceived      MessageType = "emojiReceived"
	TypePingReceived       MessageType = "pingReceived"
	TypeNoteAdded          MessageType = "noteAdded"
	TypeNoteMoved          MessageType = "noteMoved"
	TypeNoteUpdated        MessageType = "noteUpdated"
	TypeNoteDeleted        MessageType = "noteDeleted"
	TypeNoteList           MessageType = "noteList"
	TypeImageAdded         MessageType = "imageAdded"
	TypeImageMoved         MessageType = "imageMoved"
	TypeImageDeleted       MessageType = "imageDeleted"
	TypeImageList          MessageType = "imageList"
)

// Envelope is the wire frame for every message
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outboundEnvelope struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

// Encode wraps an outbound payload in an envelope
func Encode(t MessageType, payload any) ([]byte, error) {
	if payload == nil {
		payload = struct{}{}
	}
	return json.Marshal(outboundEnvelope{Type: t, Payload: payload})
}

// Extracts the message type without decoding the payload
func ParseMessageType(data []byte) MessageType {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ""
	}
	return env.Type
}
