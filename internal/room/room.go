package room

import (
	"crypto/subtle"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/manpreetbhatti/sketchroom/internal/protocol"
)

// Retention bounds for a room's event logs
type Config struct {
	ChatRetention   int
	MaxChatLength   int
	StrokeRetention int
	StrokeTTL       time.Duration
}

// Returns the default retention settings
func DefaultConfig() Config {
	return Config{
		ChatRetention:   100,
		MaxChatLength:   500,
		StrokeRetention: 500,
		StrokeTTL:       5 * time.Minute,
	}
}

// A shared canvas and everything drawn on it
type Room struct {
	ID string

	cfg          Config
	now          func() time.Time
	secret       string
	participants map[string]*protocol.Participant
	chat         []protocol.ChatMessage
	strokes      []protocol.Stroke
	notes        map[string]*protocol.Note
	images       map[string]*protocol.Image
	mu           sync.RWMutex
}

// Snapshot is a copy of the replayable state handed to a joiner
type Snapshot struct {
	Chat    []protocol.ChatMessage
	Strokes []protocol.Stroke
	Notes   []protocol.Note
	Images  []protocol.Image
}

// Creates a new room with the given ID
func NewRoom(id string, cfg Config) *Room {
	return &Room{
		ID:           id,
		cfg:          cfg,
		now:          time.Now,
		participants: make(map[string]*protocol.Participant),
		chat:         make([]protocol.ChatMessage, 0),
		strokes:      make([]protocol.Stroke, 0),
		notes:        make(map[string]*protocol.Note),
		images:       make(map[string]*protocol.Image),
	}
}

// Replaces the clock used for timestamps and stroke expiry
func (r *Room) WithClock(now func() time.Time) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	return r
}

func (r *Room) AddParticipant(p protocol.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[p.ConnectionID] = &p
}

// Reports whether the participant was present
func (r *Room) RemoveParticipant(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[connectionID]; !ok {
		return false
	}
	delete(r.participants, connectionID)
	return true
}

// Updates a participant's position in place
func (r *Room) MoveParticipant(connectionID string, pos protocol.Position) (protocol.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[connectionID]
	if !ok {
		return protocol.Participant{}, false
	}
	p.Position = pos
	return *p, true
}

func (r *Room) Participant(connectionID string) (protocol.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[connectionID]
	if !ok {
		return protocol.Participant{}, false
	}
	return *p, true
}

// Returns every participant except the excluded one, ordered by connection ID
func (r *Room) Participants(exclude string) []protocol.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]protocol.Participant, 0, len(r.participants))
	for id, p := range r.participants {
		if id == exclude {
			continue
		}
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ConnectionID < list[j].ConnectionID })
	return list
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

func (r *Room) HasSecret() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.secret != ""
}

// Sets the secret only if none is set yet. First writer wins.
func (r *Room) SetSecretIfEmpty(secret string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.secret != "" || secret == "" {
		return false
	}
	r.secret = secret
	return true
}

// Reports whether password opens the room. Rooms without a secret accept anything.
func (r *Room) CheckSecret(password string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(r.secret), []byte(password)) == 1
}

// Appends a chat message, truncating text and evicting the oldest entries
func (r *Room) AppendChat(author protocol.Author, text string) protocol.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := protocol.ChatMessage{
		ID:        uuid.NewString(),
		Author:    author,
		Text:      truncateRunes(text, r.cfg.MaxChatLength),
		Timestamp: r.now().UnixMilli(),
	}
	r.chat = append(r.chat, msg)
	if r.cfg.ChatRetention > 0 && len(r.chat) > r.cfg.ChatRetention {
		r.chat = append([]protocol.ChatMessage(nil), r.chat[len(r.chat)-r.cfg.ChatRetention:]...)
	}
	return msg
}

// Appends a stroke after sweeping expired ones
func (r *Room) AppendStroke(author protocol.Author, from, to protocol.Position, color string, width float64) protocol.Stroke {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweepStrokes(now)

	stroke := protocol.Stroke{
		ID:        uuid.NewString(),
		Author:    author,
		From:      from,
		To:        to,
		Color:     color,
		Width:     width,
		Timestamp: now.UnixMilli(),
	}
	r.strokes = append(r.strokes, stroke)
	if r.cfg.StrokeRetention > 0 && len(r.strokes) > r.cfg.StrokeRetention {
		r.strokes = append([]protocol.Stroke(nil), r.strokes[len(r.strokes)-r.cfg.StrokeRetention:]...)
	}
	return stroke
}

// Caller holds the write lock
func (r *Room) sweepStrokes(now time.Time) {
	if r.cfg.StrokeTTL <= 0 {
		return
	}
	cutoff := now.Add(-r.cfg.StrokeTTL).UnixMilli()
	kept := r.strokes[:0]
	for _, s := range r.strokes {
		if s.Timestamp >= cutoff {
			kept = append(kept, s)
		}
	}
	r.strokes = kept
}

func (r *Room) RemoveStroke(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.strokes {
		if s.ID == id {
			r.strokes = append(r.strokes[:i], r.strokes[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) ClearStrokes() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strokes = make([]protocol.Stroke, 0)
}

// Inserts or replaces a note
func (r *Room) PutNote(n protocol.Note) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes[n.ID] = &n
}

func (r *Room) MoveNote(id string, x, y float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return false
	}
	n.X, n.Y = x, y
	return true
}

func (r *Room) UpdateNote(id, content string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return false
	}
	n.Content = content
	return true
}

func (r *Room) DeleteNote(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[id]; !ok {
		return false
	}
	delete(r.notes, id)
	return true
}

func (r *Room) PutImage(img protocol.Image) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[img.ID] = &img
}

func (r *Room) MoveImage(id string, x, y float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return false
	}
	img.X, img.Y = x, y
	return true
}

func (r *Room) DeleteImage(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.images[id]; !ok {
		return false
	}
	delete(r.images, id)
	return true
}

// Returns copies of all replayable collections
func (r *Room) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Chat:    make([]protocol.ChatMessage, len(r.chat)),
		Strokes: make([]protocol.Stroke, len(r.strokes)),
		Notes:   make([]protocol.Note, 0, len(r.notes)),
		Images:  make([]protocol.Image, 0, len(r.images)),
	}
	copy(snap.Chat, r.chat)
	copy(snap.Strokes, r.strokes)
	for _, n := range r.notes {
		snap.Notes = append(snap.Notes, *n)
	}
	for _, img := range r.images {
		snap.Images = append(snap.Images, *img)
	}
	sort.Slice(snap.Notes, func(i, j int) bool { return snap.Notes[i].ID < snap.Notes[j].ID })
	sort.Slice(snap.Images, func(i, j int) bool { return snap.Images[i].ID < snap.Images[j].ID })
	return snap
}

// Returns the public summary of the room
func (r *Room) Info() protocol.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return protocol.RoomInfo{
		RoomID:      r.ID,
		MemberCount: len(r.participants),
		HasSecret:   r.secret != "",
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
