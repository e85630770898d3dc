package room

import (
	"sort"
	"sync"

	"github.com/manpreetbhatti/sketchroom/internal/protocol"
)

// Store holds every live room in the process
type Store struct {
	rooms map[string]*Room
	cfg   Config
	mu    sync.RWMutex
}

func NewStore(cfg Config) *Store {
	return &Store{
		rooms: make(map[string]*Room),
		cfg:   cfg,
	}
}

// Returns the room, creating it with empty collections if absent
func (s *Store) GetOrCreate(roomID string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomID]; ok {
		return r, false
	}
	r := NewRoom(roomID, s.cfg)
	s.rooms[roomID] = r
	return r, true
}

func (s *Store) Get(roomID string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	return r, ok
}

func (s *Store) Remove(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

// Lists non-empty rooms sorted by ID
func (s *Store) List() []protocol.RoomInfo {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	list := make([]protocol.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		info := r.Info()
		if info.MemberCount == 0 {
			continue
		}
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RoomID < list[j].RoomID })
	return list
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
