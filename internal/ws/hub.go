package ws

import (
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/manpreetbhatti/sketchroom/internal/identity"
	"github.com/manpreetbhatti/sketchroom/internal/protocol"
	"github.com/manpreetbhatti/sketchroom/internal/ratelimit"
	"github.com/manpreetbhatti/sketchroom/internal/room"
)

// Connection transport settings
type Config struct {
	MaxMessageSize    int64
	SendBuffer        int
	MessagesPerSecond float64
	MessageBurst      int
	AllowedOrigins    []string
}

func DefaultConfig() Config {
	return Config{
		MaxMessageSize:    1024 * 1024,
		SendBuffer:        512,
		MessagesPerSecond: 60,
		MessageBurst:      120,
		AllowedOrigins:    []string{"*"},
	}
}

// Non-positive sizes and rates take their default
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.MessagesPerSecond <= 0 {
		c.MessagesPerSecond = d.MessagesPerSecond
	}
	if c.MessageBurst <= 0 {
		c.MessageBurst = d.MessageBurst
	}
	return c
}

// The hub owns every connection and serializes all room mutations on one goroutine
type Hub struct {
	store *room.Store
	ids   *identity.Generator
	cfg   Config

	// Sessions by client, one per open connection
	clients map[*Client]*Session

	// Clients subscribed to each room
	groups map[string]map[*Client]struct{}

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Decoded messages from clients
	inbound chan *Message

	observers []Observer
	limiters  *ratelimit.ClientLimiters

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex
}

type Message struct {
	Sender  *Client
	Payload protocol.Inbound
}

func NewHub(store *room.Store, ids *identity.Generator, cfg Config) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		store:      store,
		ids:        ids,
		cfg:        cfg,
		clients:    make(map[*Client]*Session),
		groups:     make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *Message, 256),
		limiters:   ratelimit.NewClientLimiters(cfg.MessagesPerSecond, cfg.MessageBurst),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Registers an observer. Call before Run.
func (h *Hub) AddObserver(o Observer) {
	h.observers = append(h.observers, o)
}

func (h *Hub) Store() *room.Store {
	return h.store
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.inbound:
			h.dispatch(message.Sender, message.Payload)

		case <-h.stop:
			h.shutdown()
			return
		}
	}
}

// Stops the loop and closes every connection's send buffer
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.done
	h.limiters.Stop()
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.closed {
			client.closed = true
			close(client.send)
		}
	}
	log.Printf("[Hub] Stopped with %d open connections", len(h.clients))
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = newSession(h, client)
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("[Hub] Client %s connected (total: %d)", client.id, total)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.RLock()
	session, ok := h.clients[client]
	h.mu.RUnlock()
	if !ok {
		return
	}

	h.safely(client, "disconnect", session.leave)

	h.mu.Lock()
	delete(h.clients, client)
	if !client.closed {
		client.closed = true
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	h.limiters.Remove(client.id)
	log.Printf("[Hub] Client %s disconnected (total: %d)", client.id, total)
}

func (h *Hub) dispatch(client *Client, msg protocol.Inbound) {
	h.mu.RLock()
	session, ok := h.clients[client]
	h.mu.RUnlock()
	if !ok {
		return
	}

	h.safely(client, string(msg.Type()), func() {
		session.handle(msg)
	})
}

// One bad event must not take the hub down with it
func (h *Hub) safely(client *Client, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Hub] Recovered from panic handling %s for client %s: %v\n%s",
				what, client.id, r, debug.Stack())
		}
	}()
	fn()
}

func (h *Hub) subscribe(roomID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.groups[roomID]; !ok {
		h.groups[roomID] = make(map[*Client]struct{})
	}
	h.groups[roomID][client] = struct{}{}
}

func (h *Hub) unsubscribe(roomID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.groups[roomID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.groups, roomID)
		}
	}
}

// Sends an encoded message to every client in the room except one
func (h *Hub) broadcast(roomID string, data []byte, except *Client) {
	if data == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.groups[roomID] {
		if client == except {
			continue
		}
		h.deliver(client, data)
	}
}

// Sends an encoded message to one client
func (h *Hub) sendTo(client *Client, data []byte) {
	if data == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliver(client, data)
}

// Caller holds the write lock. A full buffer closes the client, which ends its
// write pump and brings it back through unregister.
func (h *Hub) deliver(client *Client, data []byte) {
	if client.closed {
		return
	}
	select {
	case client.send <- data:
	default:
		client.closed = true
		close(client.send)
		log.Printf("[Hub] Send buffer full, dropping client %s", client.id)
	}
}

func (h *Hub) encode(t protocol.MessageType, payload any) []byte {
	data, err := protocol.Encode(t, payload)
	if err != nil {
		log.Printf("[Hub] Failed to encode %s: %v", t, err)
		return nil
	}
	return data
}

func (h *Hub) notify(kind EventKind, r *room.Room) {
	info := r.Info()
	event := RoomEvent{
		Kind:      kind,
		RoomID:    info.RoomID,
		Members:   info.MemberCount,
		HasSecret: info.HasSecret,
		At:        time.Now(),
	}
	for _, o := range h.observers {
		o.OnRoomEvent(event)
	}
}

// Returns the number of live rooms
func (h *Hub) GetRoomCount() int {
	return h.store.Len()
}

// Returns the number of open connections
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Returns the live non-empty rooms
func (h *Hub) GetActiveRooms() []protocol.RoomInfo {
	return h.store.List()
}
