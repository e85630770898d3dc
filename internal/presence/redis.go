// Package presence mirrors the live room directory into Redis so other
// processes can see which rooms are open without talking to this server.
// Each server writes its own hash, rooms:live:<instance>, which expires
// unless the server keeps refreshing it.
package presence

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/manpreetbhatti/sketchroom/internal/ws"
	"github.com/redis/go-redis/v9"
)

const (
	// Prefix of the per-instance hashes of roomId to Entry
	LiveRoomsKey = "rooms:live"

	// Channel receiving an Update for every change
	UpdatesChannel = "room_updates"

	defaultQueueSize = 256
	writeTimeout     = 3 * time.Second

	entryTTL          = 90 * time.Second
	heartbeatInterval = 30 * time.Second
)

// Entry is the mirrored state of one live room
type Entry struct {
	Instance    string `json:"instance"`
	RoomID      string `json:"roomId"`
	MemberCount int    `json:"memberCount"`
	HasSecret   bool   `json:"hasSecret"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// Update is published on UpdatesChannel
type Update struct {
	Kind  ws.EventKind `json:"kind"`
	Entry Entry        `json:"entry"`
}

// Connect opens a client and verifies the server answers
func Connect(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	log.Printf("[Presence] Connected to %s", addr)
	return client, nil
}

// Key of the hash holding one server's rooms
func InstanceKey(instance string) string {
	return LiveRoomsKey + ":" + instance
}

type Mirror struct {
	client   *redis.Client
	instance string
	key      string
	queue    chan ws.RoomEvent
	dropped  atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// instance must be unique among the servers sharing the Redis database
func NewMirror(client *redis.Client, instance string, queueSize int) *Mirror {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Mirror{
		client:   client,
		instance: instance,
		key:      InstanceKey(instance),
		queue:    make(chan ws.RoomEvent, queueSize),
		stop:     make(chan struct{}),
	}
}

func (m *Mirror) Instance() string {
	return m.instance
}

// Only lifecycle and membership changes are mirrored
func relevant(kind ws.EventKind) bool {
	switch kind {
	case ws.RoomOpened, ws.MemberJoined, ws.MemberLeft, ws.RoomClosed:
		return true
	}
	return false
}

func (m *Mirror) OnRoomEvent(e ws.RoomEvent) {
	if !relevant(e.Kind) {
		return
	}
	select {
	case m.queue <- e:
	default:
		if n := m.dropped.Add(1); n%100 == 1 {
			log.Printf("[Presence] Queue full, dropped %d events so far", n)
		}
	}
}

func (m *Mirror) Dropped() int64 {
	return m.dropped.Load()
}

// Reset clears this instance's entries, e.g. those of a previous run with the same id
func (m *Mirror) Reset(ctx context.Context) error {
	return m.client.Del(ctx, m.key).Err()
}

func (m *Mirror) Start() {
	m.wg.Add(1)
	go m.run()
	log.Println("📡 Presence mirror started")
}

// Stop flushes queued events, then withdraws this instance's rooms
func (m *Mirror) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := m.Reset(ctx); err != nil {
		log.Printf("[Presence] Failed to withdraw %s: %v", m.key, err)
	}
	log.Println("📡 Presence mirror stopped")
}

func (m *Mirror) run() {
	defer m.wg.Done()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case e := <-m.queue:
			m.apply(e)
		case <-heartbeat.C:
			m.refresh()
		case <-m.stop:
			for {
				select {
				case e := <-m.queue:
					m.apply(e)
				default:
					return
				}
			}
		}
	}
}

func (m *Mirror) apply(e ws.RoomEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	entry := m.entryFor(e)
	update, err := json.Marshal(Update{Kind: e.Kind, Entry: entry})
	if err != nil {
		log.Printf("[Presence] Failed to encode update for %s: %v", e.RoomID, err)
		return
	}

	pipe := m.client.TxPipeline()
	if e.Kind == ws.RoomClosed {
		pipe.HDel(ctx, m.key, e.RoomID)
	} else {
		data, err := json.Marshal(entry)
		if err != nil {
			log.Printf("[Presence] Failed to encode entry for %s: %v", e.RoomID, err)
			return
		}
		pipe.HSet(ctx, m.key, e.RoomID, data)
		pipe.Expire(ctx, m.key, entryTTL)
	}
	pipe.Publish(ctx, UpdatesChannel, update)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[Presence] Failed to mirror %s for room %s: %v", e.Kind, e.RoomID, err)
	}
}

// Keeps this instance's hash alive. A crashed server's hash expires.
func (m *Mirror) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := m.client.Expire(ctx, m.key, entryTTL).Err(); err != nil {
		log.Printf("[Presence] Failed to refresh %s: %v", m.key, err)
	}
}

func (m *Mirror) entryFor(e ws.RoomEvent) Entry {
	return Entry{
		Instance:    m.instance,
		RoomID:      e.RoomID,
		MemberCount: e.Members,
		HasSecret:   e.HasSecret,
		UpdatedAt:   e.At.UnixMilli(),
	}
}

// LiveRooms reads back the rooms of every instance sharing the database
func (m *Mirror) LiveRooms(ctx context.Context) ([]Entry, error) {
	entries := []Entry{}

	iter := m.client.Scan(ctx, 0, LiveRoomsKey+":*", 100).Iterator()
	for iter.Next(ctx) {
		values, err := m.client.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, err
		}
		for _, raw := range values {
			var entry Entry
			if err := json.Unmarshal([]byte(raw), &entry); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RoomID != entries[j].RoomID {
			return entries[i].RoomID < entries[j].RoomID
		}
		return entries[i].Instance < entries[j].Instance
	})
	return entries, nil
}
