// Package activity writes hub room events into the session ledger off the hub goroutine.
package activity

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/manpreetbhatti/sketchroom/internal/ws"
)

// Ledger is the subset of the database the recorder writes to
type Ledger interface {
	OpenSession(roomID string, secured bool, at time.Time) (int64, error)
	RecordJoin(roomID string, members int) error
	RecordChat(roomID string) error
	RecordStroke(roomID string) error
	CloseSession(roomID string, at time.Time) error
}

const defaultQueueSize = 1024

type Recorder struct {
	ledger  Ledger
	queue   chan ws.RoomEvent
	dropped atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(ledger Ledger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Recorder{
		ledger: ledger,
		queue:  make(chan ws.RoomEvent, queueSize),
		stop:   make(chan struct{}),
	}
}

// OnRoomEvent queues the event. It never blocks the hub; events are dropped
// when the queue is full.
func (r *Recorder) OnRoomEvent(e ws.RoomEvent) {
	select {
	case r.queue <- e:
	default:
		if n := r.dropped.Add(1); n%100 == 1 {
			log.Printf("[Ledger] Queue full, dropped %d events so far", n)
		}
	}
}

func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.run()
	log.Printf("📒 Activity recorder started (queue: %d)", cap(r.queue))
}

// Stop flushes queued events and waits for the worker to exit
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	r.wg.Wait()
	log.Println("📒 Activity recorder stopped")
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case e := <-r.queue:
			r.apply(e)
		case <-r.stop:
			r.flush()
			return
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case e := <-r.queue:
			r.apply(e)
		default:
			return
		}
	}
}

func (r *Recorder) apply(e ws.RoomEvent) {
	var err error
	switch e.Kind {
	case ws.RoomOpened:
		_, err = r.ledger.OpenSession(e.RoomID, e.HasSecret, e.At)
	case ws.MemberJoined:
		err = r.ledger.RecordJoin(e.RoomID, e.Members)
	case ws.ChatPosted:
		err = r.ledger.RecordChat(e.RoomID)
	case ws.StrokeDrawn:
		err = r.ledger.RecordStroke(e.RoomID)
	case ws.RoomClosed:
		err = r.ledger.CloseSession(e.RoomID, e.At)
	case ws.MemberLeft:
		// Departures only matter for the final close
	}
	if err != nil {
		log.Printf("[Ledger] Failed to record %s for room %s: %v", e.Kind, e.RoomID, err)
	}
}
