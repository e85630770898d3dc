package compaction

import (
	"log"
	"sync"
	"time"
)

type Config struct {
	Interval    time.Duration
	MaxAge      time.Duration
	KeepPerRoom int
}

func DefaultConfig() Config {
	return Config{
		Interval:    10 * time.Minute,
		MaxAge:      7 * 24 * time.Hour,
		KeepPerRoom: 20,
	}
}

// Pruner is the ledger operation the service drives
type Pruner interface {
	PruneClosedSessions(before time.Time, keepPerRoom int) (int64, error)
}

type Service struct {
	ledger Pruner
	config Config
	now    func() time.Time
	stop   chan struct{}
	wg     sync.WaitGroup
}

func New(ledger Pruner, config Config) *Service {
	d := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = d.Interval
	}
	if config.MaxAge <= 0 {
		config.MaxAge = d.MaxAge
	}
	if config.KeepPerRoom < 0 {
		config.KeepPerRoom = 0
	}
	return &Service{
		ledger: ledger,
		config: config,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("🗜️ Compaction service started (interval: %v, max age: %v, keep: %d per room)",
		s.config.Interval, s.config.MaxAge, s.config.KeepPerRoom)
}

func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Println("🗜️ Compaction service stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.CompactNow()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.CompactNow()
		}
	}
}

// CompactNow prunes closed sessions older than MaxAge and returns how many went
func (s *Service) CompactNow() int64 {
	cutoff := s.now().Add(-s.config.MaxAge)

	deleted, err := s.ledger.PruneClosedSessions(cutoff, s.config.KeepPerRoom)
	if err != nil {
		log.Printf("Compaction: failed to prune sessions: %v", err)
		return 0
	}

	if deleted > 0 {
		log.Printf("🗜️ Pruned %d closed sessions older than %v", deleted, cutoff.Format(time.RFC3339))
	}
	return deleted
}
