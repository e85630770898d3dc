package compaction

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/manpreetbhatti/sketchroom/internal/db"
)

type fakePruner struct {
	mu     sync.Mutex
	calls  int
	before time.Time
	keep   int
	err    error
}

func (f *fakePruner) PruneClosedSessions(before time.Time, keep int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.before = before
	f.keep = keep
	if f.err != nil {
		return 0, f.err
	}
	return 5, nil
}

func (f *fakePruner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestCompactNowUsesCutoff(t *testing.T) {
	pruner := &fakePruner{}
	s := New(pruner, Config{Interval: time.Hour, MaxAge: 24 * time.Hour, KeepPerRoom: 3})
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if n := s.CompactNow(); n != 5 {
		t.Errorf("Expected 5 pruned, got %d", n)
	}
	if !pruner.before.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("Expected cutoff %v, got %v", now.Add(-24*time.Hour), pruner.before)
	}
	if pruner.keep != 3 {
		t.Errorf("Expected keep 3, got %d", pruner.keep)
	}
}

func TestCompactNowError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("disk on fire")}
	s := New(pruner, DefaultConfig())

	if n := s.CompactNow(); n != 0 {
		t.Errorf("Expected 0 on error, got %d", n)
	}
}

func TestServiceRunsOnStart(t *testing.T) {
	pruner := &fakePruner{}
	s := New(pruner, Config{Interval: time.Hour, MaxAge: time.Hour, KeepPerRoom: 1})

	s.Start()
	deadline := time.Now().Add(time.Second)
	for pruner.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if pruner.callCount() != 1 {
		t.Errorf("Expected one immediate pass, got %d", pruner.callCount())
	}
}

func TestZeroIntervalUsesDefault(t *testing.T) {
	pruner := &fakePruner{}
	s := New(pruner, Config{Interval: 0, MaxAge: -time.Hour, KeepPerRoom: -1})

	if s.config.Interval != DefaultConfig().Interval || s.config.MaxAge != DefaultConfig().MaxAge {
		t.Errorf("Expected default timing, got %+v", s.config)
	}
	if s.config.KeepPerRoom != 0 {
		t.Errorf("Expected keep 0, got %d", s.config.KeepPerRoom)
	}

	// The ticker would panic on a non-positive interval
	s.Start()
	deadline := time.Now().Add(time.Second)
	for pruner.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if pruner.callCount() != 1 {
		t.Errorf("Expected one pass, got %d", pruner.callCount())
	}
}

func TestCompactAgainstLedger(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "sketchroom-compaction-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	database, err := db.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer database.Close()

	old := time.Now().Add(-30 * 24 * time.Hour)
	for i := 0; i < 4; i++ {
		at := old.Add(time.Duration(i) * time.Minute)
		database.OpenSession("room-1", false, at)
		database.CloseSession("room-1", at.Add(time.Second))
	}

	s := New(database, Config{Interval: time.Hour, MaxAge: 7 * 24 * time.Hour, KeepPerRoom: 1})
	if n := s.CompactNow(); n != 3 {
		t.Errorf("Expected 3 pruned, got %d", n)
	}

	count, _ := database.CountSessions("room-1")
	if count != 1 {
		t.Errorf("Expected 1 session left, got %d", count)
	}
}
