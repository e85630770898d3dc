package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "sketchroom-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := New(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return db, cleanup
}

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestDatabaseCreation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if db == nil {
		t.Fatal("Database should not be nil")
	}
}

func TestCreatesNestedDirectory(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "sketchroom-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	db, err := New(filepath.Join(tmpDir, "nested", "deeper", "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	db.Close()
}

func TestSessionLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id, err := db.OpenSession("room-1", true, epoch)
	if err != nil {
		t.Fatalf("Failed to open session: %v", err)
	}

	if err := db.RecordJoin("room-1", 1); err != nil {
		t.Fatalf("Failed to record join: %v", err)
	}
	if err := db.RecordJoin("room-1", 3); err != nil {
		t.Fatalf("Failed to record join: %v", err)
	}
	if err := db.RecordJoin("room-1", 2); err != nil {
		t.Fatalf("Failed to record join: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := db.RecordChat("room-1"); err != nil {
			t.Fatalf("Failed to record chat: %v", err)
		}
	}
	if err := db.RecordStroke("room-1"); err != nil {
		t.Fatalf("Failed to record stroke: %v", err)
	}

	closedAt := epoch.Add(time.Hour)
	if err := db.CloseSession("room-1", closedAt); err != nil {
		t.Fatalf("Failed to close session: %v", err)
	}

	// Counters after close do not touch the closed session
	if err := db.RecordChat("room-1"); err != nil {
		t.Fatalf("Failed to record chat: %v", err)
	}

	s, err := db.GetSession(id)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if s == nil {
		t.Fatal("Session should exist")
	}
	if s.RoomID != "room-1" || !s.Secured {
		t.Errorf("Unexpected session %+v", s)
	}
	if s.Joins != 3 {
		t.Errorf("Expected 3 joins, got %d", s.Joins)
	}
	if s.PeakMembers != 3 {
		t.Errorf("Expected peak 3, got %d", s.PeakMembers)
	}
	if s.ChatMessages != 4 {
		t.Errorf("Expected 4 chat messages, got %d", s.ChatMessages)
	}
	if s.Strokes != 1 {
		t.Errorf("Expected 1 stroke, got %d", s.Strokes)
	}
	if !s.OpenedAt.Equal(epoch) {
		t.Errorf("Expected opened_at %v, got %v", epoch, s.OpenedAt)
	}
	if s.ClosedAt == nil || !s.ClosedAt.Equal(closedAt) {
		t.Errorf("Expected closed_at %v, got %v", closedAt, s.ClosedAt)
	}
}

func TestGetMissingSession(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	s, err := db.GetSession(42)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s != nil {
		t.Error("Missing session should return nil")
	}
}

func TestListSessions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		at := epoch.Add(time.Duration(i) * time.Hour)
		if _, err := db.OpenSession("room-1", false, at); err != nil {
			t.Fatalf("Failed to open session: %v", err)
		}
		db.CloseSession("room-1", at.Add(time.Minute))
	}
	db.OpenSession("room-2", false, epoch)

	sessions, err := db.ListSessions("room-1", 10, 0)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(sessions))
	}
	if !sessions[0].OpenedAt.Equal(epoch.Add(2 * time.Hour)) {
		t.Errorf("Expected newest session first, got %v", sessions[0].OpenedAt)
	}

	page, err := db.ListSessions("room-1", 1, 1)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(page) != 1 || !page[0].OpenedAt.Equal(epoch.Add(time.Hour)) {
		t.Errorf("Unexpected page %+v", page)
	}

	count, err := db.CountSessions("room-1")
	if err != nil {
		t.Fatalf("Failed to count sessions: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 sessions, got %d", count)
	}

	empty, err := db.ListSessions("nowhere", 10, 0)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", empty)
	}
}

func TestCloseDanglingSessions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	db.OpenSession("a", false, epoch)
	db.OpenSession("b", false, epoch)
	db.OpenSession("c", false, epoch)
	db.CloseSession("c", epoch.Add(time.Minute))

	n, err := db.CloseDanglingSessions(epoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("Failed to close dangling sessions: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 sessions closed, got %d", n)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats["open_sessions"].(int) != 0 {
		t.Errorf("Expected 0 open sessions, got %v", stats["open_sessions"])
	}
}

func TestPruneClosedSessions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	// Five old closed sessions for room-1, one open session for room-2
	for i := 0; i < 5; i++ {
		at := epoch.Add(time.Duration(i) * time.Minute)
		db.OpenSession("room-1", false, at)
		db.CloseSession("room-1", at.Add(30*time.Second))
	}
	db.OpenSession("room-2", false, epoch)

	deleted, err := db.PruneClosedSessions(epoch.Add(time.Hour), 2)
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Expected 3 deleted, got %d", deleted)
	}

	kept, _ := db.ListSessions("room-1", 10, 0)
	if len(kept) != 2 {
		t.Fatalf("Expected 2 kept, got %d", len(kept))
	}
	if !kept[0].OpenedAt.Equal(epoch.Add(4 * time.Minute)) {
		t.Errorf("Expected newest session kept, got %v", kept[0].OpenedAt)
	}

	if count, _ := db.CountSessions("room-2"); count != 1 {
		t.Errorf("Open sessions must never be pruned, got %d", count)
	}

	// Nothing is older than the cutoff
	deleted, err = db.PruneClosedSessions(epoch, 0)
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected nothing deleted, got %d", deleted)
	}
}

func TestGetStats(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	db.OpenSession("room-1", false, epoch)
	db.RecordJoin("room-1", 1)
	db.RecordJoin("room-1", 2)
	db.RecordChat("room-1")
	db.RecordStroke("room-1")
	db.RecordStroke("room-1")

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if stats["total_sessions"].(int) != 1 {
		t.Errorf("Expected 1 session, got %v", stats["total_sessions"])
	}
	if stats["open_sessions"].(int) != 1 {
		t.Errorf("Expected 1 open session, got %v", stats["open_sessions"])
	}
	if stats["total_joins"].(int64) != 2 {
		t.Errorf("Expected 2 joins, got %v", stats["total_joins"])
	}
	if stats["total_chat_messages"].(int64) != 1 {
		t.Errorf("Expected 1 chat message, got %v", stats["total_chat_messages"])
	}
	if stats["total_strokes"].(int64) != 2 {
		t.Errorf("Expected 2 strokes, got %v", stats["total_strokes"])
	}
}
