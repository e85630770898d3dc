package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

// Session is one lifetime of a room, from first join until it empties
type Session struct {
	ID           int64      `json:"id"`
	RoomID       string     `json:"room_id"`
	OpenedAt     time.Time  `json:"opened_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	PeakMembers  int        `json:"peak_members"`
	Joins        int        `json:"joins"`
	ChatMessages int        `json:"chat_messages"`
	Strokes      int        `json:"strokes"`
	Secured      bool       `json:"secured"`
}

func New(dbPath string) (*Database, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	log.Printf("[Ledger] Database initialized at %s", dbPath)
	return &Database{db: db}, nil
}

// Timestamps are stored as Unix milliseconds so range comparisons stay numeric
func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS room_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		opened_at INTEGER NOT NULL,
		closed_at INTEGER,
		peak_members INTEGER NOT NULL DEFAULT 0,
		joins INTEGER NOT NULL DEFAULT 0,
		chat_messages INTEGER NOT NULL DEFAULT 0,
		strokes INTEGER NOT NULL DEFAULT 0,
		secured BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_room_sessions_room_id ON room_sessions(room_id, opened_at DESC);
	CREATE INDEX IF NOT EXISTS idx_room_sessions_open ON room_sessions(room_id) WHERE closed_at IS NULL;
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Session lifecycle

// OpenSession starts a new session for the room and returns its ID
func (d *Database) OpenSession(roomID string, secured bool, at time.Time) (int64, error) {
	result, err := d.db.Exec(
		"INSERT INTO room_sessions (room_id, opened_at, secured) VALUES (?, ?, ?)",
		roomID, at.UnixMilli(), secured,
	)
	if err != nil {
		return 0, fmt.Errorf("open session for %s: %w", roomID, err)
	}
	return result.LastInsertId()
}

// RecordJoin counts a join against the room's open session and tracks its peak
func (d *Database) RecordJoin(roomID string, members int) error {
	_, err := d.db.Exec(`
		UPDATE room_sessions
		SET joins = joins + 1, peak_members = MAX(peak_members, ?)
		WHERE room_id = ? AND closed_at IS NULL
	`, members, roomID)
	if err != nil {
		return fmt.Errorf("record join for %s: %w", roomID, err)
	}
	return nil
}

func (d *Database) RecordChat(roomID string) error {
	return d.increment(roomID, "chat_messages")
}

func (d *Database) RecordStroke(roomID string) error {
	return d.increment(roomID, "strokes")
}

// column is always one of the fixed counter names above
func (d *Database) increment(roomID, column string) error {
	_, err := d.db.Exec(
		"UPDATE room_sessions SET "+column+" = "+column+" + 1 WHERE room_id = ? AND closed_at IS NULL",
		roomID,
	)
	if err != nil {
		return fmt.Errorf("increment %s for %s: %w", column, roomID, err)
	}
	return nil
}

func (d *Database) CloseSession(roomID string, at time.Time) error {
	_, err := d.db.Exec(
		"UPDATE room_sessions SET closed_at = ? WHERE room_id = ? AND closed_at IS NULL",
		at.UnixMilli(), roomID,
	)
	if err != nil {
		return fmt.Errorf("close session for %s: %w", roomID, err)
	}
	return nil
}

// CloseDanglingSessions closes sessions left open by a previous process
func (d *Database) CloseDanglingSessions(at time.Time) (int64, error) {
	result, err := d.db.Exec(
		"UPDATE room_sessions SET closed_at = ? WHERE closed_at IS NULL",
		at.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("close dangling sessions: %w", err)
	}
	return result.RowsAffected()
}

// Queries

const sessionColumns = "id, room_id, opened_at, closed_at, peak_members, joins, chat_messages, strokes, secured"

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	var openedAt int64
	var closedAt sql.NullInt64
	if err := row.Scan(&s.ID, &s.RoomID, &openedAt, &closedAt, &s.PeakMembers, &s.Joins, &s.ChatMessages, &s.Strokes, &s.Secured); err != nil {
		return nil, err
	}
	s.OpenedAt = time.UnixMilli(openedAt).UTC()
	if closedAt.Valid {
		t := time.UnixMilli(closedAt.Int64).UTC()
		s.ClosedAt = &t
	}
	return &s, nil
}

func (d *Database) GetSession(id int64) (*Session, error) {
	row := d.db.QueryRow("SELECT "+sessionColumns+" FROM room_sessions WHERE id = ?", id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSessions returns a room's sessions, newest first
func (d *Database) ListSessions(roomID string, limit, offset int) ([]Session, error) {
	rows, err := d.db.Query(`
		SELECT `+sessionColumns+`
		FROM room_sessions
		WHERE room_id = ?
		ORDER BY opened_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (d *Database) CountSessions(roomID string) (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM room_sessions WHERE room_id = ?", roomID).Scan(&count)
	return count, err
}

// PruneClosedSessions deletes sessions closed before the cutoff, always keeping
// the newest keepPerRoom sessions of each room
func (d *Database) PruneClosedSessions(before time.Time, keepPerRoom int) (int64, error) {
	result, err := d.db.Exec(`
		DELETE FROM room_sessions
		WHERE closed_at IS NOT NULL AND closed_at < ? AND id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY room_id ORDER BY opened_at DESC, id DESC) AS rn
				FROM room_sessions
			)
			WHERE rn <= ?
		)
	`, before.UnixMilli(), keepPerRoom)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return result.RowsAffected()
}

// Stats

func (d *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total, open int
	var joins, chats, strokes int64
	err := d.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN closed_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(joins), 0),
			COALESCE(SUM(chat_messages), 0),
			COALESCE(SUM(strokes), 0)
		FROM room_sessions
	`).Scan(&total, &open, &joins, &chats, &strokes)
	if err != nil {
		return nil, err
	}

	stats["total_sessions"] = total
	stats["open_sessions"] = open
	stats["total_joins"] = joins
	stats["total_chat_messages"] = chats
	stats["total_strokes"] = strokes

	return stats, nil
}
