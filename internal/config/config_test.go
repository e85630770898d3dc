package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.Addr() != ":8080" {
		t.Errorf("Expected addr ':8080', got '%s'", cfg.Addr())
	}
	if !cfg.Ledger.Enabled {
		t.Error("Ledger should be enabled by default")
	}
	if cfg.Ledger.Path != "./data/sketchroom.db" {
		t.Errorf("Unexpected ledger path %s", cfg.Ledger.Path)
	}
	if cfg.Retention.ChatRetention != 100 || cfg.Retention.MaxChatLength != 500 {
		t.Errorf("Unexpected chat retention %+v", cfg.Retention)
	}
	if cfg.Retention.StrokeRetention != 500 || cfg.Retention.StrokeTTL != 5*time.Minute {
		t.Errorf("Unexpected stroke retention %+v", cfg.Retention)
	}
	if cfg.WebSocket.MaxMessageSize != 1024*1024 || cfg.WebSocket.SendBuffer != 512 {
		t.Errorf("Unexpected websocket config %+v", cfg.WebSocket)
	}
	if cfg.WebSocket.MessagesPerSecond != 60 || cfg.WebSocket.MessageBurst != 120 {
		t.Errorf("Unexpected rate limit %+v", cfg.WebSocket)
	}
	if len(cfg.WebSocket.AllowedOrigins) != 1 || cfg.WebSocket.AllowedOrigins[0] != "*" {
		t.Errorf("Expected all origins allowed, got %v", cfg.WebSocket.AllowedOrigins)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Presence should be off by default, got addr %s", cfg.Redis.Addr)
	}
	if cfg.Compaction.Interval != 10*time.Minute || cfg.Compaction.MaxAge != 168*time.Hour || cfg.Compaction.KeepPerRoom != 20 {
		t.Errorf("Unexpected compaction config %+v", cfg.Compaction)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected 10s shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
}

func TestOverrides(t *testing.T) {
	t.Setenv("PORT", ":9000")
	t.Setenv("LEDGER_ENABLED", "false")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, ,http://b.example")
	t.Setenv("RATE_LIMIT_PER_SECOND", "12.5")
	t.Setenv("CHAT_RETENTION", "10")
	t.Setenv("STROKE_TTL", "90")
	t.Setenv("COMPACTION_MAX_AGE", "48h")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("INSTANCE_ID", "edge-1")

	cfg := FromEnv()

	if cfg.Addr() != ":9000" {
		t.Errorf("Expected addr ':9000', got '%s'", cfg.Addr())
	}
	if cfg.Ledger.Enabled {
		t.Error("Expected ledger disabled")
	}
	origins := cfg.WebSocket.AllowedOrigins
	if len(origins) != 2 || origins[0] != "http://a.example" || origins[1] != "http://b.example" {
		t.Errorf("Unexpected origins %v", origins)
	}
	if cfg.WebSocket.MessagesPerSecond != 12.5 {
		t.Errorf("Expected 12.5 msg/s, got %v", cfg.WebSocket.MessagesPerSecond)
	}
	if cfg.Retention.ChatRetention != 10 {
		t.Errorf("Expected chat retention 10, got %d", cfg.Retention.ChatRetention)
	}
	if cfg.Retention.StrokeTTL != 90*time.Second {
		t.Errorf("Expected bare seconds to parse, got %v", cfg.Retention.StrokeTTL)
	}
	if cfg.Compaction.MaxAge != 48*time.Hour {
		t.Errorf("Expected 48h, got %v", cfg.Compaction.MaxAge)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 || cfg.Redis.InstanceID != "edge-1" {
		t.Errorf("Unexpected redis config %+v", cfg.Redis)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CHAT_RETENTION", "lots")
	t.Setenv("STROKE_TTL", "soon")

	cfg := FromEnv()

	if cfg.Retention.ChatRetention != 100 {
		t.Errorf("Expected default chat retention, got %d", cfg.Retention.ChatRetention)
	}
	if cfg.Retention.StrokeTTL != 5*time.Minute {
		t.Errorf("Expected default TTL, got %v", cfg.Retention.StrokeTTL)
	}
}

func TestOutOfRangeValuesFallBack(t *testing.T) {
	t.Setenv("WS_SEND_BUFFER", "0")
	t.Setenv("WS_MAX_MESSAGE_SIZE", "-1")
	t.Setenv("RATE_LIMIT_PER_SECOND", "0")
	t.Setenv("RATE_LIMIT_BURST", "-5")
	t.Setenv("STROKE_RETENTION", "0")
	t.Setenv("COMPACTION_INTERVAL", "0")
	t.Setenv("COMPACTION_MAX_AGE", "-2h")
	t.Setenv("SHUTDOWN_TIMEOUT", "0s")
	t.Setenv("REDIS_DB", "-1")

	cfg := FromEnv()

	if cfg.WebSocket.SendBuffer != 512 || cfg.WebSocket.MaxMessageSize != 1024*1024 {
		t.Errorf("Expected default buffer sizes, got %+v", cfg.WebSocket)
	}
	if cfg.WebSocket.MessagesPerSecond != 60 || cfg.WebSocket.MessageBurst != 120 {
		t.Errorf("Expected default rate limit, got %+v", cfg.WebSocket)
	}
	if cfg.Retention.StrokeRetention != 500 {
		t.Errorf("Expected default stroke retention, got %d", cfg.Retention.StrokeRetention)
	}
	if cfg.Compaction.Interval != 10*time.Minute || cfg.Compaction.MaxAge != 168*time.Hour {
		t.Errorf("Expected default compaction timing, got %+v", cfg.Compaction)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected default shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("Expected default redis db, got %d", cfg.Redis.DB)
	}
}

func TestZeroAllowedWhereMeaningful(t *testing.T) {
	t.Setenv("COMPACTION_KEEP_PER_ROOM", "0")
	t.Setenv("REDIS_DB", "0")

	cfg := FromEnv()

	if cfg.Compaction.KeepPerRoom != 0 {
		t.Errorf("Expected keep 0, got %d", cfg.Compaction.KeepPerRoom)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("Expected redis db 0, got %d", cfg.Redis.DB)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("STROKE_RETENTION=42\n"), 0644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to chdir: %v", err)
	}
	defer os.Chdir(wd)

	// Registers cleanup so the loaded value does not leak into other tests
	t.Setenv("STROKE_RETENTION", "")
	os.Unsetenv("STROKE_RETENTION")

	cfg := Load()
	if cfg.Retention.StrokeRetention != 42 {
		t.Errorf("Expected 42 from .env, got %d", cfg.Retention.StrokeRetention)
	}
}
