package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/manpreetbhatti/sketchroom/internal/room"
	"github.com/manpreetbhatti/sketchroom/internal/ws"
)

type Config struct {
	Server     ServerConfig
	Ledger     LedgerConfig
	WebSocket  ws.Config
	Retention  room.Config
	Redis      RedisConfig
	Compaction CompactionConfig
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type LedgerConfig struct {
	Enabled bool
	Path    string
}

// Presence mirroring is off when Addr is empty
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Names this server in the shared directory; random per boot when empty
	InstanceID string
}

type CompactionConfig struct {
	Interval    time.Duration
	MaxAge      time.Duration
	KeepPerRoom int
}

// Load reads .env when present, then the environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ No .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables alone
func FromEnv() *Config {
	wsDefaults := ws.DefaultConfig()
	roomDefaults := room.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Ledger: LedgerConfig{
			Enabled: getBool("LEDGER_ENABLED", true),
			Path:    getEnv("SKETCHROOM_DB_PATH", "./data/sketchroom.db"),
		},
		WebSocket: ws.Config{
			MaxMessageSize:    int64(getInt("WS_MAX_MESSAGE_SIZE", int(wsDefaults.MaxMessageSize))),
			SendBuffer:        getInt("WS_SEND_BUFFER", wsDefaults.SendBuffer),
			MessagesPerSecond: getFloat("RATE_LIMIT_PER_SECOND", wsDefaults.MessagesPerSecond),
			MessageBurst:      getInt("RATE_LIMIT_BURST", wsDefaults.MessageBurst),
			AllowedOrigins:    getList("ALLOWED_ORIGINS", wsDefaults.AllowedOrigins),
		},
		Retention: room.Config{
			ChatRetention:   getInt("CHAT_RETENTION", roomDefaults.ChatRetention),
			MaxChatLength:   getInt("CHAT_MAX_LENGTH", roomDefaults.MaxChatLength),
			StrokeRetention: getInt("STROKE_RETENTION", roomDefaults.StrokeRetention),
			StrokeTTL:       getDuration("STROKE_TTL", roomDefaults.StrokeTTL),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntAtLeast("REDIS_DB", 0, 0),

			InstanceID: getEnv("INSTANCE_ID", ""),
		},
		Compaction: CompactionConfig{
			Interval:    getDuration("COMPACTION_INTERVAL", 10*time.Minute),
			MaxAge:      getDuration("COMPACTION_MAX_AGE", 7*24*time.Hour),
			KeepPerRoom: getIntAtLeast("COMPACTION_KEEP_PER_ROOM", 20, 0),
		},
	}
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Server.Port, ":") {
		return c.Server.Port
	}
	return ":" + c.Server.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Sizes, counts and rates must be positive
func getInt(key string, defaultValue int) int {
	return getIntAtLeast(key, defaultValue, 1)
}

func getIntAtLeast(key string, defaultValue, min int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal >= min {
			return intVal
		}
		log.Printf("⚠️ Invalid integer for %s: %q (minimum %d), using %d", key, value, min, defaultValue)
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
		log.Printf("⚠️ Invalid number for %s: %q, using %g", key, value, defaultValue)
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		value = strings.ToLower(value)
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// Accepts Go duration syntax or a bare number of seconds. Must be positive.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs > 0 {
			return time.Duration(secs) * time.Second
		}
	} else if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	log.Printf("⚠️ Invalid duration for %s: %q, using %v", key, value, defaultValue)
	return defaultValue
}

// Comma separated, blanks dropped
func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	if len(list) == 0 {
		return defaultValue
	}
	return list
}
