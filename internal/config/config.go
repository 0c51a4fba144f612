// internal/config/config.go
package config

import (
	"os"
	"strconv"
)

// Config holds the environment-driven settings shared by the cmds. Library
// packages never read the environment themselves; values are passed down.
type Config struct {
	// ServerURL is the websocket base, e.g. wss://rooms.example.com
	ServerURL string
	// RoomPath is the url-safe room segment to join.
	RoomPath string
	// Token is the opaque auth token attached as a query parameter.
	Token string

	// RedisAddr and QueueName configure the optional frame journal.
	RedisAddr string
	QueueName string

	// DatabaseURL is only used by the historian.
	DatabaseURL string

	LogLevel string
}

// Load reads the configuration from the environment with defaults.
func Load() Config {
	return Config{
		ServerURL:   GetEnv("ROOMSYNC_SERVER_URL", "ws://localhost:8080"),
		RoomPath:    GetEnv("ROOMSYNC_ROOM_PATH", ""),
		Token:       GetEnv("ROOMSYNC_TOKEN", ""),
		RedisAddr:   GetEnv("REDIS_ADDR", "localhost:6379"),
		QueueName:   GetEnv("JOURNAL_QUEUE_NAME", "roomsync_frames"),
		DatabaseURL: GetEnv("DATABASE_URL", ""),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
	}
}

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt parses an environment variable as an integer, else the default.
func GetEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
