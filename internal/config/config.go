package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	LockLocal = "local"
	LockRedis = "redis"
)

type LogConfig struct {
	Level     string
	Format    string // legacy | json | console
	ToConsole bool
	ToFile    bool
	File      string
	Caller    bool
}

type AppConfig struct {
	Env  string
	Port int

	DatabaseDriver string
	DatabasePath   string
	DatabaseURL    string
	SchemaFile     string
	StorageWorkers int // 0 lets the storage pool size itself
	StorageQueue   int
	BusyTimeout    time.Duration

	LockBackend string
	RedisURL    string
	LockTTL     time.Duration

	CORSOrigins []string
	MessagesDir string

	Log LogConfig
}

// Addr is the listen address for the HTTP server.
func (c *AppConfig) Addr() string { return ":" + strconv.Itoa(c.Port) }

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing files
// are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Env:            "development",
		Port:           3002,
		DatabaseDriver: "sqlite",
		DatabasePath:   filepath.Join(".", "db", "tictactoe.db"),
		StorageQueue:   64,
		BusyTimeout:    5 * time.Second,
		LockBackend:    LockLocal,
		LockTTL:        5 * time.Second,
		CORSOrigins:    []string{"http://localhost:5173"},
		Log: LogConfig{
			Level:     "info",
			Format:    "legacy",
			ToConsole: true,
			ToFile:    true,
			File:      filepath.Join("logs", "server.log"),
		},
	}

	if v := strings.TrimSpace(os.Getenv("APP_ENV")); v != "" {
		cfg.Env = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = n
	}

	if v := strings.TrimSpace(os.Getenv("DATABASE_DRIVER")); v != "" {
		cfg.DatabaseDriver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_PATH")); v != "" {
		cfg.DatabasePath = v
	}
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.SchemaFile = strings.TrimSpace(os.Getenv("SCHEMA_FILE"))
	if v := strings.TrimSpace(os.Getenv("STORAGE_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StorageWorkers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("STORAGE_QUEUE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.StorageQueue = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("STORAGE_BUSY_TIMEOUT_MS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid STORAGE_BUSY_TIMEOUT_MS %q", v)
		}
		cfg.BusyTimeout = time.Duration(n) * time.Millisecond
	}

	if v := strings.TrimSpace(os.Getenv("LOCK_BACKEND")); v != "" {
		cfg.LockBackend = strings.ToLower(v)
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if v := strings.TrimSpace(os.Getenv("LOCK_TTL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LockTTL = time.Duration(n) * time.Millisecond
		}
	}

	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	cfg.Log.Level = getenvDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(getenvDefault("LOG_FORMAT", cfg.Log.Format))
	cfg.Log.ToConsole = getenvBool("LOG_TO_CONSOLE", cfg.Log.ToConsole)
	cfg.Log.ToFile = getenvBool("LOG_TO_FILE", cfg.Log.ToFile)
	cfg.Log.File = getenvDefault("LOG_FILE", cfg.Log.File)
	cfg.Log.Caller = getenvBool("LOG_CALLER", cfg.Log.Caller)

	switch cfg.DatabaseDriver {
	case "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when DATABASE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	switch cfg.LockBackend {
	case LockLocal:
	case LockRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required when LOCK_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("unsupported LOCK_BACKEND %q", cfg.LockBackend)
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func getenvBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
