package Config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	DBDriver    string
	DBDSN       string
	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins string

	SweepOnStart  bool
	SweepInterval time.Duration
	OverdueDays   int
	RedisURL      string

	AdminEmail    string
	AdminPassword string

	LogLevel  slog.Level
	LogFormat string
}

// Load reads an optional .env file and then the environment. Variables that
// are already set win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	cfg := Config{
		Addr:          GetString("ADDR", ":8080"),
		DBDriver:      GetString("DB_DRIVER", "sqlite"),
		DBDSN:         GetString("DB_DSN", "database.db"),
		JWTSecret:     GetString("JWT_SECRET", ""),
		TokenTTL:      time.Duration(GetInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		CORSOrigins:   GetString("CORS_ORIGINS", "*"),
		SweepOnStart:  GetBool("SWEEP_ON_START", true),
		SweepInterval: time.Duration(GetInt("SWEEP_INTERVAL_MINUTES", 1440)) * time.Minute,
		OverdueDays:   GetInt("OVERDUE_AFTER_DAYS", 30),
		RedisURL:      GetString("REDIS_URL", ""),
		AdminEmail:    GetString("ADMIN_EMAIL", ""),
		AdminPassword: GetString("ADMIN_PASSWORD", ""),
		LogLevel:      parseLevel(GetString("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(GetString("LOG_FORMAT", "text")),
	}

	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET must be set")
	}
	if cfg.SweepInterval < time.Minute {
		return cfg, errors.New("SWEEP_INTERVAL_MINUTES must be at least 1")
	}
	if cfg.OverdueDays < 1 {
		return cfg, errors.New("OVERDUE_AFTER_DAYS must be at least 1")
	}
	return cfg, nil
}

// Logger builds the process logger described by the config.
func (c Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func GetString(key, fallback string) string {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return val
}

func GetInt(key string, fallback int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	valInt, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}
	return valInt
}

func GetBool(key string, fallback bool) bool {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}
	return b
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
