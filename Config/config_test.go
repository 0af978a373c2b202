package Config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.True(t, cfg.SweepOnStart)
	assert.Equal(t, 1440*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 30, cfg.OverdueDays)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nSWEEP_INTERVAL_MINUTES=60\nSWEEP_ON_START=false\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("OVERDUE_AFTER_DAYS", "45")

	cfg, err := Load(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("SWEEP_INTERVAL_MINUTES")
		os.Unsetenv("SWEEP_ON_START")
		os.Unsetenv("LOG_LEVEL")
	})

	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.False(t, cfg.SweepOnStart)
	assert.Equal(t, 45, cfg.OverdueDays)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestGetters(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_BOOL", "1")
	assert.Equal(t, 7, GetInt("X_INT", 7))
	assert.True(t, GetBool("X_BOOL", false))
	assert.Equal(t, "d", GetString("X_UNSET_KEY", "d"))
}
