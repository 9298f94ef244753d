package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "evidenca.sqlite3", cfg.DBPath)
	assert.Equal(t, "Admin", cfg.AdminUser)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 168*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5, cfg.LoginBurst)
	assert.Equal(t, int64(10<<20), cfg.PhotoMaxBytes)
	assert.True(t, cfg.Metrics)
	assert.Empty(t, cfg.CategoriesFile)
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("EVIDENCA_ADDR", ":9000")
	t.Setenv("EVIDENCA_DB", "/data/items.db")
	t.Setenv("EVIDENCA_TOKEN_TTL", "2h")
	t.Setenv("EVIDENCA_METRICS", "false")
	t.Setenv("EVIDENCA_CATEGORIES_FILE", "/etc/evidenca/categories.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "/data/items.db", cfg.DBPath)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.Metrics)
	assert.Equal(t, "/etc/evidenca/categories.yaml", cfg.CategoriesFile)
}

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EVIDENCA_QR_SIZE=512\nEVIDENCA_LOG_LEVEL=debug\n"), 0o600))

	// The environment wins over the file.
	t.Setenv("EVIDENCA_LOG_LEVEL", "warn")
	// Unset after the test so the file value does not leak.
	t.Setenv("EVIDENCA_QR_SIZE", "")
	os.Unsetenv("EVIDENCA_QR_SIZE")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.QRSize)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"EVIDENCA_TOKEN_TTL":   "-1h",
		"EVIDENCA_LOGIN_BURST": "0",
		"EVIDENCA_QR_SIZE":     "10",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}

	t.Run("unparsable", func(t *testing.T) {
		t.Setenv("EVIDENCA_TOKEN_TTL", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
}
