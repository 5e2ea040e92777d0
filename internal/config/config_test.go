package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5001", cfg.HTTPPort)
	assert.Equal(t, []string{"manager"}, cfg.NotifyRoles)
	assert.Equal(t, 256, cfg.NotifyBuffer)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Len(t, cfg.Warnings(), 2)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "short")
	_, err = Load()
	require.ErrorContains(t, err, "32 characters")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stocktrack.yaml")
	body := []byte("http_port: \"7000\"\nnotify_roles: [manager, supervisor]\nkafka_brokers: [kafka:9092]\njwt_secret: " + testSecret + "\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("STOCKTRACK_CONFIG", path)
	t.Setenv("HTTP_PORT", "7100")
	t.Setenv("CLIENT_BUFFER", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7100", cfg.HTTPPort)
	assert.Equal(t, []string{"manager", "supervisor"}, cfg.NotifyRoles)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 8, cfg.ClientBuffer)
}

func TestLoadBadFile(t *testing.T) {
	t.Setenv("STOCKTRACK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", testSecret)
	_, err := Load()
	require.Error(t, err)
}

func TestOrigins(t *testing.T) {
	cfg := &Config{CORSOrigins: " http://a.test , http://b.test,,"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())
}

func TestGetEnvIntFallsBack(t *testing.T) {
	t.Setenv("NOTIFY_BUFFER", "lots")
	assert.Equal(t, 5, getEnvInt("NOTIFY_BUFFER", 5))
}
