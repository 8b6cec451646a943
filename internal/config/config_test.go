package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: 9090
storage:
  driver: memory
jwt:
  secret: `+secret+`
  ttl: 2h
outbox:
  batch_size: 10
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 10, cfg.Outbox.BatchSize)
	// defaults fill what the file leaves out
	assert.Equal(t, 5, cfg.Outbox.MaxAttempts)
	assert.Equal(t, "0 18 * * *", cfg.Workers.ReminderSpec)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, 30*time.Second, cfg.Auth.RoleCacheTTL)
}

func TestClinicEnvOverrides(t *testing.T) {
	dir := writeConfig(t, "jwt:\n  secret: "+secret+"\n")
	t.Setenv("CLINIC_PORT", "7070")
	t.Setenv("CLINIC_STORAGE", "memory")
	t.Setenv("CLINIC_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidateRejectsMissingSecret(t *testing.T) {
	dir := writeConfig(t, "storage:\n  driver: memory\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 0},
		Storage: StorageConfig{Driver: "sqlite"},
		JWT:     JWTConfig{Secret: secret, TTL: time.Hour},
		Outbox:  OutboxConfig{BatchSize: 1, MaxAttempts: 1, PollInterval: time.Second},
		Workers: WorkersConfig{Timezone: "Mars/Olympus"},
		Auth:    AuthConfig{BcryptCost: 99, MinPasswordLength: 8, RoleCacheTTL: time.Second},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "storage.driver")
	assert.Contains(t, err.Error(), "workers.timezone")
	assert.Contains(t, err.Error(), "auth.bcrypt_cost")
}
