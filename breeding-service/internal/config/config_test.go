package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/config"
)

func setDB(t *testing.T) {
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "breeder")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "breeding")
}

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	setDB(t)
	t.Setenv("APP_NAME", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "breeding-service", cfg.App.Name)
	assert.Equal(t, "chat_messages", cfg.Chat.NotifyChannel)
	assert.Equal(t, 10*time.Second, cfg.Chat.MinReconnectInterval)
	assert.Equal(t, time.Minute, cfg.Chat.MaxReconnectInterval)
	assert.Equal(t, 32, cfg.Chat.SubscriberBuffer)
	assert.False(t, cfg.Redis.Enabled())
}

func TestNewConfig_FromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "breeding.env")
	require.NoError(t, os.WriteFile(envFile, []byte("REDIS_ADDR=redis:6379\nCHAT_ALLOWED_ORIGINS=https://a.example,https://b.example\n"), 0o600))

	t.Setenv("ENV_FILE", envFile)
	// godotenv never overrides variables that are already set; register
	// cleanup for the ones the file introduces.
	t.Setenv("REDIS_ADDR", "")
	os.Unsetenv("REDIS_ADDR")
	t.Setenv("CHAT_ALLOWED_ORIGINS", "")
	os.Unsetenv("CHAT_ALLOWED_ORIGINS")
	setDB(t)

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Chat.AllowedOrigins)
}

func TestNewConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "blank_channel", env: map[string]string{"CHAT_NOTIFY_CHANNEL": "  "}},
		{name: "inverted_reconnect", env: map[string]string{"CHAT_LISTENER_MIN_RECONNECT": "2m", "CHAT_LISTENER_MAX_RECONNECT": "1m"}},
		{name: "zero_guard_ttl", env: map[string]string{"CHAT_SEND_GUARD_TTL": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
			setDB(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := config.NewConfig()

			require.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
