package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	shared "github.com/vasiliy-maslov/petcare-microservices/pkg/config"
)

// ChatConfig tunes realtime chat. NotifyChannel must match the channel the
// chat_messages insert trigger notifies on.
type ChatConfig struct {
	NotifyChannel        string        `envconfig:"CHAT_NOTIFY_CHANNEL" default:"chat_messages"`
	MinReconnectInterval time.Duration `envconfig:"CHAT_LISTENER_MIN_RECONNECT" default:"10s"`
	MaxReconnectInterval time.Duration `envconfig:"CHAT_LISTENER_MAX_RECONNECT" default:"1m"`
	PingInterval         time.Duration `envconfig:"CHAT_LISTENER_PING_INTERVAL" default:"90s"`
	SendGuardTTL         time.Duration `envconfig:"CHAT_SEND_GUARD_TTL" default:"10s"`
	SubscriberBuffer     int           `envconfig:"CHAT_SUBSCRIBER_BUFFER" default:"32"`
	AllowedOrigins       []string      `envconfig:"CHAT_ALLOWED_ORIGINS"`
}

type Config struct {
	App      shared.AppConfig
	Postgres shared.PostgresConfig
	Redis    shared.RedisConfig
	Chat     ChatConfig
}

func NewConfig() (*Config, error) {
	var cfg Config
	if err := shared.Load("", &cfg, shared.EnvFile()); err != nil {
		return nil, err
	}

	if cfg.App.Name == "" {
		cfg.App.Name = "breeding-service"
	}
	cfg.Chat.NotifyChannel = strings.TrimSpace(cfg.Chat.NotifyChannel)
	if cfg.Chat.NotifyChannel == "" {
		return nil, fmt.Errorf("config: chat notify channel cannot be empty")
	}
	if cfg.Chat.MaxReconnectInterval < cfg.Chat.MinReconnectInterval {
		return nil, fmt.Errorf("config: listener max reconnect %s is below min %s",
			cfg.Chat.MaxReconnectInterval, cfg.Chat.MinReconnectInterval)
	}
	if cfg.Chat.SendGuardTTL <= 0 {
		return nil, fmt.Errorf("config: chat send guard TTL must be positive")
	}

	log.Debug().
		Str("app_name", cfg.App.Name).
		Str("port", cfg.App.Port).
		Str("db_host", cfg.Postgres.Host).
		Bool("redis", cfg.Redis.Enabled()).
		Str("notify_channel", cfg.Chat.NotifyChannel).
		Msg("Configuration loaded")

	return &cfg, nil
}
