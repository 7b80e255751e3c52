package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	shared "github.com/vasiliy-maslov/petcare-microservices/pkg/config"
)

type CartConfig struct {
	SessionTTL    time.Duration `envconfig:"CART_SESSION_TTL" default:"24h"`
	SweepInterval time.Duration `envconfig:"CART_SWEEP_INTERVAL" default:"10m"`
	CookieName    string        `envconfig:"CART_COOKIE_NAME" default:"cart_session"`
	CookieSecure  bool          `envconfig:"CART_COOKIE_SECURE" default:"false"`
}

type Config struct {
	App      shared.AppConfig
	Postgres shared.PostgresConfig
	Cart     CartConfig
}

func NewConfig() (*Config, error) {
	var cfg Config
	if err := shared.Load("", &cfg, shared.EnvFile()); err != nil {
		return nil, err
	}

	if cfg.App.Name == "" {
		cfg.App.Name = "marketplace-service"
	}
	if cfg.Cart.CookieName == "" {
		return nil, fmt.Errorf("config: cart cookie name cannot be empty")
	}

	log.Debug().
		Str("app_name", cfg.App.Name).
		Str("port", cfg.App.Port).
		Str("db_host", cfg.Postgres.Host).
		Dur("cart_ttl", cfg.Cart.SessionTTL).
		Msg("Configuration loaded")

	return &cfg, nil
}
