package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type AppConfig struct {
	Name      string `envconfig:"APP_NAME"`
	Port      string `envconfig:"APP_PORT" default:"8080"`
	Env       string `envconfig:"APP_ENV" default:"development"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, "development")
}

type PostgresConfig struct {
	Host            string        `envconfig:"DB_HOST" required:"true"`
	Port            string        `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" required:"true"`
	Password        string        `envconfig:"DB_PASSWORD" required:"true"`
	DBName          string        `envconfig:"DB_NAME" required:"true"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
	Schema          string        `envconfig:"DB_SCHEMA"`
	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	MigrationsPath  string        `envconfig:"DB_MIGRATIONS_PATH" default:"migrations"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

// DSN returns a keyword/value connection string understood by both pgx and lib/pq.
// Values are single-quoted so passwords may contain spaces or quotes.
func (p PostgresConfig) DSN() string {
	pairs := [][2]string{
		{"host", p.Host},
		{"port", p.Port},
		{"user", p.User},
		{"password", p.Password},
		{"dbname", p.DBName},
		{"sslmode", p.SSLMode},
	}
	if p.Schema != "" {
		pairs = append(pairs, [2]string{"search_path", p.Schema})
	}

	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		parts = append(parts, fmt.Sprintf("%s='%s'", kv[0], dsnQuoter.Replace(kv[1])))
	}
	return strings.Join(parts, " ")
}

var dsnQuoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// MigrateURL returns the URL form expected by the golang-migrate pgx/v5 driver.
func (p PostgresConfig) MigrateURL() string {
	u := url.URL{
		Scheme: "pgx5",
		User:   url.UserPassword(p.User, p.Password),
		Host:   p.Host + ":" + p.Port,
		Path:   "/" + p.DBName,
	}
	q := u.Query()
	q.Set("sslmode", p.SSLMode)
	if p.Schema != "" {
		q.Set("search_path", p.Schema)
		q.Set("x-migrations-table", "schema_migrations")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisConfig is optional. An empty Addr means Redis is not used.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// Load reads an optional .env file and then fills target from the environment.
// A missing .env file is not an error.
func Load(prefix string, target any, envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if path == "" {
			continue
		}
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := envconfig.Process(prefix, target); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// EnvFile returns the path of the dotenv file to load, overridable through ENV_FILE.
func EnvFile() string {
	if path := os.Getenv("ENV_FILE"); path != "" {
		return path
	}
	return ".env"
}
