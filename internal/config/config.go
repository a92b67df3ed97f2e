// Package config loads application configuration from a YAML file
// overlaid with PROMO_ environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/bissquit/promo-garden/internal/affiliate"
	"github.com/bissquit/promo-garden/internal/coupons"
	"github.com/bissquit/promo-garden/internal/fetch"
	"github.com/bissquit/promo-garden/internal/ledger"
	"github.com/bissquit/promo-garden/internal/notify/telegram"
	"github.com/bissquit/promo-garden/internal/notify/whatsapp"
	"github.com/bissquit/promo-garden/internal/pipeline"
	"github.com/bissquit/promo-garden/internal/routing"
)

const envPrefix = "PROMO_"

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`

	Pipeline  pipeline.Config  `koanf:"pipeline"`
	Scheduler SchedulerConfig  `koanf:"scheduler"`
	Fetch     fetch.Config     `koanf:"fetch"`
	Affiliate affiliate.Config `koanf:"affiliate"`
	Coupons   coupons.Config   `koanf:"coupons"`
	Routing   RoutingConfig    `koanf:"routing"`
	Telegram  telegram.Config  `koanf:"telegram"`
	Whatsapp  whatsapp.Config  `koanf:"whatsapp"`
	Ledger    LedgerConfig     `koanf:"ledger"`
}

// ServerConfig configures the ops API listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxConns        int32         `koanf:"max_conns"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	MigrationsPath  string        `koanf:"migrations_path"`
	SkipMigrations  bool          `koanf:"skip_migrations"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// SchedulerConfig locates the schedule state file.
type SchedulerConfig struct {
	StatePath string `koanf:"state_path" validate:"required"`
}

// RoutingConfig locates the routing table and its fallback targets.
type RoutingConfig struct {
	ConfigPath string           `koanf:"config_path" validate:"required"`
	Defaults   routing.Defaults `koanf:"defaults"`
}

// LedgerConfig gates the queued scrape worker.
type LedgerConfig struct {
	Enabled bool                `koanf:"enabled"`
	Worker  ledger.WorkerConfig `koanf:"worker"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Metrics:  MetricsConfig{Addr: ":9090"},
		Database: DatabaseConfig{MaxConns: 10, ConnectTimeout: 30 * time.Second, ConnectAttempts: 5, MigrationsPath: "migrations"},
		Log:      LogConfig{Level: "info", Format: "json"},
		Pipeline: pipeline.Config{
			InterDealDelay: 5 * time.Second,
		},
		Scheduler: SchedulerConfig{StatePath: "data/schedule.json"},
		Coupons: coupons.Config{
			DiscountPercentage: 10,
			Validity:           30 * 24 * time.Hour,
		},
		Routing: RoutingConfig{ConfigPath: "data/routing.json"},
		Ledger:  LedgerConfig{Worker: ledger.DefaultWorkerConfig()},
	}
}

// Load reads configuration from path, if non-empty, then applies PROMO_
// environment overrides (PROMO_DATABASE__URL maps to database.url, with
// double underscore as the nesting separator) and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := defaults()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
