// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Lock     LockConfig     `mapstructure:"lock"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the query API listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// RequestTimeout bounds read endpoints; crawl triggers are exempt.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// CrawlerConfig governs crawl runs.
type CrawlerConfig struct {
	RootURL      string        `mapstructure:"root_url"`
	UserAgent    string        `mapstructure:"user_agent"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxPages     int           `mapstructure:"max_pages"`
	DetectCycles bool          `mapstructure:"detect_cycles"`
	RunTimeout   time.Duration `mapstructure:"run_timeout"`
}

// HTTPConfig configures the page fetcher's client.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ScheduleConfig controls recurring crawls.
type ScheduleConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Expression string `mapstructure:"expression"`
	Timezone   string `mapstructure:"timezone"`
}

// LockConfig selects the run lock. An empty RedisURL keeps it in-process.
type LockConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// envAliases maps keys to the plain environment names deployments already use.
var envAliases = map[string]string{
	"store.dsn":           "DATABASE_URL",
	"server.port":         "PORT",
	"schedule.enabled":    "CRON_ENABLED",
	"schedule.expression": "CRON_SCHEDULE",
	"schedule.timezone":   "CRON_TIMEZONE",
	"lock.redis_url":      "REDIS_URL",
}

const envPrefix = "BOOKS"

// Load builds a Config from defaults, an optional file, and the environment.
// BOOKS_-prefixed variables win over the plain aliases.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, alias := range envAliases {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", alias, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.table", "books")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.migrate", true)
	v.SetDefault("crawler.root_url", "https://books.toscrape.com/")
	v.SetDefault("crawler.user_agent", "BookExplorerBot/1.0 (practice scraper)")
	v.SetDefault("crawler.batch_size", 10)
	v.SetDefault("crawler.max_pages", 1000)
	v.SetDefault("crawler.detect_cycles", true)
	v.SetDefault("crawler.run_timeout", "30m")
	v.SetDefault("http.timeout", "15s")
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.expression", "0 3 * * *")
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("lock.redis_url", "")
	v.SetDefault("lock.key", "bookcrawler:run-lock")
	v.SetDefault("lock.ttl", "1h")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be within 1-65535")
	}
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn must be set for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("store.driver %q is not one of postgres, memory", c.Store.Driver)
	}
	u, err := url.Parse(c.Crawler.RootURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("crawler.root_url %q must be an absolute URL", c.Crawler.RootURL)
	}
	if c.Crawler.BatchSize <= 0 {
		return errors.New("crawler.batch_size must be > 0")
	}
	if c.Crawler.MaxPages < 0 {
		return errors.New("crawler.max_pages must be >= 0")
	}
	if c.Crawler.RunTimeout < 0 {
		return errors.New("crawler.run_timeout must be >= 0")
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be > 0")
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone %q: %w", c.Schedule.Timezone, err)
		}
	}
	if c.Lock.RedisURL != "" && c.Lock.TTL <= 0 {
		return errors.New("lock.ttl must be > 0 when lock.redis_url is set")
	}
	return nil
}
