// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Store    StoreConfig    `mapstructure:"store"`
	Markdown MarkdownConfig `mapstructure:"markdown"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication. APIKeys maps a key name, recorded
// on written pages, to its secret.
type AuthConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	APIKeys map[string]string `mapstructure:"api_keys"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig holds the default crawl settings.
type CrawlerConfig struct {
	MaxDepth              int           `mapstructure:"max_depth"`
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests"`
	FollowExternalLinks   bool          `mapstructure:"follow_external_links"`
	RespectRobotsTxt      bool          `mapstructure:"respect_robots_txt"`
	DelayBetweenRequests  time.Duration `mapstructure:"delay_between_requests"`
	Timeout               time.Duration `mapstructure:"timeout"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
	MaxRetries            int           `mapstructure:"max_retries"`
	RetryBaseDelay        time.Duration `mapstructure:"retry_base_delay"`
	VerifySSL             bool          `mapstructure:"verify_ssl"`
	MaxContentLength      int64         `mapstructure:"max_content_length"`
	SkipExtensions        []string      `mapstructure:"skip_extensions"`
	FollowRedirects       bool          `mapstructure:"follow_redirects"`
	MaxRedirects          int           `mapstructure:"max_redirects"`
	Strategy              string        `mapstructure:"strategy"`
	UserAgent             string        `mapstructure:"user_agent"`
	MaxDuration           time.Duration `mapstructure:"max_duration"`
	RequestsPerSecond     float64       `mapstructure:"requests_per_second"`
	FallbackDNS           string        `mapstructure:"fallback_dns"`
	BlockedDomains        []string      `mapstructure:"blocked_domains"`
}

// StoreConfig selects and configures the link graph backend.
type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig locates the database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig controls the connection pool.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// MarkdownConfig sizes the conversion cache.
type MarkdownConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// JobsConfig sizes the task queue and worker pool.
type JobsConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// Load builds a Config from defaults, an optional file and CRAWLER_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	d := crawler.DefaultSettings()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", d.LogLevel)

	v.SetDefault("crawler.max_depth", d.MaxDepth)
	v.SetDefault("crawler.max_concurrent_requests", d.MaxConcurrentRequests)
	v.SetDefault("crawler.follow_external_links", d.FollowExternalLinks)
	v.SetDefault("crawler.respect_robots_txt", d.RespectRobotsTxt)
	v.SetDefault("crawler.delay_between_requests", d.DelayBetweenRequests)
	v.SetDefault("crawler.timeout", d.Timeout)
	v.SetDefault("crawler.connect_timeout", d.ConnectTimeout)
	v.SetDefault("crawler.max_retries", d.MaxRetries)
	v.SetDefault("crawler.retry_base_delay", d.RetryBaseDelay)
	v.SetDefault("crawler.verify_ssl", d.VerifySSL)
	v.SetDefault("crawler.max_content_length", d.MaxContentLength)
	v.SetDefault("crawler.skip_extensions", d.SkipExtensions)
	v.SetDefault("crawler.follow_redirects", d.FollowRedirects)
	v.SetDefault("crawler.max_redirects", d.MaxRedirects)
	v.SetDefault("crawler.strategy", string(d.Strategy))
	v.SetDefault("crawler.user_agent", d.UserAgent)
	v.SetDefault("crawler.max_duration", time.Duration(0))
	v.SetDefault("crawler.requests_per_second", 0.0)
	v.SetDefault("crawler.fallback_dns", crawler.DefaultFallbackDNS)
	v.SetDefault("crawler.blocked_domains", []string{})

	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.sqlite.path", "data/linkgraph.db")
	v.SetDefault("store.postgres.max_conns", 10)
	v.SetDefault("store.postgres.max_conn_lifetime", time.Hour)
	v.SetDefault("markdown.cache_size", 256)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_size", 64)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth.api_keys must be set when auth is enabled")
	}
	for name, key := range c.Auth.APIKeys {
		if key == "" {
			return fmt.Errorf("auth.api_keys.%s is empty", name)
		}
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path is required for the sqlite driver")
		}
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver %q is not one of memory, sqlite, postgres", c.Store.Driver)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be > 0")
	}
	if c.Jobs.QueueSize <= 0 {
		return fmt.Errorf("jobs.queue_size must be > 0")
	}
	if err := c.CrawlSettings().Validate(); err != nil {
		return fmt.Errorf("crawler: %w", err)
	}
	return nil
}

// CrawlSettings maps the crawler section onto engine settings.
func (c Config) CrawlSettings() crawler.Settings {
	cc := c.Crawler
	return crawler.Settings{
		MaxDepth:              cc.MaxDepth,
		MaxConcurrentRequests: cc.MaxConcurrentRequests,
		FollowExternalLinks:   cc.FollowExternalLinks,
		RespectRobotsTxt:      cc.RespectRobotsTxt,
		DelayBetweenRequests:  cc.DelayBetweenRequests,
		Timeout:               cc.Timeout,
		ConnectTimeout:        cc.ConnectTimeout,
		MaxRetries:            cc.MaxRetries,
		RetryBaseDelay:        cc.RetryBaseDelay,
		VerifySSL:             cc.VerifySSL,
		MaxContentLength:      cc.MaxContentLength,
		SkipExtensions:        append([]string(nil), cc.SkipExtensions...),
		FollowRedirects:       cc.FollowRedirects,
		MaxRedirects:          cc.MaxRedirects,
		Strategy:              crawler.Strategy(cc.Strategy),
		LogLevel:              c.Logging.Level,
		UserAgent:             cc.UserAgent,
		MaxDuration:           cc.MaxDuration,
		RequestsPerSecond:     cc.RequestsPerSecond,
		BlockedDomains:        append([]string(nil), cc.BlockedDomains...),
	}
}
