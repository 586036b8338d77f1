// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/pitch-ingest/internal/logging"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Archive and notification providers.
const (
	ProviderNone   = "none"
	ProviderLocal  = "local"
	ProviderGCS    = "gcs"
	ProviderMemory = "memory"
	ProviderPubSub = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawl   CrawlConfig    `mapstructure:"crawl"`
	HTTP    HTTPConfig     `mapstructure:"http"`
	Store   StoreConfig    `mapstructure:"store"`
	Archive ArchiveConfig  `mapstructure:"archive"`
	Notify  NotifyConfig   `mapstructure:"notify"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
	Logging logging.Config `mapstructure:"logging"`
}

// CrawlConfig selects the date range and the fan-out width.
type CrawlConfig struct {
	BaseURL           string   `mapstructure:"base_url"`
	ExpandedBaseURL   string   `mapstructure:"expanded_base_url"`
	Years             []string `mapstructure:"years"`
	Months            []string `mapstructure:"months"`
	Days              []string `mapstructure:"days"`
	Concurrency       int      `mapstructure:"concurrency"`
	NestedConcurrency int      `mapstructure:"nested_concurrency"`
}

// HTTPConfig configures the fetcher chain.
type HTTPConfig struct {
	UserAgent         string  `mapstructure:"user_agent"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxRetries        int     `mapstructure:"max_retries"`
	BackoffInitialMs  int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs      int     `mapstructure:"backoff_max_ms"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// StoreConfig selects the relational backend.
type StoreConfig struct {
	Driver                 string `mapstructure:"driver"`
	SQLitePath             string `mapstructure:"sqlite_path"`
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
	BatchSize              int    `mapstructure:"batch_size"`
}

// ArchiveConfig controls raw page archiving.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifyConfig holds metadata for batch notifications.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls the admin HTTP server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PITCHES")
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
	v.SetDefault("crawl.base_url", "http://www.brooksbaseball.net/pfxVB/pfx.php")
	v.SetDefault("crawl.expanded_base_url", "http://www.brooksbaseball.net/pfxVB/tabdel_expanded.php")
	v.SetDefault("crawl.years", Span(2015, 2019))
	v.SetDefault("crawl.months", Span(3, 11))
	v.SetDefault("crawl.days", Span(1, 31))
	v.SetDefault("crawl.concurrency", 20)
	v.SetDefault("crawl.nested_concurrency", 1)
	v.SetDefault("http.user_agent", "pitch-ingest/0.1")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 0)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "data/pitches.db")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("store.max_conn_lifetime_seconds", 1800)
	v.SetDefault("store.batch_size", 500)
	v.SetDefault("archive.provider", ProviderNone)
	v.SetDefault("archive.base_dir", "data/archive")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("notify.provider", ProviderNone)
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "pitch-batches")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Span returns the decimal strings lo..hi inclusive.
func Span(lo, hi int) []string {
	out := make([]string, 0, max(hi-lo+1, 0))
	for i := lo; i <= hi; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.Crawl.validate(); err != nil {
		return err
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.HTTP.RequestsPerSecond > 0 && c.HTTP.Burst <= 0 {
		return fmt.Errorf("http.burst must be > 0 when rate limiting is enabled")
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Archive.validate(); err != nil {
		return err
	}
	return c.Notify.validate()
}

func (c CrawlConfig) validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.NestedConcurrency <= 0 {
		return fmt.Errorf("crawl.nested_concurrency must be > 0")
	}
	for key, values := range map[string][]string{
		"crawl.years":  c.Years,
		"crawl.months": c.Months,
		"crawl.days":   c.Days,
	} {
		if err := numeric(key, values); err != nil {
			return err
		}
	}
	return nil
}

func numeric(key string, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("%s must not be empty", key)
	}
	for _, v := range values {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("%s: %q is not a number", key, v)
		}
	}
	return nil
}

func (c StoreConfig) validate() error {
	switch c.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("store.driver %q is not one of sqlite, postgres, memory", c.Driver)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("store.batch_size must be >= 0")
	}
	return nil
}

func (c ArchiveConfig) validate() error {
	switch c.Provider {
	case ProviderNone, "", ProviderMemory:
	case ProviderLocal:
		if strings.TrimSpace(c.BaseDir) == "" {
			return fmt.Errorf("archive.base_dir is required for the local provider")
		}
	case ProviderGCS:
		if strings.TrimSpace(c.GCSBucket) == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("archive.provider %q is not one of none, memory, local, gcs", c.Provider)
	}
	return nil
}

func (c NotifyConfig) validate() error {
	switch c.Provider {
	case ProviderNone, "":
	case ProviderPubSub:
		if c.ProjectID == "" || c.Topic == "" {
			return fmt.Errorf("notify.project_id and notify.topic are required for the pubsub provider")
		}
	default:
		return fmt.Errorf("notify.provider %q is not one of none, pubsub", c.Provider)
	}
	return nil
}

// Timeout returns the per-request fetch timeout.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the first retry delay.
func (c HTTPConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// BackoffMax caps the retry delay.
func (c HTTPConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// MaxConnLifetime returns the Postgres connection lifetime.
func (c StoreConfig) MaxConnLifetime() time.Duration {
	return time.Duration(c.MaxConnLifetimeSeconds) * time.Second
}
