// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler   CrawlerConfig           `mapstructure:"crawler"`
	Fetch     FetchConfig             `mapstructure:"fetch"`
	Cache     CacheConfig             `mapstructure:"cache"`
	RateLimit RateLimitConfig         `mapstructure:"rate_limit"`
	Output    OutputConfig            `mapstructure:"output"`
	Status    StatusConfig            `mapstructure:"status"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Sources   map[string]SourceConfig `mapstructure:"sources"`
}

// CrawlerConfig governs the worker pool.
type CrawlerConfig struct {
	PoolSize            int    `mapstructure:"pool_size"`
	FetchParallel       int    `mapstructure:"fetch_parallel"`
	ClaimTimeoutSeconds int    `mapstructure:"claim_timeout_seconds"`
	UserAgent           string `mapstructure:"user_agent"`
}

// FetchConfig configures page rendering.
type FetchConfig struct {
	// Engine selects "headless" (shared browser) or "static" (plain HTTP).
	Engine            string `mapstructure:"engine"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	RenderFrames      bool   `mapstructure:"render_frames"`
}

// CacheConfig controls the on-disk fetch cache.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Dir      string `mapstructure:"dir"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// RateLimitConfig sets default request pacing; per-source RPS overrides it.
type RateLimitConfig struct {
	DefaultRPS   float64 `mapstructure:"default_rps"`
	DefaultBurst int     `mapstructure:"default_burst"`
}

// OutputConfig sets where crawled pages land.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// StatusConfig controls the progress/metrics HTTP server.
type StatusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SourceConfig describes one documentation site to crawl.
type SourceConfig struct {
	// URL is the seed page.
	URL string `mapstructure:"url"`
	// AllowPrefix scopes the crawl; empty defaults to the URL itself.
	AllowPrefix string `mapstructure:"allow_prefix"`
	// OutputDir overrides output.dir for this source.
	OutputDir       string  `mapstructure:"output_dir"`
	ContentSelector string  `mapstructure:"content_selector"`
	LinkSelector    string  `mapstructure:"link_selector"`
	WaitSelector    string  `mapstructure:"wait_selector"`
	RenderFrames    bool    `mapstructure:"render_frames"`
	RPS             float64 `mapstructure:"rps"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCROVER")
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
	v.SetDefault("crawler.pool_size", 3)
	v.SetDefault("crawler.fetch_parallel", 2)
	v.SetDefault("crawler.claim_timeout_seconds", 120)
	v.SetDefault("crawler.user_agent", "docrover/0.1")
	v.SetDefault("fetch.engine", "headless")
	v.SetDefault("fetch.nav_timeout_seconds", 45)
	v.SetDefault("fetch.render_frames", false)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.dir", ".docrover-cache")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("rate_limit.default_rps", 2.0)
	v.SetDefault("rate_limit.default_burst", 1)
	v.SetDefault("output.dir", "output")
	v.SetDefault("status.enabled", false)
	v.SetDefault("status.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.PoolSize <= 0 {
		return fmt.Errorf("crawler.pool_size must be > 0")
	}
	if c.Crawler.FetchParallel <= 0 {
		return fmt.Errorf("crawler.fetch_parallel must be > 0")
	}
	if c.Fetch.Engine != "headless" && c.Fetch.Engine != "static" {
		return fmt.Errorf("fetch.engine must be headless or static, got %q", c.Fetch.Engine)
	}
	if c.Fetch.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.nav_timeout_seconds must be > 0")
	}
	if c.Status.Enabled && c.Status.Port <= 0 {
		return fmt.Errorf("status.port must be > 0 when status is enabled")
	}
	for name, src := range c.Sources {
		if src.URL == "" {
			return fmt.Errorf("sources.%s.url must be set", name)
		}
		if src.RPS < 0 {
			return fmt.Errorf("sources.%s.rps must be >= 0", name)
		}
	}
	return nil
}

// ClaimTimeout converts the configured seconds into a duration.
func (c CrawlerConfig) ClaimTimeout() time.Duration {
	return time.Duration(c.ClaimTimeoutSeconds) * time.Second
}

// NavTimeout converts the configured seconds into a duration.
func (c FetchConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// TTL converts the configured hours into a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}
