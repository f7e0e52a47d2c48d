// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all knobs loaded via Viper.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
	XML     XMLConfig     `mapstructure:"xml"`
}

// APIConfig describes the upstream content API.
type APIConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	SitePrefix string `mapstructure:"site_prefix"`
	PageSize   int    `mapstructure:"page_size"`
	UserAgent  string `mapstructure:"user_agent"`
}

// HTTPConfig configures the HTTP client.
type HTTPConfig struct {
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// CrawlerConfig governs what gets crawled and how articles are bucketed.
type CrawlerConfig struct {
	MinYear int      `mapstructure:"min_year"`
	Topics  []string `mapstructure:"topics"`
}

// StorageConfig sets where crawled data lives.
type StorageConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// XMLConfig controls the corpus conversion.
type XMLConfig struct {
	MaxFileBytes int    `mapstructure:"max_file_bytes"`
	OutputDir    string `mapstructure:"output_dir"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SVTCRAWLER")
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
	v.SetDefault("api.base_url", "https://api.svt.se/nss-api/page")
	v.SetDefault("api.site_prefix", "https://www.svt.se")
	v.SetDefault("api.page_size", 50)
	v.SetDefault("api.user_agent", "svt-crawler/1.0 (+https://github.com/JakeFAU/svt-crawler)")
	v.SetDefault("http.timeout_seconds", 6)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("crawler.min_year", 2004)
	v.SetDefault("crawler.topics", []string{})
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.gcs_prefix", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("xml.max_file_bytes", 5000000)
	v.SetDefault("xml.output_dir", ".")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if c.API.PageSize <= 0 {
		return fmt.Errorf("api.page_size must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.HTTP.Burst <= 0 {
		return fmt.Errorf("http.burst must be > 0")
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("storage.data_dir must be set")
	}
	if c.XML.MaxFileBytes <= 0 {
		return fmt.Errorf("xml.max_file_bytes must be > 0")
	}
	return nil
}

// RequestTimeout converts the configured timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
