package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Site     SiteConfig     `mapstructure:"site"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Output   OutputConfig   `mapstructure:"output"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

// SiteConfig describes the scraped shop
type SiteConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	CategoryPrefix string `mapstructure:"category_prefix"`
}

// FetcherConfig holds settings of the concurrent page fetcher
type FetcherConfig struct {
	MaxConnections          int           `mapstructure:"max_connections"`
	MaxKeepaliveConnections int           `mapstructure:"max_keepalive_connections"`
	Timeout                 time.Duration `mapstructure:"timeout"`
	MaxRequestsPerSecond    int           `mapstructure:"max_requests_per_second"`
	UserAgents              []string      `mapstructure:"user_agents"`
	Proxies                 []string      `mapstructure:"proxies"`
}

// CrawlerConfig holds settings of the paginated item crawler
type CrawlerConfig struct {
	Workers      int           `mapstructure:"workers"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	LoadPause    time.Duration `mapstructure:"load_pause"`
	ScrollPause  time.Duration `mapstructure:"scroll_pause"`
	LazyMaxPage  int           `mapstructure:"lazy_max_page"`
}

// BrowserConfig holds headless browser settings
type BrowserConfig struct {
	Headless bool          `mapstructure:"headless"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// OutputConfig holds settings of the JSON result files
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// DSN builds a libpq style connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	Database     int    `mapstructure:"database"`
	StreamPrefix string `mapstructure:"stream_prefix"`
	KeyPrefix    string `mapstructure:"key_prefix"`

	ConsumerGroup   string        `mapstructure:"consumer_group"`
	ConsumerWorkers int           `mapstructure:"consumer_workers"`
	MinIdleTime     time.Duration `mapstructure:"min_idle_time"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig selects logrus level and formatter
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from a YAML file with environment variable overrides.
// An empty path searches for config.yaml in the working directory; a missing file
// leaves defaults and environment in effect.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if config.Crawler.Workers <= 0 {
		config.Crawler.Workers = max(runtime.NumCPU(), 1)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the settings the crawlers cannot run without.
func (c *Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url must be set")
	}
	if c.Fetcher.MaxConnections < 1 {
		return fmt.Errorf("fetcher.max_connections must be at least 1")
	}
	if c.Fetcher.MaxKeepaliveConnections < 0 || c.Fetcher.MaxKeepaliveConnections > c.Fetcher.MaxConnections {
		return fmt.Errorf("fetcher.max_keepalive_connections must be between 0 and fetcher.max_connections")
	}
	if c.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be positive")
	}
	if c.Crawler.PollInterval <= 0 {
		return fmt.Errorf("crawler.poll_interval must be positive")
	}
	if c.Crawler.LazyMaxPage < 1 {
		return fmt.Errorf("crawler.lazy_max_page must be at least 1")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.ozon.ru")
	v.SetDefault("site.category_prefix", "/category")

	v.SetDefault("fetcher.max_connections", 10)
	v.SetDefault("fetcher.max_keepalive_connections", 5)
	v.SetDefault("fetcher.timeout", 10*time.Second)
	v.SetDefault("fetcher.max_requests_per_second", 0)
	v.SetDefault("fetcher.user_agents", []string{})
	v.SetDefault("fetcher.proxies", []string{})

	v.SetDefault("crawler.workers", 0)
	v.SetDefault("crawler.poll_interval", time.Second)
	v.SetDefault("crawler.load_pause", 7*time.Second)
	v.SetDefault("crawler.scroll_pause", time.Second)
	v.SetDefault("crawler.lazy_max_page", 11)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.timeout", 30*time.Second)

	v.SetDefault("output.dir", "./parse_results")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "ozon_parser")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.stream_prefix", "ozon:stream:")
	v.SetDefault("redis.key_prefix", "ozon:progress:")
	v.SetDefault("redis.consumer_group", "ozon-importers")
	v.SetDefault("redis.consumer_workers", 4)
	v.SetDefault("redis.min_idle_time", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
