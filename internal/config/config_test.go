package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://www.ozon.ru", cfg.Site.BaseURL)
	assert.Equal(t, 10, cfg.Fetcher.MaxConnections)
	assert.Equal(t, 5, cfg.Fetcher.MaxKeepaliveConnections)
	assert.Equal(t, 10*time.Second, cfg.Fetcher.Timeout)
	assert.Equal(t, 11, cfg.Crawler.LazyMaxPage)
	assert.GreaterOrEqual(t, cfg.Crawler.Workers, 1)
	assert.Equal(t, "ozon:stream:", cfg.Redis.StreamPrefix)
	assert.Equal(t, "ozon-importers", cfg.Redis.ConsumerGroup)
	assert.Equal(t, time.Minute, cfg.Redis.MinIdleTime)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
fetcher:
  max_connections: 20
  timeout: 3s
  user_agents:
    - agent-a
    - agent-b
crawler:
  workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CRAWLER_LAZY_MAX_PAGE", "4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Fetcher.MaxConnections)
	assert.Equal(t, 3*time.Second, cfg.Fetcher.Timeout)
	assert.Equal(t, []string{"agent-a", "agent-b"}, cfg.Fetcher.UserAgents)
	assert.Equal(t, 2, cfg.Crawler.Workers)
	assert.Equal(t, 4, cfg.Crawler.LazyMaxPage)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Site:    SiteConfig{BaseURL: "https://www.ozon.ru"},
			Fetcher: FetcherConfig{MaxConnections: 10, MaxKeepaliveConnections: 5, Timeout: time.Second},
			Crawler: CrawlerConfig{PollInterval: time.Second, LazyMaxPage: 11},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "no connections", mutate: func(c *Config) { c.Fetcher.MaxConnections = 0 }, wantErr: true},
		{name: "keepalive above connections", mutate: func(c *Config) { c.Fetcher.MaxKeepaliveConnections = 11 }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Fetcher.Timeout = 0 }, wantErr: true},
		{name: "zero lazy max page", mutate: func(c *Config) { c.Crawler.LazyMaxPage = 0 }, wantErr: true},
		{name: "empty base url", mutate: func(c *Config) { c.Site.BaseURL = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
