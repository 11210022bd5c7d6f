package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexcheck-go/pkg/api"
)

func newTestManager(env ...string) *manager {
	m := NewManager().(*manager)
	m.environ = func() []string { return env }
	return m
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	m := newTestManager("INDEXCHECK_API_KEYS=k1,k2", "TELEGRAM_TOKEN_UNUSED=x")
	t.Setenv("TELEGRAM_TOKEN", "bot-token")

	cfg, err := m.Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"k1", "k2"}, cfg.Credentials)
	assert.Equal(t, "bot-token", cfg.Telegram.Token)
	assert.Equal(t, TelegramModePoll, cfg.Telegram.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Server.CheckTimeout)
	assert.Equal(t, "serpapi", cfg.Provider.Name)
	assert.Equal(t, 10, cfg.Provider.NumResults)
	assert.Equal(t, "url", cfg.Provider.QueryMode)
	assert.Equal(t, 10*time.Minute, cfg.Quota.ZeroTTL)
	assert.Equal(t, time.Second, cfg.Batch.Delay)
	assert.Equal(t, "exact", cfg.Matching.Policy)
	assert.Equal(t, 20, cfg.Delivery.TextLimit)
	assert.Equal(t, "csv", cfg.Delivery.FileFormat)
	assert.Equal(t, uint32(5), cfg.Provider.Breaker.MaxFailures)
	assert.Same(t, cfg, m.GetConfig())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
telegram:
  enabled: false
provider:
  name: serper
  num_results: 20
credentials:
  - file-key
batch:
  delay: 250ms
matching:
  policy: host
delivery:
  file_format: xlsx
`)
	t.Setenv("INDEXCHECK_BATCH_DELAY", "2s")

	m := newTestManager("SERPAPI_KEY_2=second", "SERPAPI_KEY_1=first", "SERPAPI_KEY_X=ignored")
	cfg, err := m.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, "serper", cfg.Provider.Name)
	assert.Equal(t, 20, cfg.Provider.NumResults)
	assert.Equal(t, 2*time.Second, cfg.Batch.Delay)
	assert.Equal(t, "host", cfg.Matching.Policy)
	assert.Equal(t, "xlsx", cfg.Delivery.FileFormat)
	assert.Equal(t, []string{"file-key", "first", "second"}, cfg.Credentials)
}

func TestLoadMissingFile(t *testing.T) {
	m := newTestManager("INDEXCHECK_API_KEYS=k1")
	_, err := m.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestCollectCredentials(t *testing.T) {
	m := newTestManager(
		"INDEXCHECK_API_KEYS= a , b,,a",
		"SERPAPI_KEY_10=j",
		"SERPAPI_KEY_2=c",
		"SERPER_API_KEY=s",
		"NOT_A_KEY=z",
	)

	cfg := &Config{Credentials: []string{"b", " "}}
	cfg.Provider.Name = api.ProviderSerpAPI
	m.collectCredentials(cfg)
	assert.Equal(t, []string{"b", "a", "c", "j"}, cfg.Credentials, "the serper key stays out of a serpapi rotation")
	assert.Equal(t, api.ProviderSerpAPI, cfg.Provider.Name)

	cfg = &Config{Credentials: []string{"b"}}
	cfg.Provider.Name = api.ProviderSerper
	m.collectCredentials(cfg)
	assert.Equal(t, []string{"b", "a", "c", "j", "s"}, cfg.Credentials)
}

func TestCollectCredentials_SerperKeyAlone(t *testing.T) {
	m := newTestManager("SERPER_API_KEY= s ")
	t.Setenv("TELEGRAM_TOKEN", "bot-token")

	cfg, err := m.Load("")
	require.NoError(t, err)
	assert.Equal(t, api.ProviderSerper, cfg.Provider.Name)
	assert.Equal(t, []string{"s"}, cfg.Credentials)
}

func validConfig() *Config {
	return &Config{
		Server:      ServerConfig{Enabled: true, Port: 8080},
		Telegram:    TelegramConfig{Enabled: false, Mode: TelegramModePoll},
		Credentials: []string{"k"},
		Quota:       QuotaConfig{ZeroTTL: time.Minute},
		Batch:       BatchConfig{Delay: time.Second, MaxURLs: 10},
		Matching:    MatchingConfig{Policy: "exact"},
		Delivery:    DeliveryConfig{TextLimit: 20, FileFormat: "csv"},
		Provider: func() ProviderConfig {
			var p ProviderConfig
			p.Name = "serpapi"
			p.QueryMode = "url"
			return p
		}(),
	}
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validateConfig(validConfig()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no credentials", func(c *Config) { c.Credentials = nil }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown provider", func(c *Config) { c.Provider.Name = "bing" }},
		{"unknown query mode", func(c *Config) { c.Provider.QueryMode = "fuzzy" }},
		{"unknown policy", func(c *Config) { c.Matching.Policy = "prefix" }},
		{"unknown format", func(c *Config) { c.Delivery.FileFormat = "docx" }},
		{"negative delay", func(c *Config) { c.Batch.Delay = -time.Second }},
		{"negative ttl", func(c *Config) { c.Quota.ZeroTTL = -time.Second }},
		{"negative check timeout", func(c *Config) { c.Server.CheckTimeout = -time.Second }},
		{"zero max urls", func(c *Config) { c.Batch.MaxURLs = 0 }},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }},
		{"webhook without secret", func(c *Config) {
			c.Telegram.Enabled = true
			c.Telegram.Token = "t"
			c.Telegram.Mode = TelegramModeWebhook
		}},
		{"unknown telegram mode", func(c *Config) {
			c.Telegram.Enabled = true
			c.Telegram.Token = "t"
			c.Telegram.Mode = "push"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}

	cfg := validConfig()
	cfg.Server.Enabled = false
	cfg.Server.Port = 0
	assert.NoError(t, validateConfig(cfg), "port is ignored when the server is off")
}

func TestOverrides(t *testing.T) {
	m := NewManager(
		WithOverride("telegram.enabled", false),
		WithOverride("batch.delay", "3s"),
	).(*manager)
	m.environ = func() []string { return []string{"INDEXCHECK_API_KEYS=k"} }

	cfg, err := m.Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Batch.Delay)
}
