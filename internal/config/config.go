package config

import (
	"time"

	"indexcheck-go/pkg/api"
	"indexcheck-go/pkg/checker"
	"indexcheck-go/pkg/logger"
	"indexcheck-go/pkg/telegram"
)

type Config struct {
	Server      ServerConfig   `mapstructure:"server"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
	Provider    ProviderConfig `mapstructure:"provider"`
	Credentials []string       `mapstructure:"credentials"`
	Quota       QuotaConfig    `mapstructure:"quota"`
	Batch       BatchConfig    `mapstructure:"batch"`
	Matching    MatchingConfig `mapstructure:"matching"`
	Delivery    DeliveryConfig `mapstructure:"delivery"`
	Logger      logger.Config  `mapstructure:"logger"`
}

type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// CheckTimeout caps the lookups of one synchronous API request.
	CheckTimeout time.Duration `mapstructure:"check_timeout"`
	// APIToken, when set, is required as a bearer token on /api/v1 routes.
	APIToken     string        `mapstructure:"api_token"`
}

type TelegramConfig struct {
	telegram.Config `mapstructure:",squash"`

	Enabled       bool   `mapstructure:"enabled"`
	// Mode is "poll" (getUpdates) or "webhook".
	Mode          string `mapstructure:"mode"`
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type ProviderConfig struct {
	api.ProviderConfig `mapstructure:",squash"`
	checker.Config     `mapstructure:",squash"`

	Breaker api.BreakerConfig `mapstructure:"breaker"`
}

type QuotaConfig struct {
	// ZeroTTL is how long a zero-quota answer is trusted. Zero re-checks
	// on every lookup.
	ZeroTTL   time.Duration `mapstructure:"zero_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
}

type BatchConfig struct {
	// Delay is the minimum spacing between consecutive lookups.
	Delay   time.Duration `mapstructure:"delay"`
	MaxURLs int           `mapstructure:"max_urls"`
}

type MatchingConfig struct {
	Policy string `mapstructure:"policy"`
}

type DeliveryConfig struct {
	// TextLimit is the largest batch answered as chat text; larger batches
	// are sent as a file.
	TextLimit  int    `mapstructure:"text_limit"`
	FileFormat string `mapstructure:"file_format"`
}

const (
	TelegramModePoll    = "poll"
	TelegramModeWebhook = "webhook"
)

type Manager interface {
	Load(configPath string) (*Config, error)
	GetConfig() *Config
}
