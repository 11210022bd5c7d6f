package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"indexcheck-go/pkg/api"
	"indexcheck-go/pkg/checker"
	"indexcheck-go/pkg/export"
	"indexcheck-go/pkg/extractor"
)

const (
	EnvPrefix     = "INDEXCHECK"
	envAPIKeys    = "INDEXCHECK_API_KEYS"
	envSerpAPIKey = "SERPAPI_KEY_"
	envSerperKey  = "SERPER_API_KEY"
)

type manager struct {
	mu         sync.RWMutex
	config     *Config
	viper      *viper.Viper
	configPath string
	overrides  map[string]interface{}
	environ    func() []string
}

type ManagerOption func(*manager)

// WithOverride pins key to value above the file and the environment. The
// CLI uses it for flags and to switch off the bot and the server.
func WithOverride(key string, value interface{}) ManagerOption {
	return func(m *manager) { m.overrides[key] = value }
}

func NewManager(opts ...ManagerOption) Manager {
	m := &manager{
		overrides: make(map[string]interface{}),
		environ:   os.Environ,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads defaults, the optional config file and the environment. An
// empty configPath skips the file.
func (m *manager) Load(configPath string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configPath = configPath
	m.viper = viper.New()
	if err := m.setupViper(configPath); err != nil {
		return nil, fmt.Errorf("failed to setup viper: %w", err)
	}

	config, err := m.read()
	if err != nil {
		return nil, err
	}
	m.config = config
	return config, nil
}

func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *manager) read() (*Config, error) {
	if m.configPath != "" {
		if err := m.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	m.collectCredentials(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func (m *manager) setupViper(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file %s: %w", configPath, err)
		}
		m.viper.SetConfigFile(configPath)
	}

	m.viper.SetEnvPrefix(EnvPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()
	setDefaults(m.viper)
	for key, value := range m.overrides {
		m.viper.Set(key, value)
	}

	// TELEGRAM_TOKEN is accepted as well as INDEXCHECK_TELEGRAM_TOKEN.
	if err := m.viper.BindEnv("telegram.token", EnvPrefix+"_TELEGRAM_TOKEN", "TELEGRAM_TOKEN"); err != nil {
		return err
	}
	return nil
}

// setDefaults registers every key, which also lets AutomaticEnv find them
// during Unmarshal.
func setDefaults(v *viper.Viper) {
	conn := api.DefaultConnectionConfig()

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.check_timeout", 10*time.Minute)
	v.SetDefault("server.api_token", "")

	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.mode", TelegramModePoll)
	v.SetDefault("telegram.poll_timeout", 30*time.Second)
	v.SetDefault("telegram.retry_delay", 5*time.Second)
	v.SetDefault("telegram.max_file_size", 5<<20)
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.webhook_secret", "")

	v.SetDefault("provider.name", api.ProviderSerpAPI)
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.engine", "google")
	v.SetDefault("provider.quota_field", "")
	v.SetDefault("provider.max_retries", 2)
	v.SetDefault("provider.retry_delay", time.Second)
	v.SetDefault("provider.num_results", checker.DefaultNumResults)
	v.SetDefault("provider.query_mode", checker.QueryModeURL)
	v.SetDefault("provider.connection.max_conns_per_host", conn.MaxConnsPerHost)
	v.SetDefault("provider.connection.max_idle_conn_duration", conn.MaxIdleConnDuration)
	v.SetDefault("provider.connection.read_timeout", conn.ReadTimeout)
	v.SetDefault("provider.connection.write_timeout", conn.WriteTimeout)
	v.SetDefault("provider.connection.request_timeout", conn.RequestTimeout)
	v.SetDefault("provider.connection.user_agent", conn.UserAgent)
	v.SetDefault("provider.breaker.max_failures", 5)
	v.SetDefault("provider.breaker.timeout", 30*time.Second)
	v.SetDefault("provider.breaker.interval", time.Minute)

	v.SetDefault("credentials", []string{})

	v.SetDefault("quota.zero_ttl", 10*time.Minute)
	v.SetDefault("quota.cache_size", 256)

	v.SetDefault("batch.delay", time.Second)
	v.SetDefault("batch.max_urls", 500)

	v.SetDefault("matching.policy", extractor.PolicyExact)

	v.SetDefault("delivery.text_limit", 20)
	v.SetDefault("delivery.file_format", string(export.FormatCSV))

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.time_format", "")
}

// collectCredentials merges keys from the config file with
// INDEXCHECK_API_KEYS (comma separated), SERPAPI_KEY_1..N and
// SERPER_API_KEY, dropping blanks and repeats while keeping order.
// collectCredentials merges keys from the file, INDEXCHECK_API_KEYS and
// SERPAPI_KEY_<n> in numeric order. SERPER_API_KEY belongs to the serper
// provider: it is used when serper is selected, and selects serper when no
// other key is configured.
func (m *manager) collectCredentials(config *Config) {
	keys := append([]string(nil), config.Credentials...)

	var serperKey string
	numbered := map[int]string{}
	for _, kv := range m.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch {
		case name == envAPIKeys:
			keys = append(keys, strings.Split(value, ",")...)
		case name == envSerperKey:
			serperKey = strings.TrimSpace(value)
		case strings.HasPrefix(name, envSerpAPIKey):
			if n, err := strconv.Atoi(strings.TrimPrefix(name, envSerpAPIKey)); err == nil {
				numbered[n] = value
			}
		}
	}

	order := make([]int, 0, len(numbered))
	for n := range numbered {
		order = append(order, n)
	}
	sort.Ints(order)
	for _, n := range order {
		keys = append(keys, numbered[n])
	}
	keys = uniqueKeys(keys)

	if serperKey != "" {
		switch {
		case config.Provider.Name == api.ProviderSerper:
			keys = uniqueKeys(append(keys, serperKey))
		case len(keys) == 0:
			config.Provider.Name = api.ProviderSerper
			keys = []string{serperKey}
		}
	}
	config.Credentials = keys
}

// uniqueKeys trims keys and drops blanks and repeats, keeping first-seen order.
func uniqueKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func validateConfig(config *Config) error {
	if len(config.Credentials) == 0 {
		return fmt.Errorf("no API credentials: set %s, %s1..N or %s", envAPIKeys, envSerpAPIKey, envSerperKey)
	}

	if config.Server.Enabled && (config.Server.Port <= 0 || config.Server.Port > 65535) {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch strings.ToLower(config.Provider.Name) {
	case api.ProviderSerpAPI, api.ProviderSerper:
	default:
		return fmt.Errorf("unknown provider: %q", config.Provider.Name)
	}

	switch strings.ToLower(config.Provider.QueryMode) {
	case "", checker.QueryModeURL, checker.QueryModeSite:
	default:
		return fmt.Errorf("unknown query_mode: %q", config.Provider.QueryMode)
	}

	if _, err := extractor.NewMatcher(config.Matching.Policy); err != nil {
		return err
	}

	if _, err := export.ParseFormat(config.Delivery.FileFormat); err != nil {
		return fmt.Errorf("delivery.file_format: %w", err)
	}

	if config.Batch.Delay < 0 {
		return fmt.Errorf("batch.delay must not be negative")
	}
	if config.Server.CheckTimeout < 0 {
		return fmt.Errorf("server.check_timeout must not be negative")
	}
	if config.Quota.ZeroTTL < 0 {
		return fmt.Errorf("quota.zero_ttl must not be negative")
	}
	if config.Batch.MaxURLs <= 0 {
		return fmt.Errorf("batch.max_urls must be positive")
	}
	if config.Delivery.TextLimit < 0 {
		return fmt.Errorf("delivery.text_limit must not be negative")
	}

	if config.Telegram.Enabled {
		if config.Telegram.Token == "" {
			return fmt.Errorf("telegram is enabled but no bot token is set")
		}
		switch config.Telegram.Mode {
		case TelegramModePoll:
		case TelegramModeWebhook:
			if config.Telegram.WebhookSecret == "" {
				return fmt.Errorf("webhook mode requires telegram.webhook_secret")
			}
			if !config.Server.Enabled {
				return fmt.Errorf("webhook mode requires the HTTP server")
			}
		default:
			return fmt.Errorf("unknown telegram mode: %q", config.Telegram.Mode)
		}
	}

	return nil
}
