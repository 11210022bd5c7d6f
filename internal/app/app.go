package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"indexcheck-go/internal/config"
	"indexcheck-go/internal/handler"
	"indexcheck-go/internal/server"
	"indexcheck-go/internal/service"
	"indexcheck-go/pkg/api"
	"indexcheck-go/pkg/checker"
	"indexcheck-go/pkg/extractor"
	"indexcheck-go/pkg/logger"
	"indexcheck-go/pkg/metrics"
	"indexcheck-go/pkg/storage"
	"indexcheck-go/pkg/telegram"
)

const shutdownTimeout = 10 * time.Second

// App holds every wired component. Telegram and Server are nil when
// disabled in config.
type App struct {
	Config   *config.Config
	Metrics  *metrics.Metrics
	Provider api.Provider
	Breaker  *api.BreakerSearcher
	Rotator  *api.KeyRotator
	Runner   *checker.BatchRunner
	Service  *service.IndexService
	Telegram *telegram.Client
	Bot      *handler.BotController
	Server   *server.Server

	conn       *api.ConnectionManager
	quotaCache *storage.MemoryCache
	log        *logger.Logger
}

// New wires the check pipeline: provider, breaker, key rotator, pacer and
// batch runner, then the bot and the HTTP server when enabled.
func New(cfg *config.Config) (*App, error) {
	a := &App{
		Config:  cfg,
		Metrics: metrics.New(),
		log:     logger.GetLogger().WithField("component", "app"),
	}

	a.conn = api.NewConnectionManager(cfg.Provider.Connection)
	provider, err := api.NewProvider(cfg.Provider.ProviderConfig, a.conn)
	if err != nil {
		a.conn.Close()
		return nil, err
	}
	a.Provider = provider
	a.Breaker = api.NewBreakerSearcher(provider, cfg.Provider.Breaker)

	opts := []api.RotatorOption{
		api.WithQuotaObserver(func(o api.QuotaOutcome) { a.Metrics.ObserveQuotaCheck(string(o)) }),
	}
	if cfg.Quota.ZeroTTL > 0 {
		a.quotaCache = storage.NewMemoryCacheWithTTL(cfg.Quota.CacheSize, cfg.Quota.ZeroTTL)
		opts = append(opts, api.WithZeroQuotaCache(a.quotaCache))
	}
	a.Rotator, err = api.NewKeyRotator(api.NewCredentials(cfg.Credentials), provider, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("key rotator: %w", err)
	}

	matcher, err := extractor.NewMatcher(cfg.Matching.Policy)
	if err != nil {
		a.Close()
		return nil, err
	}
	indexChecker := checker.NewIndexChecker(a.Breaker, matcher, cfg.Provider.Config)
	pacer := api.NewSequentialExecutor(cfg.Batch.Delay)
	a.Runner = checker.NewBatchRunner(a.Rotator, indexChecker, pacer, checker.WithMetrics(a.Metrics))
	a.Service = service.NewIndexService(a.Runner, a.Rotator, cfg.Batch.MaxURLs)

	var onUpdate telegram.UpdateHandler
	if cfg.Telegram.Enabled {
		a.Telegram, err = telegram.NewClient(cfg.Telegram.Config)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("telegram client: %w", err)
		}
		a.Bot = handler.NewBotController(a.Telegram, a.Service, service.NewBatchStore(storage.NewMemoryStorage()), handler.ControllerConfig{
			TextLimit:  cfg.Delivery.TextLimit,
			FileFormat: cfg.Delivery.FileFormat,
		})
		if cfg.Telegram.Mode == config.TelegramModeWebhook {
			onUpdate = a.Bot.HandleUpdate
		}
	}

	if cfg.Server.Enabled {
		a.Server = server.New(server.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			RequestTimeout: cfg.Server.CheckTimeout,
			APIToken:       cfg.Server.APIToken,
			WebhookSecret:  cfg.Telegram.WebhookSecret,
		}, a.Service, a.Metrics, onUpdate)
	}

	logger.GetSecurityLogger().SafeInfo("Application wired", map[string]interface{}{
		"provider":       provider.Name(),
		"credentials":    a.Rotator.Len(),
		"matching":       matcher.Name(),
		"batch_delay":    cfg.Batch.Delay.String(),
		"zero_quota_ttl": cfg.Quota.ZeroTTL.String(),
		"telegram":       cfg.Telegram.Enabled,
		"telegram_mode":  cfg.Telegram.Mode,
		"http_server":    cfg.Server.Enabled,
	})

	return a, nil
}

// Run starts the HTTP server and the bot, then blocks until ctx is done or
// one of them fails. Shutdown is graceful in both cases.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	if a.Server != nil {
		go func() {
			if err := a.Server.Listen(); err != nil {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	if a.Bot != nil {
		if err := a.startBot(ctx, errCh); err != nil {
			a.shutdown()
			return err
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("Shutdown signal received")
	case runErr = <-errCh:
		a.log.WithError(runErr).Error("Component stopped unexpectedly")
	}

	cancel()
	a.shutdown()
	return runErr
}

func (a *App) startBot(ctx context.Context, errCh chan<- error) error {
	me, err := a.Telegram.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("check telegram token: %w", err)
	}
	a.log.WithFields(map[string]interface{}{
		"bot":  me.Username,
		"mode": a.Config.Telegram.Mode,
	}).Info("Telegram bot authorized")

	switch a.Config.Telegram.Mode {
	case config.TelegramModeWebhook:
		hook := strings.TrimRight(a.Config.Telegram.WebhookURL, "/") + "/telegram/webhook/" + a.Config.Telegram.WebhookSecret
		if err := a.Telegram.SetWebhook(ctx, hook, a.Config.Telegram.WebhookSecret); err != nil {
			return fmt.Errorf("register webhook: %w", err)
		}
		a.log.WithField("webhook", logger.MaskURL(a.Config.Telegram.WebhookURL)).Info("Telegram webhook registered")
	default:
		if err := a.Telegram.DeleteWebhook(ctx); err != nil {
			a.log.WithField("error", logger.MaskLogMessage(err.Error())).Warn("Failed to clear Telegram webhook")
		}
		go func() {
			if err := a.Telegram.Poll(ctx, a.Bot.HandleUpdate); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("telegram poller: %w", err)
			}
		}()
	}
	return nil
}

func (a *App) shutdown() {
	if a.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.Server.Shutdown(ctx); err != nil {
			a.log.WithError(err).Warn("HTTP server shutdown error")
		}
		cancel()
	}
	if a.Bot != nil {
		a.Bot.Close()
	}
	a.Close()
	a.log.Info("Shutdown complete")
}

// Close releases connections and background goroutines. It is safe to call
// more than once.
func (a *App) Close() {
	if a.quotaCache != nil {
		a.quotaCache.Close()
		a.quotaCache = nil
	}
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
}
