package api

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"

	"indexcheck-go/pkg/logger"
)

// ConnectionConfig holds settings for the shared fasthttp client.
type ConnectionConfig struct {
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	MaxIdleConnDuration time.Duration `mapstructure:"max_idle_conn_duration"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	UserAgent           string        `mapstructure:"user_agent"`
}

// DefaultConnectionConfig suits a handful of sequential provider calls.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxConnsPerHost:     16,
		MaxIdleConnDuration: 90 * time.Second,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        10 * time.Second,
		RequestTimeout:      30 * time.Second,
		UserAgent:           "indexcheck-go/1.0",
	}
}

// ConnectionManager owns the fasthttp client used by providers and the bot.
type ConnectionManager struct {
	config ConnectionConfig
	client *fasthttp.Client
	log    *logger.Logger
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	defaults := DefaultConnectionConfig()
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.MaxConnsPerHost <= 0 {
		config.MaxConnsPerHost = defaults.MaxConnsPerHost
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	client := &fasthttp.Client{
		Name:                     config.UserAgent,
		MaxConnsPerHost:          config.MaxConnsPerHost,
		MaxIdleConnDuration:      config.MaxIdleConnDuration,
		ReadTimeout:              config.ReadTimeout,
		WriteTimeout:             config.WriteTimeout,
		NoDefaultUserAgentHeader: false,
	}

	return &ConnectionManager{
		config: config,
		client: client,
		log:    logger.GetLogger().WithField("component", "connection_manager"),
	}
}

// Client returns the managed fasthttp client.
func (cm *ConnectionManager) Client() *fasthttp.Client {
	return cm.client
}

// Do executes req with a deadline taken from ctx, capped by RequestTimeout.
// fasthttp has no context support, so cancellation is only observed before
// the call and through the deadline.
func (cm *ConnectionManager) Do(ctx context.Context, op string, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(cm.config.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := cm.client.DoDeadline(req, resp, deadline); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TransportError{Op: op, Err: err}
	}
	return nil
}

// Close drops idle connections.
func (cm *ConnectionManager) Close() {
	cm.log.Debug("Closing idle provider connections")
	cm.client.CloseIdleConnections()
}
