package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"indexcheck-go/pkg/logger"
)

const (
	ProviderSerpAPI = "serpapi"
	ProviderSerper  = "serper"

	DefaultSerpAPIBaseURL = "https://serpapi.com"
	DefaultSerperBaseURL  = "https://google.serper.dev"
)

// ProviderConfig selects and tunes a search provider.
type ProviderConfig struct {
	Name       string           `mapstructure:"name"`
	BaseURL    string           `mapstructure:"base_url"`
	Engine     string           `mapstructure:"engine"`
	QuotaField string           `mapstructure:"quota_field"`
	MaxRetries int              `mapstructure:"max_retries"`
	RetryDelay time.Duration    `mapstructure:"retry_delay"`
	Connection ConnectionConfig `mapstructure:"connection"`
}

// NewProvider builds the configured provider client over conn.
func NewProvider(cfg ProviderConfig, conn *ConnectionManager) (Provider, error) {
	switch strings.ToLower(cfg.Name) {
	case "", ProviderSerpAPI:
		return NewSerpAPIClient(cfg, conn), nil
	case ProviderSerper:
		return NewSerperClient(cfg, conn), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Name)
	}
}

// DefaultQuotaField returns the account field holding remaining searches.
func DefaultQuotaField(provider string) string {
	if strings.ToLower(provider) == ProviderSerper {
		return "balance"
	}
	return "searches_left"
}

// serpAPIClient talks to serpapi.com: GET search.json and account.json, with
// the key in the api_key query parameter.
type serpAPIClient struct {
	baseURL    string
	engine     string
	quotaField string
	conn       *ConnectionManager
	retry      *SimpleRetry
	log        *logger.Logger
}

func NewSerpAPIClient(cfg ProviderConfig, conn *ConnectionManager) Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultSerpAPIBaseURL
	}
	engine := cfg.Engine
	if engine == "" {
		engine = "google"
	}
	quotaField := cfg.QuotaField
	if quotaField == "" {
		quotaField = DefaultQuotaField(ProviderSerpAPI)
	}
	if conn == nil {
		conn = NewConnectionManager(cfg.Connection)
	}

	return &serpAPIClient{
		baseURL:    baseURL,
		engine:     engine,
		quotaField: quotaField,
		conn:       conn,
		retry:      NewSimpleRetry(cfg.MaxRetries, retryDelayOrDefault(cfg.RetryDelay)),
		log:        logger.GetLogger().WithField("component", "serpapi_client"),
	}
}

func (c *serpAPIClient) Name() string { return ProviderSerpAPI }

func (c *serpAPIClient) Search(ctx context.Context, cred Credential, sr SearchRequest) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("engine", c.engine)
	params.Set("q", sr.Query)
	params.Set("api_key", cred.Key)
	if sr.Num > 0 {
		params.Set("num", strconv.Itoa(sr.Num))
	}
	fullURL := c.baseURL + "/search.json?" + params.Encode()

	var result *SearchResponse
	err := c.retry.Execute(ctx, func() error {
		status, body, err := c.get(ctx, "search", fullURL)
		if err != nil {
			return err
		}
		links, err := ParseSerpAPISearch(body)
		if err != nil {
			return err
		}
		result = &SearchResponse{Results: links, StatusCode: status}
		return nil
	})
	if err != nil {
		c.log.WithFields(map[string]interface{}{
			"credential": cred.String(),
			"error":      logger.MaskLogMessage(err.Error()),
		}).Warn("Search request failed")
		return nil, err
	}
	return result, nil
}

func (c *serpAPIClient) Quota(ctx context.Context, cred Credential) (int, error) {
	fullURL := c.baseURL + "/account.json?api_key=" + url.QueryEscape(cred.Key)

	_, body, err := c.get(ctx, "account", fullURL)
	if err != nil {
		return 0, &QuotaError{Credential: cred.String(), Err: err}
	}
	quota, err := ParseQuotaField(body, c.quotaField)
	if err != nil {
		return 0, &QuotaError{Credential: cred.String(), Err: err}
	}
	return quota, nil
}

func (c *serpAPIClient) get(ctx context.Context, op, fullURL string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fullURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	if err := c.conn.Do(ctx, op, req, resp); err != nil {
		return 0, nil, err
	}
	return readResponse(op, resp)
}

// readResponse copies the body out of a pooled response and turns non-2xx
// answers into *StatusError.
func readResponse(op string, resp *fasthttp.Response) (int, []byte, error) {
	status := resp.StatusCode()
	body := append([]byte(nil), resp.Body()...)
	if status < 200 || status >= 300 {
		return status, body, &StatusError{Op: op, StatusCode: status, Body: string(body)}
	}
	return status, body, nil
}

func retryDelayOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	return d
}
