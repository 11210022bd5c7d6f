package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"

	"indexcheck-go/pkg/logger"
)

// serperClient talks to google.serper.dev: POST /search and GET /account,
// with the key in the X-API-KEY header.
type serperClient struct {
	baseURL    string
	quotaField string
	conn       *ConnectionManager
	retry      *SimpleRetry
	log        *logger.Logger
}

type serperSearchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

func NewSerperClient(cfg ProviderConfig, conn *ConnectionManager) Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultSerperBaseURL
	}
	quotaField := cfg.QuotaField
	if quotaField == "" {
		quotaField = DefaultQuotaField(ProviderSerper)
	}
	if conn == nil {
		conn = NewConnectionManager(cfg.Connection)
	}

	return &serperClient{
		baseURL:    baseURL,
		quotaField: quotaField,
		conn:       conn,
		retry:      NewSimpleRetry(cfg.MaxRetries, retryDelayOrDefault(cfg.RetryDelay)),
		log:        logger.GetLogger().WithField("component", "serper_client"),
	}
}

func (c *serperClient) Name() string { return ProviderSerper }

func (c *serperClient) Search(ctx context.Context, cred Credential, sr SearchRequest) (*SearchResponse, error) {
	payload, err := json.Marshal(serperSearchRequest{Q: sr.Query, Num: sr.Num})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	var result *SearchResponse
	err = c.retry.Execute(ctx, func() error {
		status, body, err := c.do(ctx, "search", fasthttp.MethodPost, "/search", cred, payload)
		if err != nil {
			return err
		}
		links, err := ParseSerperSearch(body)
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

func (c *serperClient) Quota(ctx context.Context, cred Credential) (int, error) {
	_, body, err := c.do(ctx, "account", fasthttp.MethodGet, "/account", cred, nil)
	if err != nil {
		return 0, &QuotaError{Credential: cred.String(), Err: err}
	}
	quota, err := ParseQuotaField(body, c.quotaField)
	if err != nil {
		return 0, &QuotaError{Credential: cred.String(), Err: err}
	}
	return quota, nil
}

func (c *serperClient) do(ctx context.Context, op, method, path string, cred Credential, payload []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("X-API-KEY", cred.Key)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	if err := c.conn.Do(ctx, op, req, resp); err != nil {
		return 0, nil, err
	}
	return readResponse(op, resp)
}
