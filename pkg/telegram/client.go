package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"indexcheck-go/pkg/api"
	"indexcheck-go/pkg/logger"
)

const (
	DefaultBaseURL     = "https://api.telegram.org"
	defaultPollTimeout = 30 * time.Second
	defaultRetryDelay  = 5 * time.Second
	defaultMaxFileSize = 5 << 20
)

// Config holds Bot API client settings.
type Config struct {
	Token       string        `mapstructure:"token"`
	BaseURL     string        `mapstructure:"base_url"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	MaxFileSize int64         `mapstructure:"max_file_size"`
}

// UpdateHandler processes one update. It runs on the polling goroutine.
type UpdateHandler func(ctx context.Context, update Update)

// Client is a minimal Bot API client on fasthttp.
type Client struct {
	token       string
	baseURL     string
	pollTimeout time.Duration
	retryDelay  time.Duration
	maxFileSize int64
	conn        *api.ConnectionManager
	log         *logger.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	maxFileSize := cfg.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}

	connCfg := api.DefaultConnectionConfig()
	connCfg.RequestTimeout = pollTimeout + 15*time.Second
	connCfg.ReadTimeout = connCfg.RequestTimeout

	return &Client{
		token:       cfg.Token,
		baseURL:     baseURL,
		pollTimeout: pollTimeout,
		retryDelay:  retryDelay,
		maxFileSize: maxFileSize,
		conn:        api.NewConnectionManager(connCfg),
		log:         logger.GetLogger().WithField("component", "telegram"),
	}, nil
}

// GetMe checks the token and returns the bot account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	payload := map[string]interface{}{
		"offset":          offset,
		"timeout":         int(c.pollTimeout.Seconds()),
		"allowed_updates": []string{"message"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// Poll delivers updates to handler until ctx is done. Failed polls are
// retried after the configured delay.
func (c *Client) Poll(ctx context.Context, handler UpdateHandler) error {
	var offset int64
	c.log.Info("Telegram long polling started")

	for {
		if err := ctx.Err(); err != nil {
			c.log.Info("Telegram long polling stopped")
			return err
		}

		updates, err := c.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.log.WithField("error", logger.MaskLogMessage(err.Error())).Warn("Telegram getUpdates failed")
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			handler(ctx, u)
		}
	}
}

// SendMessage sends text, split into as many messages as the length limit
// requires.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range SplitMessage(text, MaxMessageLength) {
		payload := map[string]interface{}{
			"chat_id":                  chatID,
			"text":                     chunk,
			"disable_web_page_preview": true,
		}
		if err := c.call(ctx, "sendMessage", payload, nil); err != nil {
			return err
		}
	}
	return nil
}

// SendDocument uploads data as a file named filename.
func (c *Client) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	return c.do(ctx, "sendDocument", mw.FormDataContentType(), body.Bytes(), nil)
}

// GetFile resolves a file ID to a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var f File
	if err := c.call(ctx, "getFile", map[string]string{"file_id": fileID}, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Download fetches an uploaded document's content, refusing files over the
// configured size limit.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	f, err := c.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.FilePath == "" {
		return nil, errors.New("telegram getFile returned no file path")
	}
	if f.FileSize > c.maxFileSize {
		return nil, fmt.Errorf("file is too large (%d bytes, limit %d)", f.FileSize, c.maxFileSize)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, f.FilePath))
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := c.conn.Do(ctx, "download", req, resp); err != nil {
		return nil, err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &api.StatusError{Op: "download", StatusCode: resp.StatusCode()}
	}
	if int64(len(resp.Body())) > c.maxFileSize {
		return nil, fmt.Errorf("file is too large (limit %d bytes)", c.maxFileSize)
	}
	return append([]byte(nil), resp.Body()...), nil
}

// SetWebhook registers url for push delivery. Telegram echoes secretToken
// in the X-Telegram-Bot-Api-Secret-Token header of every webhook call.
func (c *Client) SetWebhook(ctx context.Context, url, secretToken string) error {
	payload := map[string]interface{}{
		"url":             url,
		"allowed_updates": []string{"message"},
	}
	if secretToken != "" {
		payload["secret_token"] = secretToken
	}
	return c.call(ctx, "setWebhook", payload, nil)
}

// DeleteWebhook switches the bot back to getUpdates.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]bool{"drop_pending_updates": false}, nil)
}

// call posts payload as JSON to method and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body := []byte("{}")
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("marshal %s request: %w", method, err)
		}
	}
	return c.do(ctx, method, "application/json", body, out)
}

func (c *Client) do(ctx context.Context, method, contentType string, body []byte, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	req.SetBody(body)

	if err := c.conn.Do(ctx, method, req, resp); err != nil {
		return err
	}

	var result apiResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		if resp.StatusCode() != fasthttp.StatusOK {
			return &api.StatusError{Op: method, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
		}
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !result.OK {
		return &APIError{Method: method, Code: result.ErrorCode, Description: result.Description}
	}
	if out != nil && len(result.Result) > 0 {
		if err := json.Unmarshal(result.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
