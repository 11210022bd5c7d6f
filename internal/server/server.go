package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"indexcheck-go/internal/service"
	"indexcheck-go/pkg/checker"
	"indexcheck-go/pkg/export"
	"indexcheck-go/pkg/logger"
	"indexcheck-go/pkg/metrics"
	"indexcheck-go/pkg/parser"
	"indexcheck-go/pkg/telegram"
)

const (
	bodyLimit           = 5 << 20
	webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// RequestTimeout caps how long POST /api/v1/check may spend on lookups.
	RequestTimeout time.Duration
	// APIToken, when set, is required as "Authorization: Bearer <token>"
	// on /api/v1 routes.
	APIToken       string
	// WebhookSecret enables POST /telegram/webhook/:secret.
	WebhookSecret  string
}

// Server is the HTTP surface: the check API, the Telegram webhook,
// Prometheus metrics and a health check.
type Server struct {
	app      *fiber.App
	config   Config
	checks   service.CheckService
	onUpdate telegram.UpdateHandler
	log      *logger.Logger

	stopping chan struct{}
	stopOnce sync.Once
}

// New builds the fiber app. onUpdate may be nil when the bot runs in
// polling mode; the webhook route is then not registered.
func New(config Config, checks service.CheckService, m *metrics.Metrics, onUpdate telegram.UpdateHandler) *Server {
	s := &Server{
		config:   config,
		checks:   checks,
		onUpdate: onUpdate,
		log:      logger.GetLogger().WithField("component", "http_server"),
		stopping: make(chan struct{}),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "indexcheck",
		DisableStartupMessage: true,
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		BodyLimit:             bodyLimit,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(s.logRequests)

	s.app.Get("/healthz", s.health)
	if m != nil {
		s.app.Get("/metrics", wrapHTTPHandler(fasthttpadaptor.NewFastHTTPHandler(m.Handler())))
	}

	v1 := s.app.Group("/api/v1", s.requireToken)
	v1.Post("/check", s.check)
	v1.Get("/quota", s.quota)

	if onUpdate != nil && config.WebhookSecret != "" {
		s.app.Post("/telegram/webhook/:secret", s.webhook)
	}

	return s
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Listen blocks until the server stops.
func (s *Server) Listen() error {
	s.log.WithField("addr", s.Addr()).Info("HTTP server listening")
	return s.app.Listen(s.Addr())
}

// Shutdown cancels running checks, then waits for open requests to finish
// or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopping) })
	return s.app.ShutdownWithContext(ctx)
}

type checkRequest struct {
	URLs   []string `json:"urls"`
	// Text is an alternative newline-separated list.
	Text   string   `json:"text"`
	Format string   `json:"format"`
}

type checkResponse struct {
	ID        string                 `json:"id"`
	Summary   checker.Summary        `json:"summary"`
	Results   []checker.LookupResult `json:"results"`
	Cancelled bool                   `json:"cancelled"`
	Duration  string                 `json:"duration"`
}

type quotaRow struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
	Quota int    `json:"quota"`
	Error string `json:"error,omitempty"`
}

type quotaResponse struct {
	Credentials []quotaRow `json:"credentials"`
	Total       int        `json:"total"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) check(c *fiber.Ctx) error {
	var req checkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	renderer, err := export.ForFormat(defaultFormat(req.Format))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	list := strings.Join(req.URLs, "\n")
	if req.Text != "" {
		list += "\n" + req.Text
	}
	urls, err := parser.ParseURLText(list)
	switch {
	case errors.Is(err, parser.ErrTooManyLines):
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, err.Error())
	case err != nil:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx, cancel := s.batchContext(c)
	defer cancel()

	batch, err := s.checks.Check(ctx, urls, nil)
	switch {
	case errors.Is(err, service.ErrTooManyURLs):
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, parser.ErrNoURLs):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}

	c.Set("X-Batch-ID", batch.ID)
	if renderer.Format() == export.FormatJSON {
		return c.JSON(checkResponse{
			ID:        batch.ID,
			Summary:   batch.Summary,
			Results:   batch.Results,
			Cancelled: batch.Cancelled,
			Duration:  batch.Duration.String(),
		})
	}

	data, err := renderer.Render(batch.Results)
	if err != nil {
		return fmt.Errorf("render %s: %w", renderer.Format(), err)
	}
	c.Attachment(renderer.Filename(""))
	c.Set(fiber.HeaderContentType, renderer.ContentType())
	return c.Send(data)
}

// batchContext bounds a synchronous check by RequestTimeout and by server
// shutdown. fasthttp does not report client disconnects, so an abandoned
// request keeps running until one of the two fires; the URLs left at that
// point are returned as cancelled.
func (s *Server) batchContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.config.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(c.UserContext(), s.config.RequestTimeout)
	} else {
		ctx, cancel = context.WithCancel(c.UserContext())
	}

	go func() {
		select {
		case <-s.stopping:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (s *Server) quota(c *fiber.Ctx) error {
	rows := s.checks.Quota(c.UserContext())
	resp := quotaResponse{Credentials: make([]quotaRow, 0, len(rows))}
	for _, row := range rows {
		r := quotaRow{Index: row.Credential.Index, Key: row.Credential.String(), Quota: row.Quota}
		if row.Err != nil {
			r.Error = logger.MaskLogMessage(row.Err.Error())
		} else {
			resp.Total += row.Quota
		}
		resp.Credentials = append(resp.Credentials, r)
	}
	return c.JSON(resp)
}

func (s *Server) webhook(c *fiber.Ctx) error {
	if !secretMatches(c.Params("secret"), s.config.WebhookSecret) {
		return fiber.ErrNotFound
	}
	if header := c.Get(webhookSecretHeader); header != "" && !secretMatches(header, s.config.WebhookSecret) {
		return fiber.ErrUnauthorized
	}

	update, err := telegram.ParseUpdate(c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid update")
	}

	// Batches outlive the request, so the update is not bound to its context.
	s.onUpdate(context.Background(), *update)
	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) requireToken(c *fiber.Ctx) error {
	if s.config.APIToken == "" {
		return c.Next()
	}
	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || !secretMatches(token, s.config.APIToken) {
		return fiber.ErrUnauthorized
	}
	return c.Next()
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	} else if err != nil {
		status = fiber.StatusInternalServerError
	}

	s.log.WithFields(map[string]interface{}{
		"method":     c.Method(),
		"path":       c.Route().Path,
		"status":     status,
		"latency_ms": time.Since(start).Milliseconds(),
		"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
	}).Info("request completed")
	return err
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		s.log.WithError(err).WithField("path", c.Path()).Error("Request failed")
	}

	return c.Status(code).JSON(errorResponse{
		Error:     message,
		RequestID: c.GetRespHeader(fiber.HeaderXRequestID),
	})
}

func wrapHTTPHandler(h fasthttp.RequestHandler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h(c.Context())
		return nil
	}
}

func secretMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func defaultFormat(format string) string {
	if strings.TrimSpace(format) == "" {
		return string(export.FormatJSON)
	}
	return format
}
