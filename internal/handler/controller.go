package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"indexcheck-go/internal/service"
	"indexcheck-go/pkg/checker"
	"indexcheck-go/pkg/export"
	"indexcheck-go/pkg/logger"
	"indexcheck-go/pkg/parser"
	"indexcheck-go/pkg/storage"
	"indexcheck-go/pkg/telegram"
)

// Messenger is the chat transport. *telegram.Client implements it.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
	Download(ctx context.Context, fileID string) ([]byte, error)
}

type ControllerConfig struct {
	// TextLimit is the largest batch answered inline; larger batches are
	// sent as a file in FileFormat.
	TextLimit   int
	FileFormat  string
	// SendTimeout bounds each reply once a batch has finished.
	SendTimeout time.Duration
}

// BotController turns chat updates into batches. Each chat may have one
// batch running; batches run in their own goroutine so the update loop is
// never blocked by lookups.
type BotController struct {
	messenger Messenger
	checks    service.CheckService
	batches   service.BatchStore
	config    ControllerConfig

	mu     sync.Mutex
	active map[int64]context.CancelFunc
	wg     sync.WaitGroup

	root   context.Context
	cancel context.CancelFunc
	log    *logger.Logger
}

func NewBotController(messenger Messenger, checks service.CheckService, batches service.BatchStore, config ControllerConfig) *BotController {
	if config.FileFormat == "" {
		config.FileFormat = string(export.FormatCSV)
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = time.Minute
	}
	root, cancel := context.WithCancel(context.Background())
	return &BotController{
		messenger: messenger,
		checks:    checks,
		batches:   batches,
		config:    config,
		active:    make(map[int64]context.CancelFunc),
		root:      root,
		cancel:    cancel,
		log:       logger.GetLogger().WithField("component", "bot_controller"),
	}
}

// HandleUpdate dispatches one update. It matches telegram.UpdateHandler.
func (c *BotController) HandleUpdate(ctx context.Context, update telegram.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	if cmd, args, ok := msg.Command(); ok {
		c.handleCommand(ctx, chatID, cmd, args)
		return
	}

	if msg.Document != nil {
		c.handleDocument(ctx, chatID, msg.Document)
		return
	}

	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	urls, err := parser.ParseURLText(msg.Text)
	if err != nil {
		c.reply(ctx, chatID, parseFailure(err, msgNoURLs))
		return
	}
	c.startBatch(ctx, chatID, urls)
}

// Close cancels running batches and waits for them to deliver.
func (c *BotController) Close() {
	c.cancel()
	c.wg.Wait()
}

// Wait blocks until no batch is running.
func (c *BotController) Wait() {
	c.wg.Wait()
}

func (c *BotController) handleCommand(ctx context.Context, chatID int64, cmd string, args []string) {
	switch cmd {
	case "/start", "/help":
		c.reply(ctx, chatID, helpText(c.config.TextLimit))
	case "/quota":
		c.reply(ctx, chatID, formatQuota(c.checks.Quota(ctx)))
	case "/export":
		format := c.config.FileFormat
		if len(args) > 0 {
			format = args[0]
		}
		c.handleExport(ctx, chatID, format)
	case "/cancel":
		if !c.running(chatID) {
			c.reply(ctx, chatID, msgNothingToCancel)
			return
		}
		c.reply(ctx, chatID, msgCancelling)
		c.cancelBatch(chatID)
	default:
		c.reply(ctx, chatID, msgUnknownCommand)
	}
}

func (c *BotController) handleDocument(ctx context.Context, chatID int64, doc *telegram.Document) {
	if !isTextDocument(doc) {
		c.reply(ctx, chatID, msgNotTextFile)
		return
	}

	data, err := c.messenger.Download(ctx, doc.FileID)
	if err != nil {
		c.log.WithError(err).WithField("chat_id", chatID).Warn("Failed to download document")
		c.reply(ctx, chatID, msgDownloadFailed)
		return
	}

	urls, err := parser.ParseURLList(bytes.NewReader(data))
	if err != nil {
		c.reply(ctx, chatID, parseFailure(err, msgFileNoURLs))
		return
	}
	c.startBatch(ctx, chatID, urls)
}

func (c *BotController) handleExport(ctx context.Context, chatID int64, format string) {
	renderer, err := export.ForFormat(format)
	if err != nil {
		c.reply(ctx, chatID, fmt.Sprintf("Unknown format %q. Use csv, xlsx, pdf or text.", format))
		return
	}

	batch, err := c.batches.LastBatch(ctx, chatKey(chatID))
	if errors.Is(err, storage.ErrNotFound) {
		c.reply(ctx, chatID, msgNothingToExport)
		return
	}
	if err != nil {
		c.log.WithError(err).WithField("chat_id", chatID).Error("Failed to load last batch")
		c.reply(ctx, chatID, msgInternalError)
		return
	}
	c.sendFile(ctx, chatID, renderer, batch)
}

func (c *BotController) startBatch(ctx context.Context, chatID int64, urls []string) {
	if err := c.checks.Validate(urls); err != nil {
		switch {
		case errors.Is(err, parser.ErrNoURLs):
			c.reply(ctx, chatID, msgNoURLs)
		case errors.Is(err, service.ErrTooManyURLs):
			c.reply(ctx, chatID, fmt.Sprintf("Too many URLs (%d). Please split the list into smaller batches.", len(urls)))
		default:
			c.reply(ctx, chatID, msgInternalError)
		}
		return
	}

	batchCtx, ok := c.acquire(chatID)
	if !ok {
		c.reply(ctx, chatID, msgBusy)
		return
	}

	c.reply(ctx, chatID, fmt.Sprintf("Checking %d URLs...", len(urls)))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.release(chatID)
		c.runBatch(batchCtx, chatID, urls)
	}()
}

func (c *BotController) runBatch(ctx context.Context, chatID int64, urls []string) {
	batch, err := c.checks.Check(ctx, urls, nil)

	// Replies go out even when the batch was cancelled.
	sendCtx, cancel := context.WithTimeout(context.Background(), c.config.SendTimeout)
	defer cancel()

	if err != nil {
		c.log.WithError(err).WithField("chat_id", chatID).Error("Batch failed")
		c.reply(sendCtx, chatID, msgInternalError)
		return
	}

	if err := c.batches.SaveBatch(sendCtx, chatKey(chatID), batch); err != nil {
		c.log.WithError(err).WithField("chat_id", chatID).Warn("Failed to keep batch for export")
	}

	if batch.Cancelled {
		c.reply(sendCtx, chatID, msgCancelled)
	}
	c.deliver(sendCtx, chatID, batch)
}

// deliver answers inline up to TextLimit results, otherwise as a file.
func (c *BotController) deliver(ctx context.Context, chatID int64, batch *checker.Batch) {
	if len(batch.Results) <= c.config.TextLimit {
		c.reply(ctx, chatID, export.TextLines(batch.Results))
		return
	}

	renderer, err := export.ForFormat(c.config.FileFormat)
	if err != nil {
		renderer = export.CSVRenderer{}
	}
	c.sendFile(ctx, chatID, renderer, batch)
}

func (c *BotController) sendFile(ctx context.Context, chatID int64, renderer export.Renderer, batch *checker.Batch) {
	data, err := renderer.Render(batch.Results)
	if err != nil {
		c.log.WithError(err).WithField("format", string(renderer.Format())).Error("Failed to render batch")
		c.reply(ctx, chatID, msgInternalError)
		return
	}

	if err := c.messenger.SendDocument(ctx, chatID, renderer.Filename(""), data, summaryLine(batch.Summary)); err != nil {
		c.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send document")
	}
}

func (c *BotController) reply(ctx context.Context, chatID int64, text string) {
	if err := c.messenger.SendMessage(ctx, chatID, text); err != nil {
		c.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

func (c *BotController) acquire(chatID int64) (context.Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.active[chatID]; busy {
		return nil, false
	}
	ctx, cancel := context.WithCancel(c.root)
	c.active[chatID] = cancel
	return ctx, true
}

func (c *BotController) release(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cancel, ok := c.active[chatID]; ok {
		cancel()
		delete(c.active, chatID)
	}
}

func (c *BotController) running(chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.active[chatID]
	return ok
}

func (c *BotController) cancelBatch(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cancel, ok := c.active[chatID]; ok {
		cancel()
	}
}

// parseFailure picks the reply for a list that could not be parsed; empty
// is used for inputs with no usable URL.
func parseFailure(err error, empty string) string {
	if errors.Is(err, parser.ErrTooManyLines) {
		return msgListTooLong
	}
	return empty
}

func chatKey(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}

func isTextDocument(doc *telegram.Document) bool {
	if strings.EqualFold(filepath.Ext(doc.FileName), ".txt") {
		return true
	}
	return strings.HasPrefix(doc.MIMEType, "text/plain")
}
