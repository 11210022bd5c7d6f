package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"indexcheck-go/pkg/extractor"
	"indexcheck-go/pkg/logger"
)

const (
	defaultMaxLines = 5000
	defaultMaxBytes = 5 << 20
)

// TXTParser reads newline-delimited URL lists from chat messages, uploaded
// documents, request bodies and local files.
type TXTParser struct {
	filters  []extractor.Filter
	log      *logger.Logger
	maxLines int
	maxBytes int64
}

func NewTXTParser() *TXTParser {
	return &TXTParser{
		filters:  extractor.DefaultFilters(),
		log:      logger.GetLogger().WithField("component", "txt_parser"),
		maxLines: defaultMaxLines,
		maxBytes: defaultMaxBytes,
	}
}

// SetLimits caps the number of URLs accepted and the input size read. Zero
// leaves a limit unchanged.
func (p *TXTParser) SetLimits(maxLines int, maxBytes int64) {
	if maxLines > 0 {
		p.maxLines = maxLines
	}
	if maxBytes > 0 {
		p.maxBytes = maxBytes
	}
}

func (p *TXTParser) AddFilter(filter extractor.Filter) {
	p.filters = append(p.filters, filter)
}

// Parse decodes r, drops blank, comment and malformed lines, and returns the
// remaining URLs in order. Duplicates are kept. An input with nothing usable
// fails with ErrNoURLs, one with more than maxLines URLs with ErrTooManyLines.
func (p *TXTParser) Parse(ctx context.Context, r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading URL list: %w", err)
	}
	if int64(len(raw)) > p.maxBytes {
		return nil, fmt.Errorf("URL list exceeds %d bytes", p.maxBytes)
	}

	text, err := decodeText(raw)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0)
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), len(text)+1)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading URL list: %w", err)
	}

	urls := extractor.ApplyFilters(lines, p.filters)
	if dropped := countNonBlank(lines) - len(urls); dropped > 0 {
		p.log.WithField("dropped", dropped).Debug("Skipped comment or malformed lines")
	}

	if len(urls) > p.maxLines {
		return nil, fmt.Errorf("%w: %d URLs, limit is %d", ErrTooManyLines, len(urls), p.maxLines)
	}
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	return urls, nil
}

// ParseText is Parse over an in-memory string.
func (p *TXTParser) ParseText(ctx context.Context, text string) ([]string, error) {
	return p.Parse(ctx, strings.NewReader(text))
}

// ParseURLList parses r with the default limits and filters.
func ParseURLList(r io.Reader) ([]string, error) {
	return NewTXTParser().Parse(context.Background(), r)
}

// ParseURLText parses an in-memory list with the default limits and filters.
func ParseURLText(text string) ([]string, error) {
	return NewTXTParser().ParseText(context.Background(), text)
}

func countNonBlank(lines []string) int {
	n := 0
	for _, l := range lines {
		if l != "" {
			n++
		}
	}
	return n
}
