package parser

import (
	"context"
	"errors"
	"io"
)

// ErrNoURLs is returned when an input holds no usable URL.
var ErrNoURLs = errors.New("input contains no valid URLs")

// ErrTooManyLines is returned when an input holds more URLs than the
// parser accepts. The list is never truncated.
var ErrTooManyLines = errors.New("input contains too many URLs")

// ListParser turns a newline-delimited URL list into the URLs to check,
// in input order.
type ListParser interface {
	Parse(ctx context.Context, r io.Reader) ([]string, error)
}
