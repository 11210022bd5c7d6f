package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load for a missing key.
var ErrNotFound = errors.New("key not found")

// Storage keeps JSON-serializable values for the lifetime of the process.
// Nothing is persisted between runs.
type Storage interface {
	Save(ctx context.Context, key string, data interface{}) error
	Load(ctx context.Context, key string, dest interface{}) error
}

type Cache interface {
	Set(key string, value interface{}) error
	Get(key string) (interface{}, bool)
}

var (
	_ Storage = (*MemoryStorage)(nil)
	_ Cache   = (*MemoryCache)(nil)
)
