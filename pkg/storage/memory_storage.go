package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStorage keeps values as JSON so callers never share mutable state
// with the store. The bot keeps each chat's last batch here for re-export.
type MemoryStorage struct {
	data map[string][]byte
	mu   sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		data: make(map[string][]byte),
	}
}

func (ms *MemoryStorage) Save(ctx context.Context, key string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	ms.mu.Lock()
	ms.data[key] = jsonData
	ms.mu.Unlock()
	return nil
}

// Load decodes the value stored under key into dest. A missing key returns
// an error matching ErrNotFound.
func (ms *MemoryStorage) Load(ctx context.Context, key string, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.RLock()
	jsonData, exists := ms.data[key]
	ms.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if err := json.Unmarshal(jsonData, dest); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}
