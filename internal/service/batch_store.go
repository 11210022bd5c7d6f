package service

import (
	"context"
	"fmt"

	"indexcheck-go/pkg/checker"
	"indexcheck-go/pkg/storage"
)

type storageBatchStore struct {
	storage storage.Storage
}

// NewBatchStore keeps batches in any storage.Storage under "batch:<owner>".
func NewBatchStore(s storage.Storage) BatchStore {
	return &storageBatchStore{storage: s}
}

func (bs *storageBatchStore) SaveBatch(ctx context.Context, owner string, batch *checker.Batch) error {
	if err := bs.storage.Save(ctx, batchKey(owner), batch); err != nil {
		return fmt.Errorf("save batch for %s: %w", owner, err)
	}
	return nil
}

// LastBatch wraps storage.ErrNotFound when the owner has no batch yet.
func (bs *storageBatchStore) LastBatch(ctx context.Context, owner string) (*checker.Batch, error) {
	var batch checker.Batch
	if err := bs.storage.Load(ctx, batchKey(owner), &batch); err != nil {
		return nil, fmt.Errorf("load batch for %s: %w", owner, err)
	}
	return &batch, nil
}

func batchKey(owner string) string {
	return "batch:" + owner
}
