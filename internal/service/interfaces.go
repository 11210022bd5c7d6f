package service

import (
	"context"

	"indexcheck-go/pkg/api"
	"indexcheck-go/pkg/checker"
)

// CheckService runs index lookups for the bot, the HTTP API and the CLI.
type CheckService interface {
	// Validate reports whether a URL list may be submitted as one batch.
	Validate(urls []string) error
	Check(ctx context.Context, urls []string, progress checker.ProgressFunc) (*checker.Batch, error)
	Quota(ctx context.Context) []api.CredentialQuota
}

// BatchStore keeps the most recent batch per owner, in memory only.
type BatchStore interface {
	SaveBatch(ctx context.Context, owner string, batch *checker.Batch) error
	LastBatch(ctx context.Context, owner string) (*checker.Batch, error)
}

// QuotaReporter is the part of the key rotator the services depend on.
// *api.KeyRotator implements it.
type QuotaReporter interface {
	Snapshot(ctx context.Context) []api.CredentialQuota
}

// BatchRunner is implemented by *checker.BatchRunner.
type BatchRunner interface {
	RunBatch(ctx context.Context, urls []string, progress checker.ProgressFunc) *checker.Batch
}
