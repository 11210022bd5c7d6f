package service

import (
	"context"
	"errors"
	"fmt"

	"indexcheck-go/pkg/api"
	"indexcheck-go/pkg/checker"
	"indexcheck-go/pkg/parser"
)

// ErrTooManyURLs is returned by Validate when a list exceeds the batch cap.
var ErrTooManyURLs = errors.New("too many URLs in one batch")

// IndexService validates lists and hands them to the batch runner, which
// owns progress and summary logging.
type IndexService struct {
	runner  BatchRunner
	quota   QuotaReporter
	maxURLs int
}

// NewIndexService caps batches at maxURLs; zero or less means no cap.
func NewIndexService(runner BatchRunner, quota QuotaReporter, maxURLs int) *IndexService {
	return &IndexService{
		runner:  runner,
		quota:   quota,
		maxURLs: maxURLs,
	}
}

func (s *IndexService) Validate(urls []string) error {
	if len(urls) == 0 {
		return parser.ErrNoURLs
	}
	if s.maxURLs > 0 && len(urls) > s.maxURLs {
		return fmt.Errorf("%w: %d submitted, limit is %d", ErrTooManyURLs, len(urls), s.maxURLs)
	}
	return nil
}

// Check runs one batch. Lookup failures are part of the batch, so the only
// errors are validation errors.
func (s *IndexService) Check(ctx context.Context, urls []string, progress checker.ProgressFunc) (*checker.Batch, error) {
	if err := s.Validate(urls); err != nil {
		return nil, err
	}
	return s.runner.RunBatch(ctx, urls, progress), nil
}

func (s *IndexService) Quota(ctx context.Context) []api.CredentialQuota {
	return s.quota.Snapshot(ctx)
}
