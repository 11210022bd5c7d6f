package checker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"indexcheck-go/pkg/api"
	"indexcheck-go/pkg/logger"
	"indexcheck-go/pkg/metrics"
)

// CredentialSource hands out the credential for the next lookup.
// *api.KeyRotator implements it.
type CredentialSource interface {
	Next(ctx context.Context) (api.Credential, error)
}

// Checker looks up one URL. *IndexChecker implements it.
type Checker interface {
	Check(ctx context.Context, url string, cred api.Credential) LookupResult
}

// Pacer runs calls one at a time with a minimum spacing.
// *api.SequentialExecutor implements it.
type Pacer interface {
	Execute(ctx context.Context, fn func() error) error
}

// ProgressFunc is called after each URL with the count done so far.
type ProgressFunc func(done, total int, result LookupResult)

// Batch is one completed run.
type Batch struct {
	ID        string         `json:"id"`
	Results   []LookupResult `json:"results"`
	Summary   Summary        `json:"summary"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Cancelled bool           `json:"cancelled"`
}

type RunnerOption func(*BatchRunner)

func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *BatchRunner) { r.metrics = m }
}

// WithProgress registers an observer called after every URL.
func WithProgress(fn ProgressFunc) RunnerOption {
	return func(r *BatchRunner) { r.onProgress = fn }
}

// BatchRunner checks URLs strictly in order, one at a time. Several batches
// may run at once; they share the credential source and the pacer.
type BatchRunner struct {
	keys       CredentialSource
	checker    Checker
	pacer      Pacer
	metrics    *metrics.Metrics
	onProgress ProgressFunc
	now        func() time.Time
	log        *logger.Logger
}

func NewBatchRunner(keys CredentialSource, checker Checker, pacer Pacer, opts ...RunnerOption) *BatchRunner {
	r := &BatchRunner{
		keys:    keys,
		checker: checker,
		pacer:   pacer,
		now:     time.Now,
		log:     logger.GetLogger().WithField("component", "batch_runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run returns exactly one result per input URL, in input order. Duplicate
// URLs are looked up independently. A URL that gets no credential is
// recorded as Unknown and the batch moves on. When ctx is cancelled the
// remaining URLs are recorded as Unknown("cancelled").
func (r *BatchRunner) Run(ctx context.Context, urls []string) []LookupResult {
	return r.run(ctx, urls, r.onProgress)
}

// RunBatch is Run plus an ID, timings and a summary. progress, when not
// nil, is called instead of the runner-wide observer.
func (r *BatchRunner) RunBatch(ctx context.Context, urls []string, progress ProgressFunc) *Batch {
	if progress == nil {
		progress = r.onProgress
	}
	batch := &Batch{
		ID:        uuid.NewString(),
		StartedAt: r.now(),
	}
	batch.Results = r.run(ctx, urls, progress)
	batch.Duration = r.now().Sub(batch.StartedAt)
	batch.Summary = Summarize(batch.Results)
	batch.Cancelled = ctx.Err() != nil
	return batch
}

func (r *BatchRunner) run(ctx context.Context, urls []string, progress ProgressFunc) []LookupResult {
	results := make([]LookupResult, len(urls))
	if len(urls) == 0 {
		return results
	}

	start := r.now()
	r.metrics.BatchStarted()
	reporter := logger.NewProgressReporter(r.log, len(urls), "Checking URLs")

	outcome := "completed"
	for i, url := range urls {
		if ctx.Err() != nil {
			r.cancelRemaining(results, urls, i)
			outcome = "cancelled"
			break
		}

		var result LookupResult
		err := r.pacer.Execute(ctx, func() error {
			result = r.lookup(ctx, url)
			return nil
		})
		if err != nil {
			// Cancelled while waiting for the pacer.
			r.cancelRemaining(results, urls, i)
			outcome = "cancelled"
			break
		}

		results[i] = result
		reporter.Update()
		if progress != nil {
			progress(i+1, len(urls), result)
		}
	}

	elapsed := r.now().Sub(start)
	r.metrics.BatchFinished(outcome, elapsed)

	summary := Summarize(results)
	r.log.WithFields(map[string]interface{}{
		"total":       summary.Total,
		"indexed":     summary.Indexed,
		"not_indexed": summary.NotIndexed,
		"unknown":     summary.Unknown,
		"outcome":     outcome,
		"duration":    elapsed.Round(time.Millisecond).String(),
	}).Info("Batch finished")

	return results
}

func (r *BatchRunner) lookup(ctx context.Context, url string) LookupResult {
	started := r.now()

	cred, err := r.keys.Next(ctx)
	if err != nil {
		result := Unknown(url, FailureReason(err), 0, r.now())
		r.metrics.ObserveLookup(result.Status.Label(), r.now().Sub(started))
		return result
	}

	result := r.checker.Check(ctx, url, cred)
	r.metrics.ObserveLookup(result.Status.Label(), r.now().Sub(started))
	return result
}

func (r *BatchRunner) cancelRemaining(results []LookupResult, urls []string, from int) {
	now := r.now()
	for j := from; j < len(urls); j++ {
		results[j] = Unknown(urls[j], ReasonCancelled, 0, now)
	}
	r.log.WithFields(map[string]interface{}{
		"done":      from,
		"cancelled": len(urls) - from,
	}).Warn("Batch cancelled")
}
