package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"indexcheck-go/pkg/api"
	"indexcheck-go/pkg/extractor"
	"indexcheck-go/pkg/logger"
)

const (
	QueryModeURL  = "url"
	QueryModeSite = "site"

	DefaultNumResults = 10
)

// Config tunes how a URL is turned into a search query.
type Config struct {
	// NumResults is how many organic results are requested.
	NumResults int `mapstructure:"num_results"`
	// QueryMode is "url" (the URL itself is the query) or "site" (site:<url>).
	QueryMode string `mapstructure:"query_mode"`
}

// IndexChecker decides whether a single URL appears in the search results
// for itself.
type IndexChecker struct {
	searcher api.Searcher
	matcher  extractor.Matcher
	num      int
	mode     string
	now      func() time.Time
	log      *logger.Logger
}

func NewIndexChecker(searcher api.Searcher, matcher extractor.Matcher, cfg Config) *IndexChecker {
	if matcher == nil {
		matcher = extractor.ExactMatcher{}
	}
	num := cfg.NumResults
	if num <= 0 {
		num = DefaultNumResults
	}
	mode := strings.ToLower(cfg.QueryMode)
	if mode != QueryModeSite {
		mode = QueryModeURL
	}

	return &IndexChecker{
		searcher: searcher,
		matcher:  matcher,
		num:      num,
		mode:     mode,
		now:      time.Now,
		log:      logger.GetLogger().WithField("component", "index_checker"),
	}
}

// Query builds the search query for url.
func (c *IndexChecker) Query(url string) string {
	if c.mode == QueryModeSite {
		return "site:" + extractor.BareTarget(url)
	}
	return strings.TrimSpace(url)
}

// Check never fails: search errors come back as an Unknown result carrying
// the reason and the provider status when there was one.
func (c *IndexChecker) Check(ctx context.Context, url string, cred api.Credential) LookupResult {
	resp, err := c.searcher.Search(ctx, cred, api.SearchRequest{Query: c.Query(url), Num: c.num})
	now := c.now()
	if err != nil {
		reason := FailureReason(err)
		c.log.WithFields(map[string]interface{}{
			"url":        logger.MaskURL(url),
			"credential": cred.String(),
			"reason":     reason,
		}).Warn("Index lookup failed")
		return Unknown(url, reason, api.StatusCodeOf(err), now)
	}

	if c.matcher.Matches(url, resp.Links()) {
		return Indexed(url, resp.StatusCode, now)
	}
	return NotIndexed(url, resp.StatusCode, now)
}

// FailureReason turns a lookup error into the short, credential-free text
// shown to users.
func FailureReason(err error) string {
	var (
		statusErr    *api.StatusError
		transportErr *api.TransportError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	case errors.Is(err, api.ErrQuotaExhausted):
		return api.ErrQuotaExhausted.Error()
	case errors.Is(err, api.ErrCircuitOpen):
		return "search provider temporarily unavailable"
	case errors.As(err, &statusErr):
		return fmt.Sprintf("search provider returned status %d", statusErr.StatusCode)
	case errors.As(err, &transportErr):
		return logger.MaskLogMessage(fmt.Sprintf("transport error: %v", transportErr.Err))
	default:
		return logger.MaskLogMessage(err.Error())
	}
}
