package api

import (
	"context"

	"indexcheck-go/pkg/logger"
	"indexcheck-go/pkg/utils"
)

// Credential is one configured API key. Index is its position in the
// configured list and never changes.
type Credential struct {
	Key   string
	Index int
}

// NewCredentials wraps raw keys, dropping blanks.
func NewCredentials(keys []string) []Credential {
	creds := make([]Credential, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		creds = append(creds, Credential{Key: k, Index: len(creds)})
	}
	return creds
}

// Fingerprint identifies the credential without revealing it.
func (c Credential) Fingerprint() string {
	return utils.Fingerprint(c.Key)
}

// String returns the masked form, so credentials are safe in %v.
func (c Credential) String() string {
	return logger.MaskCredential(c.Key)
}

// SearchRequest is one organic search query.
type SearchRequest struct {
	Query string
	Num   int
}

// SearchResult is one organic result.
type SearchResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
}

// SearchResponse carries the organic results and the HTTP status of the call.
type SearchResponse struct {
	Results    []SearchResult
	StatusCode int
}

// Links returns the result links in rank order.
func (r *SearchResponse) Links() []string {
	if r == nil {
		return nil
	}
	links := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Link != "" {
			links = append(links, res.Link)
		}
	}
	return links
}

// Searcher runs organic search queries against a provider.
type Searcher interface {
	Search(ctx context.Context, cred Credential, req SearchRequest) (*SearchResponse, error)
}

// QuotaSource reports the remaining search quota of a credential. A failed
// check returns 0 together with a *QuotaError.
type QuotaSource interface {
	Quota(ctx context.Context, cred Credential) (int, error)
}

// Provider is a search API that can both search and report quota.
type Provider interface {
	Searcher
	QuotaSource
	Name() string
}
