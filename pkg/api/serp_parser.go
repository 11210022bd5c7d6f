package api

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// serpAPISearchResponse is the subset of SerpAPI's search.json we read.
type serpAPISearchResponse struct {
	OrganicResults []SearchResult `json:"organic_results"`
	Error          string         `json:"error"`
}

// serperSearchResponse is the subset of Serper's /search response we read.
type serperSearchResponse struct {
	Organic []SearchResult `json:"organic"`
	Message string         `json:"message"`
}

// ParseSerpAPISearch extracts organic results from a SerpAPI search body.
// SerpAPI reports "no results" through the error field; that is an empty
// result set, not a failure.
func ParseSerpAPISearch(body []byte) ([]SearchResult, error) {
	var resp serpAPISearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if resp.Error != "" {
		if isNoResultsMessage(resp.Error) {
			return []SearchResult{}, nil
		}
		return nil, fmt.Errorf("search provider error: %s", resp.Error)
	}
	if resp.OrganicResults == nil {
		return []SearchResult{}, nil
	}
	return resp.OrganicResults, nil
}

// ParseSerperSearch extracts organic results from a Serper search body.
func ParseSerperSearch(body []byte) ([]SearchResult, error) {
	var resp serperSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if resp.Organic == nil && resp.Message != "" {
		return nil, fmt.Errorf("search provider error: %s", resp.Message)
	}
	if resp.Organic == nil {
		return []SearchResult{}, nil
	}
	return resp.Organic, nil
}

// ParseQuotaField reads a numeric field from an account-status body. field
// may be a dotted path such as "account.searches_left". Numeric strings are
// accepted; negative values clamp to zero.
func ParseQuotaField(body []byte, field string) (int, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("failed to decode account response: %w", err)
	}

	var current interface{} = doc
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return 0, fmt.Errorf("quota field %q not found", field)
		}
		current, ok = obj[part]
		if !ok {
			return 0, fmt.Errorf("quota field %q not found", field)
		}
	}

	var value float64
	switch v := current.(type) {
	case float64:
		value = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("quota field %q is not numeric: %q", field, v)
		}
		value = parsed
	default:
		return 0, fmt.Errorf("quota field %q has unexpected type %T", field, current)
	}

	switch {
	case math.IsNaN(value):
		return 0, fmt.Errorf("quota field %q is not numeric", field)
	case value < 0:
		return 0, nil
	case value >= math.MaxInt:
		return math.MaxInt, nil
	}
	return int(value), nil
}

func isNoResultsMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "hasn't returned any results") ||
		strings.Contains(lower, "no results")
}
