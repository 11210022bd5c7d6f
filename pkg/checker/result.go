package checker

import (
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of one lookup. The zero value is StatusUnknown.
type Status int

const (
	StatusUnknown Status = iota
	StatusIndexed
	StatusNotIndexed
)

func (s Status) String() string {
	switch s {
	case StatusIndexed:
		return "Indexed"
	case StatusNotIndexed:
		return "Not Indexed"
	default:
		return "Unknown"
	}
}

// Label is the metric and JSON form: indexed, not_indexed or unknown.
func (s Status) Label() string {
	switch s {
	case StatusIndexed:
		return "indexed"
	case StatusNotIndexed:
		return "not_indexed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.Label()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "indexed":
		*s = StatusIndexed
	case "not_indexed":
		*s = StatusNotIndexed
	case "unknown":
		*s = StatusUnknown
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// ReasonCancelled marks URLs a cancelled batch never looked up.
const ReasonCancelled = "cancelled"

// LookupResult is the outcome for one submitted URL. Reason is set only
// when Status is StatusUnknown; HTTPStatus is the provider's answer when
// one was received.
type LookupResult struct {
	URL        string    `json:"url"`
	Status     Status    `json:"status"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

func Indexed(url string, httpStatus int, at time.Time) LookupResult {
	return LookupResult{URL: url, Status: StatusIndexed, HTTPStatus: httpStatus, CheckedAt: at}
}

func NotIndexed(url string, httpStatus int, at time.Time) LookupResult {
	return LookupResult{URL: url, Status: StatusNotIndexed, HTTPStatus: httpStatus, CheckedAt: at}
}

// Unknown records a URL whose index status could not be determined.
func Unknown(url, reason string, httpStatus int, at time.Time) LookupResult {
	if reason == "" {
		reason = "unknown error"
	}
	return LookupResult{URL: url, Status: StatusUnknown, HTTPStatus: httpStatus, Reason: reason, CheckedAt: at}
}

// Display is the status column shown to users: "Indexed", "Not Indexed"
// or "Error - <reason>".
func (r LookupResult) Display() string {
	if r.Status == StatusUnknown {
		return "Error - " + r.Reason
	}
	return r.Status.String()
}

// Summary counts results by status.
type Summary struct {
	Total      int `json:"total"`
	Indexed    int `json:"indexed"`
	NotIndexed int `json:"not_indexed"`
	Unknown    int `json:"unknown"`
}

func Summarize(results []LookupResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusIndexed:
			s.Indexed++
		case StatusNotIndexed:
			s.NotIndexed++
		default:
			s.Unknown++
		}
	}
	return s
}
