package extractor

import (
	"net/url"
	"strings"
)

// MaxURLLength is the longest URL accepted by the default filter chain.
const MaxURLLength = 2048

// LengthFilter drops URLs longer than maxLength bytes.
type LengthFilter struct {
	maxLength int
	name      string
}

func NewLengthFilter(name string, maxLength int) *LengthFilter {
	return &LengthFilter{
		name:      name,
		maxLength: maxLength,
	}
}

func (f *LengthFilter) Apply(urls []string) []string {
	filtered := make([]string, 0, len(urls))
	for _, u := range urls {
		if len(u) <= f.maxLength {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

func (f *LengthFilter) Name() string {
	return f.name
}

// CommentFilter drops blank lines and lines starting with a comment prefix.
type CommentFilter struct {
	prefixes []string
	name     string
}

func NewCommentFilter(name string, prefixes ...string) *CommentFilter {
	return &CommentFilter{
		name:     name,
		prefixes: prefixes,
	}
}

func (f *CommentFilter) Apply(urls []string) []string {
	filtered := make([]string, 0, len(urls))
next:
	for _, u := range urls {
		if u == "" {
			continue
		}
		for _, p := range f.prefixes {
			if strings.HasPrefix(u, p) {
				continue next
			}
		}
		filtered = append(filtered, u)
	}
	return filtered
}

func (f *CommentFilter) Name() string {
	return f.name
}

// WebURLFilter keeps entries that parse as http(s) URLs with a host. A
// missing scheme is read as https, so "example.com/page" passes; the entry
// itself is kept as written.
type WebURLFilter struct {
	name string
}

func NewWebURLFilter(name string) *WebURLFilter {
	return &WebURLFilter{name: name}
}

func (f *WebURLFilter) Apply(urls []string) []string {
	filtered := make([]string, 0, len(urls))
	for _, u := range urls {
		if IsWebURL(u) {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

func (f *WebURLFilter) Name() string {
	return f.name
}

// IsWebURL reports whether s is an http(s) URL with a host, reading a
// scheme-less entry as https. URLs carrying credentials are rejected.
func IsWebURL(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	candidate := s
	if !strings.Contains(s, "://") {
		candidate = "https://" + s
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.User != nil {
		return false
	}
	host := u.Hostname()
	return host != "" && (strings.Contains(host, ".") || host == "localhost")
}

// DefaultFilters is the chain applied to every submitted URL list.
func DefaultFilters() []Filter {
	return []Filter{
		NewCommentFilter("comments", "#", "//"),
		NewLengthFilter("length", MaxURLLength),
		NewWebURLFilter("web_url"),
	}
}

// ApplyFilters runs urls through filters in order.
func ApplyFilters(urls []string, filters []Filter) []string {
	for _, f := range filters {
		urls = f.Apply(urls)
	}
	return urls
}
