package extractor

import (
	"fmt"
	"strings"
)

const (
	PolicyExact = "exact"
	PolicyHost  = "host"
)

// NewMatcher returns the matcher for a policy name. An empty name selects
// the exact policy.
func NewMatcher(policy string) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", PolicyExact:
		return ExactMatcher{}, nil
	case PolicyHost:
		return HostMatcher{}, nil
	default:
		return nil, fmt.Errorf("unknown matching policy %q", policy)
	}
}

// ExactMatcher reports a match when the normalized target equals a
// normalized result link.
type ExactMatcher struct{}

func (ExactMatcher) Name() string { return PolicyExact }

func (ExactMatcher) Matches(target string, links []string) bool {
	want := Normalize(target)
	if want == "" {
		return false
	}
	for _, link := range links {
		if Normalize(link) == want {
			return true
		}
	}
	return false
}

// HostMatcher reports a match when a result link contains the bare target,
// that is the target without its http(s) scheme and trailing slash. It is
// looser than ExactMatcher: "example.com" matches every page on the site.
type HostMatcher struct{}

func (HostMatcher) Name() string { return PolicyHost }

func (HostMatcher) Matches(target string, links []string) bool {
	bare := BareTarget(target)
	if bare == "" {
		return false
	}
	for _, link := range links {
		if strings.Contains(strings.ToLower(link), bare) {
			return true
		}
	}
	return false
}

// BareTarget strips the scheme and one trailing slash and lower-cases the
// result.
func BareTarget(target string) string {
	s := StripScheme(strings.TrimSpace(target))
	return strings.ToLower(strings.TrimSuffix(s, "/"))
}
