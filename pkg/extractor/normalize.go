package extractor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// Normalize reduces a URL to the form used for comparison: no scheme, no
// query string or fragment, no leading "www.", no trailing slashes, lower
// case. Internationalized hosts are converted to their ASCII form so
// "bücher.de" and "xn--bcher-kva.de" compare equal.
//
// Normalize is idempotent. Inputs that are not URLs are still reduced
// deterministically; validation belongs to the parser.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)

	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	for {
		stripped := strings.TrimPrefix(StripScheme(s), "//")
		if stripped == s {
			break
		}
		s = stripped
	}

	host, path := s, ""
	if i := strings.IndexByte(s, '/'); i >= 0 {
		host, path = s[:i], s[i:]
	}

	host = normalizeHost(host)
	path = strings.ToLower(strings.TrimRightFunc(path, func(r rune) bool {
		return r == '/' || unicode.IsSpace(r)
	}))

	return host + path
}

// StripScheme removes a leading "scheme://" when one is present.
func StripScheme(s string) string {
	i := strings.Index(s, "://")
	if i <= 0 || !isScheme(s[:i]) {
		return s
	}
	return s[i+3:]
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if i := strings.LastIndexByte(host, '@'); i >= 0 {
		host = host[i+1:]
	}
	if !isASCII(host) {
		if ascii, err := idna.Lookup.ToASCII(host); err == nil {
			host = ascii
		}
	}
	host = strings.TrimRight(strings.ToLower(host), ".")

	for strings.HasPrefix(host, "www.") {
		host = host[len("www."):]
	}
	return host
}

func isScheme(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
