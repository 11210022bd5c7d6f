package extractor

import (
	"strings"
	"testing"
)

func TestIsWebURL(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"https://example.com", true},
		{"http://example.com/path?q=1", true},
		{"example.com/page", true},
		{"http://localhost:8080/", true},
		{"ftp://example.com", false},
		{"mailto:someone@example.com", false},
		{"just text", false},
		{"https://", false},
		{"nodot", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsWebURL(tt.input); got != tt.expected {
			t.Errorf("IsWebURL(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestDefaultFilters(t *testing.T) {
	input := []string{
		"# comment",
		"https://example.com/",
		"",
		"not a url",
		"https://example.com/",
		"https://example.com/" + strings.Repeat("a", MaxURLLength),
		"example.org",
	}

	got := ApplyFilters(input, DefaultFilters())
	expected := []string{"https://example.com/", "https://example.com/", "example.org"}

	if len(got) != len(expected) {
		t.Fatalf("Expected %d URLs, got %d: %v", len(expected), len(got), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Position %d: expected %q, got %q", i, expected[i], got[i])
		}
	}
}
