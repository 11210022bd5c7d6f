package export

import (
	"strings"

	"indexcheck-go/pkg/checker"
)

// TextRenderer writes one "<url>: <status>" line per result. A single
// result renders as a single line with no trailing newline.
type TextRenderer struct{}

func (TextRenderer) Format() Format      { return FormatText }
func (TextRenderer) ContentType() string { return "text/plain; charset=utf-8" }

func (TextRenderer) Filename(base string) string { return filename(base, FormatText) }

func (TextRenderer) Render(results []checker.LookupResult) ([]byte, error) {
	return []byte(TextLines(results)), nil
}

// TextLines is the chat form of a batch.
func TextLines(results []checker.LookupResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(r.URL)
		b.WriteString(": ")
		b.WriteString(r.Display())
	}
	return b.String()
}
