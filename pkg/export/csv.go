package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"indexcheck-go/pkg/checker"
)

// CSVRenderer writes a header row "URL,Status" followed by one row per
// result.
type CSVRenderer struct{}

func (CSVRenderer) Format() Format      { return FormatCSV }
func (CSVRenderer) ContentType() string { return "text/csv; charset=utf-8" }

func (CSVRenderer) Filename(base string) string { return filename(base, FormatCSV) }

func (CSVRenderer) Render(results []checker.LookupResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{HeaderURL, HeaderStatus}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range results {
		if err := w.Write([]string{r.URL, r.Display()}); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}
