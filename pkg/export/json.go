package export

import (
	"encoding/json"

	"indexcheck-go/pkg/checker"
)

// JSONRenderer writes the results with a summary, the same document the HTTP
// API returns.
type JSONRenderer struct{}

type jsonDocument struct {
	Summary checker.Summary        `json:"summary"`
	Results []checker.LookupResult `json:"results"`
}

func (JSONRenderer) Format() Format      { return FormatJSON }
func (JSONRenderer) ContentType() string { return "application/json" }

func (JSONRenderer) Filename(base string) string { return filename(base, FormatJSON) }

func (JSONRenderer) Render(results []checker.LookupResult) ([]byte, error) {
	if results == nil {
		results = []checker.LookupResult{}
	}
	return json.MarshalIndent(jsonDocument{Summary: checker.Summarize(results), Results: results}, "", "  ")
}
