package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"indexcheck-go/pkg/checker"
)

// Format names an output form.
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
	FormatJSON Format = "json"
)

// Column headers shared by every tabular format.
const (
	HeaderURL    = "URL"
	HeaderStatus = "Status"
)

// Renderer turns a finished batch into bytes for delivery. The caller
// decides which renderer to use.
type Renderer interface {
	Format() Format
	ContentType() string
	Render(results []checker.LookupResult) ([]byte, error)
	Filename(base string) string
}

// ParseFormat accepts a format name or a file extension, case-insensitively.
// "txt" is read as text and "excel" as xlsx.
func ParseFormat(name string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".") {
	case "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "pdf":
		return FormatPDF, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", name)
	}
}

// FormatFromFilename picks the format from a file extension.
func FormatFromFilename(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// ForFormat returns the renderer for a format name.
func ForFormat(name string) (Renderer, error) {
	format, err := ParseFormat(name)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatText:
		return TextRenderer{}, nil
	case FormatCSV:
		return CSVRenderer{}, nil
	case FormatXLSX:
		return XLSXRenderer{}, nil
	case FormatPDF:
		return PDFRenderer{}, nil
	default:
		return JSONRenderer{}, nil
	}
}

func filename(base string, format Format) string {
	if base == "" {
		base = "index-results"
	}
	ext := string(format)
	if format == FormatText {
		ext = "txt"
	}
	return base + "." + ext
}
