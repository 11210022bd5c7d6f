package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"indexcheck-go/pkg/checker"
)

const (
	pdfURLWidth    = 140.0
	pdfStatusWidth = 50.0
	pdfRowHeight   = 7.0
)

// PDFRenderer writes a one-table report with the same two columns as the
// spreadsheet, preceded by a summary line.
type PDFRenderer struct{}

func (PDFRenderer) Format() Format      { return FormatPDF }
func (PDFRenderer) ContentType() string { return "application/pdf" }

func (PDFRenderer) Filename(base string) string { return filename(base, FormatPDF) }

func (PDFRenderer) Render(results []checker.LookupResult) ([]byte, error) {
	p := gofpdf.New("P", "mm", "A4", "")
	tr := p.UnicodeTranslatorFromDescriptor("")
	p.AddPage()

	p.SetFont("Arial", "B", 14)
	p.Cell(40, 10, "Index check report")
	p.Ln(10)

	summary := checker.Summarize(results)
	p.SetFont("Arial", "", 10)
	p.Cell(40, 6, fmt.Sprintf("%s - %d URLs: %d indexed, %d not indexed, %d errors",
		time.Now().UTC().Format("2006-01-02 15:04 MST"),
		summary.Total, summary.Indexed, summary.NotIndexed, summary.Unknown))
	p.Ln(10)

	header := func() {
		p.SetFont("Arial", "B", 10)
		p.CellFormat(pdfURLWidth, pdfRowHeight, HeaderURL, "1", 0, "L", false, 0, "")
		p.CellFormat(pdfStatusWidth, pdfRowHeight, HeaderStatus, "1", 1, "L", false, 0, "")
		p.SetFont("Arial", "", 9)
	}
	header()

	_, pageHeight := p.GetPageSize()
	_, _, _, bottom := p.GetMargins()
	for _, r := range results {
		if p.GetY()+pdfRowHeight > pageHeight-bottom-10 {
			p.AddPage()
			header()
		}
		p.CellFormat(pdfURLWidth, pdfRowHeight, fit(p, tr(r.URL), pdfURLWidth-2), "1", 0, "L", false, 0, "")
		p.CellFormat(pdfStatusWidth, pdfRowHeight, fit(p, tr(r.Display()), pdfStatusWidth-2), "1", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// fit shortens s with a trailing "..." until it fits width.
func fit(p *gofpdf.Fpdf, s string, width float64) string {
	if p.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && p.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
