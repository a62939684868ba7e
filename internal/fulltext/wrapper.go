package fulltext

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// WrapAsPDF renders extractedText as a minimal single-column PDF, used when
// a caller of get_fulltext asks for a downloadable artifact but the chain
// only produced plain extracted text (no original PDF URL survived, e.g.
// a landing-page scrape that returned abstract text only).
func WrapAsPDF(title, extractedText string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 8, title, "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, extractedText, "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("fulltext: render wrapper pdf: %w", err)
	}
	return buf.Bytes(), nil
}
