package mail

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// RenderPDF lays text out on A4 pages with a core font. Characters outside
// the font's code page are replaced.
func RenderPDF(title, text string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.MultiCell(0, 6, tr(text), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
