package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin    = 10.0
	pdfRowHeight = 6.0
	pdfFooterGap = 20.0
)

// column widths in millimetres on landscape A4 (277mm usable)
var pdfWidths = []float64{14, 24, 30, 30, 95, 22, 36, 26}

// WritePDF writes the report as a landscape A4 table. The header row is
// repeated on every page and the totals are printed after the last row.
func WritePDF(w io.Writer, r Report) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetTitle(r.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	_, pageHeight := pdf.GetPageSize()

	title := r.Title
	if title == "" {
		title = "Report"
	}

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(245, 247, 251)
		for i, col := range Columns {
			pdf.CellFormat(pdfWidths[i], pdfRowHeight+1, col, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(2)
	header()

	for _, row := range r.Rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-pdfMargin {
			pdf.AddPage()
			header()
		}
		cells := []string{
			fmt.Sprintf("%d", row.ID),
			row.Date.Format(DateLayout),
			FormatAmount(row.Amount),
			balanceText(row, FormatAmount),
			fitText(pdf, tr(row.Description), pdfWidths[4]-2),
			typeLabel(row.Type),
			fitText(pdf, tr(row.DoneBy), pdfWidths[6]-2),
		}
		aligns := []string{"C", "C", "R", "R", "L", "C", "L"}
		for i, text := range cells {
			pdf.CellFormat(pdfWidths[i], pdfRowHeight, text, "1", 0, aligns[i], false, 0, "")
		}
		if row.AttachmentURL != "" {
			pdf.SetTextColor(37, 99, 235)
			pdf.CellFormat(pdfWidths[7], pdfRowHeight, "Link", "1", 0, "C", false, 0, row.AttachmentURL)
			pdf.SetTextColor(0, 0, 0)
		} else {
			pdf.CellFormat(pdfWidths[7], pdfRowHeight, "", "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if pdf.GetY()+pdfFooterGap > pageHeight-pdfMargin {
		pdf.AddPage()
	}
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	totals := []struct {
		label string
		value string
		r     int
		g     int
		b     int
	}{
		{"Cash In", FormatAmount(r.CashIn), 238, 242, 255},
		{"Cash Out", FormatAmount(r.CashOut), 254, 226, 226},
		{"Balance", FormatAmount(r.Balance()), 240, 253, 244},
	}
	for _, t := range totals {
		pdf.SetFillColor(t.r, t.g, t.b)
		pdf.CellFormat(60, 8, t.label+": "+t.value, "1", 0, "C", true, 0, "")
		pdf.CellFormat(5, 8, "", "", 0, "", false, 0, "")
	}
	pdf.Ln(-1)

	if r.HasDerived() {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, pdfRowHeight, DerivedNote, "", 1, "L", false, 0, "")
	}

	return pdf.Output(w)
}

// fitText truncates s with an ellipsis so it fits in width millimetres at
// the current font. s is already in the single-byte font encoding.
func fitText(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
