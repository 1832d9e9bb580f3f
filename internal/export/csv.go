package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes the report as UTF-8 CSV with a byte order mark so that
// spreadsheet applications pick the right encoding. Attachments become
// HYPERLINK formulas.
func WriteCSV(w io.Writer, r Report) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if r.Title != "" {
		if err := writer.Write([]string{r.Title}); err != nil {
			return err
		}
	}
	if err := writer.Write(Columns); err != nil {
		return err
	}

	for _, row := range r.Rows {
		attachment := ""
		if row.AttachmentURL != "" {
			attachment = fmt.Sprintf(`=HYPERLINK("%s","Link")`, strings.ReplaceAll(row.AttachmentURL, `"`, `""`))
		}
		record := []string{
			fmt.Sprintf("%d", row.ID),
			row.Date.Format(DateLayout),
			row.Amount.StringFixed(2),
			balanceText(row, fixed2),
			row.Description,
			typeLabel(row.Type),
			row.DoneBy,
			attachment,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	footer := [][]string{
		{},
		{"Cash In", r.CashIn.StringFixed(2)},
		{"Cash Out", r.CashOut.StringFixed(2)},
		{"Balance", r.Balance().StringFixed(2)},
	}
	if r.HasDerived() {
		footer = append(footer, []string{DerivedNote})
	}
	if err := writer.WriteAll(footer); err != nil {
		return err
	}
	return writer.Error()
}
