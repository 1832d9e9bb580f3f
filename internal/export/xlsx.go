package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Report"

// WriteXLSX writes the report as an Excel workbook with a title row, a
// header row, one row per transaction and a totals block.
func WriteXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return err
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"F5F7FB"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	moneyFormat := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFormat})
	if err != nil {
		return err
	}
	derivedFormat := `#,##0.00"` + DerivedMarker + `"`
	derivedStyle, err := f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Italic: true},
		CustomNumFmt: &derivedFormat,
	})
	if err != nil {
		return err
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return err
	}

	lastCol, _ := excelize.ColumnNumberToName(len(Columns))

	if err := f.SetCellValue(sheetName, "A1", r.Title); err != nil {
		return err
	}
	if err := f.MergeCell(sheetName, "A1", lastCol+"1"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "A1", titleStyle); err != nil {
		return err
	}

	for i, h := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheetName, "A2", lastCol+"2", headerStyle); err != nil {
		return err
	}

	row := 3
	for _, tx := range r.Rows {
		values := []interface{}{
			tx.ID,
			tx.Date.Format(DateLayout),
			tx.Amount.InexactFloat64(),
			tx.Balance.InexactFloat64(),
			tx.Description,
			typeLabel(tx.Type),
			tx.DoneBy,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
		if tx.AttachmentURL != "" {
			cell, _ := excelize.CoordinatesToCellName(len(Columns), row)
			if err := f.SetCellValue(sheetName, cell, "Link"); err != nil {
				return err
			}
			if err := f.SetCellHyperLink(sheetName, cell, tx.AttachmentURL, "External"); err != nil {
				return err
			}
		}
		row++
	}
	if len(r.Rows) > 0 {
		if err := f.SetCellStyle(sheetName, "C3", fmt.Sprintf("D%d", row-1), moneyStyle); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, "E3", fmt.Sprintf("E%d", row-1), wrapStyle); err != nil {
			return err
		}
		for i, tx := range r.Rows {
			if !tx.BalanceDerived {
				continue
			}
			cell := fmt.Sprintf("D%d", i+3)
			if err := f.SetCellStyle(sheetName, cell, cell, derivedStyle); err != nil {
				return err
			}
		}
	}

	row++
	totals := []struct {
		label string
		value float64
	}{
		{"Cash In", r.CashIn.InexactFloat64()},
		{"Cash Out", r.CashOut.InexactFloat64()},
		{"Balance", r.Balance().InexactFloat64()},
	}
	for _, t := range totals {
		if err := f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), t.label); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), t.value); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, fmt.Sprintf("C%d", row), fmt.Sprintf("C%d", row), moneyStyle); err != nil {
			return err
		}
		row++
	}
	if r.HasDerived() {
		if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", row+1), DerivedNote); err != nil {
			return err
		}
	}

	widths := []float64{8, 12, 14, 14, 48, 10, 18, 12}
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return err
		}
	}

	return f.Write(w)
}
