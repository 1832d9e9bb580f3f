// Package export renders detailed ledger reports as CSV, XLSX and PDF.
package export

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the day-first layout used for the Date column.
const DateLayout = "02/01/2006"

// Columns is the header row shared by every format.
var Columns = []string{"ID", "Date", "Amount", "Balance", "Description", "Type", "Done By", "Attachment"}

// DerivedMarker follows a balance that was computed while building the report
// rather than read from the stored running balance. DerivedNote explains it.
const (
	DerivedMarker = "*"
	DerivedNote   = "* Balance derived from the rows in this report; no stored running balance yet."
)

// Row is one transaction line of a report.
type Row struct {
	ID             uint
	Date           time.Time
	Amount         decimal.Decimal
	Balance        decimal.Decimal
	BalanceDerived bool
	Description   string
	Type          string
	DoneBy        string
	AttachmentURL string
}

// Report is a titled list of rows with the totals shown in the footer.
type Report struct {
	Title   string
	Rows    []Row
	CashIn  decimal.Decimal
	CashOut decimal.Decimal
}

// HasDerived reports whether any row carries a derived balance.
func (r Report) HasDerived() bool {
	for _, row := range r.Rows {
		if row.BalanceDerived {
			return true
		}
	}
	return false
}

func balanceText(row Row, format func(decimal.Decimal) string) string {
	if row.BalanceDerived {
		return format(row.Balance) + DerivedMarker
	}
	return format(row.Balance)
}

func fixed2(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Balance is cash in minus cash out.
func (r Report) Balance() decimal.Decimal {
	return r.CashIn.Sub(r.CashOut)
}

// Filename returns a download name derived from the title, e.g.
// "household-report-20240301.csv".
func Filename(title, ext string, now time.Time) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	base := strings.TrimSuffix(b.String(), "-")
	if base == "" {
		base = "report"
	}
	return base + "-" + now.Format("20060102") + "." + ext
}

// FormatAmount renders d with two decimals and Indian digit grouping
// (12,34,567.89).
func FormatAmount(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var grouped string
	if len(intPart) <= 3 {
		grouped = intPart
	} else {
		head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(parts, ",") + "," + tail
	}

	if d.IsNegative() && !d.Round(2).IsZero() {
		return "-" + grouped + "." + frac
	}
	return grouped + "." + frac
}

func typeLabel(t string) string {
	switch t {
	case "CASH_IN":
		return "Cash In"
	case "CASH_OUT":
		return "Cash Out"
	}
	return t
}
