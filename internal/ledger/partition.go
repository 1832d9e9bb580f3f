// Package ledger holds the pure parts of the running-balance engine:
// partition identity and the ordered balance walk. Nothing here touches the
// database.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cashbook/internal/models"
)

// PartitionKind names the scope a balance sequence belongs to.
type PartitionKind string

const (
	PartitionBook PartitionKind = "book"
	PartitionUser PartitionKind = "user"
)

// Partition identifies one independent running-balance sequence.
// It is comparable and safe to use as a map key.
type Partition struct {
	Kind PartitionKind
	ID   uint
}

// ForBook returns the partition of a book.
func ForBook(bookID uint) Partition { return Partition{Kind: PartitionBook, ID: bookID} }

// ForUser returns the personal partition of a user (entries without a book).
func ForUser(userID uint) Partition { return Partition{Kind: PartitionUser, ID: userID} }

// Of returns the partition a transaction with the given keys belongs to.
func Of(bookID *uint, userID uint) Partition {
	if bookID != nil {
		return ForBook(*bookID)
	}
	return ForUser(userID)
}

// OfTransaction returns the partition of t.
func OfTransaction(t *models.Transaction) Partition {
	return Of(t.BookID, t.UserID)
}

func (p Partition) String() string {
	return fmt.Sprintf("%s:%d", p.Kind, p.ID)
}

// MaxAmount is the largest magnitude a decimal(12,2) column holds. It bounds
// both entry amounts and running balances.
var MaxAmount = decimal.New(999999999999, -2)

// WithinLimit reports whether d fits in a stored amount or balance.
func WithinLimit(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(MaxAmount)
}

// Signed returns amount with the sign implied by typ.
func Signed(typ models.TransactionType, amount decimal.Decimal) decimal.Decimal {
	if typ == models.TransactionTypeCashOut {
		return amount.Neg()
	}
	return amount
}

// Entry is the minimal view of a transaction the balance walk needs.
type Entry struct {
	ID     uint
	Date   time.Time
	Type   models.TransactionType
	Amount decimal.Decimal
}

// Less orders entries by (date, id) ascending.
func Less(a, b Entry) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.ID < b.ID
}

// SortEntries sorts entries in place into balance order.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return Less(entries[i], entries[j]) })
}

// RunningBalances walks entries, which must already be in balance order, and
// returns the cumulative signed sum after each one, rounded to 2 places.
func RunningBalances(entries []Entry) []decimal.Decimal {
	out := make([]decimal.Decimal, len(entries))
	acc := decimal.Zero
	for i, e := range entries {
		acc = acc.Add(Signed(e.Type, e.Amount))
		out[i] = acc.Round(2)
	}
	return out
}

// NormalizeDate truncates t to midnight UTC of its calendar day in t's own
// location, which is how transaction dates are stored.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateFormat is the wire format for transaction dates.
const DateFormat = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date, or an RFC 3339 timestamp whose calendar
// day is taken as-is.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateFormat, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return NormalizeDate(t), nil
}
