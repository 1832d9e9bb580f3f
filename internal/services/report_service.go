package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/ledger"
	"cashbook/internal/models"
)

// Limits applied to Recent.
const (
	DefaultRecentLimit = 5
	MaxRecentLimit     = 500
)

// reportService serves read-only views. Totals come from direct sums over
// amounts so they stay correct even when stored balances are stale.
type reportService struct {
	db    *gorm.DB
	books BookServicer
}

// NewReportService creates a new ReportServicer.
func NewReportService(db *gorm.DB, bookService BookServicer) ReportServicer {
	return &reportService{db: db, books: bookService}
}

// resolvePartition maps an optional book id onto the partition a caller may
// read or write: the book after an access check, or the actor's own.
func resolvePartition(books BookServicer, actor Actor, bookID *uint) (ledger.Partition, error) {
	if bookID == nil {
		return ledger.ForUser(actor.UserID), nil
	}
	if _, err := books.CheckAccess(actor, *bookID); err != nil {
		return ledger.Partition{}, err
	}
	return ledger.ForBook(*bookID), nil
}

func (s *reportService) scoped(actor Actor, filter TransactionFilter) (*gorm.DB, error) {
	p, err := resolvePartition(s.books, actor, filter.BookID)
	if err != nil {
		return nil, err
	}
	q := s.db.Model(&models.Transaction{}).Scopes(scopePartition(p), activeOnly)
	return applyTransactionFilters(q, filter), nil
}

// ClampRecentLimit bounds a requested recent-row count to [1, MaxRecentLimit].
// Zero means no limit was given and maps to DefaultRecentLimit.
func ClampRecentLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultRecentLimit
	case limit < 1:
		return 1
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	}
	return limit
}

type totalsRow struct {
	TotalIn  decimal.Decimal
	TotalOut decimal.Decimal
}

// Summarize returns cash in, cash out and their difference over active rows.
func (s *reportService) Summarize(actor Actor, filter TransactionFilter) (*Summary, error) {
	q, err := s.scoped(actor, filter)
	if err != nil {
		return nil, err
	}

	var row totalsRow
	if err := q.Select(
		"COALESCE(SUM(CASE WHEN transactions.type = ? THEN transactions.amount ELSE 0 END), 0) AS total_in, "+
			"COALESCE(SUM(CASE WHEN transactions.type = ? THEN transactions.amount ELSE 0 END), 0) AS total_out",
		models.TransactionTypeCashIn, models.TransactionTypeCashOut,
	).Scan(&row).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	in := row.TotalIn.Round(2)
	out := row.TotalOut.Round(2)
	return &Summary{TotalCashIn: in, TotalCashOut: out, Balance: in.Sub(out)}, nil
}

// Recent returns the newest active rows with their stored balances, which
// may be NULL if a row was never recomputed.
func (s *reportService) Recent(actor Actor, filter TransactionFilter, limit int) ([]models.Transaction, error) {
	q, err := s.scoped(actor, filter)
	if err != nil {
		return nil, err
	}

	var rows []models.Transaction
	if err := q.Preload("User").
		Order("transactions.date DESC").Order("transactions.id DESC").
		Limit(ClampRecentLimit(limit)).
		Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if rows == nil {
		rows = []models.Transaction{}
	}
	return rows, nil
}

// Detailed returns every matching row, newest first. Each row carries its
// stored balance; where that is NULL a cumulative sum over the filtered rows
// is substituted and the row is marked as derived. Derived values only
// reflect the filtered subset, not the whole partition.
func (s *reportService) Detailed(actor Actor, filter TransactionFilter) ([]DetailedRow, error) {
	q, err := s.scoped(actor, filter)
	if err != nil {
		return nil, err
	}

	var rows []models.Transaction
	if err := q.Preload("User").
		Order("transactions.date ASC").Order("transactions.id ASC").
		Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	entries := make([]ledger.Entry, len(rows))
	for i, r := range rows {
		entries[i] = ledger.Entry{ID: r.ID, Date: r.Date, Type: r.Type, Amount: r.Amount}
	}
	derived := ledger.RunningBalances(entries)

	out := make([]DetailedRow, len(rows))
	for i, r := range rows {
		row := DetailedRow{Transaction: r, Balance: derived[i], BalanceSource: BalanceSourceDerived}
		if r.RunningBalance.Valid {
			row.Balance = r.RunningBalance.Decimal.Round(2)
			row.BalanceSource = BalanceSourceStored
		}
		out[len(rows)-1-i] = row
	}
	return out, nil
}

type groupRow struct {
	GroupKey string
	CashIn   decimal.Decimal
	CashOut  decimal.Decimal
}

type dateGroupRow struct {
	GroupDate time.Time
	CashIn    decimal.Decimal
	CashOut   decimal.Decimal
}

const groupSums = "COALESCE(SUM(CASE WHEN transactions.type = ? THEN transactions.amount ELSE 0 END), 0) AS cash_in, " +
	"COALESCE(SUM(CASE WHEN transactions.type = ? THEN transactions.amount ELSE 0 END), 0) AS cash_out"

// GroupSummary totals cash in and out per category (largest cash in first)
// or per date (oldest first).
func (s *reportService) GroupSummary(actor Actor, filter TransactionFilter, groupBy string) ([]GroupTotal, error) {
	q, err := s.scoped(actor, filter)
	if err != nil {
		return nil, err
	}

	if groupBy == GroupByDate {
		var rows []dateGroupRow
		if err := q.Select("transactions.date AS group_date, "+groupSums,
			models.TransactionTypeCashIn, models.TransactionTypeCashOut).
			Group("transactions.date").
			Order("transactions.date ASC").
			Scan(&rows).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		out := make([]GroupTotal, len(rows))
		for i, r := range rows {
			out[i] = GroupTotal{Key: r.GroupDate.Format(ledger.DateFormat), CashIn: r.CashIn.Round(2), CashOut: r.CashOut.Round(2)}
		}
		return out, nil
	}

	var rows []groupRow
	if err := q.Select("transactions.category AS group_key, "+groupSums,
		models.TransactionTypeCashIn, models.TransactionTypeCashOut).
		Group("transactions.category").
		Order("cash_in DESC").Order("transactions.category ASC").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	out := make([]GroupTotal, len(rows))
	for i, r := range rows {
		out[i] = GroupTotal{Key: r.GroupKey, CashIn: r.CashIn.Round(2), CashOut: r.CashOut.Round(2)}
	}
	return out, nil
}

// Dashboard combines Summarize and Recent over the same scope.
func (s *reportService) Dashboard(actor Actor, filter TransactionFilter, limit int) (*Dashboard, error) {
	summary, err := s.Summarize(actor, filter)
	if err != nil {
		return nil, err
	}
	recent, err := s.Recent(actor, filter, limit)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Summary: *summary, Recent: recent}, nil
}

// ReportTitle names an export: "<book name> Report" for a book, otherwise
// "Transactions Report".
func (s *reportService) ReportTitle(actor Actor, filter TransactionFilter) (string, error) {
	if filter.BookID == nil {
		return "Transactions Report", nil
	}
	book, err := s.books.CheckAccess(actor, *filter.BookID)
	if err != nil {
		return "", err
	}
	return book.Name + " Report", nil
}
