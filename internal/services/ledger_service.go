package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/ledger"
	"cashbook/internal/logger"
	"cashbook/internal/models"
)

// ledgerService recomputes running balances. All writes happen on the
// caller's transaction handle so they commit or roll back with the mutation
// that triggered them.
type ledgerService struct {
	db *gorm.DB
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB) LedgerServicer {
	return &ledgerService{db: db}
}

// LockPartition takes a row lock on the partition's owner (the book or the
// user) so concurrent mutations of the same partition serialize. Drivers
// without row locks (sqlite) drop the clause and rely on their writer lock.
func (s *ledgerService) LockPartition(tx *gorm.DB, p ledger.Partition) error {
	var err error
	switch p.Kind {
	case ledger.PartitionBook:
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&models.Book{}, p.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrBookNotFound
		}
	default:
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&models.User{}, p.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// RecomputePartition rebuilds the running balance of every active row in p
// in (date, id) order and returns how many rows were rewritten. Rows whose
// stored balance is already correct are not touched.
func (s *ledgerService) RecomputePartition(tx *gorm.DB, p ledger.Partition) (int, error) {
	var rows []models.Transaction
	if err := tx.Model(&models.Transaction{}).
		Scopes(scopePartition(p), activeOnly).
		Select("id", "date", "type", "amount", "running_balance").
		Order("transactions.date ASC").Order("transactions.id ASC").
		Find(&rows).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrRecomputationFailed, err)
	}

	entries := make([]ledger.Entry, len(rows))
	for i, row := range rows {
		entries[i] = ledger.Entry{ID: row.ID, Date: row.Date, Type: row.Type, Amount: row.Amount}
	}
	// SQLite compares dates as text, so rows written in another layout can
	// come back out of order. The walk order is settled on parsed values.
	ledger.SortEntries(entries)
	balances := ledger.RunningBalances(entries)
	balanceByID := make(map[uint]decimal.Decimal, len(entries))
	for i, e := range entries {
		if !ledger.WithinLimit(balances[i]) {
			return 0, apperrors.ErrBalanceOutOfRange
		}
		balanceByID[e.ID] = balances[i]
	}

	updated := 0
	for _, row := range rows {
		want := balanceByID[row.ID]
		if row.RunningBalance.Valid && row.RunningBalance.Decimal.Equal(want) {
			continue
		}
		if err := tx.Model(&models.Transaction{}).
			Where("id = ?", row.ID).
			UpdateColumn("running_balance", want).Error; err != nil {
			return updated, apperrors.Wrap(apperrors.ErrRecomputationFailed, err)
		}
		updated++
	}
	return updated, nil
}

// partitions lists every partition that has at least one row.
func (s *ledgerService) partitions(ctx context.Context) ([]ledger.Partition, error) {
	var bookIDs []uint
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("book_id IS NOT NULL").
		Distinct("book_id").Pluck("book_id", &bookIDs).Error; err != nil {
		return nil, err
	}

	var userIDs []uint
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("book_id IS NULL").
		Distinct("user_id").Pluck("user_id", &userIDs).Error; err != nil {
		return nil, err
	}

	out := make([]ledger.Partition, 0, len(bookIDs)+len(userIDs))
	for _, id := range bookIDs {
		out = append(out, ledger.ForBook(id))
	}
	for _, id := range userIDs {
		out = append(out, ledger.ForUser(id))
	}
	return out, nil
}

// ReconcileAll re-derives every partition, each in its own database
// transaction. A failing partition is logged and counted, and the pass
// continues with the next one.
func (s *ledgerService) ReconcileAll(ctx context.Context) (*ReconcileResult, error) {
	log := logger.Named("ledger")

	parts, err := s.partitions(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := &ReconcileResult{}
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var n int
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.LockPartition(tx, p); err != nil {
				return err
			}
			var recErr error
			n, recErr = s.RecomputePartition(tx, p)
			return recErr
		})
		result.Partitions++
		if err != nil {
			result.Failed++
			log.Errorw("partition reconcile failed", "partition", p.String(), "error", err)
			continue
		}
		result.RowsUpdated += n
		if n > 0 {
			log.Infow("partition reconciled", "partition", p.String(), "rows_updated", n)
		}
	}
	return result, nil
}
