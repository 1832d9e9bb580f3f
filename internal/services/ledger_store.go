package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/ledger"
	"cashbook/internal/models"
	"cashbook/internal/pagination"
)

// scopePartition restricts a query to the rows of one partition. It is the
// only code that knows how a partition maps onto columns: a book partition is
// every row carrying that book_id, a user partition is that user's rows
// without a book.
func scopePartition(p ledger.Partition) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if p.Kind == ledger.PartitionBook {
			return db.Where("transactions.book_id = ?", p.ID)
		}
		return db.Where("transactions.user_id = ? AND transactions.book_id IS NULL", p.ID)
	}
}

// activeOnly excludes soft-deleted rows.
func activeOnly(db *gorm.DB) *gorm.DB {
	return db.Where("transactions.is_deleted = ?", false)
}

func validateTransaction(t *models.Transaction) error {
	if t.Date.IsZero() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "date is required")
	}
	if !t.Amount.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if !ledger.WithinLimit(t.Amount) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must not exceed "+ledger.MaxAmount.StringFixed(2))
	}
	if !t.Type.Valid() {
		return apperrors.ErrInvalidTransactionType
	}
	return nil
}

// insertTransaction validates and stores a new row. The running balance is
// left NULL for the recomputation pass to fill in.
func insertTransaction(tx *gorm.DB, t *models.Transaction) error {
	t.Date = ledger.NormalizeDate(t.Date)
	t.Amount = t.Amount.Round(2)
	if err := validateTransaction(t); err != nil {
		return err
	}
	t.IsDeleted = false
	t.RunningBalance.Valid = false
	if err := tx.Create(t).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// findTransaction loads a row by id, including soft-deleted rows.
func findTransaction(db *gorm.DB, id uint) (*models.Transaction, error) {
	var t models.Transaction
	if err := db.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &t, nil
}

// applyPatch writes the non-nil fields of patch onto t and persists them.
func applyPatch(tx *gorm.DB, t *models.Transaction, patch TransactionPatch) error {
	if patch.Date != nil {
		t.Date = ledger.NormalizeDate(*patch.Date)
	}
	if patch.Amount != nil {
		t.Amount = patch.Amount.Round(2)
	}
	if patch.Type != nil {
		t.Type = *patch.Type
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		t.Category = strings.TrimSpace(*patch.Category)
	}
	if err := validateTransaction(t); err != nil {
		return err
	}

	updates := map[string]interface{}{
		"date":        t.Date,
		"amount":      t.Amount,
		"type":        t.Type,
		"description": t.Description,
		"category":    t.Category,
	}
	if err := tx.Model(t).Updates(updates).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// setDeleted flips the soft-delete flag. It reports whether anything changed,
// so a repeated delete or restore is a successful no-op.
func setDeleted(tx *gorm.DB, t *models.Transaction, deleted bool) (bool, error) {
	if t.IsDeleted == deleted {
		return false, nil
	}
	if err := tx.Model(t).Update("is_deleted", deleted).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	t.IsDeleted = deleted
	return true, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("transactions.date >= ?", ledger.NormalizeDate(*f.FromDate))
	}
	if f.ToDate != nil {
		q = q.Where("transactions.date <= ?", ledger.NormalizeDate(*f.ToDate))
	}
	if f.Type != nil {
		q = q.Where("transactions.type = ?", *f.Type)
	}
	if f.Category != nil {
		q = q.Where("transactions.category = ?", *f.Category)
	}
	if text := strings.TrimSpace(f.Query); text != "" {
		q = q.Where("LOWER(transactions.description) LIKE ?", "%"+strings.ToLower(text)+"%")
	}
	if f.MinAmount != nil {
		q = q.Where("transactions.amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("transactions.amount <= ?", *f.MaxAmount)
	}
	return q
}

// listByPartition returns one page of active rows, newest first. It never
// touches running balances.
func listByPartition(db *gorm.DB, p ledger.Partition, filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := db.Model(&models.Transaction{}).Scopes(scopePartition(p), activeOnly)
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Preload("User").
		Order("transactions.date DESC").Order("transactions.id DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}
