package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/ledger"
	"cashbook/internal/logger"
	"cashbook/internal/models"
	"cashbook/internal/pagination"
)

// transactionService mutates transactions. Each mutation locks its
// partition, writes, and recomputes the partition inside one database
// transaction, so a failed recomputation also discards the write.
type transactionService struct {
	db     *gorm.DB
	books  BookServicer
	ledger LedgerServicer
	loc    *time.Location
	now    func() time.Time
}

// NewTransactionService creates a new TransactionServicer. loc is the zone
// in which "today" is evaluated for the future-date check.
func NewTransactionService(db *gorm.DB, bookService BookServicer, ledgerService LedgerServicer, loc *time.Location) TransactionServicer {
	if loc == nil {
		loc = time.UTC
	}
	return &transactionService{
		db:     db,
		books:  bookService,
		ledger: ledgerService,
		loc:    loc,
		now:    time.Now,
	}
}

// today returns the current calendar day in the display zone, as stored dates are.
func (s *transactionService) today() time.Time {
	return ledger.NormalizeDate(s.now().In(s.loc))
}

func (s *transactionService) checkNotFuture(date time.Time) error {
	if ledger.NormalizeDate(date).After(s.today()) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "date cannot be in the future")
	}
	return nil
}

// authorize allows the creator of a transaction or an ADMIN.
func authorize(actor Actor, t *models.Transaction) error {
	if t.UserID != actor.UserID && !actor.IsAdmin() {
		return apperrors.ErrForbidden
	}
	return nil
}

// recompute runs the partition rebuild and makes sure any failure surfaces
// as RECOMPUTATION_FAILED.
func (s *transactionService) recompute(tx *gorm.DB, p ledger.Partition) error {
	if _, err := s.ledger.RecomputePartition(tx, p); err != nil {
		logger.Named("ledger").Errorw("recomputation failed, rolling back", "partition", p.String(), "error", err)
		if errors.Is(err, apperrors.ErrRecomputationFailed) || errors.Is(err, apperrors.ErrBalanceOutOfRange) {
			return err
		}
		return apperrors.Wrap(apperrors.ErrRecomputationFailed, err)
	}
	return nil
}

func (s *transactionService) reload(id uint) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.db.Preload("User").First(&t, id).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &t, nil
}

// partitionFor resolves the partition a read or create targets, checking
// book access when a book is named.
func (s *transactionService) partitionFor(actor Actor, bookID *uint) (ledger.Partition, error) {
	return resolvePartition(s.books, actor, bookID)
}

// CreateTransaction records a new entry and returns it with its running balance.
func (s *transactionService) CreateTransaction(actor Actor, input TransactionInput) (*models.Transaction, error) {
	t := &models.Transaction{
		UserID:      actor.UserID,
		BookID:      input.BookID,
		Date:        input.Date,
		Amount:      input.Amount,
		Type:        input.Type,
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
	}
	if err := validateTransaction(t); err != nil {
		return nil, err
	}
	if err := s.checkNotFuture(t.Date); err != nil {
		return nil, err
	}

	p, err := s.partitionFor(actor, input.BookID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.LockPartition(tx, p); err != nil {
			return err
		}
		if err := insertTransaction(tx, t); err != nil {
			return err
		}
		return s.recompute(tx, p)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(t.ID)
}

// GetTransaction returns an active transaction visible to the actor: its
// creator, an ADMIN, or anyone with access to its book.
func (s *transactionService) GetTransaction(actor Actor, id uint) (*models.Transaction, error) {
	t, err := findTransaction(s.db.Preload("User"), id)
	if err != nil {
		return nil, err
	}
	if t.IsDeleted {
		return nil, apperrors.ErrTransactionNotFound
	}
	if t.UserID == actor.UserID || actor.IsAdmin() {
		return t, nil
	}
	if t.BookID != nil {
		if _, err := s.books.CheckAccess(actor, *t.BookID); err == nil {
			return t, nil
		}
	}
	return nil, apperrors.ErrForbidden
}

// ListTransactions returns one page of a partition, newest first.
func (s *transactionService) ListTransactions(actor Actor, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	p, err := s.partitionFor(actor, filter.BookID)
	if err != nil {
		return nil, err
	}
	return listByPartition(s.db, p, filter, page)
}

// ListUserTransactions returns every active transaction a user created,
// across all partitions. Intended for administrators.
func (s *transactionService) ListUserTransactions(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID).Scopes(activeOnly)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Preload("User").
		Order("date DESC").Order("id DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// loadForMutation fetches a transaction (deleted or not) and checks the
// actor may change it.
func (s *transactionService) loadForMutation(actor Actor, id uint) (*models.Transaction, error) {
	t, err := findTransaction(s.db, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTransaction applies a partial update. The partition never changes.
func (s *transactionService) UpdateTransaction(actor Actor, id uint, patch TransactionPatch) (*models.Transaction, error) {
	current, err := s.loadForMutation(actor, id)
	if err != nil {
		return nil, err
	}
	if current.IsDeleted {
		return nil, apperrors.ErrTransactionNotFound
	}
	if patch.Date != nil {
		if err := s.checkNotFuture(*patch.Date); err != nil {
			return nil, err
		}
	}

	p := ledger.OfTransaction(current)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.LockPartition(tx, p); err != nil {
			return err
		}
		t, err := findTransaction(tx, id)
		if err != nil {
			return err
		}
		if t.IsDeleted {
			return apperrors.ErrTransactionNotFound
		}
		if err := applyPatch(tx, t, patch); err != nil {
			return err
		}
		return s.recompute(tx, p)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(id)
}

// DeleteTransaction soft-deletes a transaction and reports whether its state
// changed. Deleting an already deleted transaction succeeds without touching
// any balance.
func (s *transactionService) DeleteTransaction(actor Actor, id uint) (bool, error) {
	return s.setDeletedFlag(actor, id, true)
}

// RestoreTransaction undoes a soft delete and reports whether its state
// changed. Restoring an active transaction succeeds without touching any
// balance.
func (s *transactionService) RestoreTransaction(actor Actor, id uint) (bool, error) {
	return s.setDeletedFlag(actor, id, false)
}

func (s *transactionService) setDeletedFlag(actor Actor, id uint, deleted bool) (bool, error) {
	current, err := s.loadForMutation(actor, id)
	if err != nil {
		return false, err
	}
	if current.IsDeleted == deleted {
		return false, nil
	}

	p := ledger.OfTransaction(current)
	changed := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.LockPartition(tx, p); err != nil {
			return err
		}
		t, err := findTransaction(tx, id)
		if err != nil {
			return err
		}
		changed, err = setDeleted(tx, t, deleted)
		if err != nil || !changed {
			return err
		}
		return s.recompute(tx, p)
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// AttachReceipt stores the receipt path on an active transaction.
func (s *transactionService) AttachReceipt(actor Actor, id uint, receiptPath string) (*models.Transaction, error) {
	t, err := s.loadForMutation(actor, id)
	if err != nil {
		return nil, err
	}
	if t.IsDeleted {
		return nil, apperrors.ErrTransactionNotFound
	}

	if err := s.db.Model(t).Update("receipt_path", receiptPath).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.reload(id)
}
