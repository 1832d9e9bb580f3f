package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/ledger"
	"cashbook/internal/models"
)

// Book roles reported to callers in addition to the stored member roles.
const BookRoleOwner = "OWNER"

// bookService handles books, their membership, and access checks.
type bookService struct {
	db     *gorm.DB
	ledger LedgerServicer
}

// NewBookService creates a new BookServicer.
func NewBookService(db *gorm.DB, ledgerService LedgerServicer) BookServicer {
	return &bookService{db: db, ledger: ledgerService}
}

func (s *bookService) findBook(bookID uint) (*models.Book, error) {
	var book models.Book
	if err := s.db.First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBookNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &book, nil
}

// ownedBook loads a book and checks the actor owns it.
func (s *bookService) ownedBook(actor Actor, bookID uint) (*models.Book, error) {
	book, err := s.findBook(bookID)
	if err != nil {
		return nil, err
	}
	if book.OwnerUserID != actor.UserID {
		return nil, apperrors.ErrNotBookOwner
	}
	return book, nil
}

// CheckAccess returns the book when the actor owns it, is a member, or is an ADMIN.
func (s *bookService) CheckAccess(actor Actor, bookID uint) (*models.Book, error) {
	book, err := s.findBook(bookID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || book.OwnerUserID == actor.UserID {
		return book, nil
	}

	var count int64
	if err := s.db.Model(&models.BookMember{}).
		Where("book_id = ? AND user_id = ?", bookID, actor.UserID).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return nil, apperrors.ErrBookAccess
	}
	return book, nil
}

// CreateBook creates a book owned by the actor.
func (s *bookService) CreateBook(actor Actor, name string) (*models.Book, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "book name is required")
	}

	book := &models.Book{Name: name, OwnerUserID: actor.UserID}
	if err := s.db.Create(book).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return book, nil
}

// ListBooks returns the books the actor owns or is a member of, newest first.
func (s *bookService) ListBooks(actor Actor) ([]BookWithRole, error) {
	var books []models.Book
	if err := s.db.
		Where("owner_user_id = ?", actor.UserID).
		Or("id IN (?)", s.db.Model(&models.BookMember{}).Select("book_id").Where("user_id = ?", actor.UserID)).
		Order("created_at DESC").Order("id DESC").
		Find(&books).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var memberships []models.BookMember
	if err := s.db.Where("user_id = ?", actor.UserID).Find(&memberships).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	roles := make(map[uint]models.BookRole, len(memberships))
	for _, m := range memberships {
		roles[m.BookID] = m.Role
	}

	out := make([]BookWithRole, 0, len(books))
	for _, b := range books {
		role := string(roles[b.ID])
		if b.OwnerUserID == actor.UserID {
			role = BookRoleOwner
		}
		out = append(out, BookWithRole{Book: b, MyRole: role})
	}
	return out, nil
}

// GetBook returns a book the actor can access.
func (s *bookService) GetBook(actor Actor, bookID uint) (*models.Book, error) {
	return s.CheckAccess(actor, bookID)
}

// RenameBook changes a book's name. Owner only.
func (s *bookService) RenameBook(actor Actor, bookID uint, name string) (*models.Book, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "book name is required")
	}

	book, err := s.ownedBook(actor, bookID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(book).Update("name", name).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return book, nil
}

// DeleteBook removes a book and its memberships. Its transactions are
// detached rather than deleted, which moves each of them into its creator's
// personal partition, so those partitions are recomputed before commit.
func (s *bookService) DeleteBook(actor Actor, bookID uint) error {
	book, err := s.ownedBook(actor, bookID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.LockPartition(tx, ledger.ForBook(book.ID)); err != nil {
			return err
		}

		var creatorIDs []uint
		if err := tx.Model(&models.Transaction{}).
			Where("book_id = ?", book.ID).
			Distinct("user_id").Pluck("user_id", &creatorIDs).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := tx.Model(&models.Transaction{}).
			Where("book_id = ?", book.ID).
			Update("book_id", nil).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("book_id = ?", book.ID).Delete(&models.BookMember{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(book).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		for _, userID := range creatorIDs {
			p := ledger.ForUser(userID)
			if err := s.ledger.LockPartition(tx, p); err != nil {
				return err
			}
			if _, err := s.ledger.RecomputePartition(tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// DuplicateBook creates "<name> (copy)" owned by the actor with the same
// members. Transactions are not copied.
func (s *bookService) DuplicateBook(actor Actor, bookID uint) (*models.Book, error) {
	src, err := s.CheckAccess(actor, bookID)
	if err != nil {
		return nil, err
	}

	var members []models.BookMember
	if err := s.db.Where("book_id = ?", src.ID).Find(&members).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	copyBook := &models.Book{Name: src.Name + " (copy)", OwnerUserID: actor.UserID}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(copyBook).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, m := range members {
			if m.UserID == actor.UserID {
				continue
			}
			member := &models.BookMember{BookID: copyBook.ID, UserID: m.UserID, Role: m.Role}
			if err := tx.Create(member).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return copyBook, nil
}

// ListMembers returns a book's members with their user records.
func (s *bookService) ListMembers(actor Actor, bookID uint) ([]models.BookMember, error) {
	if _, err := s.CheckAccess(actor, bookID); err != nil {
		return nil, err
	}

	var members []models.BookMember
	if err := s.db.Preload("User").Where("book_id = ?", bookID).Order("id ASC").Find(&members).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return members, nil
}

// AddMember adds the user with the given email to the book, or updates their
// role when they are already a member. Owner only.
func (s *bookService) AddMember(actor Actor, bookID uint, email string, role models.BookRole) (*models.BookMember, error) {
	book, err := s.ownedBook(actor, bookID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = models.BookRoleMember
	}

	var user models.User
	if err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if user.ID == book.OwnerUserID {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "the owner is already part of the book")
	}

	member := &models.BookMember{BookID: book.ID, UserID: user.ID, Role: role}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "book_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(member).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var saved models.BookMember
	if err := s.db.Preload("User").Where("book_id = ? AND user_id = ?", book.ID, user.ID).First(&saved).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &saved, nil
}

// RemoveMember removes a user from a book. Owner only.
func (s *bookService) RemoveMember(actor Actor, bookID, userID uint) error {
	if _, err := s.ownedBook(actor, bookID); err != nil {
		return err
	}

	result := s.db.Where("book_id = ? AND user_id = ?", bookID, userID).Delete(&models.BookMember{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.WithMessage(apperrors.ErrNotFound, "member not found")
	}
	return nil
}
