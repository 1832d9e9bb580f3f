package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"cashbook/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestAdmin creates a user holding the ADMIN role.
func CreateTestAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := CreateTestUser(t, db)
	if err := db.Model(user).Update("role", models.RoleAdmin).Error; err != nil {
		t.Fatalf("failed to promote test admin: %v", err)
	}
	user.Role = models.RoleAdmin
	return user
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Name:     fmt.Sprintf("Test User %d", nextID()),
		Email:    email,
		Password: string(hash),
		Role:     models.RoleUser,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestBook creates a book owned by the given user.
func CreateTestBook(t *testing.T, db *gorm.DB, ownerID uint) *models.Book {
	t.Helper()

	book := &models.Book{
		Name:        fmt.Sprintf("Test Book %d", nextID()),
		OwnerUserID: ownerID,
	}
	if err := db.Create(book).Error; err != nil {
		t.Fatalf("failed to create test book: %v", err)
	}
	return book
}

// AddTestMember adds userID to the book as a MEMBER.
func AddTestMember(t *testing.T, db *gorm.DB, bookID, userID uint) {
	t.Helper()

	member := &models.BookMember{BookID: bookID, UserID: userID, Role: models.BookRoleMember}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to add test member: %v", err)
	}
}

// Date parses a YYYY-MM-DD string, failing the test on error.
func Date(t *testing.T, s string) time.Time {
	t.Helper()

	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

// CreateRawTransaction inserts a transaction directly, bypassing the balance
// engine, so its running balance stays NULL. bookID may be nil.
func CreateRawTransaction(t *testing.T, db *gorm.DB, userID uint, bookID *uint, date string, txType models.TransactionType, amount string) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID: userID,
		BookID: bookID,
		Date:   Date(t, date),
		Type:   txType,
		Amount: decimal.RequireFromString(amount),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create raw transaction: %v", err)
	}
	return tx
}
