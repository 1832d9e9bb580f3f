package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cashbook/internal/ledger"
	"cashbook/internal/models"
	"cashbook/internal/pagination"
)

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	UserID uint
	Role   models.Role
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(name, email, password, secretCode string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	UpdatePreferences(id uint, currency, theme *string) (*models.User, error)
	UpdateProfile(id uint, name, email *string) (*models.User, error)
	ChangePassword(id uint, currentPassword, secretCode, newPassword string) error
	SearchUsers(query string) ([]models.User, error)
	GetUsersByIDs(ids []uint) ([]models.User, error)
	EnsureAdmin(email, password string) (*models.User, error)
	ListUsers(page pagination.PageRequest) (*pagination.PageResponse[models.User], error)
	SetUserActive(id uint, active bool) (*models.User, error)
}

// BookWithRole is a book together with the caller's role in it.
type BookWithRole struct {
	models.Book
	MyRole string `json:"my_role"`
}

// BookServicer defines the contract for book and membership management.
type BookServicer interface {
	CreateBook(actor Actor, name string) (*models.Book, error)
	ListBooks(actor Actor) ([]BookWithRole, error)
	GetBook(actor Actor, bookID uint) (*models.Book, error)
	RenameBook(actor Actor, bookID uint, name string) (*models.Book, error)
	DeleteBook(actor Actor, bookID uint) error
	DuplicateBook(actor Actor, bookID uint) (*models.Book, error)
	ListMembers(actor Actor, bookID uint) ([]models.BookMember, error)
	AddMember(actor Actor, bookID uint, email string, role models.BookRole) (*models.BookMember, error)
	RemoveMember(actor Actor, bookID, userID uint) error
	CheckAccess(actor Actor, bookID uint) (*models.Book, error)
}

// TransactionFilter holds optional filter parameters for listing and reporting.
// A nil BookID selects the actor's personal partition.
type TransactionFilter struct {
	BookID    *uint
	FromDate  *time.Time
	ToDate    *time.Time
	Type      *models.TransactionType
	Category  *string
	Query     string
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
}

// TransactionInput carries the fields of a new transaction.
type TransactionInput struct {
	BookID      *uint
	Date        time.Time
	Amount      decimal.Decimal
	Type        models.TransactionType
	Description string
	Category    string
}

// TransactionPatch carries the mutable fields of a transaction; nil fields are left unchanged.
// The partition (book) is deliberately absent.
type TransactionPatch struct {
	Date        *time.Time
	Amount      *decimal.Decimal
	Type        *models.TransactionType
	Description *string
	Category    *string
}

// TransactionServicer is the only entry point that changes transaction data.
// Every mutation recomputes the affected partition in the same database transaction.
type TransactionServicer interface {
	CreateTransaction(actor Actor, input TransactionInput) (*models.Transaction, error)
	GetTransaction(actor Actor, id uint) (*models.Transaction, error)
	ListTransactions(actor Actor, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	ListUserTransactions(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	UpdateTransaction(actor Actor, id uint, patch TransactionPatch) (*models.Transaction, error)
	DeleteTransaction(actor Actor, id uint) (bool, error)
	RestoreTransaction(actor Actor, id uint) (bool, error)
	AttachReceipt(actor Actor, id uint, receiptPath string) (*models.Transaction, error)
}

// ReconcileResult reports the outcome of a full re-derivation pass.
type ReconcileResult struct {
	Partitions  int `json:"partitions"`
	RowsUpdated int `json:"rows_updated"`
	Failed      int `json:"failed"`
}

// LedgerServicer owns partition locking and running-balance recomputation.
type LedgerServicer interface {
	LockPartition(tx *gorm.DB, p ledger.Partition) error
	RecomputePartition(tx *gorm.DB, p ledger.Partition) (int, error)
	ReconcileAll(ctx context.Context) (*ReconcileResult, error)
}

// Summary holds aggregate totals over active transactions.
type Summary struct {
	TotalCashIn  decimal.Decimal
	TotalCashOut decimal.Decimal
	Balance      decimal.Decimal
}

// Balance sources reported on detailed rows.
const (
	BalanceSourceStored  = "stored"
	BalanceSourceDerived = "derived"
)

// DetailedRow is a report row with the balance to display and where it came from.
type DetailedRow struct {
	models.Transaction
	Balance       decimal.Decimal
	BalanceSource string
}

// Group keys accepted by GroupSummary.
const (
	GroupByCategory = "category"
	GroupByDate     = "date"
)

// GroupTotal is one bucket of a grouped summary.
type GroupTotal struct {
	Key     string
	CashIn  decimal.Decimal
	CashOut decimal.Decimal
}

// Dashboard combines totals with the most recent entries.
type Dashboard struct {
	Summary
	Recent []models.Transaction
}

// ReportServicer defines read-only aggregate and listing views. It never
// recomputes or writes balances.
type ReportServicer interface {
	Summarize(actor Actor, filter TransactionFilter) (*Summary, error)
	Recent(actor Actor, filter TransactionFilter, limit int) ([]models.Transaction, error)
	Detailed(actor Actor, filter TransactionFilter) ([]DetailedRow, error)
	GroupSummary(actor Actor, filter TransactionFilter, groupBy string) ([]GroupTotal, error)
	Dashboard(actor Actor, filter TransactionFilter, limit int) (*Dashboard, error)
	ReportTitle(actor Actor, filter TransactionFilter) (string, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID uint, action, entityType string, entityID uint, ipAddress string, details map[string]interface{})
	List(page pagination.PageRequest, userID *uint, action string) (*pagination.PageResponse[models.AuditLog], error)
}
