package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the direction of a cashbook entry
type TransactionType string

const (
	TransactionTypeCashIn  TransactionType = "CASH_IN"
	TransactionTypeCashOut TransactionType = "CASH_OUT"
)

// Valid reports whether t is one of the two allowed types.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeCashIn || t == TransactionTypeCashOut
}

// Transaction is a single cashbook entry. It belongs to the balance sequence
// of its book, or to its creator's personal sequence when BookID is nil.
type Transaction struct {
	Base
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	BookID      *uint           `gorm:"index" json:"book_id,omitempty"`
	Date        time.Time       `gorm:"type:date;not null;index" json:"date"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Type        TransactionType `gorm:"size:16;not null" json:"type"`
	Description string          `gorm:"size:500" json:"description"`
	Category    string          `gorm:"size:100;index" json:"category"`
	ReceiptPath string          `gorm:"size:255" json:"receipt_path,omitempty"`
	IsDeleted   bool            `gorm:"not null;default:false;index" json:"is_deleted"`

	// Cached cumulative balance within the partition; NULL until first computed.
	RunningBalance decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"running_balance"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
