package models

import "time"

// Base contains common columns for all tables
type Base struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// All lists every model managed by the schema, in dependency order.
// Used by AutoMigrate for the sqlite and mysql drivers and by tests.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Book{},
		&BookMember{},
		&Transaction{},
		&AuditLog{},
	}
}
