package models

// Role is a user's global privilege level
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User represents the user model in the database
type User struct {
	Base
	Name     string `gorm:"size:120;not null" json:"name"`
	Email    string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"size:16;not null;default:USER" json:"role"`
	IsActive bool   `gorm:"not null;default:true" json:"is_active"`
	Currency string `gorm:"size:8;default:INR" json:"currency"`
	Theme    string `gorm:"size:16;default:light" json:"theme"`
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
