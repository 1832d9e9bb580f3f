package models

// BookRole is a member's role within a shared book
type BookRole string

const (
	BookRoleMember BookRole = "MEMBER"
	BookRoleViewer BookRole = "VIEWER"
)

// Book is a named ledger owned by one user and optionally shared with members.
type Book struct {
	Base
	Name        string `gorm:"size:150;not null" json:"name"`
	OwnerUserID uint   `gorm:"not null;index" json:"owner_user_id"`

	// Relationships
	Owner   *User        `gorm:"foreignKey:OwnerUserID" json:"owner,omitempty"`
	Members []BookMember `gorm:"foreignKey:BookID" json:"members,omitempty"`
}

// BookMember grants a user access to a book they do not own.
type BookMember struct {
	Base
	BookID uint     `gorm:"not null;uniqueIndex:idx_book_member" json:"book_id"`
	UserID uint     `gorm:"not null;uniqueIndex:idx_book_member" json:"user_id"`
	Role   BookRole `gorm:"size:16;not null;default:MEMBER" json:"role"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
