package models

// Audit actions recorded for transaction and admin operations.
const (
	AuditActionRegister      = "REGISTER"
	AuditActionLogin         = "LOGIN"
	AuditActionProfile       = "PROFILE_UPDATE"
	AuditActionPassword      = "PASSWORD_CHANGE"
	AuditActionCreate        = "CREATE"
	AuditActionUpdate        = "UPDATE"
	AuditActionDelete        = "DELETE"
	AuditActionRestore       = "RESTORE"
	AuditActionUploadReceipt = "UPLOAD_RECEIPT"
	AuditActionUserStatus    = "USER_STATUS"
	AuditActionBookDelete    = "BOOK_DELETE"
	AuditActionMemberAdd     = "MEMBER_ADD"
	AuditActionMemberRemove  = "MEMBER_REMOVE"
	AuditActionReconcile     = "RECONCILE"
)

// AuditLog records sensitive user operations for accountability.
type AuditLog struct {
	Base
	UserID     uint   `gorm:"not null;index" json:"user_id"`
	Action     string `gorm:"size:32;not null;index" json:"action"`
	EntityType string `gorm:"size:32;not null" json:"entity_type"`
	EntityID   uint   `json:"entity_id"`
	IPAddress  string `gorm:"size:64" json:"ip_address"`
	Details    string `json:"details,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
