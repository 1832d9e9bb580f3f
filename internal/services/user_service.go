package services

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/models"
	"cashbook/internal/pagination"
)

const (
	minPasswordLength = 8
	userSearchLimit   = 50
)

// userService handles user-related business logic.
type userService struct {
	db               *gorm.DB
	signupSecretCode string
}

// NewUserService creates a new UserServicer. When signupSecretCode is not
// empty, registration requires callers to present it.
func NewUserService(db *gorm.DB, signupSecretCode string) UserServicer {
	return &userService{db: db, signupSecretCode: signupSecretCode}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser registers a new user
func (s *userService) CreateUser(name, email, password, secretCode string) (*models.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	// Validate input
	if email == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email and password are required")
	}
	if s.signupSecretCode != "" &&
		subtle.ConstantTimeCompare([]byte(secretCode), []byte(s.signupSecretCode)) != 1 {
		return nil, apperrors.ErrInvalidSecretCode
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	// Check if user with email exists
	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}

	return s.createWithRole(name, email, password, models.RoleUser)
}

func (s *userService) createWithRole(name, email, password string, role models.Role) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: string(hashedPassword),
		Role:     role,
		IsActive: true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

// GetUserByEmail retrieves an active user by email
func (s *userService) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ? AND is_active = ?", normalizeEmail(email), true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// VerifyPassword checks if the provided password matches the stored hash
func (s *userService) VerifyPassword(user *models.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	return err == nil
}

// AttemptLogin checks credentials. Unknown emails and wrong passwords return
// the same error; deactivated users are told so only after a correct password.
func (s *userService) AttemptLogin(email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !s.VerifyPassword(&user, password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.ErrUserInactive
	}
	return &user, nil
}

// UpdatePreferences changes display preferences; nil values are left as they are.
func (s *userService) UpdatePreferences(id uint, currency, theme *string) (*models.User, error) {
	user, err := s.GetUserByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if currency != nil {
		updates["currency"] = strings.ToUpper(strings.TrimSpace(*currency))
	}
	if theme != nil {
		updates["theme"] = strings.TrimSpace(*theme)
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetUserByID(id)
}

// UpdateProfile changes the name and email of a user; nil values are left as they are.
func (s *userService) UpdateProfile(id uint, name, email *string) (*models.User, error) {
	user, err := s.GetUserByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name cannot be empty")
		}
		updates["name"] = trimmed
	}
	if email != nil {
		normalized := normalizeEmail(*email)
		if normalized == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email cannot be empty")
		}
		if normalized != user.Email {
			var count int64
			if err := s.db.Model(&models.User{}).Where("email = ? AND id <> ?", normalized, id).Count(&count).Error; err != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if count > 0 {
				return nil, apperrors.ErrDuplicateEmail
			}
		}
		updates["email"] = normalized
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetUserByID(id)
}

// ChangePassword replaces a user's password. The caller proves identity with
// either the current password or the configured secret code.
func (s *userService) ChangePassword(id uint, currentPassword, secretCode, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "new password must be at least 8 characters")
	}
	if currentPassword == "" && secretCode == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "current password or secret code is required")
	}

	user, err := s.GetUserByID(id)
	if err != nil {
		return err
	}

	if secretCode != "" {
		if s.signupSecretCode == "" ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(secretCode)), []byte(s.signupSecretCode)) != 1 {
			return apperrors.ErrInvalidSecretCode
		}
	} else if !s.VerifyPassword(user, currentPassword) {
		return apperrors.ErrWrongPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.Model(user).Update("password", string(hashed)).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// SearchUsers finds users whose name or email contains query, ignoring case.
// An empty query matches everyone. At most userSearchLimit users are returned.
func (s *userService) SearchUsers(query string) ([]models.User, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	var users []models.User
	err := s.db.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern).
		Order("name ASC").Order("id ASC").
		Limit(userSearchLimit).
		Find(&users).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return users, nil
}

// GetUsersByIDs loads the users with the given ids. Unknown ids are skipped.
func (s *userService) GetUsersByIDs(ids []uint) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := s.db.Where("id IN ?", ids).Order("id ASC").Find(&users).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return users, nil
}

// EnsureAdmin makes sure a user with the given email exists with the ADMIN
// role, creating it when missing. An empty email is a no-op.
func (s *userService) EnsureAdmin(email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}

	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if user.Role == models.RoleAdmin && user.IsActive {
			return &user, nil
		}
		if err := s.db.Model(&user).Updates(map[string]interface{}{"role": models.RoleAdmin, "is_active": true}).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.GetUserByID(user.ID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		if password == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "admin password is required to create the admin user")
		}
		return s.createWithRole("Administrator", email, password, models.RoleAdmin)
	default:
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
}

// ListUsers returns a page of all users ordered by id.
func (s *userService) ListUsers(page pagination.PageRequest) (*pagination.PageResponse[models.User], error) {
	page.Defaults()

	var totalItems int64
	if err := s.db.Model(&models.User{}).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var users []models.User
	if err := s.db.Scopes(pagination.Paginate(page)).Order("id ASC").Find(&users).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(users, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// SetUserActive activates or deactivates a user.
func (s *userService) SetUserActive(id uint, active bool) (*models.User, error) {
	user, err := s.GetUserByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(user).Update("is_active", active).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.IsActive = active
	return user, nil
}
