package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/middleware"
	"cashbook/internal/models"
	"cashbook/internal/services"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	userService  services.UserServicer
	auditService services.AuditServicer
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userService services.UserServicer, auditService services.AuditServicer) *AuthHandler {
	return &AuthHandler{userService: userService, auditService: auditService}
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Name       string `json:"name" binding:"max=120"`
	Email      string `json:"email" binding:"required,email,max=255"`
	Password   string `json:"password" binding:"required,min=8,max=128"`
	SecretCode string `json:"secret_code" binding:"max=255"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// PreferencesRequest represents the preferences update payload
type PreferencesRequest struct {
	Currency *string `json:"currency" binding:"omitempty,currency_code"`
	Theme    *string `json:"theme" binding:"omitempty,oneof=light dark system"`
}

// ProfileRequest represents the profile update payload
type ProfileRequest struct {
	Name  *string `json:"name" binding:"omitempty,max=120"`
	Email *string `json:"email" binding:"omitempty,email,max=255"`
}

// PasswordRequest represents the password change payload. Either the current
// password or the secret code must be supplied.
type PasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	SecretCode      string `json:"secret_code"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=128"`
}

const maxBatchIDs = 100

// AuthResponse represents the authentication response with token
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// Register handles user registration
// @Summary     Register a new user
// @Description Register a new user. When a signup secret code is configured it must be supplied.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body RegisterRequest true "User registration data"
// @Success     201 {object} AuthResponse "User registered and token generated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Invalid secret code"
// @Failure     409 {object} ErrorResponse "Email already registered"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	user, err := h.userService.CreateUser(req.Name, req.Email, req.Password, req.SecretCode)
	if err != nil {
		respondWithError(c, err)
		return
	}

	token, err := middleware.GenerateToken(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	h.auditService.Log(user.ID, models.AuditActionRegister, "user", user.ID, c.ClientIP(), nil)

	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: toUserResponse(user)})
}

// Login handles user login
// @Summary     Login user
// @Description Authenticate a user and get a token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body LoginRequest true "User login credentials"
// @Success     200 {object} AuthResponse "User authenticated and token generated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid credentials"
// @Failure     403 {object} ErrorResponse "User is deactivated"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	user, err := h.userService.AttemptLogin(req.Email, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}

	token, err := middleware.GenerateToken(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	h.auditService.Log(user.ID, models.AuditActionLogin, "user", user.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, AuthResponse{Token: token, User: toUserResponse(user)})
}

// GetProfile returns the user's profile
// @Summary     Get user profile
// @Description Get the authenticated user's profile information
// @Tags        user
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} UserResponse "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// UpdatePreferences changes the caller's display preferences
// @Summary     Update preferences
// @Description Update currency and theme preferences. Omitted fields are unchanged.
// @Tags        user
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PreferencesRequest true "Preferences"
// @Success     200 {object} UserResponse "Updated profile"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /profile/preferences [put]
func (h *AuthHandler) UpdatePreferences(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	user, err := h.userService.UpdatePreferences(userID, req.Currency, req.Theme)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// UpdateProfile changes the caller's name and email
// @Summary     Update profile
// @Description Update name and email. Omitted fields are unchanged.
// @Tags        user
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ProfileRequest true "Profile"
// @Success     200 {object} UserResponse "Updated profile"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Email already registered"
// @Router      /profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	user, err := h.userService.UpdateProfile(userID, req.Name, req.Email)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionProfile, "user", userID, c.ClientIP(), map[string]interface{}{
		"name":  user.Name,
		"email": user.Email,
	})

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// ChangePassword replaces the caller's password
// @Summary     Change password
// @Description Change the password, proving identity with the current password or the secret code
// @Tags        user
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PasswordRequest true "Password change"
// @Success     200 {object} OKResponse
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Current password is incorrect"
// @Failure     403 {object} ErrorResponse "Invalid secret code"
// @Router      /profile/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	if err := h.userService.ChangePassword(userID, req.CurrentPassword, req.SecretCode, req.NewPassword); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionPassword, "user", userID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, OKResponse{OK: true})
}

// SearchUsers finds users to add as book members
// @Summary     Search users
// @Description Case-insensitive match on name or email, at most 50 results
// @Tags        user
// @Produce     json
// @Security    BearerAuth
// @Param       q query string false "Search text"
// @Success     200 {array} UserSummaryResponse
// @Router      /users/search [get]
func (h *AuthHandler) SearchUsers(c *gin.Context) {
	users, err := h.userService.SearchUsers(c.Query("q"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": toUserSummaries(users)})
}

// BatchUsers loads several users by id
// @Summary     Batch user lookup
// @Description Resolve a comma-separated list of user ids to names and emails
// @Tags        user
// @Produce     json
// @Security    BearerAuth
// @Param       ids query string true "Comma-separated user ids"
// @Success     200 {array} UserSummaryResponse
// @Failure     400 {object} ErrorResponse "Invalid ids"
// @Router      /users/batch [get]
func (h *AuthHandler) BatchUsers(c *gin.Context) {
	ids, err := parseIDList(c.Query("ids"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	users, err := h.userService.GetUsersByIDs(ids)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": toUserSummaries(users)})
}

func parseIDList(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil || id == 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid id "+strconv.Quote(part))
		}
		ids = append(ids, uint(id))
	}
	if len(ids) > maxBatchIDs {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "too many ids")
	}
	return ids, nil
}
