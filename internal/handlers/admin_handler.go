package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/models"
	"cashbook/internal/pagination"
	"cashbook/internal/services"
)

// AdminHandler serves ADMIN-only user management and audit views.
type AdminHandler struct {
	userService        services.UserServicer
	transactionService services.TransactionServicer
	auditService       services.AuditServicer
	display            Display
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(userService services.UserServicer, transactionService services.TransactionServicer, auditService services.AuditServicer, display Display) *AdminHandler {
	return &AdminHandler{
		userService:        userService,
		transactionService: transactionService,
		auditService:       auditService,
		display:            display,
	}
}

// UserStatusRequest toggles a user's activation flag.
type UserStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// AuditLogResponse is one audit entry.
type AuditLogResponse struct {
	ID         uint   `json:"id"`
	UserID     uint   `json:"user_id"`
	UserName   string `json:"user_name,omitempty"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   uint   `json:"entity_id"`
	IPAddress  string `json:"ip_address"`
	Details    string `json:"details,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ListUsers returns a page of all users
// @Summary     List users
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Items per page"
// @Success     200 {object} pagination.PageResponse[UserResponse]
// @Failure     403 {object} ErrorResponse "Not an admin"
// @Router      /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	result, err := h.userService.ListUsers(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, pagination.Map(result, toUserResponses))
}

// SetUserStatus activates or deactivates a user
// @Summary     Set user status
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int               true "User ID"
// @Param       request body UserStatusRequest true "Status"
// @Success     200 {object} UserResponse
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/users/{id}/status [put]
func (h *AdminHandler) SetUserStatus(c *gin.Context) {
	adminID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}
	if userID == adminID && !*req.IsActive {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "admins cannot deactivate themselves"))
		return
	}

	user, err := h.userService.SetUserActive(userID, *req.IsActive)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(adminID, models.AuditActionUserStatus, "user", userID, c.ClientIP(),
		map[string]interface{}{"is_active": *req.IsActive})

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// UserTransactions lists every active transaction created by a user
// @Summary     User transactions
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  int true  "User ID"
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Items per page"
// @Success     200 {object} pagination.PageResponse[TransactionResponse]
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/users/{id}/transactions [get]
func (h *AdminHandler) UserTransactions(c *gin.Context) {
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	if _, err := h.userService.GetUserByID(userID); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.ListUserTransactions(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, pagination.Map(result, h.display.transactions))
}

// AuditLogs lists audit entries newest first
// @Summary     Audit logs
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Param       user_id   query int    false "Filter by user"
// @Param       action    query string false "Filter by action"
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Items per page"
// @Success     200 {object} pagination.PageResponse[AuditLogResponse]
// @Router      /admin/audit-logs [get]
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	userID, err := parseOptionalID(c, "user_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.auditService.List(page, userID, strings.ToUpper(strings.TrimSpace(c.Query("action"))))
	if err != nil {
		respondWithError(c, err)
		return
	}

	entries := make([]AuditLogResponse, len(result.Data))
	for i, e := range result.Data {
		entries[i] = AuditLogResponse{
			ID:         e.ID,
			UserID:     e.UserID,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			IPAddress:  e.IPAddress,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt.In(h.display.location()).Format("2006-01-02 15:04:05"),
		}
		if e.User != nil {
			entries[i].UserName = e.User.Name
		}
	}
	c.JSON(http.StatusOK, pagination.NewPageResponse(entries, result.Page, result.PageSize, result.TotalItems))
}
