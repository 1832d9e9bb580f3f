package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/ledger"
	"cashbook/internal/logger"
	"cashbook/internal/models"
	"cashbook/internal/pagination"
	"cashbook/internal/services"
)

// ReceiptStore persists uploaded receipt files.
type ReceiptStore interface {
	Save(originalName string, r io.Reader) (string, error)
	Delete(relPath string) error
}

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	auditService       services.AuditServicer
	receipts           ReceiptStore
	display            Display
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer, auditService services.AuditServicer, receipts ReceiptStore, display Display) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		auditService:       auditService,
		receipts:           receipts,
		display:            display,
	}
}

// CreateTransactionRequest represents the request payload for creating a transaction.
// Amount accepts a JSON number or a decimal string.
type CreateTransactionRequest struct {
	BookID      *uint                  `json:"book_id"`
	Date        string                 `json:"date" binding:"required,ledger_date"`
	Amount      *decimal.Decimal       `json:"amount" binding:"required"`
	Type        models.TransactionType `json:"type" binding:"required,transaction_type"`
	Description string                 `json:"description" binding:"max=500"`
	Category    string                 `json:"category" binding:"max=100"`
}

// UpdateTransactionRequest represents the request payload for updating a transaction.
// The book cannot be changed.
type UpdateTransactionRequest struct {
	Date        *string                 `json:"date" binding:"omitempty,ledger_date"`
	Amount      *decimal.Decimal        `json:"amount"`
	Type        *models.TransactionType `json:"type" binding:"omitempty,transaction_type"`
	Description *string                 `json:"description" binding:"omitempty,max=500"`
	Category    *string                 `json:"category" binding:"omitempty,max=100"`
}

// ListTransactions returns a page of the caller's personal ledger or of a book
// @Summary     List transactions
// @Description Lists active transactions newest first. Without book_id the caller's personal ledger is listed.
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       book_id    query int    false "Book ID"
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 20, max 100)"
// @Param       from_date  query string false "Start date (YYYY-MM-DD)"
// @Param       to_date    query string false "End date (YYYY-MM-DD)"
// @Param       type       query string false "CASH_IN or CASH_OUT"
// @Param       category   query string false "Category"
// @Param       q          query string false "Text search in description"
// @Param       min_amount query string false "Minimum amount"
// @Param       max_amount query string false "Maximum amount"
// @Success     200 {object} pagination.PageResponse[TransactionResponse] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "No access to book"
// @Router      /transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.ListTransactions(actor, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, pagination.Map(result, h.display.transactions))
}

// CreateTransaction handles the creation of a new transaction
// @Summary     Create a transaction
// @Description Records a cash in or cash out entry and returns it with its running balance
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} TransactionResponse "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "No access to book"
// @Failure     500 {object} ErrorResponse "Recomputation failed"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid date, use YYYY-MM-DD"))
		return
	}

	transaction, err := h.transactionService.CreateTransaction(actor, services.TransactionInput{
		BookID:      req.BookID,
		Date:        date,
		Amount:      *req.Amount,
		Type:        req.Type,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.UserID, models.AuditActionCreate, "transaction", transaction.ID, c.ClientIP(),
		map[string]interface{}{"type": transaction.Type, "amount": transaction.Amount.StringFixed(2), "book_id": transaction.BookID})

	c.JSON(http.StatusCreated, gin.H{"transaction": h.display.transaction(transaction)})
}

// GetTransaction handles the retrieval of a specific transaction
// @Summary     Get transaction by ID
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Transaction ID"
// @Success     200 {object} TransactionResponse "Transaction details"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     403 {object} ErrorResponse "Access denied"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransaction(actor, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": h.display.transaction(transaction)})
}

// UpdateTransaction handles updating an existing transaction
// @Summary     Update transaction
// @Description Partially updates date, amount, type, description or category. Only the creator or an ADMIN may update.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int                      true "Transaction ID"
// @Param       request body UpdateTransactionRequest true "Fields to change"
// @Success     200 {object} TransactionResponse "Updated transaction"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not the creator"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Recomputation failed"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	patch := services.TransactionPatch{
		Amount:      req.Amount,
		Type:        req.Type,
		Description: req.Description,
		Category:    req.Category,
	}
	if req.Date != nil {
		date, err := ledger.ParseDate(*req.Date)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid date, use YYYY-MM-DD"))
			return
		}
		patch.Date = &date
	}

	transaction, err := h.transactionService.UpdateTransaction(actor, transactionID, patch)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.UserID, models.AuditActionUpdate, "transaction", transactionID, c.ClientIP(), changedFields(req))

	c.JSON(http.StatusOK, gin.H{"transaction": h.display.transaction(transaction)})
}

func changedFields(req UpdateTransactionRequest) map[string]interface{} {
	details := map[string]interface{}{}
	if req.Date != nil {
		details["date"] = *req.Date
	}
	if req.Amount != nil {
		details["amount"] = req.Amount.StringFixed(2)
	}
	if req.Type != nil {
		details["type"] = *req.Type
	}
	if req.Description != nil {
		details["description"] = *req.Description
	}
	if req.Category != nil {
		details["category"] = *req.Category
	}
	return details
}

// DeleteTransaction soft-deletes a transaction
// @Summary     Delete transaction
// @Description Marks the transaction deleted and recomputes its ledger. Deleting twice is a no-op.
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Transaction ID"
// @Success     200 {object} OKResponse
// @Failure     403 {object} ErrorResponse "Not the creator"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	h.setDeleted(c, true)
}

// RestoreTransaction undoes a soft delete
// @Summary     Restore transaction
// @Description Unmarks a deleted transaction and recomputes its ledger. Restoring an active transaction is a no-op.
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Transaction ID"
// @Success     200 {object} OKResponse
// @Failure     403 {object} ErrorResponse "Not the creator"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id}/restore [post]
func (h *TransactionHandler) RestoreTransaction(c *gin.Context) {
	h.setDeleted(c, false)
}

func (h *TransactionHandler) setDeleted(c *gin.Context, deleted bool) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	action := models.AuditActionDelete
	var changed bool
	if deleted {
		changed, err = h.transactionService.DeleteTransaction(actor, transactionID)
	} else {
		action = models.AuditActionRestore
		changed, err = h.transactionService.RestoreTransaction(actor, transactionID)
	}
	if err != nil {
		respondWithError(c, err)
		return
	}

	if changed {
		h.auditService.Log(actor.UserID, action, "transaction", transactionID, c.ClientIP(), nil)
	}

	c.JSON(http.StatusOK, OKResponse{OK: true})
}

// UploadReceipt attaches a receipt file to a transaction
// @Summary     Upload receipt
// @Description Stores the file from the multipart field "receipt" and links it to the transaction, replacing any previous receipt.
// @Tags        transactions
// @Accept      mpfd
// @Produce     json
// @Security    BearerAuth
// @Param       id      path     int  true "Transaction ID"
// @Param       receipt formData file true "Receipt file"
// @Success     200 {object} TransactionResponse "Updated transaction"
// @Failure     400 {object} ErrorResponse "No file uploaded"
// @Failure     403 {object} ErrorResponse "Not the creator"
// @Failure     413 {object} ErrorResponse "File too large"
// @Router      /transactions/{id}/receipt [post]
func (h *TransactionHandler) UploadReceipt(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	fileHeader, err := c.FormFile("receipt")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondWithError(c, apperrors.ErrReceiptTooLarge)
			return
		}
		respondWithError(c, apperrors.ErrReceiptMissing)
		return
	}

	previous, err := h.transactionService.GetTransaction(actor, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	defer file.Close()

	relPath, err := h.receipts.Save(fileHeader.Filename, file)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.AttachReceipt(actor, transactionID, relPath)
	if err != nil {
		if delErr := h.receipts.Delete(relPath); delErr != nil {
			logger.Get().Warnw("failed to remove orphaned receipt", "path", relPath, "error", delErr)
		}
		respondWithError(c, err)
		return
	}

	if previous.ReceiptPath != "" && previous.ReceiptPath != relPath {
		if delErr := h.receipts.Delete(previous.ReceiptPath); delErr != nil {
			logger.Get().Warnw("failed to remove replaced receipt", "path", previous.ReceiptPath, "error", delErr)
		}
	}

	h.auditService.Log(actor.UserID, models.AuditActionUploadReceipt, "transaction", transactionID, c.ClientIP(),
		map[string]interface{}{"receipt": relPath})

	c.JSON(http.StatusOK, gin.H{"transaction": h.display.transaction(transaction)})
}
