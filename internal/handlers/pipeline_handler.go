package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cashbook/internal/models"
	"cashbook/internal/services"
)

// PipelineHandler exposes maintenance operations to automation and admins.
type PipelineHandler struct {
	ledgerService services.LedgerServicer
	auditService  services.AuditServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(ledgerService services.LedgerServicer, auditService services.AuditServicer) *PipelineHandler {
	return &PipelineHandler{ledgerService: ledgerService, auditService: auditService}
}

// Reconcile recomputes the running balances of every ledger
// @Summary     Reconcile balances
// @Description Re-derives stored running balances for all books and personal ledgers. Partitions that fail are counted and skipped.
// @Tags        pipeline
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} services.ReconcileResult
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /pipeline/reconcile [post]
func (h *PipelineHandler) Reconcile(c *gin.Context) {
	result, err := h.ledgerService.ReconcileAll(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	// Present only when called through the admin route.
	if userID, err := getUserID(c); err == nil {
		h.auditService.Log(userID, models.AuditActionReconcile, "ledger", 0, c.ClientIP(),
			map[string]interface{}{"partitions": result.Partitions, "rows_updated": result.RowsUpdated, "failed": result.Failed})
	}

	c.JSON(http.StatusOK, result)
}
