package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/ledger"
	"cashbook/internal/models"
	"cashbook/internal/services"
)

type mockLedgerService struct {
	reconcileFn func(ctx context.Context) (*services.ReconcileResult, error)
}

func (m *mockLedgerService) LockPartition(_ *gorm.DB, _ ledger.Partition) error {
	return nil
}

func (m *mockLedgerService) RecomputePartition(_ *gorm.DB, _ ledger.Partition) (int, error) {
	return 0, nil
}

func (m *mockLedgerService) ReconcileAll(ctx context.Context) (*services.ReconcileResult, error) {
	if m.reconcileFn != nil {
		return m.reconcileFn(ctx)
	}
	return &services.ReconcileResult{}, nil
}

var _ services.LedgerServicer = (*mockLedgerService)(nil)

func TestPipelineHandler_Reconcile(t *testing.T) {
	ledgerSvc := &mockLedgerService{
		reconcileFn: func(_ context.Context) (*services.ReconcileResult, error) {
			return &services.ReconcileResult{Partitions: 3, RowsUpdated: 7}, nil
		},
	}

	t.Run("pipeline route is not audited", func(t *testing.T) {
		audit := &mockAuditService{}
		h := NewPipelineHandler(ledgerSvc, audit)
		r := gin.New()
		r.POST("/pipeline/reconcile", h.Reconcile)

		rec := doRequest(r, "POST", "/pipeline/reconcile", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if result["partitions"] != float64(3) || result["rows_updated"] != float64(7) || result["failed"] != float64(0) {
			t.Errorf("unexpected result %v", result)
		}
		if len(audit.entries) != 0 {
			t.Errorf("expected no audit entries, got %d", len(audit.entries))
		}
	})

	t.Run("admin route is audited", func(t *testing.T) {
		audit := &mockAuditService{}
		h := NewPipelineHandler(ledgerSvc, audit)
		r := gin.New()
		r.POST("/admin/reconcile", injectActor(1, models.RoleAdmin), h.Reconcile)

		rec := doRequest(r, "POST", "/admin/reconcile", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if audit.lastAction() != models.AuditActionReconcile || audit.entries[0].details["rows_updated"] != 7 {
			t.Errorf("unexpected audit %+v", audit.entries)
		}
	})

	t.Run("failure", func(t *testing.T) {
		failing := &mockLedgerService{
			reconcileFn: func(_ context.Context) (*services.ReconcileResult, error) {
				return nil, apperrors.ErrInternalServer
			},
		}
		r := gin.New()
		r.POST("/pipeline/reconcile", NewPipelineHandler(failing, &mockAuditService{}).Reconcile)

		rec := doRequest(r, "POST", "/pipeline/reconcile", "")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}
