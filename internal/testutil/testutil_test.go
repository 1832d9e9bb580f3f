package testutil_test

import (
	"testing"

	"cashbook/internal/errors"
	"cashbook/internal/models"
	"cashbook/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	// Verify all tables exist by doing a simple count query on each model.
	var count int64
	for _, table := range []string{"users", "books", "book_members", "transactions", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	if user.ID == 0 {
		t.Fatal("user should have a non-zero ID")
	}

	admin := testutil.CreateTestAdmin(t, db)
	if !admin.IsAdmin() {
		t.Error("expected admin role")
	}

	book := testutil.CreateTestBook(t, db, user.ID)
	if book.OwnerUserID != user.ID {
		t.Errorf("expected owner %d, got %d", user.ID, book.OwnerUserID)
	}
	testutil.AddTestMember(t, db, book.ID, admin.ID)

	tx := testutil.CreateRawTransaction(t, db, user.ID, &book.ID, "2024-01-01", models.TransactionTypeCashIn, "12.50")
	if tx.Amount.StringFixed(2) != "12.50" {
		t.Errorf("expected amount 12.50, got %s", tx.Amount.StringFixed(2))
	}

	var stored models.Transaction
	testutil.AssertNoError(t, db.First(&stored, tx.ID).Error)
	if stored.RunningBalance.Valid {
		t.Error("raw transactions should have a NULL running balance")
	}
	if !stored.Date.Equal(testutil.Date(t, "2024-01-01")) {
		t.Errorf("unexpected stored date %v", stored.Date)
	}
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrTransactionNotFound, "custom message")
	testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
