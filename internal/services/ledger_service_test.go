package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"cashbook/internal/ledger"
	"cashbook/internal/models"
	"cashbook/internal/testutil"
)

func TestRecomputePartition(t *testing.T) {
	t.Run("fills_null_balances_in_order", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLedgerService(db)
		user := testutil.CreateTestUser(t, db)

		b := testutil.CreateRawTransaction(t, db, user.ID, nil, "2024-01-02", models.TransactionTypeCashOut, "40")
		a := testutil.CreateRawTransaction(t, db, user.ID, nil, "2024-01-01", models.TransactionTypeCashIn, "100")
		c := testutil.CreateRawTransaction(t, db, user.ID, nil, "2024-01-01", models.TransactionTypeCashIn, "10")

		var n int
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			n, err = svc.RecomputePartition(tx, ledger.ForUser(user.ID))
			return err
		})
		testutil.AssertNoError(t, err)
		if n != 3 {
			t.Errorf("expected 3 rows updated, got %d", n)
		}
		testutil.AssertBalance(t, "a", balanceOf(t, db, a.ID), "100.00")
		testutil.AssertBalance(t, "c", balanceOf(t, db, c.ID), "110.00")
		testutil.AssertBalance(t, "b", balanceOf(t, db, b.ID), "70.00")
	})

	t.Run("orders_by_parsed_date_not_stored_text", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLedgerService(db)
		user := testutil.CreateTestUser(t, db)

		first := testutil.CreateRawTransaction(t, db, user.ID, nil, "2024-01-01", models.TransactionTypeCashIn, "100")
		second := testutil.CreateRawTransaction(t, db, user.ID, nil, "2024-01-01", models.TransactionTypeCashOut, "30")
		// A bare date sorts before the driver's timestamp text for the same day.
		if err := db.Exec("UPDATE transactions SET date = ? WHERE id = ?", "2024-01-01", second.ID).Error; err != nil {
			t.Fatalf("failed to rewrite date: %v", err)
		}

		_, err := svc.RecomputePartition(db, ledger.ForUser(user.ID))
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, "first", balanceOf(t, db, first.ID), "100.00")
		testutil.AssertBalance(t, "second", balanceOf(t, db, second.ID), "70.00")
	})

	t.Run("skips_rows_already_correct", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLedgerService(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateRawTransaction(t, db, user.ID, nil, "2024-01-01", models.TransactionTypeCashIn, "5")

		p := ledger.ForUser(user.ID)
		_, err := svc.RecomputePartition(db, p)
		testutil.AssertNoError(t, err)
		n, err := svc.RecomputePartition(db, p)
		testutil.AssertNoError(t, err)
		if n != 0 {
			t.Errorf("expected no rewrites on a second pass, got %d", n)
		}
	})

	t.Run("deleted_rows_excluded", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLedgerService(db)
		user := testutil.CreateTestUser(t, db)
		gone := testutil.CreateRawTransaction(t, db, user.ID, nil, "2024-01-01", models.TransactionTypeCashIn, "100")
		kept := testutil.CreateRawTransaction(t, db, user.ID, nil, "2024-01-02", models.TransactionTypeCashIn, "1")
		testutil.AssertNoError(t, db.Model(gone).Update("is_deleted", true).Error)

		_, err := svc.RecomputePartition(db, ledger.ForUser(user.ID))
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, "kept", balanceOf(t, db, kept.ID), "1.00")
	})

	t.Run("user_partition_ignores_book_rows", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLedgerService(db)
		user := testutil.CreateTestUser(t, db)
		book := testutil.CreateTestBook(t, db, user.ID)
		inBook := testutil.CreateRawTransaction(t, db, user.ID, &book.ID, "2024-01-01", models.TransactionTypeCashIn, "100")
		personal := testutil.CreateRawTransaction(t, db, user.ID, nil, "2024-01-02", models.TransactionTypeCashIn, "1")

		_, err := svc.RecomputePartition(db, ledger.ForUser(user.ID))
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, "personal", balanceOf(t, db, personal.ID), "1.00")
		if balanceOf(t, db, inBook.ID).Valid {
			t.Error("book row should not be touched by a user partition pass")
		}
	})
}

func TestLockPartition(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewLedgerService(db)
	user := testutil.CreateTestUser(t, db)
	book := testutil.CreateTestBook(t, db, user.ID)

	t.Run("existing_owners", func(t *testing.T) {
		testutil.AssertNoError(t, svc.LockPartition(db, ledger.ForBook(book.ID)))
		testutil.AssertNoError(t, svc.LockPartition(db, ledger.ForUser(user.ID)))
	})

	t.Run("missing_book", func(t *testing.T) {
		testutil.AssertAppError(t, svc.LockPartition(db, ledger.ForBook(9999)), "BOOK_NOT_FOUND")
	})

	t.Run("missing_user", func(t *testing.T) {
		testutil.AssertAppError(t, svc.LockPartition(db, ledger.ForUser(9999)), "USER_NOT_FOUND")
	})
}

func TestReconcileAll(t *testing.T) {
	t.Run("heals_every_partition", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLedgerService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		book := testutil.CreateTestBook(t, db, alice.ID)

		b1 := testutil.CreateRawTransaction(t, db, alice.ID, &book.ID, "2024-01-01", models.TransactionTypeCashIn, "10")
		b2 := testutil.CreateRawTransaction(t, db, bob.ID, &book.ID, "2024-01-02", models.TransactionTypeCashOut, "4")
		a1 := testutil.CreateRawTransaction(t, db, alice.ID, nil, "2024-01-01", models.TransactionTypeCashIn, "3")
		c1 := testutil.CreateRawTransaction(t, db, bob.ID, nil, "2024-01-01", models.TransactionTypeCashOut, "2")

		result, err := svc.ReconcileAll(context.Background())
		testutil.AssertNoError(t, err)
		if result.Partitions != 3 || result.RowsUpdated != 4 || result.Failed != 0 {
			t.Errorf("unexpected result: %+v", result)
		}
		testutil.AssertBalance(t, "b1", balanceOf(t, db, b1.ID), "10.00")
		testutil.AssertBalance(t, "b2", balanceOf(t, db, b2.ID), "6.00")
		testutil.AssertBalance(t, "a1", balanceOf(t, db, a1.ID), "3.00")
		testutil.AssertBalance(t, "c1", balanceOf(t, db, c1.ID), "-2.00")

		again, err := svc.ReconcileAll(context.Background())
		testutil.AssertNoError(t, err)
		if again.RowsUpdated != 0 {
			t.Errorf("expected a clean second pass, got %+v", again)
		}
	})

	t.Run("orphaned_book_counted_as_failure", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLedgerService(db)
		user := testutil.CreateTestUser(t, db)
		missing := uint(777)
		testutil.CreateRawTransaction(t, db, user.ID, &missing, "2024-01-01", models.TransactionTypeCashIn, "1")
		personal := testutil.CreateRawTransaction(t, db, user.ID, nil, "2024-01-01", models.TransactionTypeCashIn, "1")

		result, err := svc.ReconcileAll(context.Background())
		testutil.AssertNoError(t, err)
		if result.Failed != 1 || result.Partitions != 2 {
			t.Errorf("unexpected result: %+v", result)
		}
		testutil.AssertBalance(t, "personal", balanceOf(t, db, personal.ID), "1.00")
	})

	t.Run("cancelled_context", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLedgerService(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateRawTransaction(t, db, user.ID, nil, "2024-01-01", models.TransactionTypeCashIn, "1")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := svc.ReconcileAll(ctx); err == nil {
			t.Error("expected an error from a cancelled context")
		}
	})
}
