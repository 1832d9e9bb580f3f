package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cashbook/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPartition(t *testing.T) {
	t.Run("book_takes_precedence", func(t *testing.T) {
		bookID := uint(7)
		p := Of(&bookID, 3)
		if p != ForBook(7) {
			t.Errorf("expected book:7, got %s", p)
		}
	})

	t.Run("user_when_no_book", func(t *testing.T) {
		p := Of(nil, 3)
		if p != ForUser(3) {
			t.Errorf("expected user:3, got %s", p)
		}
		if p.String() != "user:3" {
			t.Errorf("unexpected string form %q", p.String())
		}
	})

	t.Run("usable_as_map_key", func(t *testing.T) {
		seen := map[Partition]int{}
		seen[ForBook(1)]++
		seen[ForBook(1)]++
		seen[ForUser(1)]++
		if seen[ForBook(1)] != 2 || seen[ForUser(1)] != 1 {
			t.Errorf("unexpected counts: %v", seen)
		}
	})
}

func TestRunningBalances(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if got := RunningBalances(nil); len(got) != 0 {
			t.Errorf("expected no balances, got %v", got)
		}
	})

	t.Run("same_date_tie_broken_by_id", func(t *testing.T) {
		entries := []Entry{
			{ID: 2, Date: day("2024-01-02"), Type: models.TransactionTypeCashOut, Amount: decimal.NewFromInt(40)},
			{ID: 3, Date: day("2024-01-01"), Type: models.TransactionTypeCashIn, Amount: decimal.NewFromInt(10)},
			{ID: 1, Date: day("2024-01-01"), Type: models.TransactionTypeCashIn, Amount: decimal.NewFromInt(100)},
		}
		SortEntries(entries)

		wantOrder := []uint{1, 3, 2}
		wantBal := []string{"100.00", "110.00", "70.00"}
		got := RunningBalances(entries)
		for i := range entries {
			if entries[i].ID != wantOrder[i] {
				t.Errorf("position %d: expected id %d, got %d", i, wantOrder[i], entries[i].ID)
			}
			if got[i].StringFixed(2) != wantBal[i] {
				t.Errorf("position %d: expected balance %s, got %s", i, wantBal[i], got[i].StringFixed(2))
			}
		}
	})

	t.Run("rounds_to_cents", func(t *testing.T) {
		entries := []Entry{
			{ID: 1, Date: day("2024-01-01"), Type: models.TransactionTypeCashIn, Amount: decimal.RequireFromString("0.10")},
			{ID: 2, Date: day("2024-01-01"), Type: models.TransactionTypeCashIn, Amount: decimal.RequireFromString("0.20")},
			{ID: 3, Date: day("2024-01-01"), Type: models.TransactionTypeCashOut, Amount: decimal.RequireFromString("1.005")},
		}
		got := RunningBalances(entries)
		if got[1].StringFixed(2) != "0.30" {
			t.Errorf("expected 0.30, got %s", got[1].StringFixed(2))
		}
		if got[2].StringFixed(2) != "-0.71" {
			t.Errorf("expected -0.71, got %s", got[2].StringFixed(2))
		}
	})
}

func TestParseDate(t *testing.T) {
	t.Run("plain_date", func(t *testing.T) {
		got, err := ParseDate("2024-03-05")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(day("2024-03-05")) {
			t.Errorf("unexpected date %v", got)
		}
	})

	t.Run("timestamp_keeps_calendar_day", func(t *testing.T) {
		got, err := ParseDate("2024-03-05T23:30:00+05:30")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(day("2024-03-05")) {
			t.Errorf("unexpected date %v", got)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := ParseDate("05/03/2024"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestWithinLimit(t *testing.T) {
	cases := map[string]bool{
		"0":              true,
		"9999999999.99":  true,
		"-9999999999.99": true,
		"10000000000":    false,
		"-10000000000":   false,
	}
	for in, want := range cases {
		if got := WithinLimit(decimal.RequireFromString(in)); got != want {
			t.Errorf("WithinLimit(%s) = %v, want %v", in, got, want)
		}
	}
}
