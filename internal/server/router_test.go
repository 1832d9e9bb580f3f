package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"cashbook/internal/config"
	"cashbook/internal/logger"
	"cashbook/internal/storage"
	"cashbook/internal/testutil"
	"cashbook/internal/validator"
)

const testAPIKey = "pipeline-test-key"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// testApp holds the full application stack backed by an isolated in-memory SQLite.
type testApp struct {
	*App
	uploadDir string
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:        "router-test-secret",
		JWTExpirationDur: time.Hour,
		UploadDir:        t.TempDir(),
		MaxUploadBytes:   1 << 20,
		DisplayTimezone:  time.UTC,
		PipelineAPIKey:   testAPIKey,
		PublicBaseURL:    "http://cash.test",
	}
	config.Set(cfg)

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	receipts, err := storage.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		t.Fatalf("failed to create receipt store: %v", err)
	}

	return &testApp{App: New(cfg, db, receipts), uploadDir: cfg.UploadDir}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new user and returns the token and user ID.
func (app *testApp) registerUser(t *testing.T, name, email string) (string, uint) {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"email":%q,"password":"password123"}`, name, email)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["token"].(string), uint(user["id"].(float64))
}

// createTransaction posts a transaction and returns its id and running balance.
func (app *testApp) createTransaction(t *testing.T, token, body string) (uint, string) {
	t.Helper()
	rec := app.request("POST", "/api/v1/transactions", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction failed: %d %s", rec.Code, rec.Body.String())
	}
	tx := parseJSON(t, rec)["transaction"].(map[string]interface{})
	balance, _ := tx["running_balance"].(string)
	return uint(tx["id"].(float64)), balance
}

// balances lists a ledger and returns running balances keyed by transaction id.
func (app *testApp) balances(t *testing.T, token, query string) map[uint]string {
	t.Helper()
	rec := app.request("GET", "/api/v1/transactions"+query, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("list failed: %d %s", rec.Code, rec.Body.String())
	}
	out := map[uint]string{}
	for _, item := range parseJSON(t, rec)["data"].([]interface{}) {
		tx := item.(map[string]interface{})
		balance, _ := tx["running_balance"].(string)
		out[uint(tx["id"].(float64))] = balance
	}
	return out
}

func TestHealth(t *testing.T) {
	app := setupApp(t)

	rec := app.request("GET", "/api/health", "", "")

	if rec.Code != http.StatusOK || parseJSON(t, rec)["status"] != "ok" {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestPersonalLedgerFlow(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "Alice", "alice@example.com")

	t1, b1 := app.createTransaction(t, token, `{"date":"2024-01-01","amount":"100","type":"CASH_IN","description":"T1"}`)
	t2, b2 := app.createTransaction(t, token, `{"date":"2024-01-02","amount":"30","type":"CASH_OUT","description":"T2"}`)
	if b1 != "100.00" || b2 != "70.00" {
		t.Fatalf("expected 100.00 and 70.00, got %s and %s", b1, b2)
	}

	// Backdated entry shifts every later balance.
	t3, b3 := app.createTransaction(t, token, `{"date":"2024-01-01","amount":"50","type":"CASH_IN","description":"T3"}`)
	if b3 != "150.00" {
		t.Errorf("expected T3 balance 150.00, got %s", b3)
	}
	got := app.balances(t, token, "")
	if got[t1] != "100.00" || got[t3] != "150.00" || got[t2] != "120.00" {
		t.Errorf("unexpected balances after backdated insert: %v", got)
	}

	t.Run("delete and restore", func(t *testing.T) {
		rec := app.request("DELETE", fmt.Sprintf("/api/v1/transactions/%d", t1), "", token)
		if rec.Code != http.StatusOK || parseJSON(t, rec)["ok"] != true {
			t.Fatalf("delete failed: %d %s", rec.Code, rec.Body.String())
		}
		got := app.balances(t, token, "")
		if _, listed := got[t1]; listed {
			t.Error("deleted transaction must not be listed")
		}
		if got[t3] != "50.00" || got[t2] != "20.00" {
			t.Errorf("unexpected balances after delete: %v", got)
		}

		// Deleting twice is a no-op.
		rec = app.request("DELETE", fmt.Sprintf("/api/v1/transactions/%d", t1), "", token)
		if rec.Code != http.StatusOK {
			t.Fatalf("second delete failed: %d", rec.Code)
		}

		rec = app.request("POST", fmt.Sprintf("/api/v1/transactions/%d/restore", t1), "", token)
		if rec.Code != http.StatusOK {
			t.Fatalf("restore failed: %d %s", rec.Code, rec.Body.String())
		}
		got = app.balances(t, token, "")
		if got[t1] != "100.00" || got[t3] != "150.00" || got[t2] != "120.00" {
			t.Errorf("unexpected balances after restore: %v", got)
		}
	})

	t.Run("update amount", func(t *testing.T) {
		rec := app.request("PUT", fmt.Sprintf("/api/v1/transactions/%d", t1), `{"amount":"10"}`, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("update failed: %d %s", rec.Code, rec.Body.String())
		}
		got := app.balances(t, token, "")
		if got[t1] != "10.00" || got[t3] != "60.00" || got[t2] != "30.00" {
			t.Errorf("unexpected balances after update: %v", got)
		}
	})

	t.Run("dashboard totals match", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/dashboard/summary?limit=2", "", token)
		if rec.Code != http.StatusOK {
			t.Fatalf("dashboard failed: %d %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["total_cash_in"] != "60.00" || result["total_cash_out"] != "30.00" || result["balance"] != "30.00" {
			t.Errorf("unexpected totals %v", result)
		}
		if recent := result["recent"].([]interface{}); len(recent) != 2 {
			t.Errorf("expected 2 recent entries, got %d", len(recent))
		}
	})

	t.Run("future date is rejected", func(t *testing.T) {
		future := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
		rec := app.request("POST", "/api/v1/transactions",
			fmt.Sprintf(`{"date":%q,"amount":"1","type":"CASH_IN"}`, future), token)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("csv export", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/reports/export/csv", "", token)
		if rec.Code != http.StatusOK {
			t.Fatalf("export failed: %d %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "Cash Out") {
			t.Errorf("expected footer in export, got %q", rec.Body.String())
		}
	})
}

func TestSharedBookFlow(t *testing.T) {
	app := setupApp(t)
	ownerToken, _ := app.registerUser(t, "Owner", "owner@example.com")
	memberToken, _ := app.registerUser(t, "Member", "member@example.com")
	strangerToken, _ := app.registerUser(t, "Stranger", "stranger@example.com")

	rec := app.request("POST", "/api/v1/books", `{"name":"Shop"}`, ownerToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create book failed: %d %s", rec.Code, rec.Body.String())
	}
	bookID := uint(parseJSON(t, rec)["book"].(map[string]interface{})["id"].(float64))

	rec = app.request("POST", fmt.Sprintf("/api/v1/books/%d/members", bookID), `{"email":"member@example.com"}`, ownerToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add member failed: %d %s", rec.Code, rec.Body.String())
	}

	ownerTx, _ := app.createTransaction(t, ownerToken,
		fmt.Sprintf(`{"book_id":%d,"date":"2024-02-01","amount":"200","type":"CASH_IN"}`, bookID))
	memberTx, memberBalance := app.createTransaction(t, memberToken,
		fmt.Sprintf(`{"book_id":%d,"date":"2024-02-02","amount":"50","type":"CASH_OUT"}`, bookID))
	if memberBalance != "150.00" {
		t.Errorf("expected shared balance 150.00, got %s", memberBalance)
	}

	// A personal entry does not touch the book's sequence.
	_, personal := app.createTransaction(t, memberToken, `{"date":"2024-02-01","amount":"5","type":"CASH_IN"}`)
	if personal != "5.00" {
		t.Errorf("expected personal balance 5.00, got %s", personal)
	}

	t.Run("stranger cannot read the book", func(t *testing.T) {
		rec := app.request("GET", fmt.Sprintf("/api/v1/transactions?book_id=%d", bookID), "", strangerToken)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("member cannot edit the owner's entry", func(t *testing.T) {
		rec := app.request("PUT", fmt.Sprintf("/api/v1/transactions/%d", ownerTx), `{"amount":"1"}`, memberToken)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("details report", func(t *testing.T) {
		rec := app.request("GET", fmt.Sprintf("/api/v1/reports/details?book_id=%d", bookID), "", ownerToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("details failed: %d %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["title"] != "Shop Report" {
			t.Errorf("expected book title, got %v", result["title"])
		}
		rows := result["rows"].([]interface{})
		if len(rows) != 2 || rows[0].(map[string]interface{})["balance"] != "150.00" {
			t.Errorf("unexpected rows %v", rows)
		}
	})

	t.Run("receipt upload is served", func(t *testing.T) {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		part, _ := w.CreateFormFile("receipt", "bill.txt")
		_, _ = part.Write([]byte("receipt-bytes"))
		_ = w.Close()

		req := httptest.NewRequest("POST", fmt.Sprintf("/api/v1/transactions/%d/receipt", memberTx), &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+memberToken)
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("upload failed: %d %s", rec.Code, rec.Body.String())
		}

		tx := parseJSON(t, rec)["transaction"].(map[string]interface{})
		receiptPath := tx["receipt_path"].(string)
		if !strings.HasPrefix(receiptPath, storage.PublicPrefix+"/") {
			t.Fatalf("unexpected receipt path %q", receiptPath)
		}
		if _, err := os.Stat(filepath.Join(app.uploadDir, filepath.Base(receiptPath))); err != nil {
			t.Errorf("receipt not written: %v", err)
		}

		rec = app.request("GET", "/"+receiptPath, "", "")
		if rec.Code != http.StatusOK || rec.Body.String() != "receipt-bytes" {
			t.Errorf("expected receipt to be served, got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("deleting the book moves entries to personal ledgers", func(t *testing.T) {
		rec := app.request("DELETE", fmt.Sprintf("/api/v1/books/%d", bookID), "", ownerToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("delete book failed: %d %s", rec.Code, rec.Body.String())
		}
		got := app.balances(t, memberToken, "")
		if got[memberTx] != "-45.00" {
			t.Errorf("expected member's moved entry to balance -45.00, got %v", got)
		}
	})
}

func TestAccessControl(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "Bob", "bob@example.com")

	t.Run("missing token", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/transactions", "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("admin routes need the admin role", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/admin/users", "", token)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("admin can list users", func(t *testing.T) {
		if _, err := app.Users.EnsureAdmin("root@example.com", "password123"); err != nil {
			t.Fatalf("EnsureAdmin: %v", err)
		}
		rec := app.request("POST", "/api/v1/auth/login", `{"email":"root@example.com","password":"password123"}`, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("admin login failed: %d %s", rec.Code, rec.Body.String())
		}
		adminToken := parseJSON(t, rec)["token"].(string)

		rec = app.request("GET", "/api/v1/admin/users", "", adminToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if total := parseJSON(t, rec)["total_items"]; total != float64(2) {
			t.Errorf("expected 2 users, got %v", total)
		}
	})

	t.Run("pipeline requires the api key", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/pipeline/reconcile", "", token)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}

		req := httptest.NewRequest("POST", "/api/v1/pipeline/reconcile", nil)
		req.Header.Set("X-API-Key", testAPIKey)
		rec = httptest.NewRecorder()
		app.Router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if _, ok := parseJSON(t, rec)["partitions"]; !ok {
			t.Errorf("expected reconcile result, got %s", rec.Body.String())
		}
	})
}

func TestProfileAndUserLookup(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "Alice", "alice@example.com")
	_, bobID := app.registerUser(t, "Bob Stone", "bob@example.com")

	t.Run("update profile", func(t *testing.T) {
		rec := app.request("PUT", "/api/v1/profile", `{"name":"Alicia","email":"alicia@example.com"}`, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("update profile failed: %d %s", rec.Code, rec.Body.String())
		}
		user := parseJSON(t, rec)["user"].(map[string]interface{})
		if user["name"] != "Alicia" || user["email"] != "alicia@example.com" {
			t.Errorf("unexpected profile %v", user)
		}

		rec = app.request("PUT", "/api/v1/profile", `{"email":"bob@example.com"}`, token)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409 for a taken email, got %d", rec.Code)
		}
	})

	t.Run("change password", func(t *testing.T) {
		rec := app.request("PUT", "/api/v1/profile/password",
			`{"current_password":"wrong-password","new_password":"brand-new-pass"}`, token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
		}

		rec = app.request("PUT", "/api/v1/profile/password",
			`{"current_password":"password123","new_password":"brand-new-pass"}`, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("change password failed: %d %s", rec.Code, rec.Body.String())
		}

		rec = app.request("POST", "/api/v1/auth/login", `{"email":"alicia@example.com","password":"brand-new-pass"}`, "")
		if rec.Code != http.StatusOK {
			t.Errorf("login with new password failed: %d", rec.Code)
		}
	})

	t.Run("search and batch", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/users/search?q=stone", "", token)
		if rec.Code != http.StatusOK {
			t.Fatalf("search failed: %d", rec.Code)
		}
		users := parseJSON(t, rec)["users"].([]interface{})
		if len(users) != 1 || uint(users[0].(map[string]interface{})["id"].(float64)) != bobID {
			t.Errorf("expected only bob, got %v", users)
		}

		rec = app.request("GET", fmt.Sprintf("/api/v1/users/batch?ids=%d", bobID), "", token)
		if rec.Code != http.StatusOK {
			t.Fatalf("batch failed: %d", rec.Code)
		}
		if users := parseJSON(t, rec)["users"].([]interface{}); len(users) != 1 {
			t.Errorf("expected one user, got %v", users)
		}

		if rec := app.request("GET", "/api/v1/users/search", "", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 without token, got %d", rec.Code)
		}
	})
}
