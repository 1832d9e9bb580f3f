package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/models"
	"cashbook/internal/services"
)

type mockBookService struct {
	createFn       func(actor services.Actor, name string) (*models.Book, error)
	listFn         func(actor services.Actor) ([]services.BookWithRole, error)
	getFn          func(actor services.Actor, bookID uint) (*models.Book, error)
	renameFn       func(actor services.Actor, bookID uint, name string) (*models.Book, error)
	deleteFn       func(actor services.Actor, bookID uint) error
	duplicateFn    func(actor services.Actor, bookID uint) (*models.Book, error)
	listMembersFn  func(actor services.Actor, bookID uint) ([]models.BookMember, error)
	addMemberFn    func(actor services.Actor, bookID uint, email string, role models.BookRole) (*models.BookMember, error)
	removeMemberFn func(actor services.Actor, bookID, userID uint) error
}

func (m *mockBookService) CreateBook(actor services.Actor, name string) (*models.Book, error) {
	if m.createFn != nil {
		return m.createFn(actor, name)
	}
	return &models.Book{Name: name, OwnerUserID: actor.UserID}, nil
}

func (m *mockBookService) ListBooks(actor services.Actor) ([]services.BookWithRole, error) {
	if m.listFn != nil {
		return m.listFn(actor)
	}
	return nil, nil
}

func (m *mockBookService) GetBook(actor services.Actor, bookID uint) (*models.Book, error) {
	if m.getFn != nil {
		return m.getFn(actor, bookID)
	}
	return &models.Book{Base: models.Base{ID: bookID}}, nil
}

func (m *mockBookService) RenameBook(actor services.Actor, bookID uint, name string) (*models.Book, error) {
	if m.renameFn != nil {
		return m.renameFn(actor, bookID, name)
	}
	return &models.Book{Base: models.Base{ID: bookID}, Name: name}, nil
}

func (m *mockBookService) DeleteBook(actor services.Actor, bookID uint) error {
	if m.deleteFn != nil {
		return m.deleteFn(actor, bookID)
	}
	return nil
}

func (m *mockBookService) DuplicateBook(actor services.Actor, bookID uint) (*models.Book, error) {
	if m.duplicateFn != nil {
		return m.duplicateFn(actor, bookID)
	}
	return &models.Book{Base: models.Base{ID: bookID + 1}}, nil
}

func (m *mockBookService) ListMembers(actor services.Actor, bookID uint) ([]models.BookMember, error) {
	if m.listMembersFn != nil {
		return m.listMembersFn(actor, bookID)
	}
	return nil, nil
}

func (m *mockBookService) AddMember(actor services.Actor, bookID uint, email string, role models.BookRole) (*models.BookMember, error) {
	if m.addMemberFn != nil {
		return m.addMemberFn(actor, bookID, email, role)
	}
	return &models.BookMember{BookID: bookID, Role: role}, nil
}

func (m *mockBookService) RemoveMember(actor services.Actor, bookID, userID uint) error {
	if m.removeMemberFn != nil {
		return m.removeMemberFn(actor, bookID, userID)
	}
	return nil
}

func (m *mockBookService) CheckAccess(_ services.Actor, bookID uint) (*models.Book, error) {
	return &models.Book{Base: models.Base{ID: bookID}}, nil
}

var _ services.BookServicer = (*mockBookService)(nil)

func setupBookRouter(handler *BookHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(1))
	auth.GET("/books", handler.ListBooks)
	auth.POST("/books", handler.CreateBook)
	auth.GET("/books/:id", handler.GetBook)
	auth.PATCH("/books/:id", handler.RenameBook)
	auth.DELETE("/books/:id", handler.DeleteBook)
	auth.POST("/books/:id/duplicate", handler.DuplicateBook)
	auth.GET("/books/:id/members", handler.ListMembers)
	auth.POST("/books/:id/members", handler.AddMember)
	auth.DELETE("/books/:id/members/:userId", handler.RemoveMember)
	return r
}

func TestBookHandler_ListAndCreate(t *testing.T) {
	t.Run("lists books with roles", func(t *testing.T) {
		svc := &mockBookService{
			listFn: func(_ services.Actor) ([]services.BookWithRole, error) {
				return []services.BookWithRole{
					{Book: models.Book{Base: models.Base{ID: 1}, Name: "Home", OwnerUserID: 1}, MyRole: services.BookRoleOwner},
					{Book: models.Book{Base: models.Base{ID: 2}, Name: "Shop", OwnerUserID: 7}, MyRole: string(models.BookRoleViewer)},
				}, nil
			},
		}
		r := setupBookRouter(NewBookHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/books", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		books := parseJSON(t, rec)["books"].([]interface{})
		if len(books) != 2 {
			t.Fatalf("expected 2 books, got %d", len(books))
		}
		second := books[1].(map[string]interface{})
		if second["name"] != "Shop" || second["my_role"] != "VIEWER" {
			t.Errorf("unexpected book %v", second)
		}
	})

	t.Run("empty list is an array", func(t *testing.T) {
		r := setupBookRouter(NewBookHandler(&mockBookService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/books", "")

		if _, ok := parseJSON(t, rec)["books"].([]interface{}); !ok {
			t.Errorf("expected books array, got %s", rec.Body.String())
		}
	})

	t.Run("creates book", func(t *testing.T) {
		var gotName string
		svc := &mockBookService{
			createFn: func(actor services.Actor, name string) (*models.Book, error) {
				gotName = name
				return &models.Book{Base: models.Base{ID: 3}, Name: name, OwnerUserID: actor.UserID}, nil
			},
		}
		r := setupBookRouter(NewBookHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/books", `{"name":"Trip"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		book := parseJSON(t, rec)["book"].(map[string]interface{})
		if gotName != "Trip" || book["my_role"] != "OWNER" || book["owner_user_id"] != float64(1) {
			t.Errorf("unexpected book %v", book)
		}
	})

	t.Run("rejects missing name", func(t *testing.T) {
		r := setupBookRouter(NewBookHandler(&mockBookService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/books", `{}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestBookHandler_OwnerOperations(t *testing.T) {
	t.Run("rename by non-owner is forbidden", func(t *testing.T) {
		svc := &mockBookService{
			renameFn: func(_ services.Actor, _ uint, _ string) (*models.Book, error) {
				return nil, apperrors.ErrNotBookOwner
			},
		}
		r := setupBookRouter(NewBookHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PATCH", "/books/2", `{"name":"Mine"}`)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "NOT_BOOK_OWNER")
	})

	t.Run("delete is audited", func(t *testing.T) {
		var deleted uint
		svc := &mockBookService{
			deleteFn: func(_ services.Actor, bookID uint) error {
				deleted = bookID
				return nil
			},
		}
		audit := &mockAuditService{}
		r := setupBookRouter(NewBookHandler(svc, audit))

		rec := doRequest(r, "DELETE", "/books/4", "")

		if rec.Code != http.StatusOK || deleted != 4 {
			t.Fatalf("expected 200 deleting 4, got %d %d", rec.Code, deleted)
		}
		if audit.lastAction() != models.AuditActionBookDelete {
			t.Errorf("expected BOOK_DELETE audit, got %q", audit.lastAction())
		}
	})

	t.Run("get missing book", func(t *testing.T) {
		svc := &mockBookService{
			getFn: func(_ services.Actor, _ uint) (*models.Book, error) {
				return nil, apperrors.ErrBookNotFound
			},
		}
		r := setupBookRouter(NewBookHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/books/99", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("duplicate returns 201", func(t *testing.T) {
		r := setupBookRouter(NewBookHandler(&mockBookService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/books/4/duplicate", "")

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		book := parseJSON(t, rec)["book"].(map[string]interface{})
		if book["id"] != float64(5) {
			t.Errorf("unexpected book %v", book)
		}
	})
}

func TestBookHandler_Members(t *testing.T) {
	t.Run("add member defaults role", func(t *testing.T) {
		var gotRole models.BookRole
		var gotEmail string
		svc := &mockBookService{
			addMemberFn: func(_ services.Actor, bookID uint, email string, role models.BookRole) (*models.BookMember, error) {
				gotRole, gotEmail = role, email
				return &models.BookMember{BookID: bookID, UserID: 8, Role: role, User: &models.User{Name: "Bob", Email: email}}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupBookRouter(NewBookHandler(svc, audit))

		rec := doRequest(r, "POST", "/books/4/members", `{"email":"bob@example.com"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotRole != models.BookRoleMember || gotEmail != "bob@example.com" {
			t.Errorf("unexpected args %q %q", gotRole, gotEmail)
		}
		member := parseJSON(t, rec)["member"].(map[string]interface{})
		if member["user_id"] != float64(8) || member["name"] != "Bob" {
			t.Errorf("unexpected member %v", member)
		}
		if audit.lastAction() != models.AuditActionMemberAdd {
			t.Errorf("expected MEMBER_ADD audit, got %q", audit.lastAction())
		}
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		r := setupBookRouter(NewBookHandler(&mockBookService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/books/4/members", `{"email":"bob@example.com","role":"OWNER"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		svc := &mockBookService{
			addMemberFn: func(_ services.Actor, _ uint, _ string, _ models.BookRole) (*models.BookMember, error) {
				return nil, apperrors.ErrUserNotFound
			},
		}
		r := setupBookRouter(NewBookHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/books/4/members", `{"email":"ghost@example.com","role":"VIEWER"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("lists members", func(t *testing.T) {
		svc := &mockBookService{
			listMembersFn: func(_ services.Actor, bookID uint) ([]models.BookMember, error) {
				return []models.BookMember{{BookID: bookID, UserID: 8, Role: models.BookRoleViewer}}, nil
			},
		}
		r := setupBookRouter(NewBookHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/books/4/members", "")

		members := parseJSON(t, rec)["members"].([]interface{})
		if len(members) != 1 || members[0].(map[string]interface{})["role"] != "VIEWER" {
			t.Errorf("unexpected members %v", members)
		}
	})

	t.Run("removes member", func(t *testing.T) {
		var gotBook, gotUser uint
		svc := &mockBookService{
			removeMemberFn: func(_ services.Actor, bookID, userID uint) error {
				gotBook, gotUser = bookID, userID
				return nil
			},
		}
		audit := &mockAuditService{}
		r := setupBookRouter(NewBookHandler(svc, audit))

		rec := doRequest(r, "DELETE", "/books/4/members/8", "")

		if rec.Code != http.StatusOK || gotBook != 4 || gotUser != 8 {
			t.Fatalf("unexpected result %d book=%d user=%d", rec.Code, gotBook, gotUser)
		}
		if audit.lastAction() != models.AuditActionMemberRemove {
			t.Errorf("expected MEMBER_REMOVE audit, got %q", audit.lastAction())
		}
	})
}
