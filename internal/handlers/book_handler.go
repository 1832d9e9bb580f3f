package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cashbook/internal/models"
	"cashbook/internal/services"
)

// BookHandler handles book and membership requests.
type BookHandler struct {
	bookService  services.BookServicer
	auditService services.AuditServicer
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(bookService services.BookServicer, auditService services.AuditServicer) *BookHandler {
	return &BookHandler{bookService: bookService, auditService: auditService}
}

// BookRequest is the payload for creating or renaming a book.
type BookRequest struct {
	Name string `json:"name" binding:"required,min=1,max=150"`
}

// AddMemberRequest is the payload for sharing a book.
type AddMemberRequest struct {
	Email string          `json:"email" binding:"required,email"`
	Role  models.BookRole `json:"role" binding:"omitempty,book_role"`
}

// ListBooks returns the books the caller owns or is a member of
// @Summary     List books
// @Tags        books
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string][]BookResponse "Books"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /books [get]
func (h *BookHandler) ListBooks(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	books, err := h.bookService.ListBooks(actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	out := make([]BookResponse, len(books))
	for i := range books {
		out[i] = toBookResponse(&books[i].Book, books[i].MyRole)
	}
	c.JSON(http.StatusOK, gin.H{"books": out})
}

// CreateBook creates a book owned by the caller
// @Summary     Create book
// @Tags        books
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body BookRequest true "Book"
// @Success     201 {object} BookResponse "Created book"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /books [post]
func (h *BookHandler) CreateBook(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	book, err := h.bookService.CreateBook(actor, req.Name)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"book": toBookResponse(book, services.BookRoleOwner)})
}

// GetBook returns one book
// @Summary     Get book
// @Tags        books
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Book ID"
// @Success     200 {object} BookResponse "Book"
// @Failure     403 {object} ErrorResponse "No access"
// @Failure     404 {object} ErrorResponse "Book not found"
// @Router      /books/{id} [get]
func (h *BookHandler) GetBook(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	bookID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	book, err := h.bookService.GetBook(actor, bookID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"book": toBookResponse(book, "")})
}

// RenameBook renames a book
// @Summary     Rename book
// @Description Only the owner may rename a book.
// @Tags        books
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int         true "Book ID"
// @Param       request body BookRequest true "New name"
// @Success     200 {object} BookResponse "Renamed book"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Book not found"
// @Router      /books/{id} [patch]
func (h *BookHandler) RenameBook(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	bookID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	book, err := h.bookService.RenameBook(actor, bookID, req.Name)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"book": toBookResponse(book, services.BookRoleOwner)})
}

// DeleteBook deletes a book; its transactions move to their creators' personal ledgers
// @Summary     Delete book
// @Tags        books
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Book ID"
// @Success     200 {object} OKResponse
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Book not found"
// @Router      /books/{id} [delete]
func (h *BookHandler) DeleteBook(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	bookID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.bookService.DeleteBook(actor, bookID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.UserID, models.AuditActionBookDelete, "book", bookID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, OKResponse{OK: true})
}

// DuplicateBook copies a book's name and members into a new book
// @Summary     Duplicate book
// @Tags        books
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Book ID"
// @Success     201 {object} BookResponse "New book"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Router      /books/{id}/duplicate [post]
func (h *BookHandler) DuplicateBook(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	bookID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	book, err := h.bookService.DuplicateBook(actor, bookID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"book": toBookResponse(book, services.BookRoleOwner)})
}

// ListMembers lists the members of a book
// @Summary     List members
// @Tags        books
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Book ID"
// @Success     200 {object} map[string][]MemberResponse "Members"
// @Failure     403 {object} ErrorResponse "No access"
// @Router      /books/{id}/members [get]
func (h *BookHandler) ListMembers(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	bookID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	members, err := h.bookService.ListMembers(actor, bookID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	out := make([]MemberResponse, len(members))
	for i := range members {
		out[i] = toMemberResponse(&members[i])
	}
	c.JSON(http.StatusOK, gin.H{"members": out})
}

// AddMember shares a book with a registered user
// @Summary     Add member
// @Description Adds the user with the given email, or changes their role if already a member.
// @Tags        books
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int              true "Book ID"
// @Param       request body AddMemberRequest true "Member"
// @Success     201 {object} MemberResponse "Member"
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /books/{id}/members [post]
func (h *BookHandler) AddMember(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	bookID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}
	if req.Role == "" {
		req.Role = models.BookRoleMember
	}

	member, err := h.bookService.AddMember(actor, bookID, req.Email, req.Role)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.UserID, models.AuditActionMemberAdd, "book", bookID, c.ClientIP(),
		map[string]interface{}{"member_user_id": member.UserID, "role": member.Role})

	c.JSON(http.StatusCreated, gin.H{"member": toMemberResponse(member)})
}

// RemoveMember revokes a user's access to a book
// @Summary     Remove member
// @Tags        books
// @Produce     json
// @Security    BearerAuth
// @Param       id     path int true "Book ID"
// @Param       userId path int true "Member user ID"
// @Success     200 {object} OKResponse
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "Member not found"
// @Router      /books/{id}/members/{userId} [delete]
func (h *BookHandler) RemoveMember(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	bookID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	memberID, err := parsePathID(c, "userId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.bookService.RemoveMember(actor, bookID, memberID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.UserID, models.AuditActionMemberRemove, "book", bookID, c.ClientIP(),
		map[string]interface{}{"member_user_id": memberID})

	c.JSON(http.StatusOK, OKResponse{OK: true})
}
