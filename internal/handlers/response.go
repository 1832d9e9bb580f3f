package handlers

import (
	"time"

	"cashbook/internal/ledger"
	"cashbook/internal/models"
	"cashbook/internal/services"
	"cashbook/internal/storage"
)

// Display controls how stored values are presented: the timezone for entry
// times and the base URL for receipt links.
type Display struct {
	Location *time.Location
	BaseURL  string
}

func (d Display) location() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}

const (
	displayDateLayout = "02/01/2006"
	displayTimeLayout = "15:04"
)

// UserResponse represents the user data in the response
type UserResponse struct {
	ID       uint        `json:"id"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	IsActive bool        `json:"is_active"`
	Currency string      `json:"currency"`
	Theme    string      `json:"theme"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		IsActive: u.IsActive,
		Currency: u.Currency,
		Theme:    u.Theme,
	}
}

// UserSummaryResponse is the public view of a user shown to other members.
type UserSummaryResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserSummaries(users []models.User) []UserSummaryResponse {
	out := make([]UserSummaryResponse, len(users))
	for i, u := range users {
		out[i] = UserSummaryResponse{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return out
}

func toUserResponses(users []models.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = toUserResponse(&users[i])
	}
	return out
}

// TransactionResponse is the wire form of a transaction. Amounts are strings
// with two decimals; running_balance is null until first computed.
type TransactionResponse struct {
	ID             uint                   `json:"id"`
	UserID         uint                   `json:"user_id"`
	UserName       string                 `json:"user_name"`
	BookID         *uint                  `json:"book_id"`
	Date           string                 `json:"date"`
	DateDisplay    string                 `json:"date_display"`
	Amount         string                 `json:"amount"`
	Type           models.TransactionType `json:"type"`
	Description    string                 `json:"description"`
	Category       string                 `json:"category"`
	ReceiptPath    string                 `json:"receipt_path,omitempty"`
	ReceiptURL     string                 `json:"receipt_url,omitempty"`
	RunningBalance *string                `json:"running_balance"`
	CreatedAt      time.Time              `json:"created_at"`
	CreatedAtDate  string                 `json:"created_at_date"`
	CreatedAtTime  string                 `json:"created_at_time"`
}

func (d Display) transaction(t *models.Transaction) TransactionResponse {
	created := t.CreatedAt.In(d.location())
	resp := TransactionResponse{
		ID:            t.ID,
		UserID:        t.UserID,
		BookID:        t.BookID,
		Date:          t.Date.UTC().Format(ledger.DateFormat),
		DateDisplay:   t.Date.UTC().Format(displayDateLayout),
		Amount:        t.Amount.StringFixed(2),
		Type:          t.Type,
		Description:   t.Description,
		Category:      t.Category,
		ReceiptPath:   t.ReceiptPath,
		ReceiptURL:    storage.URL(d.BaseURL, t.ReceiptPath),
		CreatedAt:     t.CreatedAt,
		CreatedAtDate: created.Format(displayDateLayout),
		CreatedAtTime: created.Format(displayTimeLayout),
	}
	if t.User != nil {
		resp.UserName = t.User.Name
	}
	if t.RunningBalance.Valid {
		s := t.RunningBalance.Decimal.StringFixed(2)
		resp.RunningBalance = &s
	}
	return resp
}

func (d Display) transactions(list []models.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, len(list))
	for i := range list {
		out[i] = d.transaction(&list[i])
	}
	return out
}

// DetailedRowResponse is a report row; balance is always present and
// balance_source says whether it was stored or derived for this view.
type DetailedRowResponse struct {
	TransactionResponse
	Balance       string `json:"balance"`
	BalanceSource string `json:"balance_source"`
}

func (d Display) detailedRows(rows []services.DetailedRow) []DetailedRowResponse {
	out := make([]DetailedRowResponse, len(rows))
	for i := range rows {
		out[i] = DetailedRowResponse{
			TransactionResponse: d.transaction(&rows[i].Transaction),
			Balance:             rows[i].Balance.StringFixed(2),
			BalanceSource:       rows[i].BalanceSource,
		}
	}
	return out
}

// SummaryResponse holds aggregate totals.
type SummaryResponse struct {
	TotalCashIn  string `json:"total_cash_in"`
	TotalCashOut string `json:"total_cash_out"`
	Balance      string `json:"balance"`
}

func toSummaryResponse(s services.Summary) SummaryResponse {
	return SummaryResponse{
		TotalCashIn:  s.TotalCashIn.StringFixed(2),
		TotalCashOut: s.TotalCashOut.StringFixed(2),
		Balance:      s.Balance.StringFixed(2),
	}
}

// GroupTotalResponse is one bucket of a grouped summary.
type GroupTotalResponse struct {
	Key     string `json:"key"`
	CashIn  string `json:"cash_in"`
	CashOut string `json:"cash_out"`
	Net     string `json:"net"`
}

func toGroupTotals(groups []services.GroupTotal) []GroupTotalResponse {
	out := make([]GroupTotalResponse, len(groups))
	for i, g := range groups {
		out[i] = GroupTotalResponse{
			Key:     g.Key,
			CashIn:  g.CashIn.StringFixed(2),
			CashOut: g.CashOut.StringFixed(2),
			Net:     g.CashIn.Sub(g.CashOut).StringFixed(2),
		}
	}
	return out
}

// BookResponse represents a book with the caller's role in it.
type BookResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	OwnerUserID uint      `json:"owner_user_id"`
	MyRole      string    `json:"my_role,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toBookResponse(b *models.Book, role string) BookResponse {
	return BookResponse{
		ID:          b.ID,
		Name:        b.Name,
		OwnerUserID: b.OwnerUserID,
		MyRole:      role,
		CreatedAt:   b.CreatedAt,
	}
}

// MemberResponse represents a book member.
type MemberResponse struct {
	UserID uint            `json:"user_id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Role   models.BookRole `json:"role"`
}

func toMemberResponse(m *models.BookMember) MemberResponse {
	resp := MemberResponse{UserID: m.UserID, Role: m.Role}
	if m.User != nil {
		resp.Name = m.User.Name
		resp.Email = m.User.Email
	}
	return resp
}
