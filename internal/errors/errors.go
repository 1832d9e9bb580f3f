// Package errors provides the error taxonomy for the cashbook API.
// Service-layer errors are AppErrors so handlers can return consistent
// responses without leaking internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target carries the same code, so wrapped copies of a
// sentinel still match it with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
	ErrInvalidSecretCode  = &AppError{Code: "INVALID_SECRET_CODE", Message: "Invalid secret code", StatusCode: http.StatusForbidden}
	ErrUserInactive       = &AppError{Code: "USER_INACTIVE", Message: "User is deactivated", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
	ErrWrongPassword  = &AppError{Code: "WRONG_PASSWORD", Message: "Current password is incorrect", StatusCode: http.StatusUnauthorized}
)

// Book errors.
var (
	ErrBookNotFound = &AppError{Code: "BOOK_NOT_FOUND", Message: "Book not found", StatusCode: http.StatusNotFound}
	ErrNotBookOwner = &AppError{Code: "NOT_BOOK_OWNER", Message: "Only the book owner may do this", StatusCode: http.StatusForbidden}
	ErrBookAccess   = &AppError{Code: "FORBIDDEN", Message: "Access denied to book", StatusCode: http.StatusForbidden}
)

// Transaction errors.
var (
	ErrTransactionNotFound    = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidTransactionType = &AppError{Code: "INVALID_TRANSACTION_TYPE", Message: "Type must be CASH_IN or CASH_OUT", StatusCode: http.StatusBadRequest}
	ErrBalanceOutOfRange      = &AppError{Code: "BALANCE_OUT_OF_RANGE", Message: "Running balance would exceed 9999999999.99", StatusCode: http.StatusBadRequest}
	ErrRecomputationFailed    = &AppError{Code: "RECOMPUTATION_FAILED", Message: "Could not update running balances; the change was not saved", StatusCode: http.StatusInternalServerError}
)

// Receipt errors.
var (
	ErrReceiptMissing  = &AppError{Code: "RECEIPT_MISSING", Message: "No file uploaded", StatusCode: http.StatusBadRequest}
	ErrReceiptTooLarge = &AppError{Code: "RECEIPT_TOO_LARGE", Message: "Receipt file is too large", StatusCode: http.StatusRequestEntityTooLarge}
)

// Pipeline errors.
var (
	ErrPipelineNotConfigured = &AppError{Code: "PIPELINE_NOT_CONFIGURED", Message: "Reconciliation endpoint is disabled: PIPELINE_API_KEY is not set", StatusCode: http.StatusServiceUnavailable}
	ErrInvalidAPIKey         = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
)
