// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"cashbook/internal/models"
)

var (
	currencyRegex = regexp.MustCompile(`^[A-Za-z]{3}$`)
	dateRegex     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("transaction_type", validateTransactionType)
		_ = v.RegisterValidation("book_role", validateBookRole)
		_ = v.RegisterValidation("group_by", validateGroupBy)
		_ = v.RegisterValidation("currency_code", validateCurrencyCode)
		_ = v.RegisterValidation("ledger_date", validateLedgerDate)
	}
}

func validateTransactionType(fl validator.FieldLevel) bool {
	return models.TransactionType(fl.Field().String()).Valid()
}

func validateBookRole(fl validator.FieldLevel) bool {
	switch models.BookRole(fl.Field().String()) {
	case models.BookRoleMember, models.BookRoleViewer:
		return true
	}
	return false
}

func validateGroupBy(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "category", "date":
		return true
	}
	return false
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	return currencyRegex.MatchString(fl.Field().String())
}

// validateLedgerDate only checks the YYYY-MM-DD prefix; the handler does the
// full parse so RFC3339 timestamps are accepted too.
func validateLedgerDate(fl validator.FieldLevel) bool {
	return dateRegex.MatchString(fl.Field().String())
}
