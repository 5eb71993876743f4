package validator

import (
	"regexp"
	"strings"

	"account_ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// MaxFieldLength is the longest username or password, in bytes, that fits a
// snapshot record field together with its NUL terminator.
const MaxFieldLength = 29

type AccountValidator struct {
	usernameRegex *regexp.Regexp
	passwordRegex *regexp.Regexp
}

func NewAccountValidator() *AccountValidator {
	return &AccountValidator{
		usernameRegex: regexp.MustCompile(`^[A-Za-z0-9_.@-]+$`),
		passwordRegex: regexp.MustCompile(`^[\x20-\x7E]+$`),
	}
}

func (v *AccountValidator) ValidateUsername(username string) error {
	switch {
	case username == "":
		return domain.NewValidationError("username", "must not be empty")
	case len(username) > MaxFieldLength:
		return domain.NewValidationError("username", "must be at most 29 bytes")
	case !v.usernameRegex.MatchString(username):
		return domain.NewValidationError("username", "may only contain letters, digits, '_', '.', '@' and '-'")
	}
	return nil
}

func (v *AccountValidator) ValidatePassword(password string) error {
	switch {
	case password == "":
		return domain.NewValidationError("password", "must not be empty")
	case len(password) > MaxFieldLength:
		return domain.NewValidationError("password", "must be at most 29 bytes")
	case !v.passwordRegex.MatchString(password):
		return domain.NewValidationError("password", "must be printable ASCII")
	}
	return nil
}

func (v *AccountValidator) ValidateCredentials(username, password string) error {
	if err := v.ValidateUsername(username); err != nil {
		return err
	}
	return v.ValidatePassword(password)
}

func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !domain.HasMinorUnitPrecision(amount) || !domain.FitsMinorUnits(amount) {
		return domain.ErrInvalidAmount
	}
	return nil
}

// ParseAmount reads a decimal amount as typed by an operator, e.g. "120.50".
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}
