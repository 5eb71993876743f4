package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateUsername   = errors.New("username already taken")
	ErrCapacityExceeded    = errors.New("account limit reached")
	ErrInvalidCredentials  = errors.New("too many failed login attempts")
	ErrWrongCredentials    = errors.New("invalid credentials")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidCheckCode    = errors.New("invalid or already used check code")
	ErrUserNotFound        = errors.New("user not found")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrLogUnavailable      = errors.New("audit log unavailable")
	ErrSnapshotCorrupt     = errors.New("snapshot corrupt")
	ErrInvalidAmount       = errors.New("amount must be positive with at most two decimal places")
	ErrSelfTransfer        = errors.New("cannot transfer to the same account")
	ErrCheckOutstanding    = errors.New("a check is already outstanding")
	ErrCheckCodesExhausted = errors.New("no free check codes")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// DurabilityError reports that a mutation was applied in memory but could not be
// made durable. It is a warning: the mutation is not rolled back.
type DurabilityError struct {
	Op    string
	Cause error
}

func (e *DurabilityError) Error() string {
	return fmt.Sprintf("durability warning during '%s': %v", e.Op, e.Cause)
}

func (e *DurabilityError) Unwrap() error {
	return e.Cause
}

func NewDurabilityError(op string, cause error) error {
	return &DurabilityError{
		Op:    op,
		Cause: cause,
	}
}

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsWarning reports whether err consists only of durability warnings, meaning
// the operation that returned it completed.
func IsWarning(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !IsWarning(e) {
				return false
			}
		}
		return true
	}
	var durabilityErr *DurabilityError
	return errors.As(err, &durabilityErr)
}
