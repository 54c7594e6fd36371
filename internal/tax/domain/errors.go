package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPriceEntries = errors.New("invalid_price_entries")
	ErrNegativeValue       = errors.New("negative_value")
	ErrNonFiniteValue      = errors.New("non_finite_value")
	ErrInvalidExchangeRate = errors.New("invalid_exchange_rate")
	ErrInvalidPriceBasis   = errors.New("invalid_price_basis")
)

// ValidationError names the input field that made a calculation fail.
// errors.Is matches the sentinel for its code.
type ValidationError struct {
	Field   string
	Code    error
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Code
}

func newValidationError(field string, code error, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

func NegativeValue(field string) error {
	return newValidationError(field, ErrNegativeValue, "must not be negative")
}

func NonFiniteValue(field string) error {
	return newValidationError(field, ErrNonFiniteValue, "must be a finite number")
}

func InvalidExchangeRate(field string) error {
	return newValidationError(field, ErrInvalidExchangeRate, "must be greater than zero")
}

func InvalidPriceBasis(field, got string) error {
	return newValidationError(field, ErrInvalidPriceBasis, fmt.Sprintf("unknown price basis %q", got))
}

func InvalidPriceEntries(field string) error {
	return newValidationError(field, ErrInvalidPriceEntries, "at least one price calculation is required")
}
