package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmountConfiguration marks amount or VAT fields that cannot be derived.
	ErrInvalidAmountConfiguration = errors.New("ledger: invalid amount configuration")
	// ErrInvalidEntryType marks an unknown withdrawal/deposit code.
	ErrInvalidEntryType = errors.New("ledger: invalid entry type")
	ErrAccountNotFound     = errors.New("ledger: account not found")
	ErrInvoiceNotFound     = errors.New("ledger: invoice not found")
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	ErrPayeeNotFound       = errors.New("ledger: payee not found")
	// ErrDuplicateSlug indicates an account slug is already taken.
	ErrDuplicateSlug = errors.New("ledger: duplicate account slug")
	// ErrInvoiceAlreadyPaid is returned when paying an invoice that has a payment date.
	ErrInvoiceAlreadyPaid = errors.New("ledger: invoice already paid")
)

// InvalidAmountConfigurationError describes which field made derivation impossible.
type InvalidAmountConfigurationError struct {
	Field  string
	Reason string
}

func (e *InvalidAmountConfigurationError) Error() string {
	return fmt.Sprintf("ledger: invalid amount configuration: %s %s", e.Field, e.Reason)
}

func (e *InvalidAmountConfigurationError) Unwrap() error {
	return ErrInvalidAmountConfiguration
}

// ValidationError wraps struct validation failures.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: validation failed: %v", e.Fields)
}
