package stabledebt

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("stabledebt: not found")
	ErrInvalidInput = errors.New("stabledebt: invalid input")

	// Debt operation errors
	ErrInvalidAmount    = errors.New("stabledebt: amount must be positive")
	ErrInvalidRate      = errors.New("stabledebt: rate must be positive")
	ErrPositionNotFound = errors.New("stabledebt: position not found")
	ErrSupplyNotFound   = errors.New("stabledebt: supply not found")
	ErrNoDebt           = errors.New("stabledebt: user has no debt")
	ErrBurnExceedsDebt  = errors.New("stabledebt: burn amount exceeds debt balance")
	ErrSupplyUnderflow  = errors.New("stabledebt: burn amount exceeds total supply")
	ErrInvalidSyncMode  = errors.New("stabledebt: invalid cross-chain sync mode")

	// Journal errors
	ErrJournalBufferFull = errors.New("stabledebt: journal buffer full")

	// Store errors
	ErrStoreNotReady     = errors.New("stabledebt: store not ready")
	ErrStoreClosed       = errors.New("stabledebt: store is closed")
	ErrTransactionFailed = errors.New("stabledebt: transaction failed")
	ErrMigrationFailed   = errors.New("stabledebt: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("stabledebt: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "stabledebt: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("stabledebt: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPositionNotFound) ||
		errors.Is(err, ErrSupplyNotFound) ||
		errors.Is(err, ErrNoDebt)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrJournalBufferFull) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
