/*
errors.go - Centralized error types for the loyalty core

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP statuses.

ERROR CATEGORIES:
  1. Ledger errors - malformed entries (programmer/integration bugs)
  2. Redemption errors - business rule violations, reported distinctly so
     the caller knows which rule failed
  3. Workflow errors - terminal-state and concurrency violations

USAGE:
  if errors.Is(err, loyalty.ErrInsufficientBalance) { ... }

  var ibe *loyalty.InsufficientBalanceError
  if errors.As(err, &ibe) { ... ibe.Shortfall ... }
*/
package loyalty

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidEntry is returned for malformed ledger writes (both fields
	// positive, both zero, negative values, unknown reason). Correct callers
	// never trigger it.
	ErrInvalidEntry = errors.New("invalid ledger entry")

	// ErrInvalidAmount is returned when a requested amount is not > 0.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrBelowMinimumRedemption is returned when a self-service redemption
	// is under the configured minimum.
	ErrBelowMinimumRedemption = errors.New("below minimum redemption")

	// ErrInsufficientBalance is returned when a debit exceeds the guest's
	// active balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrRequestAlreadyProcessed is returned when processing a request that
	// already reached a terminal state.
	ErrRequestAlreadyProcessed = errors.New("redemption request already processed")

	// ErrRequestNotFound is returned when a referenced request doesn't exist.
	ErrRequestNotFound = errors.New("redemption request not found")

	// ErrUserNotFound is returned when a referenced guest doesn't exist.
	// The summary read path never returns it (unknown guests read as zeroed).
	ErrUserNotFound = errors.New("user not found")

	// ErrConcurrencyConflict is returned when the status check-and-set loses
	// a race. Safe to retry.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidEntryError describes why a ledger entry was rejected.
type InvalidEntryError struct {
	Detail string
}

func (e *InvalidEntryError) Error() string {
	return fmt.Sprintf("invalid ledger entry: %s", e.Detail)
}

func (e *InvalidEntryError) Unwrap() error { return ErrInvalidEntry }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	UserID    UserID
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %d, requested %d, shortfall %d",
		e.Available, e.Requested, e.Shortfall())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall is how many more jewels the guest would need.
func (e *InsufficientBalanceError) Shortfall() int64 { return e.Requested - e.Available }

// BelowMinimumError reports a redemption under the configured floor.
type BelowMinimumError struct {
	Requested int64
	Minimum   int64
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("redemption of %d jewels is below the minimum of %d", e.Requested, e.Minimum)
}

func (e *BelowMinimumError) Unwrap() error { return ErrBelowMinimumRedemption }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsClientError returns true if the error is due to invalid caller input or
// a business rule the caller can correct.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidEntry) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrBelowMinimumRedemption) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrRequestAlreadyProcessed)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrUserNotFound)
}
