/*
errors.go - Error taxonomy shared by every calculator

PURPOSE:
  All engine failures are returned, never panicked. Each structured error
  carries the context a caller needs to build an actionable message (the
  remaining headroom, the current status) and unwraps to a sentinel so the
  transport layer can map it without knowing every concrete type.

ERROR CATEGORIES:
  1. Business rules   - ErrCapExceeded (100% distribution cap)
  2. Malformed input  - ErrInvalidInput (income, plan, percentage, recurring, goal)
  3. Missing members  - ErrNotFound (payment row, category, goal item)
  4. State machine    - ErrStateConflict (already paid, completed, locked, closed)
  5. Persistence      - ErrConcurrentModification (optimistic lock lost, retryable)

USAGE:
  var capErr *core.CapExceededError
  if errors.As(err, &capErr) {
      fmt.Printf("available: %s%%", capErr.Available)
  }

SEE ALSO:
  - api/handlers.go: HTTP status mapping
  - store/store.go: Optimistic concurrency contract
*/
package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCapExceeded is returned when active category percentages would exceed 100.
	ErrCapExceeded = errors.New("distribution cap exceeded")

	// ErrInvalidInput is returned for malformed amounts, counts, dates or percentages.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when an id does not belong to the aggregate.
	ErrNotFound = errors.New("not found")

	// ErrStateConflict is returned when an operation is not allowed in the current state.
	ErrStateConflict = errors.New("state conflict")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// BUSINESS RULE ERRORS
// =============================================================================

// CapExceededError reports a category change that would push the active sum over 100%.
type CapExceededError struct {
	Requested decimal.Decimal
	Available decimal.Decimal // 100 - sum of the other active categories
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("percentage %s%% exceeds available %s%%", e.Requested, e.Available)
}

func (e *CapExceededError) Unwrap() error { return ErrCapExceeded }

// =============================================================================
// INPUT ERRORS
// =============================================================================

// InvalidIncomeError is returned by simulation for non-positive income or negative expenses.
type InvalidIncomeError struct {
	Field  string
	Value  Money
	Reason string
}

func (e *InvalidIncomeError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidIncomeError) Unwrap() error { return ErrInvalidInput }

// InvalidPlanError is returned when an installment plan cannot be built.
type InvalidPlanError struct {
	Field  string
	Reason string
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid installment plan: %s %s", e.Field, e.Reason)
}

func (e *InvalidPlanError) Unwrap() error { return ErrInvalidInput }

// InvalidPercentageError is returned for percentages outside 0-100 or with
// more than one decimal place.
type InvalidPercentageError struct {
	Value decimal.Decimal
}

func (e *InvalidPercentageError) Error() string {
	return fmt.Sprintf("invalid percentage %s: must be between 0 and 100 with at most one decimal", e.Value)
}

func (e *InvalidPercentageError) Unwrap() error { return ErrInvalidInput }

// InvalidCategoryError is returned when a category field other than the percentage is malformed.
type InvalidCategoryError struct {
	Field  string
	Reason string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid category: %s %s", e.Field, e.Reason)
}

func (e *InvalidCategoryError) Unwrap() error { return ErrInvalidInput }

// InvalidRecurringError is returned when a recurring payment definition is malformed.
type InvalidRecurringError struct {
	Field  string
	Reason string
}

func (e *InvalidRecurringError) Error() string {
	return fmt.Sprintf("invalid recurring payment: %s %s", e.Field, e.Reason)
}

func (e *InvalidRecurringError) Unwrap() error { return ErrInvalidInput }

// InvalidGoalError is returned when a goal or goal operation is malformed.
type InvalidGoalError struct {
	Field  string
	Reason string
}

func (e *InvalidGoalError) Error() string {
	return fmt.Sprintf("invalid goal: %s %s", e.Field, e.Reason)
}

func (e *InvalidGoalError) Unwrap() error { return ErrInvalidInput }

// =============================================================================
// LOOKUP ERRORS
// =============================================================================

// UnknownPaymentError is returned when a payment id is not part of the plan.
type UnknownPaymentError struct {
	PlanID    string
	PaymentID string
}

func (e *UnknownPaymentError) Error() string {
	return fmt.Sprintf("payment %s does not belong to installment plan %s", e.PaymentID, e.PlanID)
}

func (e *UnknownPaymentError) Unwrap() error { return ErrNotFound }

// UnknownCategoryError is returned when a category id is not part of the config.
type UnknownCategoryError struct {
	CategoryID string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("category %s not found", e.CategoryID)
}

func (e *UnknownCategoryError) Unwrap() error { return ErrNotFound }

// UnknownItemError is returned when a goal item id is not part of the goal.
type UnknownItemError struct {
	GoalID string
	ItemID string
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("item %s does not belong to goal %s", e.ItemID, e.GoalID)
}

func (e *UnknownItemError) Unwrap() error { return ErrNotFound }

// =============================================================================
// STATE MACHINE ERRORS
// =============================================================================

// AlreadyPaidError is returned when paying or skipping a row that is already settled.
type AlreadyPaidError struct {
	PaymentID string
	PaidDate  Date
}

func (e *AlreadyPaidError) Error() string {
	return fmt.Sprintf("payment %s already paid on %s", e.PaymentID, e.PaidDate)
}

func (e *AlreadyPaidError) Unwrap() error { return ErrStateConflict }

// PaymentNotPendingError is returned when settling a row that was skipped.
type PaymentNotPendingError struct {
	PaymentID string
	Status    string
}

func (e *PaymentNotPendingError) Error() string {
	return fmt.Sprintf("payment %s is %s, only pending payments can be settled", e.PaymentID, e.Status)
}

func (e *PaymentNotPendingError) Unwrap() error { return ErrStateConflict }

// AlreadyCompletedError is returned when canceling a completed plan.
type AlreadyCompletedError struct {
	PlanID string
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("installment plan %s is already completed", e.PlanID)
}

func (e *AlreadyCompletedError) Unwrap() error { return ErrStateConflict }

// PlanClosedError is returned when a payment is applied to a plan that is no longer active.
type PlanClosedError struct {
	PlanID string
	Status string
}

func (e *PlanClosedError) Error() string {
	return fmt.Sprintf("installment plan %s is %s", e.PlanID, e.Status)
}

func (e *PlanClosedError) Unwrap() error { return ErrStateConflict }

// PlanLockedError is returned when editing financial fields after a payment was made.
type PlanLockedError struct {
	PlanID    string
	Field     string
	PaidCount int
}

func (e *PlanLockedError) Error() string {
	return fmt.Sprintf("installment plan %s: %s cannot change after %d paid installment(s)", e.PlanID, e.Field, e.PaidCount)
}

func (e *PlanLockedError) Unwrap() error { return ErrStateConflict }

// NoOccurrenceError is returned when a recurring payment has no occurrence in a month.
type NoOccurrenceError struct {
	RecurringID string
	Month       Month
	Reason      string
}

func (e *NoOccurrenceError) Error() string {
	return fmt.Sprintf("recurring payment %s has no occurrence in %s: %s", e.RecurringID, e.Month, e.Reason)
}

func (e *NoOccurrenceError) Unwrap() error { return ErrStateConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrCapExceeded)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is a state-machine violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrStateConflict) || errors.Is(err, ErrConcurrentModification)
}
