/*
Package recurring implements the recurrence calculator for periodic bills.

PURPOSE:
  A recurring payment (rent, insurance, subscriptions) is due on a fixed day
  of the month every 1, 3, 6 or 12 months. This package derives its concrete
  occurrences, the next due date, and which occurrences are waiting to be
  processed.

KEY CONCEPTS IN THIS FILE (payment.go):
  - Frequency: period length in months
  - Payment: the recurring definition plus its processing cursor
  - Occurrence: one concrete dated instance of a payment

THE OCCURRENCE GRID:
  Occurrence k falls in month startMonth + k × period, on dayOfMonth clamped
  to the month's length. Occurrences before startDate or after endDate do not
  exist. Deactivating a payment never shifts the grid, so a reactivated
  payment resumes on its true cadence.

PROCESSING CURSOR:
  LastProcessedDate is the due date of the latest processed occurrence.
  Everything on or before it is considered settled.

SEE ALSO:
  - schedule.go: Next due date, due occurrences, processing
  - occurrence.go: Processed occurrence records
*/
package recurring

import (
	"strings"
	"time"

	"github.com/warp/budget-engine/core"
)

// =============================================================================
// FREQUENCY
// =============================================================================

type Frequency string

const (
	Monthly    Frequency = "MONTHLY"
	Quarterly  Frequency = "QUARTERLY"
	Semiannual Frequency = "SEMIANNUAL"
	Yearly     Frequency = "YEARLY"
)

// Months returns the period length, or 0 for an unknown frequency.
func (f Frequency) Months() int {
	switch f {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Semiannual:
		return 6
	case Yearly:
		return 12
	default:
		return 0
	}
}

func (f Frequency) Valid() bool { return f.Months() > 0 }

// ParseFrequency accepts any letter case.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", &core.InvalidRecurringError{Field: "frequency", Reason: "must be MONTHLY, QUARTERLY, SEMIANNUAL or YEARLY"}
	}
	return f, nil
}

// =============================================================================
// PAYMENT
// =============================================================================

// Payment is a recurring obligation.
type Payment struct {
	ID         string
	ClientID   string
	Title      string
	Amount     core.Money
	Category   string
	Frequency  Frequency
	DayOfMonth int // 1-31, clamped in short months
	StartDate  core.Date
	EndDate    core.Date // zero when open-ended
	IsActive   bool

	LastProcessedDate core.Date // zero until the first occurrence is processed

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Input describes a new recurring payment.
type Input struct {
	ClientID   string
	Title      string
	Amount     core.Money
	Category   string
	Frequency  Frequency
	DayOfMonth int
	StartDate  core.Date
	EndDate    core.Date
}

// Validate checks a definition before it is stored.
func Validate(in Input) error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return &core.InvalidRecurringError{Field: "title", Reason: "must not be empty"}
	case !in.Amount.IsPositive():
		return &core.InvalidRecurringError{Field: "amount", Reason: "must be greater than zero"}
	case !in.Frequency.Valid():
		return &core.InvalidRecurringError{Field: "frequency", Reason: "must be MONTHLY, QUARTERLY, SEMIANNUAL or YEARLY"}
	case in.DayOfMonth < 1 || in.DayOfMonth > 31:
		return &core.InvalidRecurringError{Field: "dayOfMonth", Reason: "must be between 1 and 31"}
	case in.StartDate.IsZero():
		return &core.InvalidRecurringError{Field: "startDate", Reason: "is required"}
	case !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate):
		return &core.InvalidRecurringError{Field: "endDate", Reason: "must not be before startDate"}
	}
	return nil
}

// New validates the input and returns an active payment.
func New(id string, in Input) (Payment, error) {
	if err := Validate(in); err != nil {
		return Payment{}, err
	}
	return Payment{
		ID:         id,
		ClientID:   in.ClientID,
		Title:      strings.TrimSpace(in.Title),
		Amount:     in.Amount,
		Category:   in.Category,
		Frequency:  in.Frequency,
		DayOfMonth: in.DayOfMonth,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		IsActive:   true,
	}, nil
}

// HasEnded reports whether no occurrence can fall after day.
func (p Payment) HasEnded(day core.Date) bool {
	return !p.EndDate.IsZero() && day.After(p.EndDate)
}

// ToggleActive flips IsActive. The schedule and the processing cursor are untouched.
func ToggleActive(p Payment) Payment {
	p.IsActive = !p.IsActive
	return p
}

// MonthlyEquivalent spreads the amount over its period, rounded to the cent.
func MonthlyEquivalent(p Payment) core.Money {
	months := p.Frequency.Months()
	if months == 0 {
		return core.Zero
	}
	return p.Amount.DivInt(months).Round()
}
