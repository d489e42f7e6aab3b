/*
Package installment implements the installment amortization scheduler.

PURPOSE:
  A purchase (total price, number of installments, optional monthly interest)
  becomes a fixed schedule of dated obligations. The plan then tracks which
  rows were paid or skipped until nothing is pending.

KEY CONCEPTS IN THIS FILE (plan.go):
  - Plan: the purchase and its derived amounts
  - Payment: one numbered, dated row of the schedule
  - Status: ACTIVE/COMPLETED/CANCELED for plans, PENDING/PAID/SKIPPED for rows

AMORTIZATION:
  Without interest every row is total/n rounded to the cent and the last row
  absorbs the remainder. With a monthly rate i the regular row is the Price
  (French) installment P·i(1+i)^n / ((1+i)^n - 1) rounded to the cent, and
  the last row absorbs the difference to round(exact installment × n).

OVERDUE IS A VIEW:
  OVERDUE is never stored. A PENDING row whose due date is before "today"
  reads as OVERDUE through DeriveStatus; storage stays PENDING.

SEE ALSO:
  - scheduler.go: Plan creation and financial edits
  - payments.go: Pay / skip / cancel
  - summary.go: Progress summary and interest breakdown
*/
package installment

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/core"
)

const (
	MinInstallments = 2
	MaxInstallments = 60
)

// =============================================================================
// STATUSES
// =============================================================================

type PlanStatus string

const (
	PlanActive    PlanStatus = "ACTIVE"
	PlanCompleted PlanStatus = "COMPLETED"
	PlanCanceled  PlanStatus = "CANCELED"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentOverdue PaymentStatus = "OVERDUE" // derived only
	PaymentSkipped PaymentStatus = "SKIPPED"
)

// =============================================================================
// PLAN
// =============================================================================

// Payment is one row of the schedule.
type Payment struct {
	ID         string
	Number     int // 1..InstallmentCount
	Amount     core.Money
	DueDate    core.Date
	Status     PaymentStatus
	PaidDate   core.Date   // zero unless PAID
	AmountPaid *core.Money // recorded as given, not validated against Amount
}

// Plan is an installment purchase with its schedule.
type Plan struct {
	ID       string
	ClientID string
	Title    string
	Category string
	Notes    *string

	TotalAmount      core.Money
	InstallmentCount int
	InterestRate     decimal.Decimal // monthly, in percent
	FirstDueDate     core.Date

	// Derived at creation (or financial edit).
	InstallmentAmount     core.Money
	LastInstallmentAmount core.Money

	PaidCount int
	Status    PlanStatus
	Payments  []Payment

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalPayable is the sum of every row, interest included.
func (p Plan) TotalPayable() core.Money {
	return p.InstallmentAmount.MulInt(p.InstallmentCount - 1).Add(p.LastInstallmentAmount)
}

// RoundingCorrection is how much the last row differs from the regular one.
func (p Plan) RoundingCorrection() core.Money {
	return p.LastInstallmentAmount.Sub(p.InstallmentAmount)
}

// Payment returns the row with the given id.
func (p Plan) Payment(id string) (Payment, bool) {
	if i := p.indexOf(id); i >= 0 {
		return p.Payments[i], true
	}
	return Payment{}, false
}

// HasPaidRows reports whether any row is PAID, which locks financial fields.
func (p Plan) HasPaidRows() bool {
	return p.countStatus(PaymentPaid) > 0
}

// IsOpen reports whether the plan still accepts payments.
func (p Plan) IsOpen() bool { return p.Status == PlanActive }

func (p Plan) indexOf(id string) int {
	for i, pay := range p.Payments {
		if pay.ID == id {
			return i
		}
	}
	return -1
}

func (p Plan) countStatus(s PaymentStatus) int {
	n := 0
	for _, pay := range p.Payments {
		if pay.Status == s {
			n++
		}
	}
	return n
}

func (p Plan) clone() Plan {
	cp := p
	cp.Payments = make([]Payment, len(p.Payments))
	copy(cp.Payments, p.Payments)
	return cp
}
