package installment

import (
	"github.com/warp/budget-engine/core"
)

// =============================================================================
// PAYMENT STATE MACHINE
// =============================================================================
//
//   PENDING --pay--> PAID
//   PENDING --skip-> SKIPPED
//
// The plan is COMPLETED as soon as no PENDING row remains. A CANCELED or
// COMPLETED plan accepts no further settlement.

// ApplyPayment marks a row PAID. A nil amountPaid records the row amount.
func ApplyPayment(plan Plan, paymentID string, paymentDate core.Date, amountPaid *core.Money) (Plan, Payment, error) {
	i, err := settleable(plan, paymentID)
	if err != nil {
		return plan, Payment{}, err
	}
	if paymentDate.IsZero() {
		return plan, Payment{}, &core.InvalidPlanError{Field: "paymentDate", Reason: "is required"}
	}

	next := plan.clone()
	row := &next.Payments[i]
	paid := row.Amount
	if amountPaid != nil {
		paid = *amountPaid
	}
	row.Status = PaymentPaid
	row.PaidDate = paymentDate
	row.AmountPaid = &paid

	next.refresh()
	return next, *row, nil
}

// SkipPayment marks a PENDING row SKIPPED. Skipped rows count as settled.
func SkipPayment(plan Plan, paymentID string) (Plan, Payment, error) {
	i, err := settleable(plan, paymentID)
	if err != nil {
		return plan, Payment{}, err
	}

	next := plan.clone()
	next.Payments[i].Status = PaymentSkipped
	next.refresh()
	return next, next.Payments[i], nil
}

// CancelPlan stops the plan. PAID rows are kept as they are.
// Canceling an already canceled plan is a no-op.
func CancelPlan(plan Plan) (Plan, error) {
	switch plan.Status {
	case PlanCompleted:
		return plan, &core.AlreadyCompletedError{PlanID: plan.ID}
	case PlanCanceled:
		return plan, nil
	}
	next := plan.clone()
	next.Status = PlanCanceled
	return next, nil
}

// DeriveStatus returns the status as displayed on a given day: a PENDING row
// past its due date reads as OVERDUE.
func DeriveStatus(p Payment, today core.Date) PaymentStatus {
	if p.Status == PaymentPending && p.DueDate.Before(today) {
		return PaymentOverdue
	}
	return p.Status
}

func settleable(plan Plan, paymentID string) (int, error) {
	i := plan.indexOf(paymentID)
	if i < 0 {
		return -1, &core.UnknownPaymentError{PlanID: plan.ID, PaymentID: paymentID}
	}
	row := plan.Payments[i]
	switch row.Status {
	case PaymentPaid:
		return -1, &core.AlreadyPaidError{PaymentID: row.ID, PaidDate: row.PaidDate}
	case PaymentSkipped:
		return -1, &core.PaymentNotPendingError{PaymentID: row.ID, Status: string(row.Status)}
	}
	if !plan.IsOpen() {
		return -1, &core.PlanClosedError{PlanID: plan.ID, Status: string(plan.Status)}
	}
	return i, nil
}

// refresh recomputes the derived paid count and completion. A plan whose
// rows were all skipped stays ACTIVE: nothing was paid.
func (p *Plan) refresh() {
	p.PaidCount = p.countStatus(PaymentPaid)
	if p.Status == PlanActive && p.PaidCount > 0 && p.countStatus(PaymentPending) == 0 {
		p.Status = PlanCompleted
	}
}
