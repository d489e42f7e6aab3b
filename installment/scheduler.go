package installment

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/core"
)

// Scheduler builds and edits installment plans.
type Scheduler struct {
	// NewID generates plan and row ids. Defaults to random UUIDs.
	NewID func() string
}

func NewScheduler() *Scheduler {
	return &Scheduler{NewID: uuid.NewString}
}

// PlanInput describes a new purchase.
type PlanInput struct {
	ClientID         string
	Title            string
	Category         string
	Notes            *string
	TotalAmount      core.Money
	InstallmentCount int
	InterestRate     decimal.Decimal
	FirstDueDate     core.Date
}

// PlanUpdate is a partial edit. Nil fields are left alone.
type PlanUpdate struct {
	Title    *string
	Category *string
	Notes    *string

	// Financial fields: rejected once any row is PAID.
	TotalAmount      *core.Money
	InstallmentCount *int
	InterestRate     *decimal.Decimal
	FirstDueDate     *core.Date
}

func (u PlanUpdate) touchesFinancials() bool {
	return u.TotalAmount != nil || u.InstallmentCount != nil || u.InterestRate != nil || u.FirstDueDate != nil
}

// lockedField names the first financial field of the update, for error messages.
func (u PlanUpdate) lockedField() string {
	switch {
	case u.TotalAmount != nil:
		return "totalAmount"
	case u.InstallmentCount != nil:
		return "installmentCount"
	case u.InterestRate != nil:
		return "interestRate"
	default:
		return "firstDueDate"
	}
}

// =============================================================================
// CREATE
// =============================================================================

// CreatePlan validates the input and generates the full schedule, all rows PENDING.
func (s *Scheduler) CreatePlan(in PlanInput) (Plan, error) {
	if err := validate(in); err != nil {
		return Plan{}, err
	}

	regular, last := Amounts(in.TotalAmount, in.InstallmentCount, in.InterestRate)

	plan := Plan{
		ID:                    s.newID(),
		ClientID:              in.ClientID,
		Title:                 strings.TrimSpace(in.Title),
		Category:              in.Category,
		Notes:                 in.Notes,
		TotalAmount:           in.TotalAmount,
		InstallmentCount:      in.InstallmentCount,
		InterestRate:          in.InterestRate,
		FirstDueDate:          in.FirstDueDate,
		InstallmentAmount:     regular,
		LastInstallmentAmount: last,
		Status:                PlanActive,
	}
	plan.Payments = s.rows(plan)
	return plan, nil
}

func validate(in PlanInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return &core.InvalidPlanError{Field: "title", Reason: "must not be empty"}
	}
	if !in.TotalAmount.IsPositive() {
		return &core.InvalidPlanError{Field: "totalAmount", Reason: "must be greater than zero"}
	}
	if in.InstallmentCount < MinInstallments || in.InstallmentCount > MaxInstallments {
		return &core.InvalidPlanError{Field: "installmentCount", Reason: "must be between 2 and 60"}
	}
	if in.InterestRate.IsNegative() {
		return &core.InvalidPlanError{Field: "interestRate", Reason: "must not be negative"}
	}
	if in.FirstDueDate.IsZero() {
		return &core.InvalidPlanError{Field: "firstDueDate", Reason: "is required"}
	}
	return nil
}

// rows generates the numbered schedule. Due dates stay anchored on the day
// of the first due date, clamped in short months.
func (s *Scheduler) rows(p Plan) []Payment {
	anchor := p.FirstDueDate.Day()
	rows := make([]Payment, p.InstallmentCount)
	for k := range rows {
		amount := p.InstallmentAmount
		if k == p.InstallmentCount-1 {
			amount = p.LastInstallmentAmount
		}
		rows[k] = Payment{
			ID:      s.newID(),
			Number:  k + 1,
			Amount:  amount,
			DueDate: p.FirstDueDate.AddMonthsClamped(k, anchor),
			Status:  PaymentPending,
		}
	}
	return rows
}

// =============================================================================
// AMORTIZATION MATH
// =============================================================================

// Amounts returns the regular installment and the corrected last installment.
// rate is the monthly interest in percent; zero means plain division.
func Amounts(total core.Money, n int, rate decimal.Decimal) (regular, last core.Money) {
	if rate.IsZero() {
		regular = total.DivInt(n).Round()
		last = total.Sub(regular.MulInt(n - 1))
		return regular, last
	}

	exact := priceInstallment(total, n, rate)
	regular = exact.Round()
	totalPayable := exact.MulInt(n).Round()
	last = totalPayable.Sub(regular.MulInt(n - 1))
	return regular, last
}

// priceInstallment is the unrounded French-method installment
// P·i(1+i)^n / ((1+i)^n - 1).
func priceInstallment(principal core.Money, n int, rate decimal.Decimal) core.Money {
	i := rate.Div(decimal.NewFromInt(100))
	growth := compound(i, n)
	factor := i.Mul(growth).Div(growth.Sub(decimal.NewFromInt(1)))
	return principal.Mul(factor)
}

// compound returns (1+i)^n by repeated multiplication so no float is involved.
func compound(i decimal.Decimal, n int) decimal.Decimal {
	base := decimal.NewFromInt(1).Add(i)
	out := decimal.NewFromInt(1)
	for k := 0; k < n; k++ {
		out = out.Mul(base)
	}
	return out
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdatePlan applies descriptive changes at any time. Financial changes
// regenerate the schedule and are only allowed while no row is PAID.
func (s *Scheduler) UpdatePlan(plan Plan, u PlanUpdate) (Plan, error) {
	if u.touchesFinancials() {
		if plan.HasPaidRows() {
			return plan, &core.PlanLockedError{PlanID: plan.ID, Field: u.lockedField(), PaidCount: plan.countStatus(PaymentPaid)}
		}
		if !plan.IsOpen() {
			return plan, &core.PlanClosedError{PlanID: plan.ID, Status: string(plan.Status)}
		}
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return plan, &core.InvalidPlanError{Field: "title", Reason: "must not be empty"}
	}

	next := plan.clone()
	if u.Title != nil {
		next.Title = strings.TrimSpace(*u.Title)
	}
	if u.Category != nil {
		next.Category = *u.Category
	}
	if u.Notes != nil {
		next.Notes = u.Notes
	}
	if !u.touchesFinancials() {
		return next, nil
	}

	in := PlanInput{
		ClientID:         next.ClientID,
		Title:            next.Title,
		TotalAmount:      next.TotalAmount,
		InstallmentCount: next.InstallmentCount,
		InterestRate:     next.InterestRate,
		FirstDueDate:     next.FirstDueDate,
	}
	if u.TotalAmount != nil {
		in.TotalAmount = *u.TotalAmount
	}
	if u.InstallmentCount != nil {
		in.InstallmentCount = *u.InstallmentCount
	}
	if u.InterestRate != nil {
		in.InterestRate = *u.InterestRate
	}
	if u.FirstDueDate != nil {
		in.FirstDueDate = *u.FirstDueDate
	}
	if err := validate(in); err != nil {
		return plan, err
	}

	next.TotalAmount = in.TotalAmount
	next.InstallmentCount = in.InstallmentCount
	next.InterestRate = in.InterestRate
	next.FirstDueDate = in.FirstDueDate
	next.InstallmentAmount, next.LastInstallmentAmount = Amounts(in.TotalAmount, in.InstallmentCount, in.InterestRate)
	next.Payments = s.rows(next)
	next.PaidCount = 0
	return next, nil
}

func (s *Scheduler) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
