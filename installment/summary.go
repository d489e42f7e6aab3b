package installment

import (
	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/core"
)

// =============================================================================
// SUMMARY - Read-side view of a plan on a given day
// =============================================================================

// Summary aggregates a plan's progress.
type Summary struct {
	TotalPayable       core.Money
	PaidAmount         core.Money // sum of AmountPaid over PAID rows
	RemainingAmount    core.Money // sum of Amount over PENDING rows
	PaidCount          int
	PendingCount       int
	SkippedCount       int
	OverdueCount       int
	Progress           decimal.Decimal // settled rows / all rows, percent
	NextPayment        *Payment        // earliest PENDING row
	RoundingCorrection core.Money
}

// Summarize computes the plan summary as seen on today.
func Summarize(plan Plan, today core.Date) Summary {
	s := Summary{
		TotalPayable:       plan.TotalPayable(),
		PaidAmount:         core.Zero,
		RemainingAmount:    core.Zero,
		RoundingCorrection: plan.RoundingCorrection(),
	}

	for i := range plan.Payments {
		row := plan.Payments[i]
		switch row.Status {
		case PaymentPaid:
			s.PaidCount++
			if row.AmountPaid != nil {
				s.PaidAmount = s.PaidAmount.Add(*row.AmountPaid)
			} else {
				s.PaidAmount = s.PaidAmount.Add(row.Amount)
			}
		case PaymentSkipped:
			s.SkippedCount++
		case PaymentPending:
			s.PendingCount++
			s.RemainingAmount = s.RemainingAmount.Add(row.Amount)
			if DeriveStatus(row, today) == PaymentOverdue {
				s.OverdueCount++
			}
			if s.NextPayment == nil || row.Number < s.NextPayment.Number {
				next := row
				s.NextPayment = &next
			}
		}
	}

	if n := len(plan.Payments); n > 0 {
		settled := decimal.NewFromInt(int64(s.PaidCount + s.SkippedCount))
		s.Progress = settled.Mul(core.FullPercentage).Div(decimal.NewFromInt(int64(n))).Round(2)
	}
	return s
}

// =============================================================================
// BREAKDOWN - Interest / principal split per row
// =============================================================================

// BreakdownRow splits one installment into interest and principal.
type BreakdownRow struct {
	Number    int
	DueDate   core.Date
	Amount    core.Money
	Interest  core.Money
	Principal core.Money
	Balance   core.Money // outstanding principal after this row
}

// Breakdown returns the amortization table of the plan. Interest is charged
// on the outstanding balance each month; the last row clears the balance and
// takes whatever interest remains so the table adds up to the schedule.
func Breakdown(plan Plan) []BreakdownRow {
	rate := plan.InterestRate.Div(decimal.NewFromInt(100))
	balance := plan.TotalAmount
	out := make([]BreakdownRow, 0, len(plan.Payments))

	for k, row := range plan.Payments {
		interest := balance.Mul(rate).Round()
		principal := row.Amount.Sub(interest)
		if k == len(plan.Payments)-1 {
			principal = balance
			interest = row.Amount.Sub(principal)
		}
		balance = balance.Sub(principal)
		out = append(out, BreakdownRow{
			Number:    row.Number,
			DueDate:   row.DueDate,
			Amount:    row.Amount,
			Interest:  interest,
			Principal: principal,
			Balance:   balance,
		})
	}
	return out
}
