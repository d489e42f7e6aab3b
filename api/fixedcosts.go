package api

import (
	"context"

	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/installment"
	"github.com/warp/budget-engine/recurring"
)

// MonthlyFixedCosts sums a client's obligations for month: the monthly
// equivalent of every active recurring payment running in that month, plus
// the pending installment rows of active plans that fall due in it.
func MonthlyFixedCosts(payments []recurring.Payment, plans []installment.Plan, month core.Month) core.Money {
	total := core.Zero

	for _, p := range payments {
		if !p.IsActive || p.StartDate.After(month.Last()) || p.HasEnded(month.First()) {
			continue
		}
		total = total.Add(recurring.MonthlyEquivalent(p))
	}

	for _, plan := range plans {
		if !plan.IsOpen() {
			continue
		}
		for _, row := range plan.Payments {
			if row.Status == installment.PaymentPending && month.Contains(row.DueDate) {
				total = total.Add(row.Amount)
			}
		}
	}
	return total
}

func (h *Handler) fixedCosts(ctx context.Context, clientID string, month core.Month) (core.Money, error) {
	payments, err := h.Store.ListRecurring(ctx, clientID)
	if err != nil {
		return core.Zero, err
	}
	plans, err := h.Store.ListPlans(ctx, clientID)
	if err != nil {
		return core.Zero, err
	}
	return MonthlyFixedCosts(payments, plans, month), nil
}
