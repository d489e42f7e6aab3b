package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/installment"
	"github.com/warp/budget-engine/recurring"
)

func mustRecurring(t *testing.T, in recurring.Input) recurring.Payment {
	t.Helper()
	in.ClientID = "c"
	if in.Title == "" {
		in.Title = "bill"
	}
	if in.DayOfMonth == 0 {
		in.DayOfMonth = 1
	}
	p, err := recurring.New("id-"+in.Title, in)
	require.NoError(t, err)
	return p
}

func mustPlan(t *testing.T, total string, count int, firstDue string) installment.Plan {
	t.Helper()
	plan, err := installment.NewScheduler().CreatePlan(installment.PlanInput{
		ClientID:         "c",
		Title:            "purchase",
		TotalAmount:      core.MustMoney(total),
		InstallmentCount: count,
		FirstDueDate:     core.MustDate(firstDue),
	})
	require.NoError(t, err)
	return plan
}

func TestMonthlyFixedCosts(t *testing.T) {
	march := core.Month{Year: 2025, Month: time.March}

	// GIVEN: A mix of recurring payments
	quarterly := mustRecurring(t, recurring.Input{Title: "insurance", Amount: core.MustMoney("300.00"), Frequency: recurring.Quarterly, StartDate: core.MustDate("2025-01-01")})
	inactive := recurring.ToggleActive(mustRecurring(t, recurring.Input{Title: "paused", Amount: core.MustMoney("99.00"), Frequency: recurring.Monthly, StartDate: core.MustDate("2025-01-01")}))
	ended := mustRecurring(t, recurring.Input{Title: "ended", Amount: core.MustMoney("50.00"), Frequency: recurring.Monthly, StartDate: core.MustDate("2024-01-01"), EndDate: core.MustDate("2025-02-28")})
	future := mustRecurring(t, recurring.Input{Title: "future", Amount: core.MustMoney("70.00"), Frequency: recurring.Monthly, StartDate: core.MustDate("2025-04-01")})
	endsMidMonth := mustRecurring(t, recurring.Input{Title: "last", Amount: core.MustMoney("20.00"), Frequency: recurring.Monthly, StartDate: core.MustDate("2024-06-01"), EndDate: core.MustDate("2025-03-20")})

	// AND: Plans with rows in March in different states
	open := mustPlan(t, "600.00", 3, "2025-02-10") // 200.00 due 2025-03-10
	paid := mustPlan(t, "400.00", 2, "2025-03-05")
	paid, _, err := installment.ApplyPayment(paid, paid.Payments[0].ID, core.MustDate("2025-03-01"), nil)
	require.NoError(t, err)
	canceled, err := installment.CancelPlan(mustPlan(t, "1000.00", 2, "2025-03-01"))
	require.NoError(t, err)

	// WHEN: Adding up March
	got := MonthlyFixedCosts(
		[]recurring.Payment{quarterly, inactive, ended, future, endsMidMonth},
		[]installment.Plan{open, paid, canceled},
		march,
	)

	// THEN: 100.00 + 20.00 of recurring costs and the open 200.00 row
	assert.Equal(t, "320.00", got.String())
}

func TestMonthlyFixedCosts_Empty(t *testing.T) {
	got := MonthlyFixedCosts(nil, nil, core.Month{Year: 2025, Month: time.January})
	assert.True(t, got.IsZero())
}
