// Package storetest holds the behavior every store implementation must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/distribution"
	"github.com/warp/budget-engine/goal"
	"github.com/warp/budget-engine/installment"
	"github.com/warp/budget-engine/recurring"
	"github.com/warp/budget-engine/store"
)

// Run exercises a fresh store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("distribution round trip", func(t *testing.T) { testDistribution(t, newStore(t)) })
	t.Run("distribution version conflict", func(t *testing.T) { testDistributionConflict(t, newStore(t)) })
	t.Run("distribution delete", func(t *testing.T) { testDistributionDelete(t, newStore(t)) })
	t.Run("installment round trip", func(t *testing.T) { testInstallment(t, newStore(t)) })
	t.Run("installment version conflict", func(t *testing.T) { testInstallmentConflict(t, newStore(t)) })
	t.Run("recurring processing", func(t *testing.T) { testRecurring(t, newStore(t)) })
	t.Run("goal round trip", func(t *testing.T) { testGoal(t, newStore(t)) })
	t.Run("not found", func(t *testing.T) { testNotFound(t, newStore(t)) })
}

func testDistribution(t *testing.T, st store.Store) {
	ctx := context.Background()
	e := distribution.NewEngine()
	color := "#ff0000"

	cfg := distribution.NewConfig("client-1")
	cfg, _, err := e.AddCategory(cfg, "Savings", decimal.RequireFromString("30"), distribution.CategoryOptions{Color: &color})
	require.NoError(t, err)
	cfg, _, err = e.AddCategory(cfg, "Leisure", decimal.RequireFromString("20.5"), distribution.CategoryOptions{})
	require.NoError(t, err)

	saved, err := st.SaveDistribution(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)

	loaded, err := st.GetDistribution(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Version)
	require.Len(t, loaded.Categories, 2)
	assert.Equal(t, "Savings", loaded.Categories[0].Name)
	require.NotNil(t, loaded.Categories[0].Color)
	assert.Equal(t, "#ff0000", *loaded.Categories[0].Color)
	assert.Nil(t, loaded.Categories[1].Color)
	assert.True(t, loaded.Categories[1].Percentage.Equal(decimal.RequireFromString("20.5")))
	assert.True(t, loaded.IsAutoCalculateExpenses)
	assert.True(t, loaded.ActiveSum().Equal(decimal.RequireFromString("50.5")))
}

func testDistributionConflict(t *testing.T, st store.Store) {
	ctx := context.Background()
	e := distribution.NewEngine()

	saved, err := st.SaveDistribution(ctx, distribution.NewConfig("client-1"))
	require.NoError(t, err)

	// GIVEN: two writers holding version 1
	a, _, err := e.AddCategory(saved, "A", decimal.NewFromInt(60), distribution.CategoryOptions{})
	require.NoError(t, err)
	b, _, err := e.AddCategory(saved, "B", decimal.NewFromInt(60), distribution.CategoryOptions{})
	require.NoError(t, err)

	// WHEN: both save
	_, err = st.SaveDistribution(ctx, a)
	require.NoError(t, err)
	_, err = st.SaveDistribution(ctx, b)

	// THEN: the second loses and the cap still holds in storage
	assert.ErrorIs(t, err, core.ErrConcurrentModification)
	loaded, err := st.GetDistribution(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Version)
	assert.True(t, loaded.ActiveSum().Equal(decimal.NewFromInt(60)))

	// Creating the same config twice is a conflict as well.
	_, err = st.SaveDistribution(ctx, distribution.NewConfig("client-1"))
	assert.ErrorIs(t, err, core.ErrConcurrentModification)
}

func testDistributionDelete(t *testing.T, st store.Store) {
	ctx := context.Background()
	cfg, _, err := distribution.NewEngine().AddCategory(distribution.NewConfig("client-1"), "A", decimal.NewFromInt(10), distribution.CategoryOptions{})
	require.NoError(t, err)
	_, err = st.SaveDistribution(ctx, cfg)
	require.NoError(t, err)

	require.NoError(t, st.DeleteDistribution(ctx, "client-1"))

	_, err = st.GetDistribution(ctx, "client-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, st.DeleteDistribution(ctx, "client-1"), core.ErrNotFound)
}

func newPlan(t *testing.T) installment.Plan {
	t.Helper()
	notes := "store credit"
	plan, err := installment.NewScheduler().CreatePlan(installment.PlanInput{
		ClientID:         "client-1",
		Title:            "Sofa",
		Category:         "home",
		Notes:            &notes,
		TotalAmount:      core.MustMoney("1200.00"),
		InstallmentCount: 12,
		InterestRate:     decimal.NewFromInt(2),
		FirstDueDate:     core.MustDate("2024-01-31"),
	})
	require.NoError(t, err)
	return plan
}

func testInstallment(t *testing.T, st store.Store) {
	ctx := context.Background()
	plan, err := st.SavePlan(ctx, newPlan(t))
	require.NoError(t, err)

	custom := core.MustMoney("100.00")
	plan, _, err = installment.ApplyPayment(plan, plan.Payments[0].ID, core.MustDate("2024-01-30"), &custom)
	require.NoError(t, err)
	_, err = st.SavePlan(ctx, plan)
	require.NoError(t, err)

	loaded, err := st.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Version)
	assert.Equal(t, "Sofa", loaded.Title)
	require.NotNil(t, loaded.Notes)
	assert.Equal(t, "store credit", *loaded.Notes)
	assert.Equal(t, "113.47", loaded.InstallmentAmount.String())
	assert.Equal(t, "113.49", loaded.LastInstallmentAmount.String())
	assert.True(t, loaded.InterestRate.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, 1, loaded.PaidCount)
	require.Len(t, loaded.Payments, 12)
	assert.Equal(t, installment.PaymentPaid, loaded.Payments[0].Status)
	assert.Equal(t, "2024-01-30", loaded.Payments[0].PaidDate.String())
	require.NotNil(t, loaded.Payments[0].AmountPaid)
	assert.Equal(t, "100.00", loaded.Payments[0].AmountPaid.String())
	assert.Equal(t, "2024-02-29", loaded.Payments[1].DueDate.String())
	assert.True(t, loaded.Payments[1].PaidDate.IsZero())
	assert.Nil(t, loaded.Payments[1].AmountPaid)

	list, err := st.ListPlans(ctx, "client-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = st.ListPlans(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testInstallmentConflict(t *testing.T, st store.Store) {
	ctx := context.Background()
	plan, err := st.SavePlan(ctx, newPlan(t))
	require.NoError(t, err)
	row := plan.Payments[0].ID

	// Two concurrent payments of the same row: only one can be stored.
	first, _, err := installment.ApplyPayment(plan, row, core.MustDate("2024-01-30"), nil)
	require.NoError(t, err)
	second, _, err := installment.ApplyPayment(plan, row, core.MustDate("2024-01-31"), nil)
	require.NoError(t, err)

	_, err = st.SavePlan(ctx, first)
	require.NoError(t, err)
	_, err = st.SavePlan(ctx, second)
	require.ErrorIs(t, err, core.ErrConcurrentModification)

	// The retry re-validates against the fresh snapshot.
	fresh, err := st.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	_, _, err = installment.ApplyPayment(fresh, row, core.MustDate("2024-01-31"), nil)
	var already *core.AlreadyPaidError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, "2024-01-30", already.PaidDate.String())
}

func testRecurring(t *testing.T, st store.Store) {
	ctx := context.Background()
	p, err := recurring.New("rec-1", recurring.Input{
		ClientID:   "client-1",
		Title:      "Rent",
		Amount:     core.MustMoney("950.00"),
		Category:   "housing",
		Frequency:  recurring.Monthly,
		DayOfMonth: 5,
		StartDate:  core.MustDate("2024-01-01"),
	})
	require.NoError(t, err)
	p, err = st.SaveRecurring(ctx, p)
	require.NoError(t, err)

	occ := recurring.DueOccurrences(p, core.MustDate("2024-01-10"))
	require.Len(t, occ, 1)
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	// WHEN: processing the January occurrence
	next, _ := recurring.MarkProcessed(p, occ[0].DueDate)
	saved, created, err := st.ProcessOccurrence(ctx, next, recurring.Record("occ-1", p, occ[0], recurring.SourceScheduler, now))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "2024-01-05", saved.LastProcessedDate.String())

	// WHEN: a duplicate firing processes it again
	again, _ := recurring.MarkProcessed(saved, occ[0].DueDate)
	_, created, err = st.ProcessOccurrence(ctx, again, recurring.Record("occ-2", p, occ[0], recurring.SourceScheduler, now))

	// THEN: one record only
	require.NoError(t, err)
	assert.False(t, created)
	records, err := st.ListOccurrences(ctx, "rec-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "occ-1", records[0].ID)
	assert.Equal(t, "2024-01", records[0].ReferenceMonth.String())
	assert.Equal(t, "950.00", records[0].Amount.String())
	assert.Equal(t, recurring.SourceScheduler, records[0].Source)

	// A stale version is rejected without recording anything.
	stale := saved
	feb := recurring.DueOccurrences(saved, core.MustDate("2024-02-10"))
	require.Len(t, feb, 1)
	_, _, err = st.ProcessOccurrence(ctx, stale, recurring.Record("occ-3", p, feb[0], recurring.SourceManual, now))
	assert.ErrorIs(t, err, core.ErrConcurrentModification)
	records, err = st.ListOccurrences(ctx, "rec-1")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// Deactivated payments drop out of the scheduler's list.
	current, err := st.GetRecurring(ctx, "rec-1")
	require.NoError(t, err)
	_, err = st.SaveRecurring(ctx, recurring.ToggleActive(current))
	require.NoError(t, err)
	active, err := st.ListActiveRecurring(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := st.ListRecurring(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)
	assert.True(t, all[0].EndDate.IsZero())
}

func testGoal(t *testing.T, st store.Store) {
	ctx := context.Background()
	g, err := goal.New("goal-1", goal.Input{
		ClientID:     "client-1",
		Name:         "Trip",
		TargetAmount: core.MustMoney("3000"),
		TargetDate:   core.MustDate("2025-06-01"),
	})
	require.NoError(t, err)
	g, _, err = goal.AddItem(g, "item-1", "Flights", core.MustMoney("800"))
	require.NoError(t, err)
	g, _, err = goal.AddItem(g, "item-2", "Hotel", core.MustMoney("1200"))
	require.NoError(t, err)
	g, _, err = goal.ToggleItem(g, "item-1", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	g, err = goal.Contribute(g, core.MustMoney("500.25"))
	require.NoError(t, err)

	_, err = st.SaveGoal(ctx, g)
	require.NoError(t, err)

	loaded, err := st.GetGoal(ctx, "goal-1")
	require.NoError(t, err)
	assert.Equal(t, "500.25", loaded.CurrentAmount.String())
	assert.Equal(t, "2025-06-01", loaded.TargetDate.String())
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, "Flights", loaded.Items[0].Name)
	assert.True(t, loaded.Items[0].IsPurchased)
	require.NotNil(t, loaded.Items[0].PurchasedAt)
	assert.True(t, loaded.Items[0].PurchasedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.Nil(t, loaded.Items[1].PurchasedAt)

	_, err = st.SaveGoal(ctx, g)
	assert.ErrorIs(t, err, core.ErrConcurrentModification, "version 0 means create")

	goals, err := st.ListGoals(ctx, "client-1")
	require.NoError(t, err)
	assert.Len(t, goals, 1)
}

func testNotFound(t *testing.T, st store.Store) {
	ctx := context.Background()

	_, err := st.GetDistribution(ctx, "nobody")
	assert.True(t, core.IsNotFound(err))
	_, err = st.GetPlan(ctx, "missing")
	assert.True(t, core.IsNotFound(err))
	_, err = st.GetRecurring(ctx, "missing")
	assert.True(t, core.IsNotFound(err))
	_, err = st.GetGoal(ctx, "missing")
	assert.True(t, core.IsNotFound(err))

	occ, err := st.ListOccurrences(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, occ)
}
