package goal_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/goal"
)

func newGoal(t *testing.T, target, current, date string) goal.Goal {
	t.Helper()
	g, err := goal.New("goal-1", goal.Input{
		ClientID:      "client-1",
		Name:          "New bike",
		TargetAmount:  core.MustMoney(target),
		CurrentAmount: core.MustMoney(current),
		TargetDate:    core.MustDate(date),
	})
	require.NoError(t, err)
	return g
}

func TestNew_Validation(t *testing.T) {
	_, err := goal.New("g", goal.Input{Name: "x", TargetAmount: core.Zero, TargetDate: core.MustDate("2024-01-01")})
	var goalErr *core.InvalidGoalError
	require.ErrorAs(t, err, &goalErr)
	assert.Equal(t, "targetAmount", goalErr.Field)

	_, err = goal.New("g", goal.Input{Name: "", TargetAmount: core.MustMoney("1"), TargetDate: core.MustDate("2024-01-01")})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestDerive_InProgress(t *testing.T) {
	g := newGoal(t, "1500.00", "500.00", "2024-12-31")

	p := goal.Derive(g, core.MustDate("2024-12-01"))

	assert.True(t, p.Progress.Equal(decimal.RequireFromString("33.33")))
	assert.Equal(t, "1000.00", p.Remaining.String())
	assert.Equal(t, 30, p.DaysRemaining)
	assert.False(t, p.IsCompleted)
	assert.False(t, p.IsOverdue)
}

func TestDerive_CompletionBeatsOverdue(t *testing.T) {
	// GIVEN: target reached, target date yesterday
	g := newGoal(t, "1000", "1000", "2024-06-09")

	// WHEN
	p := goal.Derive(g, core.MustDate("2024-06-10"))

	// THEN
	assert.Equal(t, -1, p.DaysRemaining)
	assert.True(t, p.IsCompleted)
	assert.False(t, p.IsOverdue)
}

func TestDerive_Overdue(t *testing.T) {
	g := newGoal(t, "1000", "999.99", "2024-06-09")

	p := goal.Derive(g, core.MustDate("2024-06-10"))

	assert.True(t, p.IsOverdue)
	assert.False(t, p.IsCompleted)
	assert.True(t, p.Progress.Equal(decimal.RequireFromString("99.99")), "never rounds up to 100 before the target is reached")
}

func TestDerive_ProgressCappedAtHundred(t *testing.T) {
	g := newGoal(t, "100", "250", "2030-01-01")

	p := goal.Derive(g, core.MustDate("2024-01-01"))

	assert.True(t, p.Progress.Equal(decimal.NewFromInt(100)))
	assert.True(t, p.Remaining.IsZero())
	assert.True(t, p.IsCompleted)
}

func TestItems_DoNotMoveMoney(t *testing.T) {
	g := newGoal(t, "1000", "100", "2030-01-01")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	g, item, err := goal.AddItem(g, "item-1", "Helmet", core.MustMoney("80"))
	require.NoError(t, err)
	g, _, err = goal.AddItem(g, "item-2", "Lock", core.MustMoney("40"))
	require.NoError(t, err)

	g, toggled, err := goal.ToggleItem(g, item.ID, now)
	require.NoError(t, err)
	assert.True(t, toggled.IsPurchased)
	require.NotNil(t, toggled.PurchasedAt)
	assert.Equal(t, now, *toggled.PurchasedAt)
	assert.Equal(t, "100.00", g.CurrentAmount.String(), "checking an item never changes savings")

	p := goal.Derive(g, core.MustDate("2024-05-01"))
	assert.Equal(t, 2, p.ItemsTotal)
	assert.Equal(t, 1, p.ItemsPurchased)
	assert.Equal(t, "120.00", p.ItemsAmount.String())
	assert.Equal(t, "80.00", p.PurchasedAmount.String())

	g, toggled, err = goal.ToggleItem(g, item.ID, now)
	require.NoError(t, err)
	assert.False(t, toggled.IsPurchased)
	assert.Nil(t, toggled.PurchasedAt)

	g, err = goal.RemoveItem(g, "item-2")
	require.NoError(t, err)
	assert.Len(t, g.Items, 1)
}

func TestItems_UnknownID(t *testing.T) {
	g := newGoal(t, "1000", "0", "2030-01-01")

	_, _, err := goal.ToggleItem(g, "missing", time.Now())
	var unknown *core.UnknownItemError
	assert.ErrorAs(t, err, &unknown)

	_, err = goal.RemoveItem(g, "missing")
	assert.True(t, core.IsNotFound(err))
}

func TestContribute(t *testing.T) {
	g := newGoal(t, "1000", "900", "2030-01-01")

	next, err := goal.Contribute(g, core.MustMoney("150.50"))

	require.NoError(t, err)
	assert.Equal(t, "1050.50", next.CurrentAmount.String())
	assert.Equal(t, "900.00", g.CurrentAmount.String())
	assert.True(t, goal.Derive(next, core.MustDate("2024-01-01")).IsCompleted)

	_, err = goal.Contribute(g, core.Zero)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
