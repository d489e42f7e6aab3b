package distribution

import (
	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/core"
)

// =============================================================================
// POLICY - Constants behind the health flag and the emergency fund
// =============================================================================

// Policy holds the tunable rules of a simulation.
type Policy struct {
	// HealthyFixedExpensesRatio is the max share (percent of income) of fixed
	// costs for a healthy budget.
	HealthyFixedExpensesRatio decimal.Decimal

	// EmergencyFundMonths is how many months of fixed costs the fund should cover.
	EmergencyFundMonths int

	// EmergencyFundPercentage is the share of available income suggested for
	// the fund each month, before capping at what is left undistributed.
	EmergencyFundPercentage decimal.Decimal
}

// DefaultPolicy: healthy at <= 50% fixed costs, 12-month fund, 10% monthly.
func DefaultPolicy() Policy {
	return Policy{
		HealthyFixedExpensesRatio: decimal.NewFromInt(50),
		EmergencyFundMonths:       12,
		EmergencyFundPercentage:   decimal.NewFromInt(10),
	}
}

// =============================================================================
// SIMULATION RESULT
// =============================================================================

// Allocation is the amount assigned to one active category.
type Allocation struct {
	CategoryID CategoryID
	Name       string
	Percentage decimal.Decimal
	Amount     core.Money
	Color      *string
	Icon       *string
}

// EmergencyFund is the recommended monthly contribution to an emergency fund.
//
// SuggestedAmount is authoritative. When the policy percentage is capped by
// what is left undistributed, SuggestedAmount is that remainder and
// SuggestedPercentage is its share of the available amount rounded to two
// places, for display. Recomputing the amount from the rounded percentage
// may then be off by a few cents.
type EmergencyFund struct {
	TargetAmount        core.Money
	SuggestedPercentage decimal.Decimal
	SuggestedAmount     core.Money
	MonthsToTarget      *int // nil when nothing can be set aside
}

// SimulationResult is derived, never persisted.
type SimulationResult struct {
	IncomeAmount            core.Money
	FixedExpenses           core.Money
	AvailableAmount         core.Money
	TotalDistributed        core.Money
	Remaining               core.Money
	Distribution            []Allocation
	FixedExpensesPercentage decimal.Decimal
	IsHealthy               bool
	EmergencyFund           *EmergencyFund
}

// =============================================================================
// SIMULATE
// =============================================================================

// Simulate distributes income minus fixed expenses across active categories.
// It has no side effects.
//
// Remaining can only go negative through per-category rounding and is then
// bounded by 0.01 per active category.
func (e *Engine) Simulate(cfg Config, income, fixedExpenses core.Money) (SimulationResult, error) {
	if !income.IsPositive() {
		return SimulationResult{}, &core.InvalidIncomeError{Field: "income", Value: income, Reason: "must be greater than zero"}
	}
	if fixedExpenses.IsNegative() {
		return SimulationResult{}, &core.InvalidIncomeError{Field: "fixed expenses", Value: fixedExpenses, Reason: "must not be negative"}
	}

	available := income.Sub(fixedExpenses).Max(core.Zero)

	active := cfg.ActiveCategories()
	allocations := make([]Allocation, 0, len(active))
	distributed := core.Zero
	for _, cat := range active {
		amount := available.Percent(cat.Percentage)
		distributed = distributed.Add(amount)
		allocations = append(allocations, Allocation{
			CategoryID: cat.ID,
			Name:       cat.Name,
			Percentage: cat.Percentage,
			Amount:     amount,
			Color:      cat.Color,
			Icon:       cat.Icon,
		})
	}
	remaining := available.Sub(distributed)

	p := e.policy()

	return SimulationResult{
		IncomeAmount:            income,
		FixedExpenses:           fixedExpenses,
		AvailableAmount:         available,
		TotalDistributed:        distributed,
		Remaining:               remaining,
		Distribution:            allocations,
		FixedExpensesPercentage: fixedExpenses.Ratio(income),
		IsHealthy:               withinRatio(fixedExpenses, income, p.HealthyFixedExpensesRatio),
		EmergencyFund:           emergencyFund(p, fixedExpenses, available, remaining),
	}, nil
}

// withinRatio reports part/whole*100 <= limit, compared on exact values
// rather than on the rounded display percentage.
func withinRatio(part, whole core.Money, limit decimal.Decimal) bool {
	return part.Decimal().Mul(decimal.NewFromInt(100)).LessThanOrEqual(whole.Decimal().Mul(limit))
}

// emergencyFund returns nil when there are no fixed costs to cover.
func emergencyFund(p Policy, fixedExpenses, available, remaining core.Money) *EmergencyFund {
	if fixedExpenses.IsZero() {
		return nil
	}
	target := fixedExpenses.MulInt(p.EmergencyFundMonths).Round()

	pct := p.EmergencyFundPercentage
	amount := available.Percent(pct)
	if ceiling := remaining.Max(core.Zero); amount.GreaterThan(ceiling) {
		amount = ceiling
		pct = amount.Ratio(available)
	}

	fund := &EmergencyFund{
		TargetAmount:        target,
		SuggestedPercentage: pct,
		SuggestedAmount:     amount,
	}
	if amount.IsPositive() {
		months := int(target.Decimal().Div(amount.Decimal()).Ceil().IntPart())
		fund.MonthsToTarget = &months
	}
	return fund
}

// policy fills unset fields from DefaultPolicy. A zero ratio or month count
// means unset; a zero fund percentage is kept unless the whole policy is zero.
func (e *Engine) policy() Policy {
	p, def := e.Policy, DefaultPolicy()
	unset := p.HealthyFixedExpensesRatio.IsZero() && p.EmergencyFundMonths == 0 && p.EmergencyFundPercentage.IsZero()
	if unset {
		return def
	}
	if p.HealthyFixedExpensesRatio.IsZero() {
		p.HealthyFixedExpensesRatio = def.HealthyFixedExpensesRatio
	}
	if p.EmergencyFundMonths == 0 {
		p.EmergencyFundMonths = def.EmergencyFundMonths
	}
	return p
}
