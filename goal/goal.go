/*
Package goal tracks savings goals and their shopping lists.

PURPOSE:
  A goal is a target amount to save by a target date. Money enters only
  through contributions; items on the goal's list are things to buy with
  it and are checked off independently.

KEY CONCEPTS:
  - Goal: target, saved amount, target date and items
  - Item: a named amount with a purchased flag and timestamp
  - Progress: derived view (percent saved, remaining, days left,
    completed, overdue, item totals), never stored

DERIVED PROGRESS:
  Progress is current/target as a percentage capped at 100. A goal that
  is not reached never displays 100. Completion beats overdue: a reached
  goal past its date is completed, not overdue.

SEE ALSO:
  - api/handlers_goals.go: HTTP handlers
  - store/store.go: GoalStore
*/
package goal

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/core"
)

var almostFull = decimal.RequireFromString("99.99")

// Goal is a savings target with an optional list of items to buy.
type Goal struct {
	ID            string
	ClientID      string
	Name          string
	TargetAmount  core.Money
	CurrentAmount core.Money
	TargetDate    core.Date
	Items         []Item

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is one entry of a goal's list. Amount is informational.
type Item struct {
	ID          string
	Name        string
	Amount      core.Money
	IsPurchased bool
	PurchasedAt *time.Time
}

// Input describes a new goal.
type Input struct {
	ClientID      string
	Name          string
	TargetAmount  core.Money
	CurrentAmount core.Money
	TargetDate    core.Date
}

// New validates the input and returns a goal without items.
func New(id string, in Input) (Goal, error) {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return Goal{}, &core.InvalidGoalError{Field: "name", Reason: "must not be empty"}
	case !in.TargetAmount.IsPositive():
		return Goal{}, &core.InvalidGoalError{Field: "targetAmount", Reason: "must be greater than zero"}
	case in.CurrentAmount.IsNegative():
		return Goal{}, &core.InvalidGoalError{Field: "currentAmount", Reason: "must not be negative"}
	case in.TargetDate.IsZero():
		return Goal{}, &core.InvalidGoalError{Field: "targetDate", Reason: "is required"}
	}
	return Goal{
		ID:            id,
		ClientID:      in.ClientID,
		Name:          strings.TrimSpace(in.Name),
		TargetAmount:  in.TargetAmount,
		CurrentAmount: in.CurrentAmount,
		TargetDate:    in.TargetDate,
	}, nil
}

// =============================================================================
// DERIVATION
// =============================================================================

// Progress is the derived view of a goal on a given day.
type Progress struct {
	Progress        decimal.Decimal // 0-100, two places
	Remaining       core.Money
	DaysRemaining   int
	IsCompleted     bool
	IsOverdue       bool
	ItemsTotal      int
	ItemsPurchased  int
	ItemsAmount     core.Money
	PurchasedAmount core.Money
}

// Derive computes progress as seen on today. Completion takes precedence
// over overdue.
func Derive(g Goal, today core.Date) Progress {
	completed := g.TargetAmount.IsPositive() && !g.CurrentAmount.LessThan(g.TargetAmount)
	pct := decimal.Min(g.CurrentAmount.Ratio(g.TargetAmount), core.FullPercentage)
	// 99.995% and above would display as 100 without being reached.
	if !completed && pct.Equal(core.FullPercentage) {
		pct = almostFull
	}

	p := Progress{
		Progress:        pct,
		Remaining:       g.TargetAmount.Sub(g.CurrentAmount).Max(core.Zero),
		DaysRemaining:   core.DaysBetween(today, g.TargetDate),
		IsCompleted:     completed,
		ItemsTotal:      len(g.Items),
		ItemsAmount:     core.Zero,
		PurchasedAmount: core.Zero,
	}
	p.IsOverdue = p.DaysRemaining < 0 && !p.IsCompleted

	for _, it := range g.Items {
		p.ItemsAmount = p.ItemsAmount.Add(it.Amount)
		if it.IsPurchased {
			p.ItemsPurchased++
			p.PurchasedAmount = p.PurchasedAmount.Add(it.Amount)
		}
	}
	return p
}

// =============================================================================
// ITEMS
// =============================================================================

// AddItem appends an unpurchased item.
func AddItem(g Goal, id, name string, amount core.Money) (Goal, Item, error) {
	if strings.TrimSpace(name) == "" {
		return g, Item{}, &core.InvalidGoalError{Field: "item name", Reason: "must not be empty"}
	}
	if amount.IsNegative() {
		return g, Item{}, &core.InvalidGoalError{Field: "item amount", Reason: "must not be negative"}
	}
	item := Item{ID: id, Name: strings.TrimSpace(name), Amount: amount}
	next := g.clone()
	next.Items = append(next.Items, item)
	return next, item, nil
}

// RemoveItem deletes an item from the list.
func RemoveItem(g Goal, itemID string) (Goal, error) {
	i := g.indexOf(itemID)
	if i < 0 {
		return g, &core.UnknownItemError{GoalID: g.ID, ItemID: itemID}
	}
	next := g.clone()
	next.Items = append(next.Items[:i], next.Items[i+1:]...)
	return next, nil
}

// ToggleItem flips IsPurchased, stamping PurchasedAt when checked and
// clearing it when unchecked.
func ToggleItem(g Goal, itemID string, now time.Time) (Goal, Item, error) {
	i := g.indexOf(itemID)
	if i < 0 {
		return g, Item{}, &core.UnknownItemError{GoalID: g.ID, ItemID: itemID}
	}
	next := g.clone()
	it := &next.Items[i]
	it.IsPurchased = !it.IsPurchased
	if it.IsPurchased {
		at := now.UTC()
		it.PurchasedAt = &at
	} else {
		it.PurchasedAt = nil
	}
	return next, *it, nil
}

// Contribute adds money saved toward the goal.
func Contribute(g Goal, amount core.Money) (Goal, error) {
	if !amount.IsPositive() {
		return g, &core.InvalidGoalError{Field: "contribution", Reason: "must be greater than zero"}
	}
	next := g.clone()
	next.CurrentAmount = next.CurrentAmount.Add(amount)
	return next, nil
}

func (g Goal) indexOf(itemID string) int {
	for i, it := range g.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

func (g Goal) clone() Goal {
	cp := g
	cp.Items = make([]Item, len(g.Items))
	copy(cp.Items, g.Items)
	return cp
}
