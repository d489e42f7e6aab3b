/*
Package distribution implements the income distribution engine.

PURPOSE:
  A client splits disposable income (income minus fixed monthly costs) across
  percentage-based categories. This package owns the category configuration
  and the 100% cap, and simulates a distribution for a given income.

KEY CONCEPTS IN THIS FILE (config.go):
  - Category: a named percentage slot (active or parked)
  - Config: the ordered category list of one client
  - Headroom: 100 - sum of active percentages

CRITICAL INVARIANT:
  The sum of percentages over ACTIVE categories never exceeds 100 after a
  successful call. Inactive categories keep their stored percentage so they
  can be reactivated later, but do not count toward the cap.

IMMUTABILITY:
  Every operation takes a Config value and returns a new one. The input is
  never mutated, so a failed call leaves the caller's state untouched and a
  retry against a fresher snapshot is always safe.

SEE ALSO:
  - engine.go: Add / update / toggle / remove
  - simulate.go: Simulation and emergency-fund recommendation
*/
package distribution

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATEGORY
// =============================================================================

type CategoryID string

// Category is one percentage slot of a distribution.
type Category struct {
	ID         CategoryID
	Name       string
	Percentage decimal.Decimal
	Priority   int
	IsActive   bool

	// Display-only, passed through untouched.
	Color *string
	Icon  *string
}

// =============================================================================
// CONFIG
// =============================================================================

// Config is the distribution configuration of a single client.
type Config struct {
	ClientID                string
	Categories              []Category
	IsAutoCalculateExpenses bool
	IsActive                bool

	// Version is the optimistic-concurrency token owned by the store.
	Version   int
	UpdatedAt time.Time
}

// NewConfig returns an empty, active configuration.
func NewConfig(clientID string) Config {
	return Config{
		ClientID:                clientID,
		IsAutoCalculateExpenses: true,
		IsActive:                true,
	}
}

// ActiveSum returns the sum of active percentages.
func (c Config) ActiveSum() decimal.Decimal {
	return c.activeSumExcluding("")
}

// Headroom returns the unused percentage capacity.
func (c Config) Headroom() decimal.Decimal {
	return maxPercentage.Sub(c.ActiveSum())
}

// Category returns the category with the given id.
func (c Config) Category(id CategoryID) (Category, bool) {
	if i := c.indexOf(id); i >= 0 {
		return c.Categories[i], true
	}
	return Category{}, false
}

// ActiveCategories returns active categories in priority order.
func (c Config) ActiveCategories() []Category {
	var active []Category
	for _, cat := range c.sorted() {
		if cat.IsActive {
			active = append(active, cat)
		}
	}
	return active
}

func (c Config) activeSumExcluding(id CategoryID) decimal.Decimal {
	sum := decimal.Zero
	for _, cat := range c.Categories {
		if cat.IsActive && cat.ID != id {
			sum = sum.Add(cat.Percentage)
		}
	}
	return sum
}

func (c Config) indexOf(id CategoryID) int {
	for i, cat := range c.Categories {
		if cat.ID == id {
			return i
		}
	}
	return -1
}

func (c Config) nextPriority() int {
	next := 1
	for _, cat := range c.Categories {
		if cat.Priority >= next {
			next = cat.Priority + 1
		}
	}
	return next
}

// sorted returns a priority-ordered copy; ties keep insertion order.
func (c Config) sorted() []Category {
	out := make([]Category, len(c.Categories))
	copy(out, c.Categories)
	// insertion sort: category lists are short and stability matters
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority < out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (c Config) clone() Config {
	cp := c
	cp.Categories = make([]Category, len(c.Categories))
	copy(cp.Categories, c.Categories)
	return cp
}
