/*
store.go - Persistence interfaces for the budget aggregates

PURPOSE:
  Defines the boundary between the orchestration layer and the database.
  Engine packages never import this package: the API loads an aggregate,
  hands it to a calculator, and saves whatever comes back.

KEY INTERFACES:
  DistributionStore: One distribution config (with categories) per client
  InstallmentStore:  Installment plans with their payment rows
  RecurringStore:    Recurring payments and their processed occurrences
  GoalStore:         Savings goals with their items

OPTIMISTIC CONCURRENCY:
  Every aggregate carries a Version. Save is a compare-and-swap:
  - Version 0 means "new": the insert fails if the aggregate exists
  - Otherwise the stored version must equal the given one
  - On success the returned aggregate carries Version+1
  - On mismatch Save returns core.ErrConcurrentModification

  Callers retry by reloading the latest snapshot and re-running the engine
  call, which re-validates the cap and already-paid rules.

IDEMPOTENT PROCESSING:
  ProcessOccurrence records an occurrence at most once per
  (recurring payment, due date) and saves the payment in the same write.
  A duplicate reports created=false instead of failing.

IMPLEMENTATIONS:
  - store/memory: In-memory for tests and dev
  - store/sqlite: SQLite with embedded migrations

SEE ALSO:
  - api/retry.go: Retry loop on ErrConcurrentModification
*/
package store

import (
	"context"

	"github.com/warp/budget-engine/distribution"
	"github.com/warp/budget-engine/goal"
	"github.com/warp/budget-engine/installment"
	"github.com/warp/budget-engine/recurring"
)

// =============================================================================
// AGGREGATE STORES
// =============================================================================

type DistributionStore interface {
	// GetDistribution returns core.ErrNotFound when the client has no config.
	GetDistribution(ctx context.Context, clientID string) (distribution.Config, error)
	SaveDistribution(ctx context.Context, cfg distribution.Config) (distribution.Config, error)
	// DeleteDistribution removes the config and its categories.
	DeleteDistribution(ctx context.Context, clientID string) error
}

type InstallmentStore interface {
	GetPlan(ctx context.Context, id string) (installment.Plan, error)
	ListPlans(ctx context.Context, clientID string) ([]installment.Plan, error)
	SavePlan(ctx context.Context, plan installment.Plan) (installment.Plan, error)
}

type RecurringStore interface {
	GetRecurring(ctx context.Context, id string) (recurring.Payment, error)
	ListRecurring(ctx context.Context, clientID string) ([]recurring.Payment, error)
	// ListActiveRecurring returns active payments of every client.
	ListActiveRecurring(ctx context.Context) ([]recurring.Payment, error)
	SaveRecurring(ctx context.Context, p recurring.Payment) (recurring.Payment, error)

	// ProcessOccurrence atomically records occ and saves p.
	ProcessOccurrence(ctx context.Context, p recurring.Payment, occ recurring.ProcessedOccurrence) (saved recurring.Payment, created bool, err error)
	ListOccurrences(ctx context.Context, recurringID string) ([]recurring.ProcessedOccurrence, error)
}

type GoalStore interface {
	GetGoal(ctx context.Context, id string) (goal.Goal, error)
	ListGoals(ctx context.Context, clientID string) ([]goal.Goal, error)
	SaveGoal(ctx context.Context, g goal.Goal) (goal.Goal, error)
}

// Store is everything the API needs.
type Store interface {
	DistributionStore
	InstallmentStore
	RecurringStore
	GoalStore
}
