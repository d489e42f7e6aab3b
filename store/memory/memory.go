// Package memory provides an in-memory store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/distribution"
	"github.com/warp/budget-engine/goal"
	"github.com/warp/budget-engine/installment"
	"github.com/warp/budget-engine/recurring"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store keeps every aggregate in maps guarded by one lock. Values are copied
// on the way in and out so callers never share slices with the store.
type Store struct {
	mu sync.RWMutex

	distributions map[string]distribution.Config
	plans         map[string]installment.Plan
	recurring     map[string]recurring.Payment
	occurrences   map[string][]recurring.ProcessedOccurrence // by recurring payment id
	goals         map[string]goal.Goal

	now func() time.Time
}

func New() *Store {
	return &Store{
		distributions: make(map[string]distribution.Config),
		plans:         make(map[string]installment.Plan),
		recurring:     make(map[string]recurring.Payment),
		occurrences:   make(map[string][]recurring.ProcessedOccurrence),
		goals:         make(map[string]goal.Goal),
		now:           time.Now,
	}
}

// checkVersion enforces the compare-and-swap contract.
func checkVersion(exists bool, stored, given int) error {
	if !exists && given == 0 {
		return nil
	}
	if !exists || stored != given {
		return core.ErrConcurrentModification
	}
	return nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
}

// =============================================================================
// DISTRIBUTION
// =============================================================================

func (m *Store) GetDistribution(_ context.Context, clientID string) (distribution.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.distributions[clientID]
	if !ok {
		return distribution.Config{}, notFound("distribution config", clientID)
	}
	return copyConfig(cfg), nil
}

func (m *Store) SaveDistribution(_ context.Context, cfg distribution.Config) (distribution.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.distributions[cfg.ClientID]
	if err := checkVersion(ok, stored.Version, cfg.Version); err != nil {
		return distribution.Config{}, err
	}
	cfg = copyConfig(cfg)
	cfg.Version++
	cfg.UpdatedAt = m.now().UTC()
	m.distributions[cfg.ClientID] = cfg
	return copyConfig(cfg), nil
}

func (m *Store) DeleteDistribution(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.distributions[clientID]; !ok {
		return notFound("distribution config", clientID)
	}
	delete(m.distributions, clientID)
	return nil
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

func (m *Store) GetPlan(_ context.Context, id string) (installment.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plan, ok := m.plans[id]
	if !ok {
		return installment.Plan{}, notFound("installment plan", id)
	}
	return copyPlan(plan), nil
}

func (m *Store) ListPlans(_ context.Context, clientID string) ([]installment.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []installment.Plan
	for _, plan := range m.plans {
		if plan.ClientID == clientID {
			out = append(out, copyPlan(plan))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) SavePlan(_ context.Context, plan installment.Plan) (installment.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.plans[plan.ID]
	if err := checkVersion(ok, stored.Version, plan.Version); err != nil {
		return installment.Plan{}, err
	}
	plan = copyPlan(plan)
	now := m.now().UTC()
	if !ok {
		plan.CreatedAt = now
	}
	plan.Version++
	plan.UpdatedAt = now
	m.plans[plan.ID] = plan
	return copyPlan(plan), nil
}

// =============================================================================
// RECURRING
// =============================================================================

func (m *Store) GetRecurring(_ context.Context, id string) (recurring.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.recurring[id]
	if !ok {
		return recurring.Payment{}, notFound("recurring payment", id)
	}
	return p, nil
}

func (m *Store) ListRecurring(_ context.Context, clientID string) ([]recurring.Payment, error) {
	return m.listRecurring(func(p recurring.Payment) bool { return p.ClientID == clientID }), nil
}

func (m *Store) ListActiveRecurring(_ context.Context) ([]recurring.Payment, error) {
	return m.listRecurring(func(p recurring.Payment) bool { return p.IsActive }), nil
}

func (m *Store) listRecurring(keep func(recurring.Payment) bool) []recurring.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []recurring.Payment
	for _, p := range m.recurring {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Store) SaveRecurring(_ context.Context, p recurring.Payment) (recurring.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRecurringLocked(p)
}

func (m *Store) saveRecurringLocked(p recurring.Payment) (recurring.Payment, error) {
	stored, ok := m.recurring[p.ID]
	if err := checkVersion(ok, stored.Version, p.Version); err != nil {
		return recurring.Payment{}, err
	}
	now := m.now().UTC()
	if !ok {
		p.CreatedAt = now
	}
	p.Version++
	p.UpdatedAt = now
	m.recurring[p.ID] = p
	return p, nil
}

func (m *Store) ProcessOccurrence(_ context.Context, p recurring.Payment, occ recurring.ProcessedOccurrence) (recurring.Payment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Version check first so a conflict leaves nothing behind.
	stored, ok := m.recurring[p.ID]
	if err := checkVersion(ok, stored.Version, p.Version); err != nil {
		return recurring.Payment{}, false, err
	}

	created := true
	for _, existing := range m.occurrences[p.ID] {
		if existing.DueDate.Equal(occ.DueDate) {
			created = false
			break
		}
	}
	if created {
		m.occurrences[p.ID] = append(m.occurrences[p.ID], occ)
	}

	saved, err := m.saveRecurringLocked(p)
	return saved, created, err
}

func (m *Store) ListOccurrences(_ context.Context, recurringID string) ([]recurring.ProcessedOccurrence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]recurring.ProcessedOccurrence, len(m.occurrences[recurringID]))
	copy(out, m.occurrences[recurringID])
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

// =============================================================================
// GOALS
// =============================================================================

func (m *Store) GetGoal(_ context.Context, id string) (goal.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.goals[id]
	if !ok {
		return goal.Goal{}, notFound("goal", id)
	}
	return copyGoal(g), nil
}

func (m *Store) ListGoals(_ context.Context, clientID string) ([]goal.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []goal.Goal
	for _, g := range m.goals {
		if g.ClientID == clientID {
			out = append(out, copyGoal(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) SaveGoal(_ context.Context, g goal.Goal) (goal.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.goals[g.ID]
	if err := checkVersion(ok, stored.Version, g.Version); err != nil {
		return goal.Goal{}, err
	}
	g = copyGoal(g)
	now := m.now().UTC()
	if !ok {
		g.CreatedAt = now
	}
	g.Version++
	g.UpdatedAt = now
	m.goals[g.ID] = g
	return copyGoal(g), nil
}

// =============================================================================
// COPY HELPERS
// =============================================================================

func copyConfig(c distribution.Config) distribution.Config {
	c.Categories = append([]distribution.Category(nil), c.Categories...)
	return c
}

func copyPlan(p installment.Plan) installment.Plan {
	p.Payments = append([]installment.Payment(nil), p.Payments...)
	return p
}

func copyGoal(g goal.Goal) goal.Goal {
	g.Items = append([]goal.Item(nil), g.Items...)
	return g
}
