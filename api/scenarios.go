/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate a client with realistic data
	for demos. Each scenario runs the same engine calls the REST handlers
	use, so seeded data obeys every business rule.

AVAILABLE SCENARIOS:

	balanced-budget:   30/20 distribution, 2000.00 of monthly fixed costs
	installment-heavy: Several purchases, one with interest, one partly paid
	savings-goals:     Goals with shopping lists, one completed, one overdue

HOW SCENARIOS WORK:
 1. Pick the client id (given, or "demo-<uuid>")
 2. Create the client's aggregates through the engine packages
 3. Save each aggregate as new (version 0)

Loading into a client that already has a distribution config fails with
409: scenarios never overwrite data.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "balanced-budget", "client_id": "alice"}

SEE ALSO:
  - handlers.go: Handler
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/distribution"
	"github.com/warp/budget-engine/goal"
	"github.com/warp/budget-engine/installment"
	"github.com/warp/budget-engine/recurring"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "balanced-budget",
		Name:        "Balanced Budget",
		Description: "Two categories at 30% and 20%, rent and bills adding up to 2000.00 a month",
	},
	{
		ID:          "installment-heavy",
		Name:        "Installment Heavy",
		Description: "Three purchases in installments, one with 2% monthly interest, one partly paid",
	},
	{
		ID:          "savings-goals",
		Name:        "Savings Goals",
		Description: "A trip, a laptop and an emergency reserve with shopping lists",
	},
}

type scenarioLoader func(h *Handler, ctx context.Context, clientID string) error

var scenarioLoaders = map[string]scenarioLoader{
	"balanced-budget":   (*Handler).loadBalancedBudgetScenario,
	"installment-heavy": (*Handler).loadInstallmentHeavyScenario,
	"savings-goals":     (*Handler).loadSavingsGoalsScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds a client with a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		h.fail(w, r, &requestError{Field: "scenario_id", Reason: fmt.Sprintf("unknown scenario %q", req.ScenarioID)})
		return
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = "demo-" + h.NewID()
	}

	if err := load(h, r.Context(), clientID); err != nil {
		h.fail(w, r, fmt.Errorf("load scenario %s: %w", req.ScenarioID, err))
		return
	}

	h.log.WithField("scenario", req.ScenarioID).WithField("client_id", clientID).Info("scenario loaded")
	writeJSON(w, http.StatusCreated, LoadScenarioResponse{ScenarioID: req.ScenarioID, ClientID: clientID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadBalancedBudgetScenario(ctx context.Context, clientID string) error {
	cfg := distribution.NewConfig(clientID)
	var err error
	for _, c := range []struct {
		name, pct, color string
	}{
		{"Investments", "30", "#2e7d32"},
		{"Leisure", "20", "#f9a825"},
	} {
		color := c.color
		if cfg, _, err = h.Engine.AddCategory(cfg, c.name, core.MustPercentage(c.pct), distribution.CategoryOptions{Color: &color}); err != nil {
			return err
		}
	}
	if _, err := h.Store.SaveDistribution(ctx, cfg); err != nil {
		return err
	}

	today := h.today()
	start := today.MonthOf().First()

	// 1500 + 100 + 2400/12 = 1800 a month
	for _, in := range []recurring.Input{
		{Title: "Rent", Amount: core.MustMoney("1500.00"), Category: "housing", Frequency: recurring.Monthly, DayOfMonth: 5},
		{Title: "Internet", Amount: core.MustMoney("100.00"), Category: "utilities", Frequency: recurring.Monthly, DayOfMonth: 10},
		{Title: "Car insurance", Amount: core.MustMoney("2400.00"), Category: "insurance", Frequency: recurring.Yearly, DayOfMonth: 20},
	} {
		in.ClientID = clientID
		in.StartDate = start
		if err := h.seedRecurring(ctx, in); err != nil {
			return err
		}
	}

	// 2400 over 12 months without interest: 200 a month
	return h.seedPlan(ctx, installment.PlanInput{
		ClientID:         clientID,
		Title:            "Television",
		Category:         "electronics",
		TotalAmount:      core.MustMoney("2400.00"),
		InstallmentCount: 12,
		FirstDueDate:     core.NewDate(start.Year(), start.Month(), 15),
	}, 0)
}

func (h *Handler) loadInstallmentHeavyScenario(ctx context.Context, clientID string) error {
	if _, err := h.Store.SaveDistribution(ctx, distribution.NewConfig(clientID)); err != nil {
		return err
	}

	firstOfMonth := h.today().MonthOf().First()
	plans := []struct {
		in   installment.PlanInput
		paid int
	}{
		{installment.PlanInput{Title: "Refrigerator", Category: "home", TotalAmount: core.MustMoney("1000.00"), InstallmentCount: 3}, 1},
		{installment.PlanInput{Title: "Notebook", Category: "electronics", TotalAmount: core.MustMoney("1200.00"), InstallmentCount: 12, InterestRate: core.MustPercentage("2")}, 0},
		{installment.PlanInput{Title: "Sofa", Category: "home", TotalAmount: core.MustMoney("3600.00"), InstallmentCount: 10}, 4},
	}
	for _, p := range plans {
		p.in.ClientID = clientID
		// Back-date partly paid plans so the paid rows lie in the past.
		p.in.FirstDueDate = firstOfMonth.AddMonths(-p.paid).AddDays(9)
		if err := h.seedPlan(ctx, p.in, p.paid); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadSavingsGoalsScenario(ctx context.Context, clientID string) error {
	if _, err := h.Store.SaveDistribution(ctx, distribution.NewConfig(clientID)); err != nil {
		return err
	}

	today := h.today()
	goals := []struct {
		in    goal.Input
		items []string // name=amount
	}{
		{goal.Input{Name: "Trip to Lisbon", TargetAmount: core.MustMoney("4000.00"), CurrentAmount: core.MustMoney("1250.00"), TargetDate: today.AddMonths(8)},
			[]string{"Flights=900.00", "Hotel=1400.00", "Museum pass=60.00"}},
		{goal.Input{Name: "New laptop", TargetAmount: core.MustMoney("2500.00"), CurrentAmount: core.MustMoney("2500.00"), TargetDate: today.AddMonths(-1)},
			[]string{"Laptop=2300.00", "Sleeve=45.00"}},
		{goal.Input{Name: "Emergency reserve", TargetAmount: core.MustMoney("6000.00"), CurrentAmount: core.MustMoney("900.00"), TargetDate: today.AddDays(-10)},
			nil},
	}

	for _, seed := range goals {
		seed.in.ClientID = clientID
		g, err := goal.New(h.NewID(), seed.in)
		if err != nil {
			return err
		}
		for i, entry := range seed.items {
			name, amount, err := splitItem(entry)
			if err != nil {
				return err
			}
			if g, _, err = goal.AddItem(g, h.NewID(), name, amount); err != nil {
				return err
			}
			if i == 0 {
				if g, _, err = goal.ToggleItem(g, g.Items[0].ID, h.Now()); err != nil {
					return err
				}
			}
		}
		if _, err := h.Store.SaveGoal(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) seedRecurring(ctx context.Context, in recurring.Input) error {
	p, err := recurring.New(h.NewID(), in)
	if err != nil {
		return err
	}
	_, err = h.Store.SaveRecurring(ctx, p)
	return err
}

// seedPlan creates a plan and pays its first paid rows on their due dates.
func (h *Handler) seedPlan(ctx context.Context, in installment.PlanInput, paid int) error {
	plan, err := h.Scheduler.CreatePlan(in)
	if err != nil {
		return err
	}
	for i := 0; i < paid && i < len(plan.Payments); i++ {
		row := plan.Payments[i]
		if plan, _, err = installment.ApplyPayment(plan, row.ID, row.DueDate, nil); err != nil {
			return err
		}
	}
	_, err = h.Store.SavePlan(ctx, plan)
	return err
}

func splitItem(entry string) (string, core.Money, error) {
	name, amount, ok := strings.Cut(entry, "=")
	if !ok {
		return "", core.Zero, fmt.Errorf("malformed item %q", entry)
	}
	m, err := core.ParseMoney(amount)
	return name, m, err
}
