package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_List(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("GET", "/api/scenarios/", nil)
	requireStatus(t, rec, http.StatusOK)
	list := decodeAs[[]ScenarioDTO](t, rec)

	require.Len(t, list, len(scenarioLoaders))
	for _, s := range list {
		_, ok := scenarioLoaders[s.ID]
		assert.True(t, ok, "scenario %s has a loader", s.ID)
	}
}

func TestScenarios_BalancedBudgetSimulates(t *testing.T) {
	ts := setupTestServer(t)

	// GIVEN: The balanced-budget scenario for alice
	rec := ts.do("POST", "/api/scenarios/load", map[string]any{"scenario_id": "balanced-budget", "client_id": "alice"})
	requireStatus(t, rec, http.StatusCreated)
	assert.Equal(t, "alice", decodeAs[LoadScenarioResponse](t, rec).ClientID)

	// WHEN: Simulating this month's income with computed fixed costs
	rec = ts.do("POST", "/api/clients/alice/distribution/simulate", map[string]any{"income_amount": "5000.00"})

	// THEN: The seeded obligations add up to 2000.00
	requireStatus(t, rec, http.StatusOK)
	sim := decodeAs[SimulationDTO](t, rec)
	assert.Equal(t, "computed", sim.FixedExpensesSource)
	assert.Equal(t, "2000.00", sim.FixedExpenses.String())
	require.Len(t, sim.Distribution, 2)
	assert.Equal(t, "900.00", sim.Distribution[0].Amount.String())
	assert.Equal(t, "600.00", sim.Distribution[1].Amount.String())

	// AND: Loading again never overwrites
	rec = ts.do("POST", "/api/scenarios/load", map[string]any{"scenario_id": "balanced-budget", "client_id": "alice"})
	requireStatus(t, rec, http.StatusConflict)
}

func TestScenarios_InstallmentHeavy(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("POST", "/api/scenarios/load", map[string]any{"scenario_id": "installment-heavy"})
	requireStatus(t, rec, http.StatusCreated)
	clientID := decodeAs[LoadScenarioResponse](t, rec).ClientID
	assert.Contains(t, clientID, "demo-")

	plans := decodeAs[[]PlanDTO](t, ts.do("GET", "/api/clients/"+clientID+"/installments", nil))
	require.Len(t, plans, 3)

	paid := map[string]int{}
	for _, p := range plans {
		paid[p.Title] = p.PaidCount
	}
	assert.Equal(t, map[string]int{"Refrigerator": 1, "Notebook": 0, "Sofa": 4}, paid)
}

func TestScenarios_SavingsGoals(t *testing.T) {
	ts := setupTestServer(t)

	requireStatus(t, ts.do("POST", "/api/scenarios/load", map[string]any{"scenario_id": "savings-goals", "client_id": "gina"}), http.StatusCreated)

	goals := decodeAs[[]GoalDTO](t, ts.do("GET", "/api/clients/gina/goals", nil))
	require.Len(t, goals, 3)

	byName := map[string]GoalDTO{}
	for _, g := range goals {
		byName[g.Name] = g
	}
	assert.True(t, byName["New laptop"].IsCompleted)
	assert.False(t, byName["New laptop"].IsOverdue)
	assert.True(t, byName["Emergency reserve"].IsOverdue)
	assert.Equal(t, 1, byName["Trip to Lisbon"].ItemsPurchased)
	assert.Equal(t, 3, byName["Trip to Lisbon"].ItemsTotal)
}

func TestScenarios_UnknownID(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("POST", "/api/scenarios/load", map[string]any{"scenario_id": "nope"})
	requireStatus(t, rec, http.StatusBadRequest)
}
