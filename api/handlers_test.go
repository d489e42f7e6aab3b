/*
handlers_test.go - HTTP tests for the budget API

Tests drive the router with httptest against the in-memory store and a
fixed clock (2025-03-15), covering:
- The 5000/2000/30%/20% distribution scenario end to end
- Cap violations (422 with the available headroom)
- Installment pay/skip/cancel/edit rules
- Recurring manual payment idempotency and schedule
- Goal progress, items and contributions
- Error envelope and status mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/distribution"
	"github.com/warp/budget-engine/store/memory"
)

var fixedNow = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
	store   *memory.Store
	logHook *test.Hook
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	st := memory.New()
	h := NewHandler(st, distribution.NewEngine(), logger)
	h.Now = func() time.Time { return fixedNow }

	return &testServer{
		t:       t,
		handler: h,
		router:  NewRouter(h, RouterOptions{}),
		store:   st,
		logHook: hook,
	}
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(ts.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// DISTRIBUTION
// =============================================================================

func TestDistribution_EndToEndScenario(t *testing.T) {
	ts := setupTestServer(t)

	// GIVEN: Two active categories at 30% and 20%
	rec := ts.do("POST", "/api/clients/alice/distribution/categories", map[string]any{"name": "Investments", "percentage": "30"})
	requireStatus(t, rec, http.StatusCreated)
	rec = ts.do("POST", "/api/clients/alice/distribution/categories", map[string]any{"name": "Leisure", "percentage": "20", "color": "#ff0"})
	requireStatus(t, rec, http.StatusCreated)

	// WHEN: Simulating 5000.00 of income with 2000.00 of fixed expenses
	rec = ts.do("POST", "/api/clients/alice/distribution/simulate", map[string]any{
		"income_amount":  "5000.00",
		"fixed_expenses": "2000.00",
	})

	// THEN: Half of the 3000.00 available is distributed
	requireStatus(t, rec, http.StatusOK)
	sim := decodeAs[SimulationDTO](t, rec)
	assert.Equal(t, "request", sim.FixedExpensesSource)
	assert.Equal(t, "3000.00", sim.AvailableAmount.String())
	assert.Equal(t, "1500.00", sim.TotalDistributed.String())
	assert.Equal(t, "1500.00", sim.Remaining.String())
	assert.True(t, sim.FixedExpensesPercentage.Equal(dec("40")), sim.FixedExpensesPercentage.String())
	assert.True(t, sim.IsHealthy)
	require.Len(t, sim.Distribution, 2)
	assert.Equal(t, "Investments", sim.Distribution[0].Name)
	assert.Equal(t, "900.00", sim.Distribution[0].Amount.String())
	assert.Equal(t, "600.00", sim.Distribution[1].Amount.String())
	require.NotNil(t, sim.EmergencyFund)
	assert.Equal(t, "24000.00", sim.EmergencyFund.TargetAmount.String())
}

func TestDistribution_CapExceededReturns422WithHeadroom(t *testing.T) {
	ts := setupTestServer(t)

	// GIVEN: 50% already allocated
	requireStatus(t, ts.do("POST", "/api/clients/bob/distribution/categories", map[string]any{"name": "A", "percentage": "30"}), http.StatusCreated)
	requireStatus(t, ts.do("POST", "/api/clients/bob/distribution/categories", map[string]any{"name": "B", "percentage": "20"}), http.StatusCreated)

	// WHEN: Adding a 60% category
	rec := ts.do("POST", "/api/clients/bob/distribution/categories", map[string]any{"name": "C", "percentage": "60"})

	// THEN: 422 reports the 50% still available and nothing is stored
	requireStatus(t, rec, http.StatusUnprocessableEntity)
	errResp := decodeAs[ErrorResponse](t, rec)
	assert.Equal(t, "cap_exceeded", errResp.Code)
	details, ok := errResp.Details.(map[string]any)
	require.True(t, ok)
	available, ok := details["available"].(string)
	require.True(t, ok)
	assert.True(t, dec(available).Equal(dec("50")), available)

	cfg := decodeAs[DistributionDTO](t, ts.do("GET", "/api/clients/bob/distribution", nil))
	assert.Len(t, cfg.Categories, 2)
	assert.True(t, cfg.Headroom.Equal(dec("50")))
}

func TestDistribution_UpdateCategoryToggleAndRemove(t *testing.T) {
	ts := setupTestServer(t)

	// GIVEN: Categories at 60% and 40%
	a := decodeAs[CategoryDTO](t, ts.do("POST", "/api/clients/c1/distribution/categories", map[string]any{"name": "A", "percentage": "60"}))
	b := decodeAs[CategoryDTO](t, ts.do("POST", "/api/clients/c1/distribution/categories", map[string]any{"name": "B", "percentage": "40"}))

	// WHEN: Deactivating A and raising B to 70% in two requests
	rec := ts.do("PATCH", "/api/clients/c1/distribution/categories/"+a.ID, map[string]any{"is_active": false})
	requireStatus(t, rec, http.StatusOK)
	rec = ts.do("PATCH", "/api/clients/c1/distribution/categories/"+b.ID, map[string]any{"percentage": "70", "name": "B2"})

	// THEN: B is updated and renamed
	requireStatus(t, rec, http.StatusOK)
	updated := decodeAs[CategoryDTO](t, rec)
	assert.True(t, updated.Percentage.Equal(dec("70")))
	assert.Equal(t, "B2", updated.Name)

	// AND: Reactivating A (60%) would exceed the cap
	rec = ts.do("PATCH", "/api/clients/c1/distribution/categories/"+a.ID, map[string]any{"is_active": true})
	requireStatus(t, rec, http.StatusUnprocessableEntity)

	// AND: Removing B keeps A's stored percentage without rescaling
	rec = ts.do("DELETE", "/api/clients/c1/distribution/categories/"+b.ID, nil)
	requireStatus(t, rec, http.StatusOK)
	cfg := decodeAs[DistributionDTO](t, rec)
	require.Len(t, cfg.Categories, 1)
	assert.False(t, cfg.Categories[0].IsActive)
	assert.True(t, cfg.Categories[0].Percentage.Equal(dec("60")))
	assert.True(t, cfg.ActivePercentage.IsZero())

	// AND: Unknown categories are 404
	requireStatus(t, ts.do("DELETE", "/api/clients/c1/distribution/categories/missing", nil), http.StatusNotFound)
}

func TestDistribution_SimulateComputesFixedCosts(t *testing.T) {
	ts := setupTestServer(t)

	// GIVEN: Rent of 1500.00 and a 1000.00 purchase in two installments due in March
	requireStatus(t, ts.do("POST", "/api/clients/dana/recurring", map[string]any{
		"title": "Rent", "amount": "1500.00", "frequency": "MONTHLY", "day_of_month": 5, "start_date": "2025-01-01",
	}), http.StatusCreated)
	requireStatus(t, ts.do("POST", "/api/clients/dana/installments", map[string]any{
		"title": "Phone", "total_amount": "1000.00", "installment_count": 2, "first_due_date": "2025-03-10",
	}), http.StatusCreated)
	requireStatus(t, ts.do("POST", "/api/clients/dana/distribution/categories", map[string]any{"name": "Savings", "percentage": "50"}), http.StatusCreated)

	// WHEN: Simulating March without giving fixed expenses
	rec := ts.do("POST", "/api/clients/dana/distribution/simulate", map[string]any{"income_amount": "5000.00", "month": "2025-03"})

	// THEN: Fixed expenses come from the client's obligations
	requireStatus(t, rec, http.StatusOK)
	sim := decodeAs[SimulationDTO](t, rec)
	assert.Equal(t, "computed", sim.FixedExpensesSource)
	assert.Equal(t, "2000.00", sim.FixedExpenses.String())
	assert.Equal(t, "1500.00", sim.Distribution[0].Amount.String())

	// AND: Turning auto-calculation off makes fixed expenses zero
	requireStatus(t, ts.do("PUT", "/api/clients/dana/distribution", map[string]any{"is_auto_calculate_expenses": false}), http.StatusOK)
	sim = decodeAs[SimulationDTO](t, ts.do("POST", "/api/clients/dana/distribution/simulate", map[string]any{"income_amount": "5000.00"}))
	assert.True(t, sim.FixedExpenses.IsZero())
	assert.Nil(t, sim.EmergencyFund)
}

func TestDistribution_InvalidIncomeAndReset(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("POST", "/api/clients/eve/distribution/simulate", map[string]any{"income_amount": "0", "fixed_expenses": "0"})
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "invalid_input", decodeAs[ErrorResponse](t, rec).Code)

	// Reset of a client without a config is 404
	requireStatus(t, ts.do("DELETE", "/api/clients/eve/distribution", nil), http.StatusNotFound)

	requireStatus(t, ts.do("POST", "/api/clients/eve/distribution/categories", map[string]any{"name": "A", "percentage": "10"}), http.StatusCreated)
	requireStatus(t, ts.do("DELETE", "/api/clients/eve/distribution", nil), http.StatusNoContent)

	cfg := decodeAs[DistributionDTO](t, ts.do("GET", "/api/clients/eve/distribution", nil))
	assert.Empty(t, cfg.Categories)
	assert.Equal(t, 0, cfg.Version)
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

func TestInstallments_PaySkipAndComplete(t *testing.T) {
	ts := setupTestServer(t)

	// GIVEN: 1000.00 in 3 installments from April
	rec := ts.do("POST", "/api/clients/frank/installments", map[string]any{
		"title": "Fridge", "total_amount": "1000.00", "installment_count": 3, "first_due_date": "2025-04-10",
	})
	requireStatus(t, rec, http.StatusCreated)
	plan := decodeAs[PlanDTO](t, rec)
	require.Len(t, plan.Payments, 3)
	assert.Equal(t, "333.33", plan.Payments[0].Amount.String())
	assert.Equal(t, "333.34", plan.Payments[2].Amount.String())
	assert.Equal(t, "2025-06-10", plan.Payments[2].DueDate.String())
	assert.Equal(t, "1000.00", plan.Summary.TotalPayable.String())

	base := "/api/installments/" + plan.ID

	// WHEN: Paying the first row
	rec = ts.do("POST", base+"/payments/"+plan.Payments[0].ID+"/pay", map[string]any{"payment_date": "2025-04-09"})
	requireStatus(t, rec, http.StatusOK)
	action := decodeAs[PaymentActionResponse](t, rec)
	assert.Equal(t, "PAID", action.Payment.Status)
	assert.Equal(t, "2025-04-09", action.Payment.PaidDate.String())
	assert.Equal(t, 1, action.Plan.PaidCount)

	// THEN: Paying it again is a 409
	rec = ts.do("POST", base+"/payments/"+plan.Payments[0].ID+"/pay", nil)
	requireStatus(t, rec, http.StatusConflict)
	assert.Equal(t, "state_conflict", decodeAs[ErrorResponse](t, rec).Code)

	// AND: Financial edits are locked once a row is paid
	rec = ts.do("PATCH", base, map[string]any{"total_amount": "1200.00"})
	requireStatus(t, rec, http.StatusConflict)

	// AND: Descriptive edits still work
	rec = ts.do("PATCH", base, map[string]any{"title": "Kitchen fridge"})
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "Kitchen fridge", decodeAs[PlanDTO](t, rec).Title)

	// AND: Skipping the second and paying the third completes the plan
	requireStatus(t, ts.do("POST", base+"/payments/"+plan.Payments[1].ID+"/skip", nil), http.StatusOK)
	rec = ts.do("POST", base+"/payments/"+plan.Payments[2].ID+"/pay", map[string]any{"amount_paid": "340.00"})
	requireStatus(t, rec, http.StatusOK)
	done := decodeAs[PaymentActionResponse](t, rec).Plan
	assert.Equal(t, "COMPLETED", done.Status)
	assert.Equal(t, "673.33", done.Summary.PaidAmount.String())
	assert.Nil(t, done.Summary.NextPayment)

	// AND: A completed plan cannot be canceled
	requireStatus(t, ts.do("POST", base+"/cancel", nil), http.StatusConflict)

	// AND: Unknown rows are 404
	requireStatus(t, ts.do("POST", base+"/payments/nope/pay", nil), http.StatusNotFound)
}

func TestInstallments_OverdueIsAView(t *testing.T) {
	ts := setupTestServer(t)

	// GIVEN: A plan whose first row fell due before today
	plan := decodeAs[PlanDTO](t, ts.do("POST", "/api/clients/gina/installments", map[string]any{
		"title": "Bike", "total_amount": "600.00", "installment_count": 2, "first_due_date": "2025-03-01",
	}))

	// WHEN: Reading it back
	got := decodeAs[PlanDTO](t, ts.do("GET", "/api/installments/"+plan.ID, nil))

	// THEN: The row reads OVERDUE while stored PENDING
	assert.Equal(t, "OVERDUE", got.Payments[0].Status)
	assert.Equal(t, "PENDING", got.Payments[1].Status)
	assert.Equal(t, 1, got.Summary.OverdueCount)

	stored, err := ts.store.GetPlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", string(stored.Payments[0].Status))
}

func TestInstallments_InterestBreakdownAndCancel(t *testing.T) {
	ts := setupTestServer(t)

	// GIVEN: 1200.00 over 12 months at 2% a month
	rec := ts.do("POST", "/api/clients/hal/installments", map[string]any{
		"title": "Notebook", "total_amount": "1200.00", "installment_count": 12, "interest_rate": "2", "first_due_date": "2025-04-01",
	})
	requireStatus(t, rec, http.StatusCreated)
	plan := decodeAs[PlanDTO](t, rec)
	assert.Equal(t, "113.47", plan.InstallmentAmount.String())
	assert.Equal(t, "113.49", plan.LastInstallmentAmount.String())

	// WHEN: Fetching the breakdown
	rows := decodeAs[[]BreakdownRowDTO](t, ts.do("GET", "/api/installments/"+plan.ID+"/breakdown", nil))

	// THEN: Interest adds up and the balance is cleared
	require.Len(t, rows, 12)
	interest := core.Zero
	for _, r := range rows {
		interest = interest.Add(r.Interest)
	}
	assert.Equal(t, "161.66", interest.String())
	assert.True(t, rows[11].Balance.IsZero())

	// AND: Financial edits regenerate the schedule while nothing is paid
	rec = ts.do("PATCH", "/api/installments/"+plan.ID, map[string]any{"installment_count": 6, "interest_rate": "0"})
	requireStatus(t, rec, http.StatusOK)
	edited := decodeAs[PlanDTO](t, rec)
	assert.Len(t, edited.Payments, 6)
	assert.Equal(t, "200.00", edited.InstallmentAmount.String())

	// AND: Canceling twice is accepted
	requireStatus(t, ts.do("POST", "/api/installments/"+plan.ID+"/cancel", nil), http.StatusOK)
	rec = ts.do("POST", "/api/installments/"+plan.ID+"/cancel", nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "CANCELED", decodeAs[PlanDTO](t, rec).Status)

	// AND: Nothing can be paid on a canceled plan
	requireStatus(t, ts.do("POST", "/api/installments/"+plan.ID+"/payments/"+edited.Payments[0].ID+"/pay", nil), http.StatusConflict)

	list := decodeAs[[]PlanDTO](t, ts.do("GET", "/api/clients/hal/installments", nil))
	assert.Len(t, list, 1)
}

func TestInstallments_InvalidCount(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("POST", "/api/clients/ivy/installments", map[string]any{
		"title": "TV", "total_amount": "100.00", "installment_count": 61, "first_due_date": "2025-04-01",
	})
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "invalid_input", decodeAs[ErrorResponse](t, rec).Code)
}

// =============================================================================
// RECURRING
// =============================================================================

func TestRecurring_ManualPaymentIsIdempotent(t *testing.T) {
	ts := setupTestServer(t)

	// GIVEN: A monthly payment anchored on the 31st
	rec := ts.do("POST", "/api/clients/jo/recurring", map[string]any{
		"title": "Gym", "amount": "49.90", "frequency": "MONTHLY", "day_of_month": 31, "start_date": "2025-01-15",
	})
	requireStatus(t, rec, http.StatusCreated)
	p := decodeAs[RecurringDTO](t, rec)
	assert.Equal(t, "2025-03-31", p.NextDueDate.String())
	base := "/api/recurring/" + p.ID

	// WHEN: Paying February twice
	rec = ts.do("POST", base+"/pay", map[string]any{"reference_month": "2025-02"})
	requireStatus(t, rec, http.StatusCreated)
	first := decodeAs[PayRecurringResponse](t, rec)
	rec = ts.do("POST", base+"/pay", map[string]any{"reference_month": "2025-02"})
	requireStatus(t, rec, http.StatusOK)
	second := decodeAs[PayRecurringResponse](t, rec)

	// THEN: One occurrence due on Feb 28 exists
	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, "2025-02-28", first.Occurrence.DueDate.String())
	assert.Equal(t, first.Occurrence.ID, second.Occurrence.ID)
	assert.Equal(t, "manual", first.Occurrence.Source)
	assert.Equal(t, "2025-02-28", second.Recurring.LastProcessedDate.String())

	occs := decodeAs[[]OccurrenceDTO](t, ts.do("GET", base+"/occurrences", nil))
	require.Len(t, occs, 1)
	assert.Equal(t, "2025-02", occs[0].ReferenceMonth)

	// AND: A month before the start has no occurrence
	requireStatus(t, ts.do("POST", base+"/pay", map[string]any{"reference_month": "2024-12"}), http.StatusConflict)
}

func TestRecurring_ToggleKeepsCadence(t *testing.T) {
	ts := setupTestServer(t)

	p := decodeAs[RecurringDTO](t, ts.do("POST", "/api/clients/kim/recurring", map[string]any{
		"title": "Insurance", "amount": "300.00", "frequency": "QUARTERLY", "day_of_month": 10, "start_date": "2025-01-10",
	}))
	assert.Equal(t, "100.00", p.MonthlyEquivalent.String())

	// WHEN: Deactivating
	rec := ts.do("PATCH", "/api/recurring/"+p.ID+"/toggle", nil)
	requireStatus(t, rec, http.StatusOK)
	off := decodeAs[RecurringDTO](t, rec)
	assert.False(t, off.IsActive)
	assert.True(t, off.NextDueDate.IsZero())

	// THEN: Reactivating resumes on the original quarterly grid
	on := decodeAs[RecurringDTO](t, ts.do("PATCH", "/api/recurring/"+p.ID+"/toggle", nil))
	assert.True(t, on.IsActive)
	assert.Equal(t, "2025-04-10", on.NextDueDate.String())

	sched := decodeAs[[]ScheduledOccurrenceDTO](t, ts.do("GET", "/api/recurring/"+p.ID+"/schedule?from=2025-01-01&to=2025-12-31", nil))
	require.Len(t, sched, 4)
	assert.Equal(t, "2025-10-10", sched[3].DueDate.String())

	requireStatus(t, ts.do("GET", "/api/recurring/"+p.ID+"/schedule?from=2025-12-31&to=2025-01-01", nil), http.StatusBadRequest)
	requireStatus(t, ts.do("GET", "/api/recurring/missing", nil), http.StatusNotFound)
}

func TestRecurring_ValidationFailure(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("POST", "/api/clients/lee/recurring", map[string]any{
		"title": "X", "amount": "10", "frequency": "WEEKLY", "day_of_month": 40, "start_date": "2025-01-01",
	})
	requireStatus(t, rec, http.StatusBadRequest)
	errResp := decodeAs[ErrorResponse](t, rec)
	assert.Equal(t, "validation_failed", errResp.Code)

	fields, ok := errResp.Details.([]any)
	require.True(t, ok)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.(map[string]any)["field"].(string))
	}
	assert.ElementsMatch(t, []string{"frequency", "day_of_month"}, names)
}

// =============================================================================
// GOALS
// =============================================================================

func TestGoals_ProgressItemsAndContributions(t *testing.T) {
	ts := setupTestServer(t)

	// GIVEN: A 1000.00 goal due at the end of June
	rec := ts.do("POST", "/api/clients/max/goals", map[string]any{
		"name": "Camera", "target_amount": "1000.00", "target_date": "2025-06-30",
	})
	requireStatus(t, rec, http.StatusCreated)
	g := decodeAs[GoalDTO](t, rec)
	assert.Equal(t, 107, g.DaysRemaining)
	assert.True(t, g.Progress.IsZero())
	base := "/api/goals/" + g.ID

	// WHEN: Adding and checking an item
	rec = ts.do("POST", base+"/items", map[string]any{"name": "Lens", "amount": "400.00"})
	requireStatus(t, rec, http.StatusCreated)
	g = decodeAs[GoalDTO](t, rec)
	require.Len(t, g.Items, 1)
	itemID := g.Items[0].ID

	g = decodeAs[GoalDTO](t, ts.do("POST", base+"/items/"+itemID+"/toggle", nil))

	// THEN: The item is purchased but the saved amount does not move
	assert.True(t, g.Items[0].IsPurchased)
	require.NotNil(t, g.Items[0].PurchasedAt)
	assert.Equal(t, "0.00", g.CurrentAmount.String())
	assert.Equal(t, "400.00", g.PurchasedAmount.String())

	// AND: 999.99 saved shows 99.99% without completing
	g = decodeAs[GoalDTO](t, ts.do("POST", base+"/contributions", map[string]any{"amount": "999.99"}))
	assert.False(t, g.IsCompleted)
	assert.True(t, g.Progress.Equal(dec("99.99")), g.Progress.String())

	// AND: The last cent completes it
	g = decodeAs[GoalDTO](t, ts.do("POST", base+"/contributions", map[string]any{"amount": "0.01"}))
	assert.True(t, g.IsCompleted)
	assert.True(t, g.Progress.Equal(dec("100")))
	assert.Equal(t, "0.00", g.Remaining.String())

	// AND: Items can be removed once
	requireStatus(t, ts.do("DELETE", base+"/items/"+itemID, nil), http.StatusOK)
	requireStatus(t, ts.do("DELETE", base+"/items/"+itemID, nil), http.StatusNotFound)

	list := decodeAs[[]GoalDTO](t, ts.do("GET", "/api/clients/max/goals", nil))
	assert.Len(t, list, 1)
}

func TestGoals_RejectsNonPositiveContribution(t *testing.T) {
	ts := setupTestServer(t)

	g := decodeAs[GoalDTO](t, ts.do("POST", "/api/clients/ned/goals", map[string]any{
		"name": "Trip", "target_amount": "500.00", "current_amount": "50.00", "target_date": "2025-01-01",
	}))
	assert.True(t, g.IsOverdue)

	requireStatus(t, ts.do("POST", "/api/goals/"+g.ID+"/contributions", map[string]any{"amount": "-5"}), http.StatusBadRequest)
	requireStatus(t, ts.do("GET", "/api/goals/unknown", nil), http.StatusNotFound)
}

// =============================================================================
// ENVELOPE AND PLUMBING
// =============================================================================

func TestErrors_MalformedBody(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("POST", "/api/clients/a/distribution/categories", `{"name": "A", "percentage": "10", "bogus": 1}`)
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "invalid_input", decodeAs[ErrorResponse](t, rec).Code)

	rec = ts.do("POST", "/api/clients/a/distribution/categories", `{"name":`)
	requireStatus(t, rec, http.StatusBadRequest)

	rec = ts.do("GET", "/api/nowhere", nil)
	requireStatus(t, rec, http.StatusNotFound)
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("GET", "/api/health", nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "ok", decodeAs[HealthDTO](t, rec).Status)
}

// conflictingStore fails every distribution save with a version conflict.
type conflictingStore struct {
	*memory.Store
	saves int
}

func (s *conflictingStore) SaveDistribution(context.Context, distribution.Config) (distribution.Config, error) {
	s.saves++
	return distribution.Config{}, core.ErrConcurrentModification
}

func TestConcurrentModification_RetriesThen409(t *testing.T) {
	// GIVEN: A store that always reports a newer version
	st := &conflictingStore{Store: memory.New()}
	logger, _ := test.NewNullLogger()
	h := NewHandler(st, nil, logger)
	router := NewRouter(h, RouterOptions{})

	// WHEN: Adding a category
	req := httptest.NewRequest("POST", "/api/clients/x/distribution/categories", bytes.NewBufferString(`{"name":"A","percentage":"10"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// THEN: The handler gave up after three attempts
	requireStatus(t, rec, http.StatusConflict)
	assert.Equal(t, "concurrent_modification", decodeAs[ErrorResponse](t, rec).Code)
	assert.Equal(t, maxAttempts, st.saves)
}

func TestRequestLogger_WritesOneEntryPerRequest(t *testing.T) {
	ts := setupTestServer(t)

	ts.do("GET", "/api/health", nil)

	entry := ts.logHook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "request handled", entry.Message)
	assert.Equal(t, http.StatusOK, entry.Data["status"])
	assert.Equal(t, "/api/health", entry.Data["path"])
	assert.NotEmpty(t, entry.Data["request_id"])
}
