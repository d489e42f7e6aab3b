package api

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/recurring"
	"github.com/warp/budget-engine/store/memory"
)

func seedPayment(t *testing.T, st *memory.Store, id string, in recurring.Input) recurring.Payment {
	t.Helper()
	p, err := recurring.New(id, in)
	require.NoError(t, err)
	saved, err := st.SaveRecurring(context.Background(), p)
	require.NoError(t, err)
	return saved
}

func newTestScheduler(st *memory.Store) *RecurringScheduler {
	logger, _ := test.NewNullLogger()
	rs := NewRecurringScheduler(st, "@daily", logger)
	rs.Now = func() time.Time { return fixedNow }
	return rs
}

func TestRecurringScheduler_RecordsDueOccurrencesOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	// GIVEN: A monthly payment on the 10th since January, and an inactive one
	rent := seedPayment(t, st, "rent", recurring.Input{
		ClientID: "alice", Title: "Rent", Amount: core.MustMoney("1500.00"),
		Frequency: recurring.Monthly, DayOfMonth: 10, StartDate: core.MustDate("2025-01-01"),
	})
	paused := seedPayment(t, st, "paused", recurring.Input{
		ClientID: "alice", Title: "Paused", Amount: core.MustMoney("10.00"),
		Frequency: recurring.Monthly, DayOfMonth: 1, StartDate: core.MustDate("2025-01-01"),
	})
	paused = recurring.ToggleActive(paused)
	_, err := st.SaveRecurring(ctx, paused)
	require.NoError(t, err)

	rs := newTestScheduler(st)

	// WHEN: Running on 2025-03-15
	res, err := rs.RunOnce(ctx)

	// THEN: January through March are recorded for the active payment only
	require.NoError(t, err)
	assert.Equal(t, RunResult{Payments: 1, Recorded: 3}, res)

	occs, err := st.ListOccurrences(ctx, rent.ID)
	require.NoError(t, err)
	require.Len(t, occs, 3)
	assert.Equal(t, "2025-01-10", occs[0].DueDate.String())
	assert.Equal(t, "2025-03-10", occs[2].DueDate.String())
	assert.Equal(t, recurring.SourceScheduler, occs[0].Source)

	latest, err := st.GetRecurring(ctx, rent.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", latest.LastProcessedDate.String())

	none, err := st.ListOccurrences(ctx, paused.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	// AND: A second run on the same day records nothing
	res, err = rs.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Recorded)
	occs, err = st.ListOccurrences(ctx, rent.ID)
	require.NoError(t, err)
	assert.Len(t, occs, 3)
}

func TestRecurringScheduler_ResumesAfterManualPayment(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	// GIVEN: February was already paid by hand
	p := seedPayment(t, st, "gym", recurring.Input{
		ClientID: "bob", Title: "Gym", Amount: core.MustMoney("50.00"),
		Frequency: recurring.Monthly, DayOfMonth: 5, StartDate: core.MustDate("2025-02-01"),
	})
	occ, err := recurring.OccurrenceIn(p, core.Month{Year: 2025, Month: time.February})
	require.NoError(t, err)
	next, _ := recurring.MarkProcessed(p, occ.DueDate)
	_, created, err := st.ProcessOccurrence(ctx, next, recurring.Record("manual-feb", p, occ, recurring.SourceManual, fixedNow))
	require.NoError(t, err)
	require.True(t, created)

	// WHEN: The scheduler runs
	res, err := newTestScheduler(st).RunOnce(ctx)

	// THEN: Only March is added
	require.NoError(t, err)
	assert.Equal(t, 1, res.Recorded)
	occs, err := st.ListOccurrences(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, occs, 2)
	assert.Equal(t, recurring.SourceManual, occs[0].Source)
	assert.Equal(t, "2025-03-05", occs[1].DueDate.String())
}

// manualPayOnFirstRead records a manual payment for a month the first time
// the scheduler reloads the payment, as if a user paid mid-run.
type manualPayOnFirstRead struct {
	*memory.Store
	t     *testing.T
	month core.Month
	done  bool
}

func (s *manualPayOnFirstRead) GetRecurring(ctx context.Context, id string) (recurring.Payment, error) {
	if !s.done {
		s.done = true
		p, err := s.Store.GetRecurring(ctx, id)
		require.NoError(s.t, err)
		occ, err := recurring.OccurrenceIn(p, s.month)
		require.NoError(s.t, err)
		next, _ := recurring.MarkProcessed(p, occ.DueDate)
		_, _, err = s.Store.ProcessOccurrence(ctx, next, recurring.Record("manual", p, occ, recurring.SourceManual, fixedNow))
		require.NoError(s.t, err)
	}
	return s.Store.GetRecurring(ctx, id)
}

func TestRecurringScheduler_NeverBackfillsBehindMovedCursor(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()

	// GIVEN: January to March are due, and March gets paid by hand during the run
	p := seedPayment(t, mem, "rent", recurring.Input{
		ClientID: "cara", Title: "Rent", Amount: core.MustMoney("900.00"),
		Frequency: recurring.Monthly, DayOfMonth: 10, StartDate: core.MustDate("2025-01-01"),
	})
	st := &manualPayOnFirstRead{Store: mem, t: t, month: core.Month{Year: 2025, Month: time.March}}

	logger, _ := test.NewNullLogger()
	rs := NewRecurringScheduler(st, "@daily", logger)
	rs.Now = func() time.Time { return fixedNow }

	// WHEN: The scheduler runs
	res, err := rs.RunOnce(ctx)

	// THEN: Nothing before the moved cursor is recorded
	require.NoError(t, err)
	assert.Equal(t, 0, res.Recorded)
	assert.Equal(t, 0, res.Failed)

	occs, err := mem.ListOccurrences(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.Equal(t, recurring.SourceManual, occs[0].Source)
	assert.Equal(t, "2025-03-10", occs[0].DueDate.String())
}

func TestRecurringScheduler_StartAndStop(t *testing.T) {
	logger, _ := test.NewNullLogger()

	// Invalid specs are rejected up front
	bad := NewRecurringScheduler(memory.New(), "not a cron spec", logger)
	require.Error(t, bad.Start())

	rs := NewRecurringScheduler(memory.New(), "@every 1h", logger)
	require.NoError(t, rs.Start())
	assert.Error(t, rs.Start(), "second start")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rs.Stop(ctx)
	require.NoError(t, ctx.Err())

	// Stopping twice is a no-op
	rs.Stop(context.Background())
}
