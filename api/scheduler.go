/*
scheduler.go - Automated recurring payment processing

PURPOSE:
  Periodically records the occurrences of active recurring payments that
  have fallen due and advances each payment's processing cursor.

DESIGN:
  - Runs on a cron spec (robfig/cron), "@daily" by default
  - Each run lists active payments and walks DueOccurrences up to today
  - Each occurrence is recorded and the cursor moved in one store write
  - Store uniqueness on (payment, due date) and MarkProcessed make a
    duplicate firing harmless

USAGE:
  scheduler := NewRecurringScheduler(store, "@daily", logger)
  scheduler.Start()
  // ... later
  scheduler.Stop(ctx)

SEE ALSO:
  - handlers_recurring.go: PayRecurring (manual processing)
  - recurring/schedule.go: DueOccurrences, MarkProcessed
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/recurring"
	"github.com/warp/budget-engine/store"
)

// RunResult summarizes one processing run.
type RunResult struct {
	Payments   int // active payments inspected
	Recorded   int // new occurrences
	Duplicates int // occurrences already on record
	Failed     int // payments whose processing stopped on an error
}

// RecurringScheduler processes due recurring payments on a cron schedule.
type RecurringScheduler struct {
	Store    store.RecurringStore
	Schedule string
	Now      func() time.Time
	NewID    func() string

	log  *logrus.Logger
	cron *cron.Cron
	mu   sync.Mutex
}

// NewRecurringScheduler creates a scheduler. It does nothing until Start.
func NewRecurringScheduler(s store.RecurringStore, schedule string, log *logrus.Logger) *RecurringScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RecurringScheduler{
		Store:    s,
		Schedule: schedule,
		Now:      time.Now,
		NewID:    uuid.NewString,
		log:      log,
	}
}

// Start registers the job and starts the cron runner.
func (rs *RecurringScheduler) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cron != nil {
		return errors.New("recurring scheduler already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(rs.Schedule, func() {
		if _, err := rs.RunOnce(context.Background()); err != nil {
			rs.log.WithError(err).Error("recurring run failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", rs.Schedule, err)
	}
	c.Start()
	rs.cron = c

	rs.log.WithField("schedule", rs.Schedule).Info("recurring scheduler started")
	return nil
}

// Stop stops the runner and waits for a running job, or for ctx.
func (rs *RecurringScheduler) Stop(ctx context.Context) {
	rs.mu.Lock()
	c := rs.cron
	rs.cron = nil
	rs.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
		rs.log.Info("recurring scheduler stopped")
	case <-ctx.Done():
		rs.log.Warn("recurring scheduler stop timed out")
	}
}

// RunOnce processes every active payment as of today. A failure on one
// payment is logged and counted; the run goes on with the others.
func (rs *RecurringScheduler) RunOnce(ctx context.Context) (RunResult, error) {
	start := rs.Now()
	today := core.DateOf(start)

	payments, err := rs.Store.ListActiveRecurring(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("list active recurring payments: %w", err)
	}

	var res RunResult
	for _, p := range payments {
		res.Payments++
		recorded, dups, err := rs.processPayment(ctx, p, today)
		res.Recorded += recorded
		res.Duplicates += dups
		if err != nil {
			res.Failed++
			rs.log.WithError(err).WithFields(logrus.Fields{
				"recurring_id": p.ID,
				"client_id":    p.ClientID,
			}).Error("recurring payment processing failed")
		}
	}

	rs.log.WithFields(logrus.Fields{
		"as_of":       today.String(),
		"payments":    res.Payments,
		"recorded":    res.Recorded,
		"duplicates":  res.Duplicates,
		"failed":      res.Failed,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("recurring run finished")
	return res, nil
}

// processPayment records every due occurrence of one payment, oldest first.
// Each occurrence reloads the payment so a concurrent manual payment or
// toggle is seen. Occurrences on or before a cursor moved meanwhile are
// left alone.
func (rs *RecurringScheduler) processPayment(ctx context.Context, p recurring.Payment, today core.Date) (recorded, dups int, err error) {
	for _, occ := range recurring.DueOccurrences(p, today) {
		var created bool
		err = withRetry(ctx, func() error {
			latest, err := rs.Store.GetRecurring(ctx, p.ID)
			if err != nil {
				return err
			}
			if !latest.IsActive {
				return errSkipInactive
			}
			if last := latest.LastProcessedDate; !last.IsZero() && !occ.DueDate.After(last) {
				return errBehindCursor
			}
			rec := recurring.Record(rs.NewID(), latest, occ, recurring.SourceScheduler, rs.Now())
			next, _ := recurring.MarkProcessed(latest, occ.DueDate)
			_, created, err = rs.Store.ProcessOccurrence(ctx, next, rec)
			return err
		})
		if errors.Is(err, errSkipInactive) {
			return recorded, dups, nil
		}
		if errors.Is(err, errBehindCursor) {
			continue
		}
		if err != nil {
			return recorded, dups, fmt.Errorf("occurrence due %s: %w", occ.DueDate, err)
		}
		if created {
			recorded++
		} else {
			dups++
		}
	}
	return recorded, dups, nil
}

var (
	errSkipInactive = errors.New("recurring payment deactivated")
	errBehindCursor = errors.New("occurrence before processing cursor")
)
