package recurring

import (
	"github.com/warp/budget-engine/core"
)

// Occurrence is one dated instance of a recurring payment.
type Occurrence struct {
	Index   int // position on the grid, 0 for the start month
	DueDate core.Date
	Month   core.Month
	Amount  core.Money
}

// =============================================================================
// GRID
// =============================================================================

// at returns grid slot k, ignoring startDate/endDate bounds.
func (p Payment) at(k int) core.Date {
	return p.StartDate.MonthOf().First().AddMonthsClamped(k*p.Frequency.Months(), p.DayOfMonth)
}

// inBounds reports whether a grid date is a real occurrence.
func (p Payment) inBounds(d core.Date) bool {
	return !d.Before(p.StartDate) && !p.HasEnded(d)
}

func (p Payment) occurrence(k int) Occurrence {
	d := p.at(k)
	return Occurrence{Index: k, DueDate: d, Month: d.MonthOf(), Amount: p.Amount}
}

// firstSlotAfter returns the first grid index whose date is strictly after day.
func (p Payment) firstSlotAfter(day core.Date) int {
	period := p.Frequency.Months()
	k := 0
	if elapsed := day.MonthOf().MonthsSince(p.StartDate.MonthOf()); elapsed > 0 {
		k = elapsed/period - 1
		if k < 0 {
			k = 0
		}
	}
	for !p.at(k).After(day) {
		k++
	}
	return k
}

// =============================================================================
// OPERATIONS
// =============================================================================

// NextDueDate returns the first occurrence strictly after fromDate that has
// not been processed yet. ok is false when the payment has ended or its
// frequency is unknown.
func NextDueDate(p Payment, fromDate core.Date) (next core.Date, ok bool) {
	if !p.Frequency.Valid() {
		return core.Date{}, false
	}
	floor := fromDate
	if !p.LastProcessedDate.IsZero() {
		floor = core.MaxDate(floor, p.LastProcessedDate)
	}
	// Nothing before startDate exists.
	if floor.Before(p.StartDate) {
		floor = p.StartDate.AddDays(-1)
	}

	d := p.at(p.firstSlotAfter(floor))
	if p.HasEnded(d) {
		return core.Date{}, false
	}
	return d, true
}

// DueOccurrences lists unprocessed occurrences due on or before asOf, oldest first.
func DueOccurrences(p Payment, asOf core.Date) []Occurrence {
	if !p.Frequency.Valid() {
		return nil
	}
	floor := p.StartDate.AddDays(-1)
	if !p.LastProcessedDate.IsZero() {
		floor = core.MaxDate(floor, p.LastProcessedDate)
	}

	var out []Occurrence
	for k := p.firstSlotAfter(floor); ; k++ {
		occ := p.occurrence(k)
		if occ.DueDate.After(asOf) || p.HasEnded(occ.DueDate) {
			break
		}
		out = append(out, occ)
	}
	return out
}

// Occurrences lists every occurrence between from and to, inclusive.
func Occurrences(p Payment, from, to core.Date) []Occurrence {
	if !p.Frequency.Valid() || to.Before(from) {
		return nil
	}
	var out []Occurrence
	for k := p.firstSlotAfter(core.MaxDate(from, p.StartDate).AddDays(-1)); ; k++ {
		occ := p.occurrence(k)
		if occ.DueDate.After(to) || p.HasEnded(occ.DueDate) {
			break
		}
		out = append(out, occ)
	}
	return out
}

// OccurrenceIn returns the occurrence falling in a reference month.
func OccurrenceIn(p Payment, month core.Month) (Occurrence, error) {
	if !p.Frequency.Valid() {
		return Occurrence{}, &core.InvalidRecurringError{Field: "frequency", Reason: "unknown"}
	}
	elapsed := month.MonthsSince(p.StartDate.MonthOf())
	if elapsed < 0 {
		return Occurrence{}, &core.NoOccurrenceError{RecurringID: p.ID, Month: month, Reason: "before start date"}
	}
	if elapsed%p.Frequency.Months() != 0 {
		return Occurrence{}, &core.NoOccurrenceError{RecurringID: p.ID, Month: month, Reason: "not a due month for " + string(p.Frequency)}
	}
	occ := p.occurrence(elapsed / p.Frequency.Months())
	if !p.inBounds(occ.DueDate) {
		reason := "after end date"
		if occ.DueDate.Before(p.StartDate) {
			reason = "before start date"
		}
		return Occurrence{}, &core.NoOccurrenceError{RecurringID: p.ID, Month: month, Reason: reason}
	}
	return occ, nil
}

// MarkProcessed moves the processing cursor to dueDate. Calling it again with
// the same or an earlier date is a no-op and reports changed=false, so a
// duplicate scheduler firing is harmless.
func MarkProcessed(p Payment, dueDate core.Date) (next Payment, changed bool) {
	if !p.LastProcessedDate.IsZero() && !dueDate.After(p.LastProcessedDate) {
		return p, false
	}
	p.LastProcessedDate = dueDate
	return p, true
}
