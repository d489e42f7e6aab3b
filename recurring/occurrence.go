package recurring

import (
	"time"

	"github.com/warp/budget-engine/core"
)

// Source tells who recorded a processed occurrence.
type Source string

const (
	SourceManual    Source = "manual"
	SourceScheduler Source = "scheduler"
)

// ProcessedOccurrence records that one occurrence was paid. Stores keep at
// most one record per (RecurringPaymentID, DueDate).
type ProcessedOccurrence struct {
	ID                 string
	RecurringPaymentID string
	ReferenceMonth     core.Month
	DueDate            core.Date
	Amount             core.Money
	ProcessedAt        time.Time
	Source             Source
}

// Record builds the processed record of an occurrence.
func Record(id string, p Payment, occ Occurrence, source Source, now time.Time) ProcessedOccurrence {
	return ProcessedOccurrence{
		ID:                 id,
		RecurringPaymentID: p.ID,
		ReferenceMonth:     occ.Month,
		DueDate:            occ.DueDate,
		Amount:             occ.Amount,
		ProcessedAt:        now.UTC(),
		Source:             source,
	}
}
