package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/recurring"
)

// =============================================================================
// RECURRING HANDLERS
// =============================================================================

// CreateRecurring stores a new, active recurring payment.
func (h *Handler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req CreateRecurringRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	amount, err := parseMoney("amount", req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := recurring.New(h.NewID(), recurring.Input{
		ClientID:   chi.URLParam(r, "clientID"),
		Title:      req.Title,
		Amount:     amount,
		Category:   req.Category,
		Frequency:  recurring.Frequency(req.Frequency),
		DayOfMonth: req.DayOfMonth,
		StartDate:  start,
		EndDate:    end,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	saved, err := h.Store.SaveRecurring(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecurringDTO(saved, h.today()))
}

func (h *Handler) ListRecurring(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Store.ListRecurring(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	today := h.today()
	dtos := make([]RecurringDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toRecurringDTO(p, today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetRecurring(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetRecurring(r.Context(), chi.URLParam(r, "recurringID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringDTO(p, h.today()))
}

// PayRecurring records the occurrence of a reference month. Paying a month
// twice returns the existing record with 200 instead of 201.
func (h *Handler) PayRecurring(w http.ResponseWriter, r *http.Request) {
	var req PayRecurringRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	month, err := core.ParseMonth(req.ReferenceMonth)
	if err != nil {
		h.fail(w, r, &requestError{Field: "reference_month", Reason: "must be YYYY-MM"})
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "recurringID")

	var (
		record  recurring.ProcessedOccurrence
		saved   recurring.Payment
		created bool
	)
	err = withRetry(ctx, func() error {
		p, err := h.Store.GetRecurring(ctx, id)
		if err != nil {
			return err
		}
		occ, err := recurring.OccurrenceIn(p, month)
		if err != nil {
			return err
		}
		record = recurring.Record(h.NewID(), p, occ, recurring.SourceManual, h.Now())
		next, _ := recurring.MarkProcessed(p, occ.DueDate)
		saved, created, err = h.Store.ProcessOccurrence(ctx, next, record)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
		existing, err := h.findOccurrence(r, id, record.DueDate)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		record = existing
	}
	writeJSON(w, status, PayRecurringResponse{
		Occurrence: toOccurrenceDTO(record),
		Recurring:  toRecurringDTO(saved, h.today()),
		Created:    created,
	})
}

func (h *Handler) findOccurrence(r *http.Request, recurringID string, due core.Date) (recurring.ProcessedOccurrence, error) {
	occs, err := h.Store.ListOccurrences(r.Context(), recurringID)
	if err != nil {
		return recurring.ProcessedOccurrence{}, err
	}
	for _, o := range occs {
		if o.DueDate.Equal(due) {
			return o, nil
		}
	}
	return recurring.ProcessedOccurrence{}, fmt.Errorf("occurrence of %s due %s: %w", recurringID, due, core.ErrNotFound)
}

// ToggleRecurring flips the active flag. History and cadence are kept.
func (h *Handler) ToggleRecurring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "recurringID")

	var saved recurring.Payment
	err := withRetry(ctx, func() error {
		p, err := h.Store.GetRecurring(ctx, id)
		if err != nil {
			return err
		}
		saved, err = h.Store.SaveRecurring(ctx, recurring.ToggleActive(p))
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringDTO(saved, h.today()))
}

// ListOccurrences returns the processed history, oldest due date first.
func (h *Handler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recurringID")
	if _, err := h.Store.GetRecurring(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	occs, err := h.Store.ListOccurrences(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]OccurrenceDTO, len(occs))
	for i, o := range occs {
		dtos[i] = toOccurrenceDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRecurringSchedule lists the occurrences between ?from= and ?to=
// (YYYY-MM-DD, inclusive). The window defaults to the next twelve months.
func (h *Handler) GetRecurringSchedule(w http.ResponseWriter, r *http.Request) {
	from, err := parseDate("from", r.URL.Query().Get("from"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := parseDate("to", r.URL.Query().Get("to"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if from.IsZero() {
		from = h.today()
	}
	if to.IsZero() {
		to = from.AddMonths(12)
	}
	if to.Before(from) {
		h.fail(w, r, &requestError{Field: "to", Reason: "must not be before from"})
		return
	}

	p, err := h.Store.GetRecurring(r.Context(), chi.URLParam(r, "recurringID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	occs := recurring.Occurrences(p, from, to)
	dtos := make([]ScheduledOccurrenceDTO, len(occs))
	for i, o := range occs {
		dtos[i] = ScheduledOccurrenceDTO{
			Index:          o.Index,
			DueDate:        o.DueDate,
			ReferenceMonth: o.Month.String(),
			Amount:         o.Amount,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}
