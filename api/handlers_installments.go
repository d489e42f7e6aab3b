package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/installment"
)

// =============================================================================
// INSTALLMENT HANDLERS
// =============================================================================

func (h *Handler) mutatePlan(ctx context.Context, id string, fn func(installment.Plan) (installment.Plan, error)) (installment.Plan, error) {
	var saved installment.Plan
	err := withRetry(ctx, func() error {
		plan, err := h.Store.GetPlan(ctx, id)
		if err != nil {
			return err
		}
		next, err := fn(plan)
		if err != nil {
			return err
		}
		saved, err = h.Store.SavePlan(ctx, next)
		return err
	})
	return saved, err
}

// CreatePlan generates a schedule for a purchase and stores it.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	total, err := parseMoney("total_amount", req.TotalAmount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rate := decimal.Zero
	if req.InterestRate != "" {
		if rate, err = parsePercentage("interest_rate", req.InterestRate); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	firstDue, err := parseDate("first_due_date", req.FirstDueDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	plan, err := h.Scheduler.CreatePlan(installment.PlanInput{
		ClientID:         chi.URLParam(r, "clientID"),
		Title:            req.Title,
		Category:         req.Category,
		Notes:            req.Notes,
		TotalAmount:      total,
		InstallmentCount: req.InstallmentCount,
		InterestRate:     rate,
		FirstDueDate:     firstDue,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	saved, err := h.Store.SavePlan(r.Context(), plan)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(saved, h.today()))
}

// ListPlans returns every plan of a client, oldest first.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	today := h.today()
	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPlanDTO(p, today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Store.GetPlan(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan, h.today()))
}

// UpdatePlan edits a plan. Financial fields regenerate the schedule and are
// refused (409) once a row is paid.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req UpdatePlanRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	u := installment.PlanUpdate{
		Title:            req.Title,
		Category:         req.Category,
		Notes:            req.Notes,
		InstallmentCount: req.InstallmentCount,
	}
	var err error
	if u.TotalAmount, err = parseOptionalMoney("total_amount", req.TotalAmount); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.InterestRate != nil {
		rate, err := parsePercentage("interest_rate", *req.InterestRate)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		u.InterestRate = &rate
	}
	if req.FirstDueDate != nil {
		d, err := parseDate("first_due_date", *req.FirstDueDate)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		u.FirstDueDate = &d
	}

	saved, err := h.mutatePlan(r.Context(), chi.URLParam(r, "planID"), func(plan installment.Plan) (installment.Plan, error) {
		return h.Scheduler.UpdatePlan(plan, u)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(saved, h.today()))
}

// PayInstallment marks one row paid. A second payment of the same row is a 409.
func (h *Handler) PayInstallment(w http.ResponseWriter, r *http.Request) {
	var req PayInstallmentRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	paidOn := h.today()
	if req.PaymentDate != "" {
		d, err := parseDate("payment_date", req.PaymentDate)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		paidOn = d
	}
	amount, err := parseOptionalMoney("amount_paid", req.AmountPaid)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	paymentID := chi.URLParam(r, "paymentID")
	var row installment.Payment
	saved, err := h.mutatePlan(r.Context(), chi.URLParam(r, "planID"), func(plan installment.Plan) (installment.Plan, error) {
		next, paid, err := installment.ApplyPayment(plan, paymentID, paidOn, amount)
		row = paid
		return next, err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	today := h.today()
	writeJSON(w, http.StatusOK, PaymentActionResponse{
		Payment: toInstallmentPaymentDTO(row, today),
		Plan:    toPlanDTO(saved, today),
	})
}

// SkipInstallment marks one pending row skipped.
func (h *Handler) SkipInstallment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	var row installment.Payment
	saved, err := h.mutatePlan(r.Context(), chi.URLParam(r, "planID"), func(plan installment.Plan) (installment.Plan, error) {
		next, skipped, err := installment.SkipPayment(plan, paymentID)
		row = skipped
		return next, err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	today := h.today()
	writeJSON(w, http.StatusOK, PaymentActionResponse{
		Payment: toInstallmentPaymentDTO(row, today),
		Plan:    toPlanDTO(saved, today),
	})
}

// CancelPlan stops a plan. Paid rows are kept.
func (h *Handler) CancelPlan(w http.ResponseWriter, r *http.Request) {
	saved, err := h.mutatePlan(r.Context(), chi.URLParam(r, "planID"), installment.CancelPlan)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(saved, h.today()))
}

// GetBreakdown returns the interest/principal table of a plan.
func (h *Handler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Store.GetPlan(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBreakdownDTOs(installment.Breakdown(plan)))
}
