package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/goal"
)

// =============================================================================
// GOAL HANDLERS
// =============================================================================

func (h *Handler) mutateGoal(ctx context.Context, id string, fn func(goal.Goal) (goal.Goal, error)) (goal.Goal, error) {
	var saved goal.Goal
	err := withRetry(ctx, func() error {
		g, err := h.Store.GetGoal(ctx, id)
		if err != nil {
			return err
		}
		next, err := fn(g)
		if err != nil {
			return err
		}
		saved, err = h.Store.SaveGoal(ctx, next)
		return err
	})
	return saved, err
}

// CreateGoal stores a new savings goal.
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	target, err := parseMoney("target_amount", req.TargetAmount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	current := core.Zero
	if req.CurrentAmount != "" {
		if current, err = parseMoney("current_amount", req.CurrentAmount); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	targetDate, err := parseDate("target_date", req.TargetDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	g, err := goal.New(h.NewID(), goal.Input{
		ClientID:      chi.URLParam(r, "clientID"),
		Name:          req.Name,
		TargetAmount:  target,
		CurrentAmount: current,
		TargetDate:    targetDate,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	saved, err := h.Store.SaveGoal(r.Context(), g)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalDTO(saved, h.today()))
}

func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.Store.ListGoals(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	today := h.today()
	dtos := make([]GoalDTO, len(goals))
	for i, g := range goals {
		dtos[i] = toGoalDTO(g, today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := h.Store.GetGoal(r.Context(), chi.URLParam(r, "goalID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(g, h.today()))
}

// AddGoalItem appends an item. Item amounts do not move CurrentAmount.
func (h *Handler) AddGoalItem(w http.ResponseWriter, r *http.Request) {
	var req AddGoalItemRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	amount, err := parseMoney("amount", req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	saved, err := h.mutateGoal(r.Context(), chi.URLParam(r, "goalID"), func(g goal.Goal) (goal.Goal, error) {
		next, _, err := goal.AddItem(g, h.NewID(), req.Name, amount)
		return next, err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalDTO(saved, h.today()))
}

func (h *Handler) RemoveGoalItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	saved, err := h.mutateGoal(r.Context(), chi.URLParam(r, "goalID"), func(g goal.Goal) (goal.Goal, error) {
		return goal.RemoveItem(g, itemID)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(saved, h.today()))
}

// ToggleGoalItem checks or unchecks an item as purchased.
func (h *Handler) ToggleGoalItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	saved, err := h.mutateGoal(r.Context(), chi.URLParam(r, "goalID"), func(g goal.Goal) (goal.Goal, error) {
		next, _, err := goal.ToggleItem(g, itemID, h.Now())
		return next, err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(saved, h.today()))
}

// Contribute adds saved money to the goal.
func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	var req ContributeRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	amount, err := parseMoney("amount", req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	saved, err := h.mutateGoal(r.Context(), chi.URLParam(r, "goalID"), func(g goal.Goal) (goal.Goal, error) {
		return goal.Contribute(g, amount)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(saved, h.today()))
}
