/*
handlers.go - HTTP API handlers for the budget engine

PURPOSE:
  Exposes the distribution, installment, recurring and goal calculators
  over REST. Handlers parse and validate the request, load the aggregate,
  hand it to the engine, save what comes back and serialize the result.

ENDPOINTS:
  Distribution:
    GET    /api/clients/{clientID}/distribution                   Config + headroom
    PUT    /api/clients/{clientID}/distribution                   Config flags
    DELETE /api/clients/{clientID}/distribution                   Reset config
    POST   /api/clients/{clientID}/distribution/categories        Add category
    PATCH  /api/clients/{clientID}/distribution/categories/{id}   Edit category
    DELETE /api/clients/{clientID}/distribution/categories/{id}   Remove category
    POST   /api/clients/{clientID}/distribution/simulate          Simulate income

  Installments (handlers_installments.go), Recurring (handlers_recurring.go),
  Goals (handlers_goals.go).

REQUEST FLOW:
  1. Decode JSON, run validator tags
  2. Load aggregate (or start a new one)
  3. Call the engine
  4. Save with the loaded version; retry on concurrent modification
  5. Serialize

ERROR HANDLING:
  Errors are returned as JSON {error, code, details}:
  - 400: Validation errors, invalid input
  - 404: Aggregate or child row not found
  - 409: State conflict, concurrent modification after retries
  - 422: Distribution cap exceeded (details carry the available headroom)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - retry.go: Optimistic-concurrency retry loop
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/distribution"
	"github.com/warp/budget-engine/installment"
	"github.com/warp/budget-engine/store"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     store.Store
	Engine    *distribution.Engine
	Scheduler *installment.Scheduler

	// NewID generates ids for recurring payments, occurrences, goals and items.
	NewID func() string
	// Now is the clock used for "today" and timestamps.
	Now func() time.Time

	log      *logrus.Logger
	validate *validator.Validate
}

// NewHandler creates a handler around the given store and engine.
func NewHandler(s store.Store, engine *distribution.Engine, log *logrus.Logger) *Handler {
	if engine == nil {
		engine = distribution.NewEngine()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Store:     s,
		Engine:    engine,
		Scheduler: installment.NewScheduler(),
		NewID:     uuid.NewString,
		Now:       time.Now,
		log:       log,
		validate:  newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func (h *Handler) today() core.Date {
	return core.DateOf(h.Now())
}

// Health reports liveness and, when the store supports it, database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthDTO{Status: "ok", Database: "n/a"}
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.log.WithError(err).Error("health check: database unreachable")
			resp.Status, resp.Database = "degraded", "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "ok"
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// DISTRIBUTION HANDLERS
// =============================================================================

// loadDistribution returns the stored config or a fresh, unsaved one.
func (h *Handler) loadDistribution(ctx context.Context, clientID string) (distribution.Config, error) {
	cfg, err := h.Store.GetDistribution(ctx, clientID)
	if errors.Is(err, core.ErrNotFound) {
		return distribution.NewConfig(clientID), nil
	}
	return cfg, err
}

// mutateDistribution runs fn against the latest config and saves the result,
// retrying when another writer got there first.
func (h *Handler) mutateDistribution(ctx context.Context, clientID string, fn func(distribution.Config) (distribution.Config, error)) (distribution.Config, error) {
	var saved distribution.Config
	err := withRetry(ctx, func() error {
		cfg, err := h.loadDistribution(ctx, clientID)
		if err != nil {
			return err
		}
		next, err := fn(cfg)
		if err != nil {
			return err
		}
		saved, err = h.Store.SaveDistribution(ctx, next)
		return err
	})
	return saved, err
}

// GetDistribution returns the client's config with its headroom.
func (h *Handler) GetDistribution(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loadDistribution(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(cfg))
}

// UpdateDistribution sets the config-level flags.
func (h *Handler) UpdateDistribution(w http.ResponseWriter, r *http.Request) {
	var req UpdateDistributionRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	cfg, err := h.mutateDistribution(r.Context(), chi.URLParam(r, "clientID"), func(cfg distribution.Config) (distribution.Config, error) {
		if req.IsAutoCalculateExpenses != nil {
			cfg.IsAutoCalculateExpenses = *req.IsAutoCalculateExpenses
		}
		if req.IsActive != nil {
			cfg.IsActive = *req.IsActive
		}
		return cfg, nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(cfg))
}

// ResetDistribution deletes the config and all of its categories.
func (h *Handler) ResetDistribution(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteDistribution(r.Context(), chi.URLParam(r, "clientID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddCategory appends an active category. 422 when the cap would be exceeded.
func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	var req AddCategoryRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	pct, err := parsePercentage("percentage", req.Percentage)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var added distribution.Category
	_, err = h.mutateDistribution(r.Context(), chi.URLParam(r, "clientID"), func(cfg distribution.Config) (distribution.Config, error) {
		next, cat, err := h.Engine.AddCategory(cfg, req.Name, pct, distribution.CategoryOptions{Color: req.Color, Icon: req.Icon})
		added = cat
		return next, err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(added))
}

// UpdateCategory applies a partial edit. The percentage and active flag
// changes are checked against the cap; descriptive fields are not.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req UpdateCategoryRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var pct *decimal.Decimal
	if req.Percentage != nil {
		p, err := parsePercentage("percentage", *req.Percentage)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		pct = &p
	}
	id := distribution.CategoryID(chi.URLParam(r, "categoryID"))

	var updated distribution.Category
	_, err := h.mutateDistribution(r.Context(), chi.URLParam(r, "clientID"), func(cfg distribution.Config) (distribution.Config, error) {
		var err error
		// Deactivation runs before the percentage change, activation after it.
		if req.IsActive != nil && !*req.IsActive {
			if cfg, updated, err = h.Engine.SetCategoryActive(cfg, id, false); err != nil {
				return cfg, err
			}
		}
		if pct != nil {
			if cfg, updated, err = h.Engine.UpdateCategory(cfg, id, *pct); err != nil {
				return cfg, err
			}
		}
		if req.IsActive != nil && *req.IsActive {
			if cfg, updated, err = h.Engine.SetCategoryActive(cfg, id, true); err != nil {
				return cfg, err
			}
		}
		if req.Name != nil || req.Color != nil || req.Icon != nil {
			details := distribution.CategoryDetails{Name: req.Name, Color: req.Color, Icon: req.Icon}
			if cfg, updated, err = h.Engine.UpdateCategoryDetails(cfg, id, details); err != nil {
				return cfg, err
			}
		}
		if updated.ID == "" {
			cat, ok := cfg.Category(id)
			if !ok {
				return cfg, &core.UnknownCategoryError{CategoryID: string(id)}
			}
			updated = cat
		}
		return cfg, nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(updated))
}

// RemoveCategory deletes a category. Remaining percentages are not rescaled.
func (h *Handler) RemoveCategory(w http.ResponseWriter, r *http.Request) {
	id := distribution.CategoryID(chi.URLParam(r, "categoryID"))
	cfg, err := h.mutateDistribution(r.Context(), chi.URLParam(r, "clientID"), func(cfg distribution.Config) (distribution.Config, error) {
		return h.Engine.RemoveCategory(cfg, id)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(cfg))
}

// Simulate distributes an income across the active categories. Fixed
// expenses come from the request, or from the client's recurring payments
// and installments when the config auto-calculates them.
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	income, err := parseMoney("income_amount", req.IncomeAmount)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := r.Context()
	clientID := chi.URLParam(r, "clientID")
	cfg, err := h.loadDistribution(ctx, clientID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	fixed, source := core.Zero, "request"
	switch {
	case req.FixedExpenses != nil:
		if fixed, err = parseMoney("fixed_expenses", *req.FixedExpenses); err != nil {
			h.fail(w, r, err)
			return
		}
	case cfg.IsAutoCalculateExpenses:
		month := h.today().MonthOf()
		if req.Month != "" {
			if month, err = core.ParseMonth(req.Month); err != nil {
				h.fail(w, r, &requestError{Field: "month", Reason: err.Error()})
				return
			}
		}
		if fixed, err = h.fixedCosts(ctx, clientID, month); err != nil {
			h.fail(w, r, err)
			return
		}
		source = "computed"
	}

	res, err := h.Engine.Simulate(cfg, income, fixed)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSimulationDTO(res, source))
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// requestError is a malformed request body or field.
type requestError struct {
	Field  string
	Reason string
}

func (e *requestError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *requestError) Unwrap() error { return core.ErrInvalidInput }

// decode reads a JSON body into dst and validates it. An empty body decodes
// to the zero value so endpoints with only optional fields accept no body.
func (h *Handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &requestError{Reason: "invalid JSON body: " + err.Error()}
	}
	return h.validate.Struct(dst)
}

func parseMoney(field, s string) (core.Money, error) {
	m, err := core.ParseMoney(s)
	if err != nil {
		return core.Zero, &requestError{Field: field, Reason: "must be a decimal amount"}
	}
	return m, nil
}

func parseOptionalMoney(field string, s *string) (*core.Money, error) {
	if s == nil {
		return nil, nil
	}
	m, err := parseMoney(field, *s)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func parsePercentage(field, s string) (decimal.Decimal, error) {
	p, err := core.ParsePercentage(s)
	if err != nil {
		return decimal.Zero, &requestError{Field: field, Reason: "must be a decimal percentage"}
	}
	return p, nil
}

// parseDate returns the zero date for an empty string.
func parseDate(field, s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, &requestError{Field: field, Reason: "must be YYYY-MM-DD"}
	}
	return d, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// fail maps an error to its HTTP status and writes the envelope.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs  validator.ValidationErrors
		capErr *core.CapExceededError
	)

	switch {
	case errors.As(err, &verrs):
		fields := make([]FieldErrorDTO, len(verrs))
		for i, fe := range verrs {
			fields[i] = FieldErrorDTO{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()}
		}
		writeError(w, http.StatusBadRequest, "validation_failed", "request validation failed", fields)

	case errors.As(err, &capErr):
		writeError(w, http.StatusUnprocessableEntity, "cap_exceeded", err.Error(), map[string]decimal.Decimal{
			"available": capErr.Available,
			"requested": capErr.Requested,
		})

	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)

	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)

	case errors.Is(err, core.ErrStateConflict):
		writeError(w, http.StatusConflict, "state_conflict", err.Error(), nil)

	case errors.Is(err, core.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "concurrent_modification", err.Error(), nil)

	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", nil)
	}
}
