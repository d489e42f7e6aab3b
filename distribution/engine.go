package distribution

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/core"
)

var (
	maxPercentage = core.FullPercentage
)

// Engine applies category changes and runs simulations.
type Engine struct {
	Policy Policy

	// NewID generates category ids. Defaults to random UUIDs.
	NewID func() string
}

// NewEngine returns an engine with the default policy.
func NewEngine() *Engine {
	return &Engine{Policy: DefaultPolicy(), NewID: uuid.NewString}
}

// CategoryOptions carries the optional display attributes of a category.
type CategoryOptions struct {
	Color *string
	Icon  *string
}

// CategoryDetails is a partial update of descriptive fields.
type CategoryDetails struct {
	Name  *string
	Color *string
	Icon  *string
}

// =============================================================================
// CATEGORY OPERATIONS
// =============================================================================

// AddCategory appends a new active category with the next priority.
// Fails with CapExceededError when the active sum would exceed 100.
func (e *Engine) AddCategory(cfg Config, name string, percentage decimal.Decimal, opts CategoryOptions) (Config, Category, error) {
	if strings.TrimSpace(name) == "" {
		return cfg, Category{}, &core.InvalidCategoryError{Field: "name", Reason: "must not be empty"}
	}
	if err := validatePercentage(percentage); err != nil {
		return cfg, Category{}, err
	}
	if err := checkCap(cfg.activeSumExcluding(""), percentage); err != nil {
		return cfg, Category{}, err
	}

	cat := Category{
		ID:         CategoryID(e.newID()),
		Name:       strings.TrimSpace(name),
		Percentage: percentage,
		Priority:   cfg.nextPriority(),
		IsActive:   true,
		Color:      opts.Color,
		Icon:       opts.Icon,
	}

	next := cfg.clone()
	next.Categories = append(next.Categories, cat)
	return next, cat, nil
}

// UpdateCategory sets a new percentage. The cap is recomputed without the
// category's own current value; the change is accepted as-is or rejected.
func (e *Engine) UpdateCategory(cfg Config, id CategoryID, percentage decimal.Decimal) (Config, Category, error) {
	i := cfg.indexOf(id)
	if i < 0 {
		return cfg, Category{}, &core.UnknownCategoryError{CategoryID: string(id)}
	}
	if err := validatePercentage(percentage); err != nil {
		return cfg, Category{}, err
	}
	if cfg.Categories[i].IsActive {
		if err := checkCap(cfg.activeSumExcluding(id), percentage); err != nil {
			return cfg, Category{}, err
		}
	}

	next := cfg.clone()
	next.Categories[i].Percentage = percentage
	return next, next.Categories[i], nil
}

// ToggleCategory flips IsActive. Activation re-checks the cap against the
// stored percentage.
func (e *Engine) ToggleCategory(cfg Config, id CategoryID) (Config, Category, error) {
	i := cfg.indexOf(id)
	if i < 0 {
		return cfg, Category{}, &core.UnknownCategoryError{CategoryID: string(id)}
	}
	return e.SetCategoryActive(cfg, id, !cfg.Categories[i].IsActive)
}

// SetCategoryActive sets IsActive explicitly. Setting the current value is a no-op.
func (e *Engine) SetCategoryActive(cfg Config, id CategoryID, active bool) (Config, Category, error) {
	i := cfg.indexOf(id)
	if i < 0 {
		return cfg, Category{}, &core.UnknownCategoryError{CategoryID: string(id)}
	}
	cat := cfg.Categories[i]
	if cat.IsActive == active {
		return cfg, cat, nil
	}
	if active {
		if err := checkCap(cfg.activeSumExcluding(id), cat.Percentage); err != nil {
			return cfg, Category{}, err
		}
	}

	next := cfg.clone()
	next.Categories[i].IsActive = active
	return next, next.Categories[i], nil
}

// UpdateCategoryDetails changes descriptive fields only.
func (e *Engine) UpdateCategoryDetails(cfg Config, id CategoryID, details CategoryDetails) (Config, Category, error) {
	i := cfg.indexOf(id)
	if i < 0 {
		return cfg, Category{}, &core.UnknownCategoryError{CategoryID: string(id)}
	}
	if details.Name != nil && strings.TrimSpace(*details.Name) == "" {
		return cfg, Category{}, &core.InvalidCategoryError{Field: "name", Reason: "must not be empty"}
	}

	next := cfg.clone()
	cat := &next.Categories[i]
	if details.Name != nil {
		cat.Name = strings.TrimSpace(*details.Name)
	}
	if details.Color != nil {
		cat.Color = details.Color
	}
	if details.Icon != nil {
		cat.Icon = details.Icon
	}
	return next, *cat, nil
}

// RemoveCategory deletes a category. Remaining percentages are NOT
// re-normalized: the active sum may stay under 100.
func (e *Engine) RemoveCategory(cfg Config, id CategoryID) (Config, error) {
	i := cfg.indexOf(id)
	if i < 0 {
		return cfg, &core.UnknownCategoryError{CategoryID: string(id)}
	}
	next := cfg.clone()
	next.Categories = append(next.Categories[:i], next.Categories[i+1:]...)
	return next, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

func validatePercentage(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(maxPercentage) || !p.Equal(p.Round(1)) {
		return &core.InvalidPercentageError{Value: p}
	}
	return nil
}

func checkCap(otherActive, requested decimal.Decimal) error {
	if otherActive.Add(requested).GreaterThan(maxPercentage) {
		return &core.CapExceededError{
			Requested: requested,
			Available: maxPercentage.Sub(otherActive),
		}
	}
	return nil
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}
