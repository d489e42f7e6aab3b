/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine values from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

WIRE FORMAT:
  Money and percentages are decimal strings ("1234.50"). Dates are
  YYYY-MM-DD and reference months YYYY-MM. Field names are snake_case.

VALIDATION:
  Request shape is checked with validator struct tags before any engine
  call. Business rules (cap, counts, state) stay in the engine packages.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/distribution"
	"github.com/warp/budget-engine/goal"
	"github.com/warp/budget-engine/installment"
	"github.com/warp/budget-engine/recurring"
)

// =============================================================================
// DISTRIBUTION
// =============================================================================

type CategoryDTO struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
	Priority   int             `json:"priority"`
	IsActive   bool            `json:"is_active"`
	Color      *string         `json:"color,omitempty"`
	Icon       *string         `json:"icon,omitempty"`
}

type DistributionDTO struct {
	ClientID                string          `json:"client_id"`
	Categories              []CategoryDTO   `json:"categories"`
	IsAutoCalculateExpenses bool            `json:"is_auto_calculate_expenses"`
	IsActive                bool            `json:"is_active"`
	ActivePercentage        decimal.Decimal `json:"active_percentage"`
	Headroom                decimal.Decimal `json:"headroom"`
	Version                 int             `json:"version"`
	UpdatedAt               *time.Time      `json:"updated_at,omitempty"`
}

type UpdateDistributionRequest struct {
	IsAutoCalculateExpenses *bool `json:"is_auto_calculate_expenses"`
	IsActive                *bool `json:"is_active"`
}

type AddCategoryRequest struct {
	Name       string  `json:"name" validate:"required,max=100"`
	Percentage string  `json:"percentage" validate:"required,numeric"`
	Color      *string `json:"color" validate:"omitempty,max=32"`
	Icon       *string `json:"icon" validate:"omitempty,max=64"`
}

// UpdateCategoryRequest is a partial edit; absent fields are left alone.
type UpdateCategoryRequest struct {
	Percentage *string `json:"percentage" validate:"omitempty,numeric"`
	IsActive   *bool   `json:"is_active"`
	Name       *string `json:"name" validate:"omitempty,max=100"`
	Color      *string `json:"color" validate:"omitempty,max=32"`
	Icon       *string `json:"icon" validate:"omitempty,max=64"`
}

type SimulateRequest struct {
	IncomeAmount  string  `json:"income_amount" validate:"required,numeric"`
	FixedExpenses *string `json:"fixed_expenses" validate:"omitempty,numeric"`

	// Month selects which installment rows count as fixed costs when they
	// are computed. Defaults to the current month.
	Month string `json:"month" validate:"omitempty,datetime=2006-01"`
}

type AllocationDTO struct {
	CategoryID string          `json:"category_id"`
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     core.Money      `json:"amount"`
	Color      *string         `json:"color,omitempty"`
	Icon       *string         `json:"icon,omitempty"`
}

type EmergencyFundDTO struct {
	TargetAmount        core.Money      `json:"target_amount"`
	SuggestedPercentage decimal.Decimal `json:"suggested_percentage"`
	SuggestedAmount     core.Money      `json:"suggested_amount"`
	MonthsToTarget      *int            `json:"months_to_target"`
}

type SimulationDTO struct {
	IncomeAmount            core.Money        `json:"income_amount"`
	FixedExpenses           core.Money        `json:"fixed_expenses"`
	FixedExpensesSource     string            `json:"fixed_expenses_source"` // "request" or "computed"
	AvailableAmount         core.Money        `json:"available_amount"`
	TotalDistributed        core.Money        `json:"total_distributed"`
	Remaining               core.Money        `json:"remaining"`
	Distribution            []AllocationDTO   `json:"distribution"`
	FixedExpensesPercentage decimal.Decimal   `json:"fixed_expenses_percentage"`
	IsHealthy               bool              `json:"is_healthy"`
	EmergencyFund           *EmergencyFundDTO `json:"emergency_fund"`
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

type CreatePlanRequest struct {
	Title            string  `json:"title" validate:"required,max=200"`
	Category         string  `json:"category" validate:"max=100"`
	Notes            *string `json:"notes" validate:"omitempty,max=1000"`
	TotalAmount      string  `json:"total_amount" validate:"required,numeric"`
	InstallmentCount int     `json:"installment_count" validate:"required"`
	InterestRate     string  `json:"interest_rate" validate:"omitempty,numeric"`
	FirstDueDate     string  `json:"first_due_date" validate:"required,datetime=2006-01-02"`
}

type UpdatePlanRequest struct {
	Title            *string `json:"title" validate:"omitempty,max=200"`
	Category         *string `json:"category" validate:"omitempty,max=100"`
	Notes            *string `json:"notes" validate:"omitempty,max=1000"`
	TotalAmount      *string `json:"total_amount" validate:"omitempty,numeric"`
	InstallmentCount *int    `json:"installment_count"`
	InterestRate     *string `json:"interest_rate" validate:"omitempty,numeric"`
	FirstDueDate     *string `json:"first_due_date" validate:"omitempty,datetime=2006-01-02"`
}

type PayInstallmentRequest struct {
	PaymentDate string  `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	AmountPaid  *string `json:"amount_paid" validate:"omitempty,numeric"`
}

type InstallmentPaymentDTO struct {
	ID         string      `json:"id"`
	Number     int         `json:"number"`
	Amount     core.Money  `json:"amount"`
	DueDate    core.Date   `json:"due_date"`
	Status     string      `json:"status"`
	PaidDate   core.Date   `json:"paid_date"`
	AmountPaid *core.Money `json:"amount_paid,omitempty"`
}

type PlanSummaryDTO struct {
	TotalPayable       core.Money             `json:"total_payable"`
	PaidAmount         core.Money             `json:"paid_amount"`
	RemainingAmount    core.Money             `json:"remaining_amount"`
	PaidCount          int                    `json:"paid_count"`
	PendingCount       int                    `json:"pending_count"`
	SkippedCount       int                    `json:"skipped_count"`
	OverdueCount       int                    `json:"overdue_count"`
	Progress           decimal.Decimal        `json:"progress"`
	NextPayment        *InstallmentPaymentDTO `json:"next_payment"`
	RoundingCorrection core.Money             `json:"rounding_correction"`
}

type PlanDTO struct {
	ID                    string                  `json:"id"`
	ClientID              string                  `json:"client_id"`
	Title                 string                  `json:"title"`
	Category              string                  `json:"category"`
	Notes                 *string                 `json:"notes,omitempty"`
	TotalAmount           core.Money              `json:"total_amount"`
	InstallmentCount      int                     `json:"installment_count"`
	InterestRate          decimal.Decimal         `json:"interest_rate"`
	FirstDueDate          core.Date               `json:"first_due_date"`
	InstallmentAmount     core.Money              `json:"installment_amount"`
	LastInstallmentAmount core.Money              `json:"last_installment_amount"`
	PaidCount             int                     `json:"paid_count"`
	Status                string                  `json:"status"`
	Payments              []InstallmentPaymentDTO `json:"payments"`
	Summary               PlanSummaryDTO          `json:"summary"`
	Version               int                     `json:"version"`
	CreatedAt             time.Time               `json:"created_at"`
	UpdatedAt             time.Time               `json:"updated_at"`
}

type BreakdownRowDTO struct {
	Number    int        `json:"number"`
	DueDate   core.Date  `json:"due_date"`
	Amount    core.Money `json:"amount"`
	Interest  core.Money `json:"interest"`
	Principal core.Money `json:"principal"`
	Balance   core.Money `json:"balance"`
}

// PaymentActionResponse is returned when a row is paid or skipped.
type PaymentActionResponse struct {
	Payment InstallmentPaymentDTO `json:"payment"`
	Plan    PlanDTO               `json:"plan"`
}

// =============================================================================
// RECURRING
// =============================================================================

type CreateRecurringRequest struct {
	Title      string `json:"title" validate:"required,max=200"`
	Amount     string `json:"amount" validate:"required,numeric"`
	Category   string `json:"category" validate:"max=100"`
	Frequency  string `json:"frequency" validate:"required,oneof=MONTHLY QUARTERLY SEMIANNUAL YEARLY"`
	DayOfMonth int    `json:"day_of_month" validate:"required,min=1,max=31"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type PayRecurringRequest struct {
	ReferenceMonth string `json:"reference_month" validate:"required,datetime=2006-01"`
}

type RecurringDTO struct {
	ID                string     `json:"id"`
	ClientID          string     `json:"client_id"`
	Title             string     `json:"title"`
	Amount            core.Money `json:"amount"`
	Category          string     `json:"category"`
	Frequency         string     `json:"frequency"`
	DayOfMonth        int        `json:"day_of_month"`
	StartDate         core.Date  `json:"start_date"`
	EndDate           core.Date  `json:"end_date"`
	IsActive          bool       `json:"is_active"`
	LastProcessedDate core.Date  `json:"last_processed_date"`
	NextDueDate       core.Date  `json:"next_due_date"`
	MonthlyEquivalent core.Money `json:"monthly_equivalent"`
	Version           int        `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type OccurrenceDTO struct {
	ID                 string     `json:"id"`
	RecurringPaymentID string     `json:"recurring_payment_id"`
	ReferenceMonth     string     `json:"reference_month"`
	DueDate            core.Date  `json:"due_date"`
	Amount             core.Money `json:"amount"`
	ProcessedAt        time.Time  `json:"processed_at"`
	Source             string     `json:"source"`
}

// ScheduledOccurrenceDTO is one future or past slot of a recurring payment.
type ScheduledOccurrenceDTO struct {
	Index          int        `json:"index"`
	DueDate        core.Date  `json:"due_date"`
	ReferenceMonth string     `json:"reference_month"`
	Amount         core.Money `json:"amount"`
}

// PayRecurringResponse reports whether the occurrence was new.
type PayRecurringResponse struct {
	Occurrence OccurrenceDTO `json:"occurrence"`
	Recurring  RecurringDTO  `json:"recurring"`
	Created    bool          `json:"created"`
}

// =============================================================================
// GOALS
// =============================================================================

type CreateGoalRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	TargetAmount  string `json:"target_amount" validate:"required,numeric"`
	CurrentAmount string `json:"current_amount" validate:"omitempty,numeric"`
	TargetDate    string `json:"target_date" validate:"required,datetime=2006-01-02"`
}

type AddGoalItemRequest struct {
	Name   string `json:"name" validate:"required,max=200"`
	Amount string `json:"amount" validate:"required,numeric"`
}

type ContributeRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
}

type GoalItemDTO struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Amount      core.Money `json:"amount"`
	IsPurchased bool       `json:"is_purchased"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
}

type GoalDTO struct {
	ID              string          `json:"id"`
	ClientID        string          `json:"client_id"`
	Name            string          `json:"name"`
	TargetAmount    core.Money      `json:"target_amount"`
	CurrentAmount   core.Money      `json:"current_amount"`
	TargetDate      core.Date       `json:"target_date"`
	Items           []GoalItemDTO   `json:"items"`
	Progress        decimal.Decimal `json:"progress"`
	Remaining       core.Money      `json:"remaining"`
	DaysRemaining   int             `json:"days_remaining"`
	IsCompleted     bool            `json:"is_completed"`
	IsOverdue       bool            `json:"is_overdue"`
	ItemsTotal      int             `json:"items_total"`
	ItemsPurchased  int             `json:"items_purchased"`
	ItemsAmount     core.Money      `json:"items_amount"`
	PurchasedAmount core.Money      `json:"purchased_amount"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// =============================================================================
// COMMON
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
	ClientID   string `json:"client_id" validate:"omitempty,max=100"`
}

type LoadScenarioResponse struct {
	ScenarioID string `json:"scenario_id"`
	ClientID   string `json:"client_id"`
}

type HealthDTO struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// FieldErrorDTO describes one failed validation rule.
type FieldErrorDTO struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toDistributionDTO(cfg distribution.Config) DistributionDTO {
	cats := make([]CategoryDTO, len(cfg.Categories))
	for i, c := range cfg.Categories {
		cats[i] = toCategoryDTO(c)
	}
	dto := DistributionDTO{
		ClientID:                cfg.ClientID,
		Categories:              cats,
		IsAutoCalculateExpenses: cfg.IsAutoCalculateExpenses,
		IsActive:                cfg.IsActive,
		ActivePercentage:        cfg.ActiveSum(),
		Headroom:                cfg.Headroom(),
		Version:                 cfg.Version,
	}
	if !cfg.UpdatedAt.IsZero() {
		updated := cfg.UpdatedAt
		dto.UpdatedAt = &updated
	}
	return dto
}

func toCategoryDTO(c distribution.Category) CategoryDTO {
	return CategoryDTO{
		ID:         string(c.ID),
		Name:       c.Name,
		Percentage: c.Percentage,
		Priority:   c.Priority,
		IsActive:   c.IsActive,
		Color:      c.Color,
		Icon:       c.Icon,
	}
}

func toSimulationDTO(res distribution.SimulationResult, source string) SimulationDTO {
	allocs := make([]AllocationDTO, len(res.Distribution))
	for i, a := range res.Distribution {
		allocs[i] = AllocationDTO{
			CategoryID: string(a.CategoryID),
			Name:       a.Name,
			Percentage: a.Percentage,
			Amount:     a.Amount,
			Color:      a.Color,
			Icon:       a.Icon,
		}
	}
	dto := SimulationDTO{
		IncomeAmount:            res.IncomeAmount,
		FixedExpenses:           res.FixedExpenses,
		FixedExpensesSource:     source,
		AvailableAmount:         res.AvailableAmount,
		TotalDistributed:        res.TotalDistributed,
		Remaining:               res.Remaining,
		Distribution:            allocs,
		FixedExpensesPercentage: res.FixedExpensesPercentage,
		IsHealthy:               res.IsHealthy,
	}
	if ef := res.EmergencyFund; ef != nil {
		dto.EmergencyFund = &EmergencyFundDTO{
			TargetAmount:        ef.TargetAmount,
			SuggestedPercentage: ef.SuggestedPercentage,
			SuggestedAmount:     ef.SuggestedAmount,
			MonthsToTarget:      ef.MonthsToTarget,
		}
	}
	return dto
}

func toInstallmentPaymentDTO(p installment.Payment, today core.Date) InstallmentPaymentDTO {
	return InstallmentPaymentDTO{
		ID:         p.ID,
		Number:     p.Number,
		Amount:     p.Amount,
		DueDate:    p.DueDate,
		Status:     string(installment.DeriveStatus(p, today)),
		PaidDate:   p.PaidDate,
		AmountPaid: p.AmountPaid,
	}
}

func toPlanDTO(plan installment.Plan, today core.Date) PlanDTO {
	rows := make([]InstallmentPaymentDTO, len(plan.Payments))
	for i, p := range plan.Payments {
		rows[i] = toInstallmentPaymentDTO(p, today)
	}

	s := installment.Summarize(plan, today)
	summary := PlanSummaryDTO{
		TotalPayable:       s.TotalPayable,
		PaidAmount:         s.PaidAmount,
		RemainingAmount:    s.RemainingAmount,
		PaidCount:          s.PaidCount,
		PendingCount:       s.PendingCount,
		SkippedCount:       s.SkippedCount,
		OverdueCount:       s.OverdueCount,
		Progress:           s.Progress,
		RoundingCorrection: s.RoundingCorrection,
	}
	if s.NextPayment != nil {
		next := toInstallmentPaymentDTO(*s.NextPayment, today)
		summary.NextPayment = &next
	}

	return PlanDTO{
		ID:                    plan.ID,
		ClientID:              plan.ClientID,
		Title:                 plan.Title,
		Category:              plan.Category,
		Notes:                 plan.Notes,
		TotalAmount:           plan.TotalAmount,
		InstallmentCount:      plan.InstallmentCount,
		InterestRate:          plan.InterestRate,
		FirstDueDate:          plan.FirstDueDate,
		InstallmentAmount:     plan.InstallmentAmount,
		LastInstallmentAmount: plan.LastInstallmentAmount,
		PaidCount:             plan.PaidCount,
		Status:                string(plan.Status),
		Payments:              rows,
		Summary:               summary,
		Version:               plan.Version,
		CreatedAt:             plan.CreatedAt,
		UpdatedAt:             plan.UpdatedAt,
	}
}

func toBreakdownDTOs(rows []installment.BreakdownRow) []BreakdownRowDTO {
	out := make([]BreakdownRowDTO, len(rows))
	for i, r := range rows {
		out[i] = BreakdownRowDTO{
			Number:    r.Number,
			DueDate:   r.DueDate,
			Amount:    r.Amount,
			Interest:  r.Interest,
			Principal: r.Principal,
			Balance:   r.Balance,
		}
	}
	return out
}

func toRecurringDTO(p recurring.Payment, today core.Date) RecurringDTO {
	dto := RecurringDTO{
		ID:                p.ID,
		ClientID:          p.ClientID,
		Title:             p.Title,
		Amount:            p.Amount,
		Category:          p.Category,
		Frequency:         string(p.Frequency),
		DayOfMonth:        p.DayOfMonth,
		StartDate:         p.StartDate,
		EndDate:           p.EndDate,
		IsActive:          p.IsActive,
		LastProcessedDate: p.LastProcessedDate,
		MonthlyEquivalent: recurring.MonthlyEquivalent(p),
		Version:           p.Version,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if p.IsActive {
		if next, ok := recurring.NextDueDate(p, today); ok {
			dto.NextDueDate = next
		}
	}
	return dto
}

func toOccurrenceDTO(o recurring.ProcessedOccurrence) OccurrenceDTO {
	return OccurrenceDTO{
		ID:                 o.ID,
		RecurringPaymentID: o.RecurringPaymentID,
		ReferenceMonth:     o.ReferenceMonth.String(),
		DueDate:            o.DueDate,
		Amount:             o.Amount,
		ProcessedAt:        o.ProcessedAt,
		Source:             string(o.Source),
	}
}

func toGoalDTO(g goal.Goal, today core.Date) GoalDTO {
	items := make([]GoalItemDTO, len(g.Items))
	for i, it := range g.Items {
		items[i] = GoalItemDTO{
			ID:          it.ID,
			Name:        it.Name,
			Amount:      it.Amount,
			IsPurchased: it.IsPurchased,
			PurchasedAt: it.PurchasedAt,
		}
	}

	p := goal.Derive(g, today)
	return GoalDTO{
		ID:              g.ID,
		ClientID:        g.ClientID,
		Name:            g.Name,
		TargetAmount:    g.TargetAmount,
		CurrentAmount:   g.CurrentAmount,
		TargetDate:      g.TargetDate,
		Items:           items,
		Progress:        p.Progress,
		Remaining:       p.Remaining,
		DaysRemaining:   p.DaysRemaining,
		IsCompleted:     p.IsCompleted,
		IsOverdue:       p.IsOverdue,
		ItemsTotal:      p.ItemsTotal,
		ItemsPurchased:  p.ItemsPurchased,
		ItemsAmount:     p.ItemsAmount,
		PurchasedAmount: p.PurchasedAmount,
		Version:         g.Version,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
	}
}
