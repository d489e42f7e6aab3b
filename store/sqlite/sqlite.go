/*
Package sqlite provides a SQLite-backed implementation of the store interfaces.

PURPOSE:
  Persists distribution configs, installment plans, recurring payments and
  goals. Each aggregate is a parent row plus child rows (categories, payment
  rows, items) written together in one transaction.

INTERFACES IMPLEMENTED:
  store.DistributionStore, store.InstallmentStore,
  store.RecurringStore, store.GoalStore

OPTIMISTIC CONCURRENCY:
  Saves are compare-and-swap on the version column:
    UPDATE ... SET version = version + 1 WHERE id = ? AND version = ?
  Zero affected rows means someone else won and the save returns
  core.ErrConcurrentModification. Inserting an aggregate that already
  exists is reported the same way.

KEY TABLES:
  distribution_configs / budget_categories
  installment_plans / installment_payments
  recurring_payments / processed_occurrences (unique per payment + due date)
  goals / goal_items

MONEY:
  Amounts and percentages are stored as decimal TEXT, never REAL.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  the single writer.

USAGE:
  st, err := sqlite.New("./data/budget.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is versioned under migrations/ (golang-migrate) and applied on New().

SEE ALSO:
  - store/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/budget-engine/core"
	"github.com/warp/budget-engine/distribution"
	"github.com/warp/budget-engine/goal"
	"github.com/warp/budget-engine/installment"
	"github.com/warp/budget-engine/recurring"
)

const timeLayout = time.RFC3339Nano

// Store implements all store interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	now func() time.Time
}

// New opens (or creates) the database at dbPath and migrates it.
func New(dbPath string) (*Store, error) {
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction under the write lock.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// casUpdate runs a versioned UPDATE and maps zero affected rows to a conflict.
func casUpdate(ctx context.Context, db execer, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrConcurrentModification
	}
	return nil
}

// insertNew runs an INSERT and maps a primary-key clash to a conflict.
func insertNew(ctx context.Context, db execer, query string, args ...any) error {
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueConstraintError(err) {
			return core.ErrConcurrentModification
		}
		return err
	}
	return nil
}

// =============================================================================
// DISTRIBUTION STORE
// =============================================================================

func (s *Store) GetDistribution(ctx context.Context, clientID string) (distribution.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		cfg       distribution.Config
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT client_id, is_auto_calculate_expenses, is_active, version, updated_at
		FROM distribution_configs WHERE client_id = ?`, clientID,
	).Scan(&cfg.ClientID, &cfg.IsAutoCalculateExpenses, &cfg.IsActive, &cfg.Version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return distribution.Config{}, fmt.Errorf("distribution config %s: %w", clientID, core.ErrNotFound)
	}
	if err != nil {
		return distribution.Config{}, fmt.Errorf("failed to get distribution config: %w", err)
	}
	cfg.UpdatedAt = parseTime(updatedAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, percentage, priority, is_active, color, icon
		FROM budget_categories WHERE client_id = ?
		ORDER BY priority ASC`, clientID)
	if err != nil {
		return distribution.Config{}, fmt.Errorf("failed to load categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cat         distribution.Category
			id          string
			color, icon sql.NullString
		)
		if err := rows.Scan(&id, &cat.Name, &cat.Percentage, &cat.Priority, &cat.IsActive, &color, &icon); err != nil {
			return distribution.Config{}, fmt.Errorf("failed to scan category: %w", err)
		}
		cat.ID = distribution.CategoryID(id)
		cat.Color = stringPtr(color)
		cat.Icon = stringPtr(icon)
		cfg.Categories = append(cfg.Categories, cat)
	}
	return cfg, rows.Err()
}

func (s *Store) SaveDistribution(ctx context.Context, cfg distribution.Config) (distribution.Config, error) {
	now := s.now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if cfg.Version == 0 {
			err = insertNew(ctx, tx, `
				INSERT INTO distribution_configs
				(client_id, is_auto_calculate_expenses, is_active, version, created_at, updated_at)
				VALUES (?, ?, ?, 1, ?, ?)`,
				cfg.ClientID, cfg.IsAutoCalculateExpenses, cfg.IsActive, formatTime(now), formatTime(now))
		} else {
			err = casUpdate(ctx, tx, `
				UPDATE distribution_configs
				SET is_auto_calculate_expenses = ?, is_active = ?, version = version + 1, updated_at = ?
				WHERE client_id = ? AND version = ?`,
				cfg.IsAutoCalculateExpenses, cfg.IsActive, formatTime(now), cfg.ClientID, cfg.Version)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM budget_categories WHERE client_id = ?`, cfg.ClientID); err != nil {
			return err
		}
		for _, cat := range cfg.Categories {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO budget_categories (id, client_id, name, percentage, priority, is_active, color, icon)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				string(cat.ID), cfg.ClientID, cat.Name, cat.Percentage.String(), cat.Priority, cat.IsActive,
				nullString(cat.Color), nullString(cat.Icon),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return distribution.Config{}, wrapSave("distribution config", err)
	}

	cfg.Version++
	cfg.UpdatedAt = now
	return cfg, nil
}

func (s *Store) DeleteDistribution(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM distribution_configs WHERE client_id = ?`, clientID)
	if err != nil {
		return fmt.Errorf("failed to delete distribution config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("distribution config %s: %w", clientID, core.ErrNotFound)
	}
	return nil
}

// =============================================================================
// INSTALLMENT STORE
// =============================================================================

const planColumns = `
	id, client_id, title, category, notes, total_amount, installment_count, interest_rate,
	first_due_date, installment_amount, last_installment_amount, paid_count, status,
	version, created_at, updated_at`

func (s *Store) GetPlan(ctx context.Context, id string) (installment.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plans, err := s.queryPlans(ctx, `SELECT `+planColumns+` FROM installment_plans WHERE id = ?`, id)
	if err != nil {
		return installment.Plan{}, err
	}
	if len(plans) == 0 {
		return installment.Plan{}, fmt.Errorf("installment plan %s: %w", id, core.ErrNotFound)
	}
	return plans[0], nil
}

func (s *Store) ListPlans(ctx context.Context, clientID string) ([]installment.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPlans(ctx, `SELECT `+planColumns+` FROM installment_plans WHERE client_id = ? ORDER BY created_at ASC`, clientID)
}

func (s *Store) queryPlans(ctx context.Context, query string, args ...any) ([]installment.Plan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query installment plans: %w", err)
	}
	defer rows.Close()

	var plans []installment.Plan
	for rows.Next() {
		var (
			p                    installment.Plan
			notes                sql.NullString
			status               string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Title, &p.Category, &notes, &p.TotalAmount,
			&p.InstallmentCount, &p.InterestRate, &p.FirstDueDate, &p.InstallmentAmount,
			&p.LastInstallmentAmount, &p.PaidCount, &status, &p.Version, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan installment plan: %w", err)
		}
		p.Notes = stringPtr(notes)
		p.Status = installment.PlanStatus(status)
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range plans {
		payments, err := s.loadPayments(ctx, s.db, plans[i].ID)
		if err != nil {
			return nil, err
		}
		plans[i].Payments = payments
	}
	return plans, nil
}

func (s *Store) loadPayments(ctx context.Context, db querier, planID string) ([]installment.Payment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, installment_number, amount, due_date, status, paid_date, amount_paid
		FROM installment_payments WHERE plan_id = ?
		ORDER BY installment_number ASC`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load installment payments: %w", err)
	}
	defer rows.Close()

	var out []installment.Payment
	for rows.Next() {
		var (
			p          installment.Payment
			status     string
			amountPaid sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Number, &p.Amount, &p.DueDate, &status, &p.PaidDate, &amountPaid); err != nil {
			return nil, fmt.Errorf("failed to scan installment payment: %w", err)
		}
		p.Status = installment.PaymentStatus(status)
		if amountPaid.Valid {
			m, err := core.ParseMoney(amountPaid.String)
			if err != nil {
				return nil, err
			}
			p.AmountPaid = &m
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SavePlan(ctx context.Context, plan installment.Plan) (installment.Plan, error) {
	now := s.now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if plan.Version == 0 {
			plan.CreatedAt = now
			err = insertNew(ctx, tx, `INSERT INTO installment_plans (`+planColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
				plan.ID, plan.ClientID, plan.Title, plan.Category, nullString(plan.Notes), plan.TotalAmount,
				plan.InstallmentCount, plan.InterestRate.String(), plan.FirstDueDate, plan.InstallmentAmount,
				plan.LastInstallmentAmount, plan.PaidCount, string(plan.Status), formatTime(now), formatTime(now))
		} else {
			err = casUpdate(ctx, tx, `
				UPDATE installment_plans SET
					title = ?, category = ?, notes = ?, total_amount = ?, installment_count = ?,
					interest_rate = ?, first_due_date = ?, installment_amount = ?,
					last_installment_amount = ?, paid_count = ?, status = ?,
					version = version + 1, updated_at = ?
				WHERE id = ? AND version = ?`,
				plan.Title, plan.Category, nullString(plan.Notes), plan.TotalAmount, plan.InstallmentCount,
				plan.InterestRate.String(), plan.FirstDueDate, plan.InstallmentAmount,
				plan.LastInstallmentAmount, plan.PaidCount, string(plan.Status), formatTime(now),
				plan.ID, plan.Version)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM installment_payments WHERE plan_id = ?`, plan.ID); err != nil {
			return err
		}
		for _, p := range plan.Payments {
			var amountPaid any
			if p.AmountPaid != nil {
				amountPaid = p.AmountPaid.String()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO installment_payments
				(id, plan_id, installment_number, amount, due_date, status, paid_date, amount_paid)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, plan.ID, p.Number, p.Amount, p.DueDate, string(p.Status), p.PaidDate, amountPaid,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return installment.Plan{}, wrapSave("installment plan", err)
	}

	plan.Version++
	plan.UpdatedAt = now
	return plan, nil
}

// =============================================================================
// RECURRING STORE
// =============================================================================

const recurringColumns = `
	id, client_id, title, amount, category, frequency, day_of_month, start_date, end_date,
	is_active, last_processed_date, version, created_at, updated_at`

func (s *Store) GetRecurring(ctx context.Context, id string) (recurring.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out, err := s.queryRecurring(ctx, `SELECT `+recurringColumns+` FROM recurring_payments WHERE id = ?`, id)
	if err != nil {
		return recurring.Payment{}, err
	}
	if len(out) == 0 {
		return recurring.Payment{}, fmt.Errorf("recurring payment %s: %w", id, core.ErrNotFound)
	}
	return out[0], nil
}

func (s *Store) ListRecurring(ctx context.Context, clientID string) ([]recurring.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecurring(ctx, `SELECT `+recurringColumns+` FROM recurring_payments WHERE client_id = ? ORDER BY created_at ASC`, clientID)
}

func (s *Store) ListActiveRecurring(ctx context.Context) ([]recurring.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecurring(ctx, `SELECT `+recurringColumns+` FROM recurring_payments WHERE is_active = TRUE ORDER BY created_at ASC`)
}

func (s *Store) queryRecurring(ctx context.Context, query string, args ...any) ([]recurring.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring payments: %w", err)
	}
	defer rows.Close()

	var out []recurring.Payment
	for rows.Next() {
		var (
			p                    recurring.Payment
			frequency            string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Title, &p.Amount, &p.Category, &frequency,
			&p.DayOfMonth, &p.StartDate, &p.EndDate, &p.IsActive, &p.LastProcessedDate,
			&p.Version, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan recurring payment: %w", err)
		}
		p.Frequency = recurring.Frequency(frequency)
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SaveRecurring(ctx context.Context, p recurring.Payment) (recurring.Payment, error) {
	now := s.now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return saveRecurring(ctx, tx, p, now)
	})
	if err != nil {
		return recurring.Payment{}, wrapSave("recurring payment", err)
	}
	return bumped(p, now), nil
}

func (s *Store) ProcessOccurrence(ctx context.Context, p recurring.Payment, occ recurring.ProcessedOccurrence) (recurring.Payment, bool, error) {
	now := s.now().UTC()
	created := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveRecurring(ctx, tx, p, now); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO processed_occurrences
			(id, recurring_payment_id, reference_month, due_date, amount, processed_at, source)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(recurring_payment_id, due_date) DO NOTHING`,
			occ.ID, p.ID, occ.ReferenceMonth.String(), occ.DueDate, occ.Amount,
			formatTime(occ.ProcessedAt), string(occ.Source))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		created = n > 0
		return err
	})
	if err != nil {
		return recurring.Payment{}, false, wrapSave("recurring payment", err)
	}
	return bumped(p, now), created, nil
}

func saveRecurring(ctx context.Context, tx execer, p recurring.Payment, now time.Time) error {
	if p.Version == 0 {
		created := p.CreatedAt
		if created.IsZero() {
			created = now
		}
		return insertNew(ctx, tx, `INSERT INTO recurring_payments (`+recurringColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			p.ID, p.ClientID, p.Title, p.Amount, p.Category, string(p.Frequency), p.DayOfMonth,
			p.StartDate, p.EndDate, p.IsActive, p.LastProcessedDate, formatTime(created), formatTime(now))
	}
	return casUpdate(ctx, tx, `
		UPDATE recurring_payments SET
			title = ?, amount = ?, category = ?, frequency = ?, day_of_month = ?, start_date = ?,
			end_date = ?, is_active = ?, last_processed_date = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		p.Title, p.Amount, p.Category, string(p.Frequency), p.DayOfMonth, p.StartDate,
		p.EndDate, p.IsActive, p.LastProcessedDate, formatTime(now), p.ID, p.Version)
}

func bumped(p recurring.Payment, now time.Time) recurring.Payment {
	if p.Version == 0 && p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.Version++
	p.UpdatedAt = now
	return p
}

func (s *Store) ListOccurrences(ctx context.Context, recurringID string) ([]recurring.ProcessedOccurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recurring_payment_id, reference_month, due_date, amount, processed_at, source
		FROM processed_occurrences WHERE recurring_payment_id = ?
		ORDER BY due_date ASC`, recurringID)
	if err != nil {
		return nil, fmt.Errorf("failed to query processed occurrences: %w", err)
	}
	defer rows.Close()

	var out []recurring.ProcessedOccurrence
	for rows.Next() {
		var (
			o                  recurring.ProcessedOccurrence
			month, processedAt string
			source             string
		)
		if err := rows.Scan(&o.ID, &o.RecurringPaymentID, &month, &o.DueDate, &o.Amount, &processedAt, &source); err != nil {
			return nil, fmt.Errorf("failed to scan processed occurrence: %w", err)
		}
		if o.ReferenceMonth, err = core.ParseMonth(month); err != nil {
			return nil, err
		}
		o.ProcessedAt = parseTime(processedAt)
		o.Source = recurring.Source(source)
		out = append(out, o)
	}
	return out, rows.Err()
}

// =============================================================================
// GOAL STORE
// =============================================================================

const goalColumns = `id, client_id, name, target_amount, current_amount, target_date, version, created_at, updated_at`

func (s *Store) GetGoal(ctx context.Context, id string) (goal.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	goals, err := s.queryGoals(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id)
	if err != nil {
		return goal.Goal{}, err
	}
	if len(goals) == 0 {
		return goal.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	return goals[0], nil
}

func (s *Store) ListGoals(ctx context.Context, clientID string) ([]goal.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryGoals(ctx, `SELECT `+goalColumns+` FROM goals WHERE client_id = ? ORDER BY created_at ASC`, clientID)
}

func (s *Store) queryGoals(ctx context.Context, query string, args ...any) ([]goal.Goal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var goals []goal.Goal
	for rows.Next() {
		var (
			g                    goal.Goal
			createdAt, updatedAt string
		)
		if err := rows.Scan(&g.ID, &g.ClientID, &g.Name, &g.TargetAmount, &g.CurrentAmount,
			&g.TargetDate, &g.Version, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		g.CreatedAt = parseTime(createdAt)
		g.UpdatedAt = parseTime(updatedAt)
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range goals {
		items, err := s.loadItems(ctx, goals[i].ID)
		if err != nil {
			return nil, err
		}
		goals[i].Items = items
	}
	return goals, nil
}

func (s *Store) loadItems(ctx context.Context, goalID string) ([]goal.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, amount, is_purchased, purchased_at
		FROM goal_items WHERE goal_id = ?
		ORDER BY position ASC`, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load goal items: %w", err)
	}
	defer rows.Close()

	var items []goal.Item
	for rows.Next() {
		var (
			it          goal.Item
			purchasedAt sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.Amount, &it.IsPurchased, &purchasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan goal item: %w", err)
		}
		if purchasedAt.Valid {
			t := parseTime(purchasedAt.String)
			it.PurchasedAt = &t
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) SaveGoal(ctx context.Context, g goal.Goal) (goal.Goal, error) {
	now := s.now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if g.Version == 0 {
			g.CreatedAt = now
			err = insertNew(ctx, tx, `INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
				g.ID, g.ClientID, g.Name, g.TargetAmount, g.CurrentAmount, g.TargetDate, formatTime(now), formatTime(now))
		} else {
			err = casUpdate(ctx, tx, `
				UPDATE goals SET name = ?, target_amount = ?, current_amount = ?, target_date = ?,
					version = version + 1, updated_at = ?
				WHERE id = ? AND version = ?`,
				g.Name, g.TargetAmount, g.CurrentAmount, g.TargetDate, formatTime(now), g.ID, g.Version)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM goal_items WHERE goal_id = ?`, g.ID); err != nil {
			return err
		}
		for i, it := range g.Items {
			var purchasedAt any
			if it.PurchasedAt != nil {
				purchasedAt = formatTime(*it.PurchasedAt)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO goal_items (id, goal_id, position, name, amount, is_purchased, purchased_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				it.ID, g.ID, i, it.Name, it.Amount, it.IsPurchased, purchasedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return goal.Goal{}, wrapSave("goal", err)
	}

	g.Version++
	g.UpdatedAt = now
	return g, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func wrapSave(kind string, err error) error {
	if errors.Is(err, core.ErrConcurrentModification) {
		return err
	}
	return fmt.Errorf("failed to save %s: %w", kind, err)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}
