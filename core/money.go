/*
Package core provides the money and calendar primitives shared by every calculator.

PURPOSE:
  The distribution engine, the installment scheduler, the recurrence calculator
  and the goal tracker must agree on how money is rounded and how months are
  added. This package is the single place where those rules live.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: fixed-point decimal amount in a single currency
  - Currency precision: 2 places, rounded half away from zero
  - Percentages: decimal values in [0, 100] applied to Money

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal, never float64, for every amount
  2. Determinism: Round() is half-away-from-zero, never banker's rounding
  3. Transport: JSON and SQL carry amounts as decimal strings

USAGE:
  income := core.MustMoney("5000.00")
  share := income.Percent(decimal.NewFromInt(30)) // 1500.00

SEE ALSO:
  - date.go: Calendar arithmetic with month clamping
  - errors.go: Error taxonomy shared by all calculators
*/
package core

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of decimal places kept for currency amounts.
const CurrencyPlaces = 2

var (
	hundred = decimal.NewFromInt(100)
)

// =============================================================================
// MONEY - Fixed-point currency amount
// =============================================================================

// Money is a currency amount. The zero value is 0.00.
type Money struct {
	value decimal.Decimal
}

// Zero is 0.00.
var Zero = Money{}

func NewMoney(d decimal.Decimal) Money { return Money{value: d} }

// MoneyFromCents builds an amount from integer minor units.
func MoneyFromCents(cents int64) Money {
	return Money{value: decimal.New(cents, -CurrencyPlaces)}
}

// ParseMoney parses a decimal string such as "1234.56" or "-12".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("invalid amount: empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{value: d}, nil
}

// MustMoney is ParseMoney for literals. It panics on malformed input.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.value }

// Round rounds to currency precision, half away from zero.
func (m Money) Round() Money { return Money{value: m.value.Round(CurrencyPlaces)} }

func (m Money) Add(o Money) Money            { return Money{value: m.value.Add(o.value)} }
func (m Money) Sub(o Money) Money            { return Money{value: m.value.Sub(o.value)} }
func (m Money) Mul(f decimal.Decimal) Money  { return Money{value: m.value.Mul(f)} }
func (m Money) MulInt(n int) Money           { return Money{value: m.value.Mul(decimal.NewFromInt(int64(n)))} }
func (m Money) Div(f decimal.Decimal) Money  { return Money{value: m.value.Div(f)} }
func (m Money) DivInt(n int) Money           { return Money{value: m.value.Div(decimal.NewFromInt(int64(n)))} }
func (m Money) Neg() Money                   { return Money{value: m.value.Neg()} }
func (m Money) Abs() Money                   { return Money{value: m.value.Abs()} }
func (m Money) Cmp(o Money) int              { return m.value.Cmp(o.value) }
func (m Money) Equal(o Money) bool           { return m.value.Equal(o.value) }
func (m Money) GreaterThan(o Money) bool     { return m.value.GreaterThan(o.value) }
func (m Money) LessThan(o Money) bool        { return m.value.LessThan(o.value) }
func (m Money) LessThanOrEqual(o Money) bool { return m.value.LessThanOrEqual(o.value) }
func (m Money) IsZero() bool                 { return m.value.IsZero() }
func (m Money) IsPositive() bool             { return m.value.IsPositive() }
func (m Money) IsNegative() bool             { return m.value.IsNegative() }

func (m Money) Min(o Money) Money {
	if m.LessThan(o) {
		return m
	}
	return o
}

func (m Money) Max(o Money) Money {
	if m.GreaterThan(o) {
		return m
	}
	return o
}

// Percent applies a percentage and rounds to currency precision:
// round(m * p / 100, 2).
func (m Money) Percent(p decimal.Decimal) Money {
	return Money{value: m.value.Mul(p).Div(hundred)}.Round()
}

// Ratio returns m as a percentage of whole, rounded to two places.
// Returns zero when whole is not positive.
func (m Money) Ratio(whole Money) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return m.value.Mul(hundred).Div(whole.value).Round(2)
}

// Cents returns the amount in integer minor units after rounding.
func (m Money) Cents() int64 {
	return m.value.Round(CurrencyPlaces).Shift(CurrencyPlaces).IntPart()
}

// String formats with exactly two decimal places.
func (m Money) String() string { return m.value.StringFixed(CurrencyPlaces) }

// Sum adds a list of amounts.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// SERIALIZATION - Decimal strings end to end
// =============================================================================

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts "12.34" or a bare JSON number. Numbers are parsed from
// their literal text so no binary float conversion happens.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = Zero
		return nil
	}
	s = strings.Trim(s, `"`)
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer; amounts are stored as TEXT.
func (m Money) Value() (driver.Value, error) {
	return m.value.String(), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	return m.value.Scan(src)
}

// =============================================================================
// PERCENTAGES
// =============================================================================

// ParsePercentage parses a percentage literal such as "12.5".
func ParsePercentage(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid percentage %q: %w", s, err)
	}
	return d, nil
}

// MustPercentage is ParsePercentage for literals.
func MustPercentage(s string) decimal.Decimal {
	d, err := ParsePercentage(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FullPercentage is the 100% cap.
var FullPercentage = hundred
