/*
Package decimal provides the fixed-point money and rate types used
throughout the simulation engine.

PURPOSE:
  All compensation, contribution, and balance arithmetic in this engine
  goes through Money or Rate rather than float64. This keeps comparisons
  against IRS limits exact and keeps rounding behavior auditable.

KEY CONCEPTS:
  Money: scale 6, precision 18 fixed-point decimal (matches plan-year
         compensation and contribution amounts).
  Rate:  scale 4 fixed-point decimal (deferral rates, match rates,
         vesting percentages, hazard probabilities).

ROUNDING:
  Intermediate arithmetic (Add/Sub/Mul/Div) never rounds. Only
  materialization - writing a value into an event payload or a
  snapshot column - rounds, and it rounds half-to-even (banker's
  rounding), via Money.Round()/Rate.Round().

SEE ALSO:
  - engine/event.go: payloads carrying Money/Rate fields
  - engine/growth.go: headcount math built on top of Money-free integers
*/
package decimal

import (
	"fmt"

	shopdecimal "github.com/shopspring/decimal"
)

const (
	moneyScale = 6
	rateScale  = 4
)

// Money is a fixed-point decimal amount scaled to 6 decimal places,
// matching the precision-18/scale-6 requirement for compensation and
// contribution figures.
type Money struct {
	v shopdecimal.Decimal
}

// NewMoney builds a Money from a float64. Intended for test fixtures and
// configuration defaults, not for accumulated runtime values.
func NewMoney(f float64) Money {
	return Money{v: shopdecimal.NewFromFloat(f)}
}

// NewMoneyFromString parses a decimal literal (as it would appear in a
// scenario YAML document or a census CSV cell).
func NewMoneyFromString(s string) (Money, error) {
	d, err := shopdecimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money literal %q: %w", s, err)
	}
	return Money{v: d}, nil
}

// Zero is the additive identity.
func Zero() Money { return Money{v: shopdecimal.Zero} }

func (m Money) Add(o Money) Money { return Money{v: m.v.Add(o.v)} }
func (m Money) Sub(o Money) Money { return Money{v: m.v.Sub(o.v)} }
func (m Money) Mul(r Rate) Money  { return Money{v: m.v.Mul(r.v)} }
func (m Money) MulFloat(f float64) Money {
	return Money{v: m.v.Mul(shopdecimal.NewFromFloat(f))}
}
func (m Money) Neg() Money { return Money{v: m.v.Neg()} }

func (m Money) IsZero() bool             { return m.v.IsZero() }
func (m Money) IsNegative() bool         { return m.v.IsNegative() }
func (m Money) IsPositive() bool         { return m.v.IsPositive() }
func (m Money) GreaterThan(o Money) bool { return m.v.GreaterThan(o.v) }
func (m Money) LessThan(o Money) bool    { return m.v.LessThan(o.v) }

func (m Money) Min(o Money) Money {
	if m.v.LessThan(o.v) {
		return m
	}
	return o
}

func (m Money) Max(o Money) Money {
	if m.v.GreaterThan(o.v) {
		return m
	}
	return o
}

// Round materializes m at the engine's money scale using banker's
// rounding. This is the only place Money loses precision.
func (m Money) Round() Money {
	return Money{v: m.v.RoundBank(moneyScale)}
}

// Float64 is for display/reporting paths only; never feed the result
// back into engine arithmetic.
func (m Money) Float64() float64 {
	f, _ := m.v.Round(moneyScale).Float64()
	return f
}

func (m Money) String() string { return m.v.StringFixedBank(moneyScale) }

func (m Money) Decimal() shopdecimal.Decimal { return m.v }

// MarshalJSON/UnmarshalJSON delegate to shopdecimal.Decimal's own JSON
// codec so Money round-trips through event payload serialization
// (engine/serialize.go) without exposing the unexported field encoding/json
// would otherwise silently drop.
func (m Money) MarshalJSON() ([]byte, error) { return m.v.MarshalJSON() }

func (m *Money) UnmarshalJSON(data []byte) error {
	return m.v.UnmarshalJSON(data)
}

// Rate is a fixed-point percentage/probability scaled to 4 decimal
// places (e.g. a deferral rate of 6% is stored as 0.0600).
type Rate struct {
	v shopdecimal.Decimal
}

func NewRate(f float64) Rate {
	return Rate{v: shopdecimal.NewFromFloat(f)}
}

func NewRateFromString(s string) (Rate, error) {
	d, err := shopdecimal.NewFromString(s)
	if err != nil {
		return Rate{}, fmt.Errorf("invalid rate literal %q: %w", s, err)
	}
	return Rate{v: d}, nil
}

func ZeroRate() Rate { return Rate{v: shopdecimal.Zero} }

func (r Rate) Add(o Rate) Rate { return Rate{v: r.v.Add(o.v)} }
func (r Rate) Sub(o Rate) Rate { return Rate{v: r.v.Sub(o.v)} }

func (r Rate) GreaterThan(o Rate) bool { return r.v.GreaterThan(o.v) }
func (r Rate) LessThan(o Rate) bool    { return r.v.LessThan(o.v) }
func (r Rate) LessThanOrEqual(o Rate) bool {
	return r.v.LessThan(o.v) || r.v.Equal(o.v)
}

func (r Rate) Min(o Rate) Rate {
	if r.v.LessThan(o.v) {
		return r
	}
	return o
}

// Round materializes r at the engine's rate scale using banker's
// rounding.
func (r Rate) Round() Rate {
	return Rate{v: r.v.RoundBank(rateScale)}
}

func (r Rate) Float64() float64 {
	f, _ := r.v.Round(rateScale).Float64()
	return f
}

func (r Rate) String() string { return r.v.StringFixedBank(rateScale) }

func (r Rate) Decimal() shopdecimal.Decimal { return r.v }

func (r Rate) MarshalJSON() ([]byte, error) { return r.v.MarshalJSON() }

func (r *Rate) UnmarshalJSON(data []byte) error {
	return r.v.UnmarshalJSON(data)
}
