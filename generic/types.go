/*
Package generic provides the domain-agnostic building blocks of the leave ledger.

PURPOSE:
  Quantities, calendar arithmetic, the error taxonomy and the document-store
  contract shared by the timeoff domain and the storage backends.

KEY CONCEPTS IN THIS FILE (types.go):
  - Days: a day quantity at half-day granularity
  - RoundHalfDay: the one rounding rule for every day count in the system

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal, so repeated half-day arithmetic stays exact
  2. One rounding rule: round(x*2)/2, halves round up
  3. JSON numbers on the wire, numeric strings tolerated on read

USAGE:
  d := generic.RoundHalfDay(2.3)    // 2.5
  left := balance.Sub(d).Max(generic.Days{})

SEE ALSO:
  - time.go: calendar rules and holiday sets
  - errors.go: error taxonomy
  - store.go: document store contract
*/
package generic

import (
	"bytes"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAYS - Half-day granular quantity
// =============================================================================

var (
	two  = decimal.NewFromInt(2)
	half = decimal.NewFromFloat(0.5)
)

// Days is a quantity of leave days. All values are multiples of 0.5.
// The zero value is zero days.
type Days struct {
	Value decimal.Decimal
}

// RoundHalfDay rounds x to the nearest half day (round(x*2)/2, halves up).
// NaN and infinities collapse to zero.
func RoundHalfDay(x float64) Days {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Days{}
	}
	return roundHalf(decimal.NewFromFloat(x))
}

// TruncHalfDay drops anything below the half-day step, toward zero.
// Integer inputs come back unchanged.
func TruncHalfDay(x float64) Days {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Days{}
	}
	return Days{Value: decimal.NewFromFloat(x).Mul(two).Truncate(0).Div(two)}
}

// NewDays returns a whole number of days.
func NewDays(n int) Days { return Days{Value: decimal.NewFromInt(int64(n))} }

func roundHalf(d decimal.Decimal) Days {
	return Days{Value: d.Mul(two).Add(half).Floor().Div(two)}
}

func (d Days) Add(o Days) Days         { return Days{Value: d.Value.Add(o.Value)} }
func (d Days) Sub(o Days) Days         { return Days{Value: d.Value.Sub(o.Value)} }
func (d Days) Neg() Days               { return Days{Value: d.Value.Neg()} }
func (d Days) IsZero() bool            { return d.Value.IsZero() }
func (d Days) IsPositive() bool        { return d.Value.IsPositive() }
func (d Days) IsNegative() bool        { return d.Value.IsNegative() }
func (d Days) Equal(o Days) bool       { return d.Value.Equal(o.Value) }
func (d Days) GreaterThan(o Days) bool { return d.Value.GreaterThan(o.Value) }
func (d Days) LessThan(o Days) bool    { return d.Value.LessThan(o.Value) }
func (d Days) String() string          { return d.Value.String() }
func (d Days) Clamp(lo, hi Days) Days  { return d.Max(lo).Min(hi) }

func (d Days) Float64() float64 {
	f, _ := d.Value.Float64()
	return f
}

func (d Days) Max(o Days) Days {
	if d.LessThan(o) {
		return o
	}
	return d
}

func (d Days) Min(o Days) Days {
	if d.GreaterThan(o) {
		return o
	}
	return d
}

// MarshalJSON renders Days as a bare JSON number.
func (d Days) MarshalJSON() ([]byte, error) {
	return []byte(d.Value.String()), nil
}

// UnmarshalJSON accepts a number, a numeric string, or null.
func (d *Days) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = Days{}
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		s = string(bytes.Trim(b, `"`))
		if s == "" {
			*d = Days{}
			return nil
		}
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid day quantity %s: %w", string(b), err)
	}
	*d = roundHalf(v)
	return nil
}
