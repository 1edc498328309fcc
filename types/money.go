// Package types provides common value types used across tradefin.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// MinorDigits is the number of decimal places every amount carries.
const MinorDigits = 2

// MaxAmount is the largest amount a single order or journal entry may
// carry: 2^53 cents, the largest cent count a float64 holds exactly.
// Derived amounts (ceilings, interest, sums) are checked separately.
var MaxAmount = Money{Cents: 1 << 53}

// Errors returned when converting external values into Money.
var (
	ErrPrecision = errors.New("money: more than two decimal places")
	ErrOverflow  = errors.New("money: amount out of range")
	ErrSyntax    = errors.New("money: invalid amount")
)

// Money represents a monetary value in the smallest currency unit (cents).
// All storage and summation is integer-only, no floating point. Decimal
// arithmetic is used only where a rate or ratio is involved, and results
// are rounded back to the cent.
//
// Examples:
//   - Cents(1000000) = 10000.00
//   - MustParse("11999.99") = Cents(1199999)
type Money struct {
	Cents int64 `json:"-"`
}

// Cents creates a Money value from an amount in minor units.
func Cents(c int64) Money { return Money{Cents: c} }

// Zero returns the zero amount.
func Zero() Money { return Money{} }

// Parse parses a decimal string such as "10000" or "11999.99".
// Amounts with more than two decimal places are rejected rather than rounded.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	return FromDecimal(d)
}

// MustParse is like Parse but panics on error. Use for hardcoded amounts.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal converts an exact decimal amount into Money.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if !d.Equal(d.Truncate(MinorDigits)) {
		return Money{}, fmt.Errorf("%w: %s", ErrPrecision, d.String())
	}
	minor := d.Shift(MinorDigits).BigInt()
	if !minor.IsInt64() {
		return Money{}, fmt.Errorf("%w: %s", ErrOverflow, d.String())
	}
	return Money{Cents: minor.Int64()}, nil
}

// RoundBank rounds an arbitrary decimal to the cent using half-to-even
// rounding. It fails with ErrOverflow when the result does not fit.
func RoundBank(d decimal.Decimal) (Money, error) {
	return FromDecimal(d.RoundBank(MinorDigits))
}

// Decimal returns the exact decimal representation of the amount.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -MinorDigits)
}

// Arithmetic operations

// Add adds two Money values. It wraps on overflow; use CheckedAdd where
// the operands are not already bounded.
func (m Money) Add(other Money) Money { return Money{Cents: m.Cents + other.Cents} }

// CheckedAdd adds two Money values, failing with ErrOverflow instead of
// wrapping.
func (m Money) CheckedAdd(other Money) (Money, error) {
	sum := m.Cents + other.Cents
	if (other.Cents > 0 && sum < m.Cents) || (other.Cents < 0 && sum > m.Cents) {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrOverflow, m, other)
	}
	return Money{Cents: sum}, nil
}

// Subtract subtracts another Money value.
func (m Money) Subtract(other Money) Money { return Money{Cents: m.Cents - other.Cents} }

// Negate returns the negative of the Money value.
func (m Money) Negate() Money { return Money{Cents: -m.Cents} }

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// WithInterest returns m × (1 + ratePercent/100), rounded half-to-even to
// the cent, or ErrOverflow.
func (m Money) WithInterest(ratePercent decimal.Decimal) (Money, error) {
	factor := decimal.NewFromInt(1).Add(ratePercent.Div(decimal.NewFromInt(100)))
	return RoundBank(m.Decimal().Mul(factor))
}

// ScaleDown returns m × factor truncated to the cent, or ErrOverflow. For
// non-negative amounts the result is the largest whole-cent amount not
// above the product.
func (m Money) ScaleDown(factor decimal.Decimal) (Money, error) {
	return FromDecimal(m.Decimal().Mul(factor).Truncate(MinorDigits))
}

// Ratio returns m / other as an exact-as-possible decimal. It returns false
// when other is zero.
func (m Money) Ratio(other Money) (decimal.Decimal, bool) {
	if other.Cents == 0 {
		return decimal.Zero, false
	}
	return m.Decimal().Div(other.Decimal()), true
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Cents == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Cents > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Cents < 0 }

// Equal returns true if both Money values are equal.
func (m Money) Equal(other Money) bool { return m.Cents == other.Cents }

// Cmp compares m and other, returning -1, 0 or +1.
func (m Money) Cmp(other Money) int {
	switch {
	case m.Cents < other.Cents:
		return -1
	case m.Cents > other.Cents:
		return 1
	default:
		return 0
	}
}

// LessThan returns true if this Money is less than other.
func (m Money) LessThan(other Money) bool { return m.Cents < other.Cents }

// GreaterThan returns true if this Money is greater than other.
func (m Money) GreaterThan(other Money) bool { return m.Cents > other.Cents }

// Formatting methods

// String returns the plain decimal form with two places, e.g. "10000.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(MinorDigits)
}

// Format returns a human-readable string in the given ISO 4217 currency,
// e.g. "$10,000.00" for "USD". The currency is presentation only.
func (m Money) Format(currency string) string {
	if currency == "" {
		return m.String()
	}
	return gomoney.New(m.Cents, strings.ToUpper(currency)).Display()
}

// MarshalJSON encodes the amount as a decimal string to avoid float drift
// in JSON consumers.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*m = Money{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Sum calculates the sum of multiple Money values.
// It wraps on overflow; see CheckedSum.
func Sum(values ...Money) Money {
	var total Money
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// CheckedSum is Sum failing with ErrOverflow instead of wrapping.
func CheckedSum(values ...Money) (Money, error) {
	var total Money
	for _, v := range values {
		var err error
		if total, err = total.CheckedAdd(v); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}
