// Package numeric provides a fixed-precision representation for on-chain
// token and native-asset amounts, backed by math/big.Rat so repeated
// percentage splits and division never accumulate float error.
package numeric

import (
	"database/sql/driver"
	"fmt"
	"math/big"
)

// Amount is an exact rational quantity of a native asset or token, denoted in
// whole units (not base/lamport units). Zero value is a valid zero amount.
type Amount struct {
	r *big.Rat
}

// Zero returns the additive identity.
func Zero() Amount { return Amount{r: new(big.Rat)} }

// FromFloat builds an Amount from a float64. Intended for config defaults and
// test fixtures, not for values read back from chain state.
func FromFloat(f float64) Amount {
	r := new(big.Rat).SetFloat64(f)
	if r == nil {
		r = new(big.Rat)
	}
	return Amount{r: r}
}

// FromInt builds an Amount representing a whole number of units.
func FromInt(n int64) Amount {
	return Amount{r: new(big.Rat).SetInt64(n)}
}

// FromString parses a decimal string ("1.2345") into an Amount. Returns an
// error for malformed input so database coercion can fail loudly rather than
// silently truncating.
func FromString(s string) (Amount, error) {
	if s == "" {
		return Zero(), nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Amount{}, fmt.Errorf("numeric: invalid amount %q", s)
	}
	return Amount{r: r}, nil
}

func (a Amount) rat() *big.Rat {
	if a.r == nil {
		return new(big.Rat)
	}
	return a.r
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{r: new(big.Rat).Add(a.rat(), b.rat())}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{r: new(big.Rat).Sub(a.rat(), b.rat())}
}

// Mul returns a * b.
func (a Amount) Mul(b Amount) Amount {
	return Amount{r: new(big.Rat).Mul(a.rat(), b.rat())}
}

// MulFloat returns a * f, useful for percentage/ratio multipliers.
func (a Amount) MulFloat(f float64) Amount {
	return a.Mul(FromFloat(f))
}

// Div returns a / b. Division by zero returns Zero rather than panicking,
// since callers (sizing formulas) treat a zero-balance divisor as "nothing to
// divide".
func (a Amount) Div(b Amount) Amount {
	if b.rat().Sign() == 0 {
		return Zero()
	}
	return Amount{r: new(big.Rat).Quo(a.rat(), b.rat())}
}

// Cmp compares a to b: -1, 0, or 1.
func (a Amount) Cmp(b Amount) int { return a.rat().Cmp(b.rat()) }

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool { return a.Cmp(b) < 0 }

// GreaterThan reports whether a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.Cmp(b) > 0 }

// GreaterOrEqual reports whether a >= b.
func (a Amount) GreaterOrEqual(b Amount) bool { return a.Cmp(b) >= 0 }

// IsZero reports whether a is exactly zero.
func (a Amount) IsZero() bool { return a.rat().Sign() == 0 }

// IsNegative reports whether a is strictly less than zero.
func (a Amount) IsNegative() bool { return a.rat().Sign() < 0 }

// Float64 returns the nearest float64 approximation, for logging/metrics only.
func (a Amount) Float64() float64 {
	f, _ := a.rat().Float64()
	return f
}

// String renders the amount as a decimal string with up to the given
// fractional digits (trailing zeros trimmed), matching the precision of the
// asset's on-chain decimals field.
func (a Amount) DecimalString(decimals int) string {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Rat).Mul(a.rat(), new(big.Rat).SetInt(scale))
	num := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	return fmt.Sprintf("%s.%0*d", new(big.Int).Quo(num, scale).String(), decimals, new(big.Int).Mod(num, scale).Int64())
}

func (a Amount) String() string {
	return a.rat().RatString()
}

// Value implements database/sql/driver.Valuer, storing the amount as its
// exact decimal text form so the numeric column round-trips losslessly.
func (a Amount) Value() (driver.Value, error) {
	return a.rat().FloatString(18), nil
}

// Scan implements sql.Scanner. The lib/pq driver returns numeric columns as
// []byte or string; both are normalised here so callers never see a raw
// string where an Amount is expected.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Zero()
		return nil
	case []byte:
		parsed, err := FromString(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case string:
		parsed, err := FromString(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case float64:
		*a = FromFloat(v)
		return nil
	default:
		return fmt.Errorf("numeric: cannot scan %T into Amount", src)
	}
}
