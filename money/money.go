// Package money implements integer minor-unit currency arithmetic.
//
// All monetary values are held as an integer count of minor units (pence
// for GBP); no floating-point value is ever stored as the authoritative
// amount. There is no third-party decimal library among this repository's
// dependencies — see DESIGN.md for why this package is built on math/big
// rather than adopting one.
package money

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/voltcharge/receiptengine/receipterrors"
)

// Pence is an amount expressed in integer minor units.
type Pence int64

// FromMinor wraps an already-computed minor-unit amount.
func FromMinor(i int64) Pence {
	return Pence(i)
}

// FromMajor converts a major-unit decimal amount (e.g. 14.06) to minor
// units, rounding half-even at the boundary.
func FromMajor(major float64) Pence {
	r := new(big.Rat).SetFloat64(major)
	if r == nil {
		return 0
	}
	r.Mul(r, big.NewRat(100, 1))
	return Pence(roundHalfEven(r))
}

// Parse extracts a minor-unit amount from a display string such as
// "£14.06", stripping everything except digits and the first decimal
// separator. Fractional digits beyond two places are rounded half-even.
func Parse(display string) (Pence, error) {
	var b strings.Builder
	seenDot := false
	for _, r := range display {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenDot:
			seenDot = true
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "." {
		return 0, receipterrors.NewFieldError("amount", fmt.Sprintf("unparsable amount %q", display))
	}

	intPart, fracPart, _ := strings.Cut(cleaned, ".")
	if intPart == "" {
		intPart = "0"
	}

	numerator := new(big.Int)
	if _, ok := numerator.SetString(intPart+fracPart, 10); !ok {
		return 0, receipterrors.NewFieldError("amount", fmt.Sprintf("unparsable amount %q", display))
	}

	// Shift the fractional part so the result is in minor units: pad or
	// truncate (with rounding) to exactly 2 fractional digits.
	shift := 2 - len(fracPart)
	if shift >= 0 {
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil)
		numerator.Mul(numerator, scale)
		return Pence(numerator.Int64()), nil
	}

	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-shift)), nil)
	rat := new(big.Rat).SetFrac(numerator, denom)
	return Pence(roundHalfEven(rat)), nil
}

// Add returns the sum of p and other.
func (p Pence) Add(other Pence) Pence {
	return p + other
}

// VAT computes the value-added-tax component of p at the given percentage,
// rounded half-even to the nearest minor unit.
func (p Pence) VAT(percent float64) Pence {
	rate := new(big.Rat).SetFloat64(percent)
	if rate == nil {
		return 0
	}
	amount := new(big.Rat).SetInt64(int64(p))
	vat := new(big.Rat).Mul(amount, rate)
	vat.Quo(vat, big.NewRat(100, 1))
	return Pence(roundHalfEven(vat))
}

// ToMinor returns the raw minor-unit integer value.
func (p Pence) ToMinor() int64 {
	return int64(p)
}

// ToMajor returns the major-unit decimal value as a float64, suitable only
// for display and range comparisons, never for re-storage as authoritative
// state.
func (p Pence) ToMajor() float64 {
	return float64(p) / 100
}

// Format renders p as a display string prefixed with symbol, e.g. "£14.06".
func Format(p Pence, symbol string) string {
	sign := ""
	v := int64(p)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, symbol, v/100, v%100)
}

// roundHalfEven rounds r to the nearest integer, breaking exact ties
// toward the even neighbor (banker's rounding).
func roundHalfEven(r *big.Rat) int64 {
	num := r.Num()
	den := r.Denom()

	q := new(big.Int)
	rem := new(big.Int)
	q.QuoRem(num, den, rem)

	twiceRem := new(big.Int).Mul(rem, big.NewInt(2))
	twiceRem.Abs(twiceRem)

	cmp := twiceRem.Cmp(den)
	qi := q.Int64()

	switch {
	case cmp < 0:
		return qi
	case cmp > 0:
		if r.Sign() >= 0 {
			return qi + 1
		}
		return qi - 1
	default:
		// Exactly half: round to the even neighbor.
		if qi%2 == 0 {
			return qi
		}
		if r.Sign() >= 0 {
			return qi + 1
		}
		return qi - 1
	}
}
