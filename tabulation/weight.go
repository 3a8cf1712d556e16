package tabulation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinScale and MaxScale bound decimalPlacesForVoteArithmetic (spec §6).
const (
	MinScale = 1
	MaxScale = 20
)

// Weight is a non-negative fixed-precision number at a configured scale.
// Addition is exact; multiplication and division truncate toward zero at
// the scale, matching §4.3. The zero value is not usable; build one with
// NewWeight or WeightFromInt.
type Weight struct {
	d     decimal.Decimal
	scale int32
}

// NewWeight builds a Weight at scale, truncating d toward zero if needed.
func NewWeight(scale int, d decimal.Decimal) Weight {
	if d.IsNegative() {
		panic("tabulation: negative weight")
	}
	return Weight{d: d.Truncate(int32(scale)), scale: int32(scale)}
}

// WeightFromInt builds an integral Weight at scale.
func WeightFromInt(scale int, n int64) Weight {
	if n < 0 {
		panic("tabulation: negative weight")
	}
	return Weight{d: decimal.NewFromInt(n), scale: int32(scale)}
}

// ParseWeight parses a decimal string at scale.
func ParseWeight(scale int, s string) (Weight, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Weight{}, fmt.Errorf("parse weight %q: %w", s, err)
	}
	if d.IsNegative() {
		return Weight{}, fmt.Errorf("parse weight %q: negative", s)
	}
	return NewWeight(scale, d), nil
}

// Scale returns the configured scale of w.
func (w Weight) Scale() int {
	return int(w.scale)
}

// Decimal exposes the underlying value, for callers (reports) that need
// shopspring/decimal formatting.
func (w Weight) Decimal() decimal.Decimal {
	return w.d
}

// Add is exact: the sum of values already truncated to the same scale never
// needs re-truncation.
func (w Weight) Add(o Weight) Weight {
	return Weight{d: w.d.Add(o.d), scale: w.scale}
}

// Sub is exact for the same reason as Add. The result must stay
// non-negative; callers subtract only threshold-from-tally or
// tally-from-active-weight style differences that the engine guarantees
// are non-negative.
func (w Weight) Sub(o Weight) Weight {
	r := w.d.Sub(o.d)
	if r.IsNegative() {
		panic("tabulation: weight subtraction underflow")
	}
	return Weight{d: r, scale: w.scale}
}

// MulTruncate multiplies and truncates toward zero at scale, the transfer
// fraction application of §4.7.
func (w Weight) MulTruncate(f Weight) Weight {
	return Weight{d: w.d.Mul(f.d).Truncate(w.scale), scale: w.scale}
}

// DivTruncate divides and truncates toward zero at scale. Division is
// carried out at extra internal precision so the final truncation at scale
// reflects the true quotient, not an intermediate rounding artifact.
func (w Weight) DivTruncate(o Weight) Weight {
	if o.d.IsZero() {
		panic("tabulation: division by zero weight")
	}
	extra := w.scale + 10
	q := w.d.DivRound(o.d, extra)
	return Weight{d: q.Truncate(w.scale), scale: w.scale}
}

// Cmp returns -1, 0, or 1 comparing w to o.
func (w Weight) Cmp(o Weight) int {
	return w.d.Cmp(o.d)
}

// GreaterThanOrEqual reports whether w >= o.
func (w Weight) GreaterThanOrEqual(o Weight) bool {
	return w.d.Cmp(o.d) >= 0
}

// GreaterThan reports whether w > o.
func (w Weight) GreaterThan(o Weight) bool {
	return w.d.Cmp(o.d) > 0
}

// IsZero reports whether w is exactly zero.
func (w Weight) IsZero() bool {
	return w.d.IsZero()
}

// String renders w at its configured scale.
func (w Weight) String() string {
	return w.d.StringFixed(w.scale)
}

// MarshalJSON renders w as a JSON number-like string, preserving scale.
func (w Weight) MarshalJSON() ([]byte, error) {
	return []byte(`"` + w.String() + `"`), nil
}

// SumWeights adds a slice of weights. The result is order-independent
// because Add is associative and commutative at a fixed scale (§4.3).
func SumWeights(scale int, ws ...Weight) Weight {
	total := WeightFromInt(scale, 0)
	for _, w := range ws {
		total = total.Add(w)
	}
	return total
}
