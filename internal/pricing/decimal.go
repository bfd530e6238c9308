// Package pricing provides the fixed-precision decimal representation used
// for every price and quantity in the book: no floats on the matching
// hot path.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrPrecisionLoss is returned when a legacy float64 payload cannot be
// represented exactly at a symbol's configured scale.
var ErrPrecisionLoss = errors.New("pricing: value does not round-trip at configured scale")

// Decimal is the book's price/quantity type. It wraps shopspring/decimal so
// that price-ladder keys compare exactly instead of drifting under
// floating-point arithmetic.
type Decimal = decimal.Decimal

// Scale is the number of digits after the decimal point a symbol's prices
// and quantities are quoted at, e.g. 2 for most USDT pairs.
type Scale int32

// Zero is the canonical zero value, exported so callers don't need to import
// shopspring/decimal directly.
var Zero = decimal.Zero

// FromFloat64 converts a legacy wire float into a Decimal rounded to scale,
// rejecting any value that does not round-trip exactly: payloads that
// round on conversion must be rejected rather than silently truncated.
func FromFloat64(v float64, scale Scale) (Decimal, error) {
	d := decimal.NewFromFloat(v)
	rounded := d.Round(int32(scale))
	if !rounded.Equal(d) {
		return Decimal{}, fmt.Errorf("%w: %v at scale %d", ErrPrecisionLoss, v, scale)
	}
	return rounded, nil
}

// Key is a total-ordering wrapper around Decimal suitable as a btree.BTreeG
// comparator key for price levels. Decimal itself has no natural zero value
// usable as a map/btree key sentinel, so levels are keyed by Key wrapping
// the canonical price.
type Key struct {
	Value Decimal
}

// NewKey wraps d for use as a price-level lookup key.
func NewKey(d Decimal) Key {
	return Key{Value: d}
}

// LessAsc orders keys ascending, for the ask ladder.
func LessAsc(a, b Key) bool {
	return a.Value.LessThan(b.Value)
}

// LessDesc orders keys descending, for the bid ladder.
func LessDesc(a, b Key) bool {
	return a.Value.GreaterThan(b.Value)
}
