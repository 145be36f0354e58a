/*
hours.go - Quantized time amount

PURPOSE:
  Hours is the value type for logged work time. All arithmetic uses
  decimals so 0.1-style float drift can never corrupt a daily total.

QUANTIZATION INVARIANT:
  Valid hours are positive multiples of 0.25 no greater than the daily
  cap. Construction is the only door: an Hours value that exists is a
  valid one.

WHY DECIMAL:
  24.00 must mean exactly 24.00. Summing float64 quarter hours across
  projects can land at 23.999999999999996 and let a 25th hour through.

SEE ALSO:
  - service.go: Applies the cross-project daily cap
*/
package worklog

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DailyCapHours is the cross-project maximum for one member-date.
const DailyCapHours = 24.0

// QuantumHours is the granularity entries are logged in.
const QuantumHours = 0.25

var dailyCap = decimal.NewFromFloat(DailyCapHours)

// Hours is a validated, quantized amount of work time.
type Hours struct {
	value decimal.Decimal
}

// NewHours validates and quantizes a raw hour amount.
func NewHours(v float64) (Hours, error) {
	return HoursFromDecimal(decimal.NewFromFloat(v))
}

// HoursFromDecimal validates an exact decimal amount.
func HoursFromDecimal(d decimal.Decimal) (Hours, error) {
	if d.LessThanOrEqual(decimal.Zero) {
		return Hours{}, &InvalidHoursError{Value: d.String(), Reason: "must be positive"}
	}
	if d.GreaterThan(dailyCap) {
		return Hours{}, &InvalidHoursError{Value: d.String(), Reason: fmt.Sprintf("exceeds %.0f-hour day", DailyCapHours)}
	}
	// Multiplying by 4 is exact; dividing by 0.25 is not guaranteed to be.
	if !d.Mul(decimal.NewFromInt(4)).IsInteger() {
		return Hours{}, &InvalidHoursError{Value: d.String(), Reason: fmt.Sprintf("not a multiple of %.2f", QuantumHours)}
	}
	return Hours{value: d}, nil
}

// MustHours builds Hours or panics. Test helper.
func MustHours(v float64) Hours {
	h, err := NewHours(v)
	if err != nil {
		panic(err)
	}
	return h
}

// ZeroHours is the additive identity for totals. Not a valid entry
// amount; only sums may be zero.
func ZeroHours() Hours {
	return Hours{value: decimal.Zero}
}

// SumHours folds a total from parts.
func SumHours(parts ...Hours) Hours {
	total := decimal.Zero
	for _, p := range parts {
		total = total.Add(p.value)
	}
	return Hours{value: total}
}

// Add returns h + other. Totals may exceed an entry's bounds; callers
// check them with ExceedsDailyCap, not at construction.
func (h Hours) Add(other Hours) Hours {
	return Hours{value: h.value.Add(other.value)}
}

// ExceedsDailyCap reports whether a total is over the 24-hour day.
func (h Hours) ExceedsDailyCap() bool {
	return h.value.GreaterThan(dailyCap)
}

func (h Hours) Equal(other Hours) bool {
	return h.value.Equal(other.value)
}

func (h Hours) GreaterThan(other Hours) bool {
	return h.value.GreaterThan(other.value)
}

func (h Hours) IsZero() bool {
	return h.value.IsZero()
}

// Decimal exposes the exact value for persistence.
func (h Hours) Decimal() decimal.Decimal {
	return h.value
}

// Float64 renders for DTOs. Quarter steps are exact in binary, so this
// is lossless for valid values.
func (h Hours) Float64() float64 {
	f, _ := h.value.Float64()
	return f
}

func (h Hours) String() string {
	return h.value.String()
}

// MarshalJSON encodes the exact decimal string.
func (h Hours) MarshalJSON() ([]byte, error) {
	return h.value.MarshalJSON()
}

// UnmarshalJSON decodes without re-validating: stored events and
// snapshots were validated when written, and totals (which may be zero)
// round-trip through here too.
func (h *Hours) UnmarshalJSON(data []byte) error {
	return h.value.UnmarshalJSON(data)
}
