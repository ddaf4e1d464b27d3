package calculator

import (
	"errors"

	"github.com/shopspring/decimal"

	"RialLedger/internal/model"
)

// WindowRange scans the most recent window records and returns the highest
// High and lowest Low. Malformed prices are ignored.
func WindowRange(series model.Series, window int) (high, low decimal.Decimal, err error) {
	if window <= 0 {
		return decimal.Zero, decimal.Zero, errors.New("window must be positive")
	}
	start := len(series) - window
	if start < 0 {
		start = 0
	}
	hasHigh, hasLow := false, false
	for _, r := range series[start:] {
		if !r.High.Malformed && (!hasHigh || r.High.Value.GreaterThan(high)) {
			high, hasHigh = r.High.Value, true
		}
		if !r.Low.Malformed && (!hasLow || r.Low.Value.LessThan(low)) {
			low, hasLow = r.Low.Value, true
		}
	}
	if !hasHigh || !hasLow {
		return decimal.Zero, decimal.Zero, errors.New("no prices in window")
	}
	return high, low, nil
}

// Position returns where current sits within [low, high], clamped to 0..1.
func Position(current, high, low decimal.Decimal) (decimal.Decimal, error) {
	if high.Equal(low) {
		return decimal.NewFromFloat(0.5), nil
	}
	if high.LessThan(low) {
		return decimal.Zero, errors.New("high must be >= low")
	}
	pos := current.Sub(low).Div(high.Sub(low))
	if pos.IsNegative() {
		pos = decimal.Zero
	}
	if pos.GreaterThan(decimal.NewFromInt(1)) {
		pos = decimal.NewFromInt(1)
	}
	return pos, nil
}
