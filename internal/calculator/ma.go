package calculator

import (
	"errors"

	"github.com/shopspring/decimal"

	"RialLedger/internal/model"
)

// SMA computes the simple moving average of the last period values.
func SMA(values []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 {
		return decimal.Zero, errors.New("period must be positive")
	}
	if len(values) < period {
		return decimal.Zero, errors.New("not enough data for SMA calculation")
	}
	sum := decimal.Zero
	for _, v := range values[len(values)-period:] {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(period))), nil
}

// Closes extracts the well-formed closing prices of dated records, oldest
// first.
func Closes(series model.Series) []decimal.Decimal {
	closes := make([]decimal.Decimal, 0, len(series))
	for _, r := range series {
		if !r.Dated || r.Close.Malformed {
			continue
		}
		closes = append(closes, r.Close.Value)
	}
	return closes
}
