package calculator

import (
	"github.com/shopspring/decimal"

	"RialLedger/internal/model"
)

// MarketSnapshot summarizes the tail of a series for run reports.
type MarketSnapshot struct {
	Date       string
	Close      model.Price
	Change     decimal.Decimal // against the previous close
	ChangePct  decimal.Decimal
	HasChange  bool
	MA7        decimal.Decimal
	HasMA7     bool
	High30     decimal.Decimal
	Low30      decimal.Decimal
	Position30 decimal.Decimal
	HasRange   bool
}

// Summarize describes the latest dated, well-formed close of series. ok is
// false when there is none.
func Summarize(series model.Series) (snap MarketSnapshot, ok bool) {
	idx := -1
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].Dated && !series[i].Close.Malformed {
			idx = i
			break
		}
	}
	if idx < 0 {
		return snap, false
	}
	last := series[idx]
	snap.Date = last.Key()
	snap.Close = last.Close

	closes := Closes(series[:idx+1])
	if n := len(closes); n >= 2 {
		prev := closes[n-2]
		snap.Change = closes[n-1].Sub(prev)
		if !prev.IsZero() {
			snap.ChangePct = snap.Change.Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
		}
		snap.HasChange = true
	}
	if ma, err := SMA(closes, 7); err == nil {
		snap.MA7 = ma.Round(0)
		snap.HasMA7 = true
	}
	if high, low, err := WindowRange(series[:idx+1], 30); err == nil {
		snap.High30, snap.Low30 = high, low
		if pos, err := Position(last.Close.Value, high, low); err == nil {
			snap.Position30 = pos.Round(2)
			snap.HasRange = true
		}
	}
	return snap, true
}
