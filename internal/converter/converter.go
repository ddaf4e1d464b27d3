// Package converter derives the Toman series from the Rial series.
package converter

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"RialLedger/internal/model"
)

// ErrInvalidRate is returned for a non-positive conversion rate.
var ErrInvalidRate = errors.New("conversion rate must be positive")

// DefaultRate converts Rial to Toman.
const DefaultRate = 10

// Converter divides every price by Rate and rounds half to even at Places
// fractional digits. A non-positive Rate, as in the zero value, means
// DefaultRate.
type Converter struct {
	Rate   int64
	Places int32
}

// New validates rate and places.
func New(rate int64, places int32) (Converter, error) {
	if rate <= 0 {
		return Converter{}, fmt.Errorf("%w: %d", ErrInvalidRate, rate)
	}
	if places < 0 {
		places = 0
	}
	return Converter{Rate: rate, Places: places}, nil
}

// ConvertPrice converts one price. Malformed prices pass through unchanged
// and stay flagged.
func (c Converter) ConvertPrice(p model.Price) model.Price {
	if p.Malformed {
		return p
	}
	rate := c.Rate
	if rate <= 0 {
		rate = DefaultRate
	}
	v := p.Value.Div(decimal.NewFromInt(rate)).RoundBank(c.Places)
	return model.NewPrice(v, c.Places)
}

// Convert converts the four prices of r. Dates are shared with the source.
func (c Converter) Convert(r model.Record) model.Record {
	src := r.Prices()
	var out [4]model.Price
	for i, p := range src {
		out[i] = c.ConvertPrice(p)
	}
	return r.WithPrices(out)
}

// ConvertSeries converts every record of s into a new series.
func (c Converter) ConvertSeries(s model.Series) model.Series {
	out := make(model.Series, len(s))
	for i, r := range s {
		out[i] = c.Convert(r)
	}
	return out
}
