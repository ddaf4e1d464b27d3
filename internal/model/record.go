package model

import (
	"strings"
	"time"

	"RialLedger/internal/calendar"
)

// RawRow is one observation as presented by the source feed.
type RawRow struct {
	Open          string
	Low           string
	High          string
	Close         string
	ChangeAmount  string
	ChangePercent string
	Date          string // feed-native YYYY/MM/DD
	SecondaryDate string // Persian calendar, passed through verbatim
}

// RawRowFromCells maps positional table cells to a RawRow. Rows with fewer
// than eight cells are rejected.
func RawRowFromCells(cells []string) (RawRow, bool) {
	if len(cells) < 8 {
		return RawRow{}, false
	}
	c := make([]string, 8)
	for i := range c {
		c[i] = strings.TrimSpace(cells[i])
	}
	return RawRow{
		Open: c[0], Low: c[1], High: c[2], Close: c[3],
		ChangeAmount: c[4], ChangePercent: c[5],
		Date: c[6], SecondaryDate: c[7],
	}, true
}

// Record is a canonical row of a series.
type Record struct {
	Date          time.Time // zero when DateText could not be parsed
	DateText      string
	Dated         bool
	SecondaryDate string
	Open          Price
	Low           Price
	High          Price
	Close         Price
}

// NewRecord builds a record from textual fields, normalizing the date with
// the given layouts.
func NewRecord(date, secondary, open, low, high, closing string, layouts ...string) Record {
	text, d, ok := calendar.Canonicalize(date, layouts...)
	return Record{
		Date:          d,
		DateText:      text,
		Dated:         ok,
		SecondaryDate: strings.TrimSpace(secondary),
		Open:          ParsePrice(open),
		Low:           ParsePrice(low),
		High:          ParsePrice(high),
		Close:         ParsePrice(closing),
	}
}

// FromRawRow normalizes a feed observation.
func FromRawRow(r RawRow) Record {
	return NewRecord(r.Date, r.SecondaryDate, r.Open, r.Low, r.High, r.Close, calendar.FeedLayouts...)
}

// Key identifies a record within a series.
func (r Record) Key() string { return r.DateText }

// Prices returns the four price fields in file order.
func (r Record) Prices() [4]Price {
	return [4]Price{r.Open, r.Low, r.High, r.Close}
}

// WithPrices returns a copy of r carrying the given prices in file order.
func (r Record) WithPrices(p [4]Price) Record {
	r.Open, r.Low, r.High, r.Close = p[0], p[1], p[2], p[3]
	return r
}

// HasMalformedPrice reports whether any price field failed to parse.
func (r Record) HasMalformedPrice() bool {
	for _, p := range r.Prices() {
		if p.Malformed {
			return true
		}
	}
	return false
}

// Fields renders the record in persisted column order.
func (r Record) Fields() []string {
	return []string{
		r.DateText, r.SecondaryDate,
		r.Open.String(), r.Low.String(), r.High.String(), r.Close.String(),
	}
}
