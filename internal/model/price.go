package model

import (
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Price is a decimal price together with the display precision of the token
// it was parsed from. A malformed price keeps its original token.
type Price struct {
	Value     decimal.Decimal
	Places    int32
	Raw       string
	Malformed bool
}

// CleanPriceToken strips grouping separators, quotes and surrounding space.
func CleanPriceToken(text string) string {
	s := strings.TrimSpace(text)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "\"", "")
	s = strings.ReplaceAll(s, "'", "")
	return strings.TrimSpace(s)
}

// ParsePrice parses a feed or file price token. Tokens that are not a
// non-negative decimal are returned flagged as malformed.
func ParsePrice(text string) Price {
	raw := strings.TrimSpace(text)
	clean := CleanPriceToken(text)
	d, err := decimal.NewFromString(clean)
	if err != nil || clean == "" || d.IsNegative() {
		return Price{Raw: raw, Malformed: true}
	}
	var places int32
	if exp := d.Exponent(); exp < 0 {
		places = -exp
	}
	return Price{Value: d, Places: places, Raw: raw}
}

// NewPrice builds a well-formed price rendered with the given precision.
func NewPrice(d decimal.Decimal, places int32) Price {
	p := Price{Value: d, Places: places}
	p.Raw = p.String()
	return p
}

// String renders the price with thousands separators, or the original token
// when the price is malformed.
func (p Price) String() string {
	if p.Malformed {
		return p.Raw
	}
	return FormatGrouped(p.Value, p.Places)
}

// Equal reports whether two prices render identically.
func (p Price) Equal(o Price) bool {
	return p.Malformed == o.Malformed && p.String() == o.String()
}

// FormatGrouped renders d with the given number of fractional digits and
// comma-grouped integer digits.
func FormatGrouped(d decimal.Decimal, places int32) string {
	fixed := d.StringFixed(places)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	intPart, frac, hasFrac := strings.Cut(fixed, ".")
	n, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return sign + fixed
	}
	out := sign + humanize.BigComma(n)
	if hasFrac {
		out += "." + frac
	}
	return out
}
