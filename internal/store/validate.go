package store

import (
	"RialLedger/internal/model"
)

// Validate checks a series for data-quality problems. Every finding is a
// warning; nothing here fails a run.
func Validate(series model.Series) []model.Warning {
	if len(series) == 0 {
		return []model.Warning{model.Warnf(model.WarnEmptySeries, "series is empty")}
	}

	var warnings []model.Warning
	missing := 0
	for _, r := range series {
		for _, f := range r.Fields() {
			if f == "" {
				missing++
				break
			}
		}
	}
	if missing > 0 {
		warnings = append(warnings, model.Warnf(model.WarnMissingField, "%d records have empty fields", missing))
	}

	warnings = append(warnings, model.DuplicateWarnings(series)...)

	var prev *model.Record
	undated, unordered := 0, 0
	for i := range series {
		r := &series[i]
		if !r.Dated {
			undated++
			continue
		}
		if prev != nil && r.Date.Before(prev.Date) {
			unordered++
		}
		prev = r
	}
	if undated > 0 {
		warnings = append(warnings, model.Warnf(model.WarnUndated, "%d records have unparseable dates", undated))
	}
	if unordered > 0 {
		warnings = append(warnings, model.Warnf(model.WarnUnordered, "%d records are out of date order", unordered))
	}

	first := series[0].Prices()
	for i, col := range model.PriceColumns {
		p := first[i]
		if p.Malformed || !model.ParsePrice(p.String()).Equal(p) {
			warnings = append(warnings, model.Warnf(model.WarnPriceFormat, "price column %s may have formatting issues", col))
		}
	}

	malformed := 0
	for _, r := range series {
		if r.HasMalformedPrice() {
			malformed++
		}
	}
	if malformed > 0 {
		warnings = append(warnings, model.Warnf(model.WarnMalformed, "%d records carry malformed prices", malformed))
	}
	return warnings
}
