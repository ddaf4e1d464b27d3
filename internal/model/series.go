package model

import (
	"sort"
	"time"
)

// PriceColumns are the price column names in file order.
var PriceColumns = []string{"Open", "Low", "High", "Close"}

// Columns is the persisted header.
var Columns = []string{"Date", "Persian_Date", "Open", "Low", "High", "Close"}

// Series is an ordered sequence of records keyed by date.
type Series []Record

// Keys returns the set of date keys in the series.
func (s Series) Keys() map[string]struct{} {
	keys := make(map[string]struct{}, len(s))
	for _, r := range s {
		keys[r.Key()] = struct{}{}
	}
	return keys
}

// Cutoff returns the latest parsed date in the series, or the zero time when
// the series has no dated record.
func (s Series) Cutoff() time.Time {
	var last time.Time
	for _, r := range s {
		if r.Dated && r.Date.After(last) {
			last = r.Date
		}
	}
	return last
}

// DateRange returns the first and last date keys in series order.
func (s Series) DateRange() (first, last string) {
	if len(s) == 0 {
		return "", ""
	}
	return s[0].DateText, s[len(s)-1].DateText
}

// Sorted returns a copy ordered ascending by date. The sort is stable;
// undated records follow all dated records in input order.
func (s Series) Sorted() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Dated != b.Dated {
			return a.Dated
		}
		if !a.Dated {
			return false
		}
		return a.Date.Before(b.Date)
	})
	return out
}

// Clone returns a shallow copy of the series.
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Merge appends fresh to base and sorts the result by date. Both inputs are
// left untouched. Dates that still repeat after the merge are reported as
// warnings; the merged series keeps every record.
func Merge(base, fresh Series) (Series, []Warning) {
	combined := make(Series, 0, len(base)+len(fresh))
	combined = append(combined, base...)
	combined = append(combined, fresh...)
	merged := combined.Sorted()
	return merged, DuplicateWarnings(merged)
}

// DuplicateWarnings reports every date key that occurs more than once.
func DuplicateWarnings(s Series) []Warning {
	counts := make(map[string]int, len(s))
	var order []string
	for _, r := range s {
		if counts[r.Key()] == 0 {
			order = append(order, r.Key())
		}
		counts[r.Key()]++
	}
	var warnings []Warning
	for _, k := range order {
		if n := counts[k]; n > 1 {
			warnings = append(warnings, Warnf(WarnDuplicateDate, "date %s occurs %d times", k, n))
		}
	}
	return warnings
}
