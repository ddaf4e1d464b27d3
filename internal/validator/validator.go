// Package validator classifies raw feed tokens.
package validator

import (
	"time"

	"RialLedger/internal/calendar"
	"RialLedger/internal/model"
)

// IsWellFormedPrice reports whether text, once grouping separators and quotes
// are stripped, is a non-negative decimal number.
func IsWellFormedPrice(text string) bool {
	return !model.ParsePrice(text).Malformed
}

// IsAtOrBeforeCutoff reports whether a feed-native date is on or before the
// cutoff day. Unparseable dates return false so a malformed row never halts
// ingestion. A zero cutoff means there is no cutoff.
func IsAtOrBeforeCutoff(feedDate string, cutoff time.Time) bool {
	if cutoff.IsZero() {
		return false
	}
	d, err := calendar.Normalize(feedDate, calendar.FeedLayouts...)
	if err != nil {
		return false
	}
	return !d.After(calendar.Day(cutoff))
}

// IsFuture reports whether a feed-native date falls after the calendar day
// of now. Unparseable dates are not considered future.
func IsFuture(feedDate string, now time.Time) bool {
	d, err := calendar.Normalize(feedDate, calendar.FeedLayouts...)
	if err != nil {
		return false
	}
	return d.After(calendar.Day(now))
}
