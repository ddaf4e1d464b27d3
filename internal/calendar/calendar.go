// Package calendar converts between the date forms found in the feed, the
// persisted CSV files and legacy snapshots.
package calendar

import (
	"errors"
	"strings"
	"time"
)

// ErrNotParseable is returned when no known layout matches.
var ErrNotParseable = errors.New("date not parseable")

// Layouts accept both zero-padded and unpadded day and month fields.
const (
	FeedLayout      = "2006/1/2" // YYYY/MM/DD
	CanonicalLayout = "2/1/2006" // DD/MM/YYYY
	LegacyLayout    = "1/2/2006" // MM/DD/YYYY
)

var (
	// FeedLayouts is the order used for dates read from the source feed.
	FeedLayouts = []string{FeedLayout}
	// StoredLayouts is the order used for dates read from persisted files.
	StoredLayouts = []string{CanonicalLayout, LegacyLayout}
	// SnapshotLayouts is the order used for the remote snapshot, which
	// historically stores month first.
	SnapshotLayouts = []string{LegacyLayout, CanonicalLayout}
)

// Normalize parses text with each layout in order and returns the first
// successful parse as a UTC calendar day.
func Normalize(text string, layouts ...string) (time.Time, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, ErrNotParseable
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, ErrNotParseable
}

// CanonicalText renders t as DD/MM/YYYY.
func CanonicalText(t time.Time) string {
	return t.Format("02/01/2006")
}

// Canonicalize normalizes text and renders it canonically. When text cannot
// be parsed the trimmed input is returned with ok set to false.
func Canonicalize(text string, layouts ...string) (canonical string, t time.Time, ok bool) {
	t, err := Normalize(text, layouts...)
	if err != nil {
		return strings.TrimSpace(text), time.Time{}, false
	}
	return CanonicalText(t), t, true
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
