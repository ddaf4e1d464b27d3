package model

import (
	"testing"
	"time"

	"RialLedger/internal/calendar"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRowFromCells(t *testing.T) {
	_, ok := RawRowFromCells([]string{"1", "2", "3"})
	assert.False(t, ok)

	row, ok := RawRowFromCells([]string{" 505,000", "500,000", "510,000", "507,000", "2,000", "0.4%", "2025/08/02 ", "1404/05/11", "extra"})
	require.True(t, ok)
	assert.Equal(t, "505,000", row.Open)
	assert.Equal(t, "2025/08/02", row.Date)
	assert.Equal(t, "1404/05/11", row.SecondaryDate)
}

func TestFromRawRow(t *testing.T) {
	rec := FromRawRow(RawRow{
		Open: "505,000", Low: "500,000", High: "510,000", Close: "507,000",
		Date: "2025/08/02", SecondaryDate: "1404/05/11",
	})
	assert.True(t, rec.Dated)
	assert.Equal(t, "02/08/2025", rec.Key())
	assert.Equal(t, time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, []string{"02/08/2025", "1404/05/11", "505,000", "500,000", "510,000", "507,000"}, rec.Fields())
	assert.False(t, rec.HasMalformedPrice())
}

func TestFromRawRow_FlagsButKeeps(t *testing.T) {
	rec := FromRawRow(RawRow{
		Open: "-", Low: "500,000", High: "510,000", Close: "507,000",
		Date: "not a date", SecondaryDate: "1404/05/11",
	})
	assert.False(t, rec.Dated)
	assert.Equal(t, "not a date", rec.Key())
	assert.True(t, rec.HasMalformedPrice())
	assert.Equal(t, "-", rec.Open.String())
}

func TestSeries_SortedAndCutoff(t *testing.T) {
	mk := func(d string) Record {
		return NewRecord(d, "", "1", "1", "1", "1", calendar.StoredLayouts...)
	}
	s := Series{mk("03/01/2025"), mk("garbage"), mk("01/01/2025"), mk("02/01/2025")}

	sorted := s.Sorted()
	keys := make([]string, len(sorted))
	for i, r := range sorted {
		keys[i] = r.Key()
	}
	assert.Equal(t, []string{"01/01/2025", "02/01/2025", "03/01/2025", "garbage"}, keys)
	assert.Equal(t, "03/01/2025", s[0].Key(), "input must not be reordered")

	assert.Equal(t, time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), s.Cutoff())
	assert.True(t, Series{}.Cutoff().IsZero())

	first, last := sorted.DateRange()
	assert.Equal(t, "01/01/2025", first)
	assert.Equal(t, "garbage", last)
}

func TestMerge(t *testing.T) {
	mk := func(d, closing string) Record {
		return NewRecord(d, "", "1", "1", "1", closing, calendar.StoredLayouts...)
	}
	base := Series{mk("30/07/2025", "482,000")}
	fresh := Series{mk("01/08/2025", "490,000"), mk("31/07/2025", "487,000")}

	merged, warnings := Merge(base, fresh)
	assert.Empty(t, warnings)
	require.Len(t, merged, 3)
	assert.Equal(t, "30/07/2025", merged[0].Key())
	assert.Equal(t, "31/07/2025", merged[1].Key())
	assert.Equal(t, "01/08/2025", merged[2].Key())
	assert.Len(t, base, 1)
	assert.Equal(t, "01/08/2025", fresh[0].Key())
}

func TestMerge_DuplicatesAreWarnedAndStable(t *testing.T) {
	mk := func(d, closing string) Record {
		return NewRecord(d, "", "1", "1", "1", closing, calendar.StoredLayouts...)
	}
	merged, warnings := Merge(Series{mk("30/07/2025", "1")}, Series{mk("30/07/2025", "2")})
	require.Len(t, merged, 2)
	assert.Equal(t, "1", merged[0].Close.String())
	assert.Equal(t, "2", merged[1].Close.String())
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnDuplicateDate, warnings[0].Code)
}
