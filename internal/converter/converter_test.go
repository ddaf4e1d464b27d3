package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RialLedger/internal/calendar"
	"RialLedger/internal/model"
)

func rialRecord(date, price string) model.Record {
	return model.NewRecord(date, "1404/05/08", price, price, price, price, calendar.StoredLayouts...)
}

func TestNew_RejectsInvalidRate(t *testing.T) {
	_, err := New(0, 0)
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = New(-10, 0)
	assert.ErrorIs(t, err, ErrInvalidRate)

	c, err := New(10, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(0), c.Places)
}

func TestConvert_ZeroValueUsesDefaultRate(t *testing.T) {
	var c Converter
	out := c.Convert(rialRecord("30/07/2025", "500,000"))
	assert.Equal(t, "50,000", out.Close.String())

	c = Converter{Rate: -3}
	assert.Equal(t, "50,000", c.ConvertPrice(model.ParsePrice("500,000")).String())
}

func TestConvert_FiveHundredThousand(t *testing.T) {
	c, err := New(DefaultRate, 0)
	require.NoError(t, err)

	out := c.Convert(rialRecord("30/07/2025", "500,000"))
	assert.Equal(t, "50,000", out.Close.String())
	assert.Equal(t, "50,000", out.Open.String())
	assert.Equal(t, "30/07/2025", out.Key())
	assert.Equal(t, "1404/05/08", out.SecondaryDate)
}

func TestConvert_RoundsHalfToEven(t *testing.T) {
	c, _ := New(10, 0)
	tests := map[string]string{
		"5":     "0",
		"15":    "2",
		"25":    "2",
		"35":    "4",
		"14":    "1",
		"16":    "2",
		"4,825": "482",
		"4,835": "484",
	}
	for in, want := range tests {
		assert.Equal(t, want, c.ConvertPrice(model.ParsePrice(in)).String(), in)
	}
}

func TestConvert_KeepsPlaces(t *testing.T) {
	c, _ := New(10, 1)
	assert.Equal(t, "12,345.6", c.ConvertPrice(model.ParsePrice("123,456")).String())
}

func TestConvert_MalformedPassesThrough(t *testing.T) {
	c, _ := New(10, 0)
	r := model.NewRecord("30/07/2025", "", "n/a", "480,000", "480,000", "480,000", calendar.StoredLayouts...)
	out := c.Convert(r)
	assert.True(t, out.Open.Malformed)
	assert.Equal(t, "n/a", out.Open.String())
	assert.Equal(t, "48,000", out.Low.String())
}

func TestConvert_Deterministic(t *testing.T) {
	c, _ := New(10, 0)
	r := rialRecord("30/07/2025", "482,345")
	a, b := c.Convert(r), c.Convert(r)
	assert.Equal(t, a.Fields(), b.Fields())
	assert.Equal(t, "482,345", r.Close.String(), "source record is not modified")
}

func TestConvertSeries_FreshAppendScenario(t *testing.T) {
	c, _ := New(10, 0)
	series := model.Series{rialRecord("30/07/2025", "482,000"), rialRecord("31/07/2025", "487,000")}
	out := c.ConvertSeries(series)
	require.Len(t, out, 2)
	assert.Equal(t, "48,200", out[0].Close.String())
	assert.Equal(t, "48,700", out[1].Close.String())
	assert.Equal(t, series[0].Key(), out[0].Key())
}
