package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RialLedger/internal/calendar"
	"RialLedger/internal/model"
)

func newTestStore() *Store {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	return New(logger)
}

func rec(date, closing string) model.Record {
	return model.NewRecord(date, "1404/05/08", "480,000", "478,000", "485,000", closing, calendar.StoredLayouts...)
}

const twoRows = `"Date","Persian_Date","Open","Low","High","Close"
"30/07/2025","1404/05/08","480,000","478,000","485,000","482,000"
"31/07/2025","1404/05/08","480,000","478,000","485,000","487,000"
`

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore()
	series, err := s.Load(filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestSave_ExactFormat(t *testing.T) {
	s := newTestStore()
	path := filepath.Join(t.TempDir(), "data", "rial.csv")

	require.NoError(t, s.Save(path, model.Series{rec("30/07/2025", "482,000"), rec("31/07/2025", "487,000")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, twoRows, string(data))
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	s := newTestStore()
	dir := t.TempDir()
	path := filepath.Join(dir, "rial.csv")
	require.NoError(t, s.Save(path, model.Series{rec("30/07/2025", "482,000")}))
	require.NoError(t, s.Save(path, model.Series{rec("30/07/2025", "482,000"), rec("31/07/2025", "487,000")}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rial.csv", entries[0].Name())
}

func TestLoadSave_RoundTripIsByteIdentical(t *testing.T) {
	s := newTestStore()
	path := filepath.Join(t.TempDir(), "rial.csv")
	require.NoError(t, os.WriteFile(path, []byte(twoRows), 0o644))

	series, err := s.Load(path)
	require.NoError(t, err)
	require.Len(t, series, 2)
	require.NoError(t, s.Save(path, series))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, twoRows, string(data))
}

func TestDecode_LegacyAndExtraColumns(t *testing.T) {
	in := "Persian_Date,Date,Open,Low,High,Close,Volume\n" +
		"1404/04/22,7/13/2025,\"900,000\",\"890,000\",\"910,000\",\"905,000\",1\n" +
		"1404/04/23,14/07/2025,900000,890000,910000,906000,1\n"
	series, err := Decode(strings.NewReader(in), calendar.StoredLayouts...)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "13/07/2025", series[0].Key())
	assert.Equal(t, "14/07/2025", series[1].Key())
	assert.Equal(t, "906,000", series[1].Close.String())
	assert.Equal(t, "1404/04/22", series[0].SecondaryDate)
}

func TestDecode_MissingColumnIsCorrupt(t *testing.T) {
	_, err := Decode(strings.NewReader("Date,Open\n01/01/2025,1\n"), calendar.StoredLayouts...)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoad_CorruptFile(t *testing.T) {
	s := newTestStore()
	path := filepath.Join(t.TempDir(), "rial.csv")
	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o644))
	_, err := s.Load(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoad_StrayQuoteIsCorrupt(t *testing.T) {
	s := newTestStore()
	path := filepath.Join(t.TempDir(), "rial.csv")
	body := "Date,Persian_Date,Open,Low,High,Close\n" +
		"30/07/2025,1404/05/08,480\"000,478000,485000,482000\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := s.Load(path)
	assert.ErrorIs(t, err, ErrCorrupt)

	series, err := DecodeLenient(strings.NewReader(body), calendar.StoredLayouts...)
	require.NoError(t, err)
	assert.Len(t, series, 1)
}

func TestSaveIfChanged(t *testing.T) {
	s := newTestStore()
	path := filepath.Join(t.TempDir(), "toman.csv")
	series := model.Series{rec("30/07/2025", "482,000"), rec("31/07/2025", "487,000")}

	written, err := s.SaveIfChanged(path, series)
	require.NoError(t, err)
	assert.True(t, written, "missing file is created")
	before, err := os.Stat(path)
	require.NoError(t, err)

	written, err = s.SaveIfChanged(path, series)
	require.NoError(t, err)
	assert.False(t, written)
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())

	written, err = s.SaveIfChanged(path, series[:1])
	require.NoError(t, err)
	assert.True(t, written)
	loaded, err := s.Load(path)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestAppend_EmptyIsNoOp(t *testing.T) {
	s := newTestStore()
	path := filepath.Join(t.TempDir(), "rial.csv")
	require.NoError(t, os.WriteFile(path, []byte(twoRows), 0o644))
	before, err := os.Stat(path)
	require.NoError(t, err)

	series, err := s.Append(path, nil)
	require.NoError(t, err)
	assert.Len(t, series, 2)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
	data, _ := os.ReadFile(path)
	assert.Equal(t, twoRows, string(data))
}

func TestAppend_SortsEvenWhenCallerDidNot(t *testing.T) {
	s := newTestStore()
	path := filepath.Join(t.TempDir(), "rial.csv")
	require.NoError(t, s.Save(path, model.Series{rec("30/07/2025", "482,000")}))

	merged, err := s.Append(path, model.Series{rec("02/08/2025", "495,000"), rec("31/07/2025", "487,000")})
	require.NoError(t, err)
	require.Len(t, merged, 3)

	loaded, err := s.Load(path)
	require.NoError(t, err)
	var keys []string
	for _, r := range loaded {
		keys = append(keys, r.Key())
	}
	assert.Equal(t, []string{"30/07/2025", "31/07/2025", "02/08/2025"}, keys)
}

func TestValidate(t *testing.T) {
	assert.Equal(t, model.WarnEmptySeries, Validate(nil)[0].Code)

	clean := model.Series{rec("30/07/2025", "482,000"), rec("31/07/2025", "487,000")}
	assert.Empty(t, Validate(clean))

	bad := model.Series{
		model.NewRecord("31/07/2025", "", "x", "1", "1", "1", calendar.StoredLayouts...),
		rec("30/07/2025", "482,000"),
		rec("30/07/2025", "482,000"),
		rec("someday", "1"),
	}
	codes := map[model.WarningCode]bool{}
	for _, w := range Validate(bad) {
		codes[w.Code] = true
	}
	assert.True(t, codes[model.WarnMissingField])
	assert.True(t, codes[model.WarnDuplicateDate])
	assert.True(t, codes[model.WarnUnordered])
	assert.True(t, codes[model.WarnUndated])
	assert.True(t, codes[model.WarnPriceFormat])
	assert.True(t, codes[model.WarnMalformed])
}
