// Package store persists series as quoted CSV files.
package store

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"RialLedger/internal/calendar"
	"RialLedger/internal/model"
)

// ErrCorrupt is returned when a persisted file cannot be interpreted.
var ErrCorrupt = errors.New("corrupt series file")

// Store loads and writes series files.
type Store struct {
	Logger *logrus.Logger
}

// New creates a Store. A nil logger falls back to the standard logrus logger.
func New(logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{Logger: logger}
}

// Load reads the series at path. A missing file yields an empty series.
func (s *Store) Load(path string) (model.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.Logger.WithField("path", path).Info("series file absent, starting empty")
			return model.Series{}, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	series, err := Decode(f, calendar.StoredLayouts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	s.Logger.WithFields(logrus.Fields{"path": path, "records": len(series)}).Debug("series loaded")
	return series, nil
}

// Decode parses CSV with a header row. Columns are matched by name and extra
// columns are ignored. Dates are normalized with the given layouts. Quoting
// is strict: a stray quote makes the input ErrCorrupt.
func Decode(r io.Reader, layouts ...string) (model.Series, error) {
	return decode(r, false, layouts...)
}

// DecodeLenient is Decode with bare quotes tolerated inside fields. It is
// meant for third-party downloads, not for files this package wrote.
func DecodeLenient(r io.Reader, layouts ...string) (model.Series, error) {
	return decode(r, true, layouts...)
}

func decode(r io.Reader, lazy bool, layouts ...string) (model.Series, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = lazy

	header, err := cr.Read()
	if err == io.EOF {
		return model.Series{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrCorrupt, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	cols := make([]int, len(model.Columns))
	for i, name := range model.Columns {
		idx, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrCorrupt, name)
		}
		cols[i] = idx
	}

	var series model.Series
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, line, err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		field := func(i int) string {
			if cols[i] < len(row) {
				return row[cols[i]]
			}
			return ""
		}
		series = append(series, model.NewRecord(
			field(0), field(1), field(2), field(3), field(4), field(5), layouts...,
		))
	}
	if series == nil {
		series = model.Series{}
	}
	return series, nil
}

// Encode writes the header and every record with all fields quoted.
func Encode(w io.Writer, series model.Series) error {
	bw := bufio.NewWriter(w)
	if err := writeQuoted(bw, model.Columns); err != nil {
		return err
	}
	for _, r := range series {
		if err := writeQuoted(bw, r.Fields()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeQuoted writes one line quoting every field unconditionally, which
// encoding/csv does not support.
func writeQuoted(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(f, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

// Save atomically replaces the file at path with series. The data is
// written to a temporary file in the same directory and renamed over the
// target, so readers never observe a partial file.
func (s *Store) Save(path string, series model.Series) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = Encode(tmp, series); err != nil {
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	s.Logger.WithFields(logrus.Fields{"path": path, "records": len(series)}).Info("series saved")
	return nil
}

// SaveIfChanged writes series to path unless the file already holds exactly
// the bytes Save would produce. It reports whether a write happened.
func (s *Store) SaveIfChanged(path string, series model.Series) (bool, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, series); err != nil {
		return false, fmt.Errorf("encode %s: %w", path, err)
	}
	current, err := os.ReadFile(path)
	if err == nil && bytes.Equal(current, buf.Bytes()) {
		s.Logger.WithField("path", path).Info("series unchanged")
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := s.Save(path, series); err != nil {
		return false, err
	}
	return true, nil
}

// Append merges records into the file at path and returns the persisted
// series. An empty batch is a no-op and leaves the file untouched.
func (s *Store) Append(path string, records model.Series) (model.Series, error) {
	current, err := s.Load(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		s.Logger.WithField("path", path).Info("no new records to append")
		return current, nil
	}
	merged, warnings := model.Merge(current, records)
	for _, w := range warnings {
		s.Logger.WithField("path", path).Warn(w.String())
	}
	if err := s.Save(path, merged); err != nil {
		return nil, err
	}
	s.Logger.WithFields(logrus.Fields{
		"path":  path,
		"added": len(records),
		"total": len(merged),
	}).Info("records appended")
	return merged, nil
}
