package collector

import (
	"context"
	"fmt"

	"RialLedger/internal/model"
)

// MockFeed serves scripted pages for development and testing.
type MockFeed struct {
	Pages [][]model.RawRow
	// FetchFailures and AdvanceFailures make the first N calls for a page
	// fail before succeeding.
	FetchFailures   map[int]int
	AdvanceFailures map[int]int

	FetchCalls   []int
	AdvanceCalls []int
	Closed       bool
}

func (m *MockFeed) Name() string { return "mock" }

func (m *MockFeed) FetchPage(_ context.Context, page int) ([]model.RawRow, bool, error) {
	if m.Closed {
		return nil, false, ErrClosed
	}
	m.FetchCalls = append(m.FetchCalls, page)
	if m.FetchFailures[page] > 0 {
		m.FetchFailures[page]--
		return nil, false, fmt.Errorf("mock: timeout waiting for table on page %d", page)
	}
	if page < 1 || page > len(m.Pages) {
		return nil, false, nil
	}
	return m.Pages[page-1], page < len(m.Pages), nil
}

func (m *MockFeed) AdvanceToNextPage(_ context.Context, page int) bool {
	if m.Closed {
		return false
	}
	m.AdvanceCalls = append(m.AdvanceCalls, page)
	if m.AdvanceFailures[page] > 0 {
		m.AdvanceFailures[page]--
		return false
	}
	return page >= 1 && page <= len(m.Pages)
}

func (m *MockFeed) Close() error {
	m.Closed = true
	return nil
}

// MockSnapshot returns a fixed series.
type MockSnapshot struct {
	Series model.Series
	Err    error
}

func (m *MockSnapshot) Name() string { return "mock-snapshot" }

func (m *MockSnapshot) LoadInitialSeries(context.Context) (model.Series, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Series.Clone(), nil
}

// FeedRow builds a raw row with the same value in every price column except
// Close, for fixtures.
func FeedRow(date, persian, price, closing string) model.RawRow {
	return model.RawRow{
		Open: price, Low: price, High: price, Close: closing,
		ChangeAmount: "0", ChangePercent: "0%",
		Date: date, SecondaryDate: persian,
	}
}
