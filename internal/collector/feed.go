package collector

import (
	"context"
	"errors"

	"RialLedger/internal/model"
)

// ErrClosed is returned by a feed whose session was released.
var ErrClosed = errors.New("feed session closed")

// Feed is a paginated source of raw observations, newest first.
type Feed interface {
	Name() string
	// FetchPage returns the rows of page (1-based) and whether more pages
	// follow it.
	FetchPage(ctx context.Context, page int) ([]model.RawRow, bool, error)
	// AdvanceToNextPage navigates to page. False means the page could not be
	// reached.
	AdvanceToNextPage(ctx context.Context, page int) bool
	// Close releases the session. It is safe to call more than once.
	Close() error
}

// SnapshotLoader produces the initial series when no local file exists.
type SnapshotLoader interface {
	Name() string
	LoadInitialSeries(ctx context.Context) (model.Series, error)
}
