// Package reconcile turns pages of raw observations into records that are
// new relative to an existing series and merges them into it.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"RialLedger/internal/calendar"
	"RialLedger/internal/collector"
	"RialLedger/internal/model"
	"RialLedger/internal/retry"
	"RialLedger/internal/validator"
)

// StopReason explains why pagination ended.
type StopReason string

const (
	StopCutoff        StopReason = "cutoff_reached"
	StopExhausted     StopReason = "feed_exhausted"
	StopRowLimit      StopReason = "row_limit"
	StopPageBudget    StopReason = "page_budget"
	StopFailureBudget StopReason = "failure_budget"
	StopCancelled     StopReason = "cancelled"
)

// Soft reports whether pagination ended before the feed was fully consumed
// down to the cutoff.
func (r StopReason) Soft() bool {
	return r == StopPageBudget || r == StopFailureBudget || r == StopRowLimit
}

var errNavigation = errors.New("navigation failed")

// Defaults.
const (
	DefaultMaxPages    = 200
	DefaultPageTimeout = 10 * time.Second
	DefaultFailures    = 3
	DefaultRetryDelay  = 5 * time.Second
)

// Engine drives a feed page by page and reconciles the result.
type Engine struct {
	MaxPages    int
	RowLimit    int // stop requesting pages once this many rows are held; 0 means unlimited
	PageTimeout time.Duration
	Retry       retry.Policy
	Now         func() time.Time
	Logger      *logrus.Logger
}

// NewEngine returns an engine with default budgets.
func NewEngine(logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		MaxPages:    DefaultMaxPages,
		PageTimeout: DefaultPageTimeout,
		Retry:       retry.Fixed(DefaultFailures, DefaultRetryDelay),
		Now:         time.Now,
		Logger:      logger,
	}
}

// Batch is what one pagination pass collected.
type Batch struct {
	Records    model.Series
	Pages      int // pages successfully fetched
	Failures   int // failed fetch or navigation attempts
	StopReason StopReason
	Warnings   []model.Warning
}

// Result is the outcome of a reconciliation.
type Result struct {
	Batch
	New     model.Series
	Merged  model.Series
	Cutoff  time.Time
	Dropped int // fetched records whose date was already known
}

// Collect reads pages newest-first until a row at or before cutoff is seen,
// the feed runs out, or a budget is exhausted. Budget and failure stops are
// soft: everything collected so far is returned, and when a cutoff was given
// a gap warning records that older days may still be missing.
func (e *Engine) Collect(ctx context.Context, feed collector.Feed, cutoff time.Time) *Batch {
	b := e.paginate(ctx, feed, cutoff)
	if b.StopReason.Soft() && !cutoff.IsZero() {
		b.Warnings = append(b.Warnings, gapWarning(b, cutoff))
	}
	return b
}

func gapWarning(b *Batch, cutoff time.Time) model.Warning {
	oldest := "the newest page"
	for i := len(b.Records) - 1; i >= 0; i-- {
		if b.Records[i].Dated {
			oldest = b.Records[i].Key()
			break
		}
	}
	return model.Warnf(model.WarnGap,
		"pagination stopped (%s) before reaching %s; days between it and %s may be missing",
		b.StopReason, calendar.CanonicalText(cutoff), oldest)
}

func (e *Engine) paginate(ctx context.Context, feed collector.Feed, cutoff time.Time) *Batch {
	b := &Batch{Records: model.Series{}}
	log := e.Logger.WithField("feed", feed.Name())
	maxPages := e.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	for page := 1; ; page++ {
		if page > maxPages {
			b.StopReason = StopPageBudget
			log.WithField("max_pages", maxPages).Warn("page budget exhausted, stopping with partial results")
			return b
		}

		rows, hasMore, err := e.loadPage(ctx, feed, page, b)
		if err != nil {
			if ctx.Err() != nil {
				b.StopReason = StopCancelled
				log.WithField("page", page).Warn("collection cancelled")
				return b
			}
			b.StopReason = StopFailureBudget
			log.WithField("page", page).WithError(err).Warn("too many consecutive page failures, stopping with partial results")
			return b
		}
		b.Pages++

		accepted, stop := e.consume(rows, cutoff, b)
		log.WithFields(logrus.Fields{"page": page, "rows": len(rows), "accepted": accepted}).Info("page scraped")
		if stop != "" {
			b.StopReason = stop
			if stop == StopCutoff {
				log.WithField("page", page).Info("reached existing data, stopping")
			}
			return b
		}
		if !hasMore {
			b.StopReason = StopExhausted
			return b
		}
	}
}

// loadPage navigates to and fetches one page under the retry policy. Every
// attempt has its own timeout.
func (e *Engine) loadPage(ctx context.Context, feed collector.Feed, page int, b *Batch) ([]model.RawRow, bool, error) {
	var (
		rows    []model.RawRow
		hasMore bool
	)
	op := func(ctx context.Context) error {
		pctx, cancel := e.pageContext(ctx)
		defer cancel()
		if page > 1 && !feed.AdvanceToNextPage(pctx, page) {
			return fmt.Errorf("page %d: %w", page, errNavigation)
		}
		var err error
		rows, hasMore, err = feed.FetchPage(pctx, page)
		return err
	}
	onFailure := func(attempt int, err error) {
		b.Failures++
		e.Logger.WithFields(logrus.Fields{
			"page":    page,
			"attempt": fmt.Sprintf("%d/%d", attempt, e.Retry.Attempts),
		}).WithError(err).Warn("page fetch failed")
	}
	if err := retry.Do(ctx, e.Retry, op, onFailure); err != nil {
		return nil, false, err
	}
	return rows, hasMore, nil
}

func (e *Engine) pageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.PageTimeout > 0 {
		return context.WithTimeout(ctx, e.PageTimeout)
	}
	return context.WithCancel(ctx)
}

// consume converts rows in presentation order and reports whether
// pagination must stop.
func (e *Engine) consume(rows []model.RawRow, cutoff time.Time, b *Batch) (int, StopReason) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	accepted := 0
	for _, row := range rows {
		if validator.IsAtOrBeforeCutoff(row.Date, cutoff) {
			return accepted, StopCutoff
		}
		if validator.IsFuture(row.Date, now()) {
			b.Warnings = append(b.Warnings, model.Warnf(model.WarnFutureDate, "skipped row dated %s", row.Date))
			continue
		}
		rec := model.FromRawRow(row)
		if !rec.Dated {
			b.Warnings = append(b.Warnings, model.Warnf(model.WarnUndated, "row date %q is not parseable", row.Date))
		}
		if rec.HasMalformedPrice() {
			b.Warnings = append(b.Warnings, model.Warnf(model.WarnMalformed, "row %s has malformed prices", rec.Key()))
		}
		b.Records = append(b.Records, rec)
		accepted++
	}
	// The limit only gates further requests; a fetched page is always read
	// down to the cutoff.
	if e.RowLimit > 0 && len(b.Records) >= e.RowLimit {
		return accepted, StopRowLimit
	}
	return accepted, ""
}

// Dedup drops fetched records whose date already exists in base and repeats
// within the batch itself. Batch order is preserved.
func Dedup(base, fetched model.Series) (fresh model.Series, dropped int) {
	seen := base.Keys()
	fresh = model.Series{}
	for _, r := range fetched {
		if _, ok := seen[r.Key()]; ok {
			dropped++
			continue
		}
		seen[r.Key()] = struct{}{}
		fresh = append(fresh, r)
	}
	return fresh, dropped
}

// Absorb reconciles an already collected batch against base.
func (e *Engine) Absorb(base model.Series, batch *Batch) *Result {
	res := &Result{Batch: *batch, Cutoff: base.Cutoff()}
	res.New, res.Dropped = Dedup(base, batch.Records)
	merged, warnings := model.Merge(base, res.New)
	res.Merged = merged
	res.Warnings = append(append([]model.Warning{}, batch.Warnings...), warnings...)
	e.Logger.WithFields(logrus.Fields{
		"fetched": len(batch.Records),
		"new":     len(res.New),
		"dropped": res.Dropped,
		"total":   len(merged),
	}).Info("batch reconciled")
	return res
}

// Reconcile collects from feed down to the cutoff of base and merges the
// new records.
func (e *Engine) Reconcile(ctx context.Context, feed collector.Feed, base model.Series) *Result {
	cutoff := base.Cutoff()
	fields := logrus.Fields{"base": len(base)}
	if !cutoff.IsZero() {
		fields["cutoff"] = calendar.CanonicalText(cutoff)
	}
	e.Logger.WithFields(fields).Info("collecting new observations")
	return e.Absorb(base, e.Collect(ctx, feed, cutoff))
}
