// Package pipeline runs one update of the Rial and Toman series: load the
// base, reconcile it against the feed, then persist both files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"RialLedger/internal/calculator"
	"RialLedger/internal/collector"
	"RialLedger/internal/converter"
	"RialLedger/internal/model"
	"RialLedger/internal/notifier"
	"RialLedger/internal/observability"
	"RialLedger/internal/reconcile"
	"RialLedger/internal/recorder"
	"RialLedger/internal/store"
)

// ErrFeedUnreachable is returned when not a single feed page could be read.
var ErrFeedUnreachable = errors.New("feed unreachable")

// Mode selects how the base series is obtained and written.
type Mode string

const (
	// ModeIncremental appends the newest rows of the first feed page to the
	// local file.
	ModeIncremental Mode = "incremental"
	// ModeRebuild starts from the remote snapshot and rewrites both files.
	ModeRebuild Mode = "rebuild"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeIncremental, ModeRebuild:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// DefaultRecords is the incremental row limit.
const DefaultRecords = 3

// Options controls a single run.
type Options struct {
	Mode     Mode
	DryRun   bool
	Records  int // incremental row limit
	MaxPages int // overrides the engine budget when positive
}

// FeedFactory opens a feed session for one run.
type FeedFactory func(ctx context.Context) (collector.Feed, error)

// Notifier delivers run summaries.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Runner wires the components of an update run.
type Runner struct {
	Feeds     FeedFactory
	Snapshot  collector.SnapshotLoader
	Store     *store.Store
	Engine    *reconcile.Engine
	Converter converter.Converter
	RialPath  string
	TomanPath string

	Recorder recorder.Recorder
	Metrics  *observability.Metrics
	Notifier Notifier // nil disables notifications
	Logger   *logrus.Logger
}

// Summary describes the outcome of a run.
type Summary struct {
	RunID          string
	Mode           Mode
	DryRun         bool
	StartedAt      time.Time
	FromSnapshot   bool
	Pages          int
	Failures       int
	Fetched        int
	Dropped        int
	StopReason     reconcile.StopReason
	NewRecords     model.Series
	NewDerived     model.Series
	BaseTotal      int
	FirstDate      string
	LastDate       string
	Warnings       []model.Warning
	Market         *calculator.MarketSnapshot
	BaseWritten    bool
	DerivedWritten bool
}

// New is the number of records added to the base series.
func (s *Summary) New() int { return len(s.NewRecords) }

// Run performs one update. Failures that prevent a consistent result are
// returned as errors and leave both files as they were.
func (r *Runner) Run(ctx context.Context, opts Options) (sum *Summary, err error) {
	if opts.Mode == "" {
		opts.Mode = ModeIncremental
	}
	if opts.Records <= 0 {
		opts.Records = DefaultRecords
	}
	sum = &Summary{RunID: uuid.NewString(), Mode: opts.Mode, DryRun: opts.DryRun, StartedAt: time.Now()}
	log := r.Logger.WithFields(logrus.Fields{"run": sum.RunID, "mode": opts.Mode})
	defer func() { r.finish(ctx, sum, err) }()

	log.Info("step 1: loading base series")
	base, err := r.loadBase(ctx, opts.Mode, sum)
	if err != nil {
		return sum, err
	}
	first, last := base.DateRange()
	log.WithFields(logrus.Fields{"records": len(base), "first": first, "last": last, "snapshot": sum.FromSnapshot}).Info("base series ready")

	log.Info("step 2: collecting new observations")
	res, err := r.collect(ctx, opts, base)
	if err != nil {
		return sum, err
	}
	sum.Pages = res.Pages
	sum.Failures = res.Failures
	sum.Fetched = len(res.Records)
	sum.Dropped = res.Dropped
	sum.StopReason = res.StopReason
	sum.NewRecords = res.New
	sum.NewDerived = r.Converter.ConvertSeries(res.New)
	sum.BaseTotal = len(res.Merged)
	sum.FirstDate, sum.LastDate = res.Merged.DateRange()
	sum.Warnings = append(res.Warnings, store.Validate(res.Merged)...)
	if snap, ok := calculator.Summarize(res.Merged); ok {
		sum.Market = &snap
	}
	if res.StopReason.Soft() {
		log.WithField("stop", res.StopReason).Warn("pagination ended early, keeping partial results")
	}

	if opts.DryRun {
		log.WithField("new", sum.New()).Info("step 3: dry run, nothing written")
		for i, rec := range sum.NewRecords {
			log.WithFields(logrus.Fields{
				"date":        rec.Key(),
				"close":       rec.Close.String(),
				"close_toman": sum.NewDerived[i].Close.String(),
			}).Info("would append")
		}
		return sum, nil
	}
	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("run aborted before writing: %w", err)
	}

	log.Info("step 3: writing series")
	if err := r.write(opts.Mode, res, sum); err != nil {
		return sum, err
	}
	return sum, nil
}

// loadBase returns the series new records are reconciled against.
func (r *Runner) loadBase(ctx context.Context, mode Mode, sum *Summary) (model.Series, error) {
	if mode == ModeIncremental {
		_, statErr := os.Stat(r.RialPath)
		if statErr == nil {
			base, err := r.Store.Load(r.RialPath)
			if err != nil {
				return nil, fmt.Errorf("load base series: %w", err)
			}
			return base, nil
		}
		if !errors.Is(statErr, os.ErrNotExist) {
			return nil, fmt.Errorf("load base series: %w", statErr)
		}
		r.Logger.WithField("path", r.RialPath).Info("no local series, starting from snapshot")
	}
	sum.FromSnapshot = true
	r.Logger.WithField("source", r.Snapshot.Name()).Info("downloading snapshot")
	base, err := r.Snapshot.LoadInitialSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return base.Sorted(), nil
}

func (r *Runner) collect(ctx context.Context, opts Options, base model.Series) (*reconcile.Result, error) {
	engine := *r.Engine
	if opts.Mode == ModeIncremental {
		engine.MaxPages = 1
		engine.RowLimit = opts.Records
	}
	if opts.MaxPages > 0 {
		engine.MaxPages = opts.MaxPages
	}

	feed, err := r.Feeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open session: %w", ErrFeedUnreachable, err)
	}
	defer func() {
		if err := feed.Close(); err != nil {
			r.Logger.WithError(err).Warn("close feed session")
		}
	}()

	res := engine.Reconcile(ctx, feed, base)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run aborted before writing: %w", err)
	}
	if res.Pages == 0 {
		return nil, fmt.Errorf("%w: %s returned no page after %d attempts", ErrFeedUnreachable, feed.Name(), res.Failures)
	}
	return res, nil
}

// write persists the base series and recomputes the derived one from it.
func (r *Runner) write(mode Mode, res *reconcile.Result, sum *Summary) error {
	merged := res.Merged
	if mode == ModeRebuild || sum.FromSnapshot {
		if err := r.Store.Save(r.RialPath, merged); err != nil {
			return fmt.Errorf("write base series: %w", err)
		}
		sum.BaseWritten = true
	} else {
		var err error
		if merged, err = r.Store.Append(r.RialPath, res.New); err != nil {
			return fmt.Errorf("append base series: %w", err)
		}
		sum.BaseWritten = len(res.New) > 0
	}

	// The derived file is always recomputed from the base so a stale or
	// truncated copy is repaired; identical bytes are not rewritten.
	written, err := r.Store.SaveIfChanged(r.TomanPath, r.Converter.ConvertSeries(merged))
	if err != nil {
		return fmt.Errorf("write derived series: %w", err)
	}
	sum.DerivedWritten = written
	return nil
}

// finish journals, counts and announces a run. None of it can fail the run.
func (r *Runner) finish(ctx context.Context, sum *Summary, runErr error) {
	took := time.Since(sum.StartedAt)
	evt := sum.Event(runErr)
	log := r.Logger.WithFields(logrus.Fields{
		"run":      sum.RunID,
		"mode":     sum.Mode,
		"pages":    sum.Pages,
		"fetched":  sum.Fetched,
		"new":      sum.New(),
		"total":    sum.BaseTotal,
		"stop":     sum.StopReason,
		"warnings": len(sum.Warnings),
		"took":     took.Round(time.Millisecond),
	})
	for _, w := range sum.Warnings {
		log.Warn(w.String())
	}
	if runErr != nil {
		log.WithError(runErr).Error("update failed")
	} else {
		fields := logrus.Fields{"first": sum.FirstDate, "last": sum.LastDate}
		if sum.Market != nil {
			fields["close"] = sum.Market.Close.String()
		}
		log.WithFields(fields).Info("update finished")
	}

	if r.Metrics != nil {
		r.Metrics.ObserveRun(string(sum.Mode), runErr, took)
		r.Metrics.PagesFetched.Add(float64(sum.Pages))
		r.Metrics.PageFailures.Add(float64(sum.Failures))
		for _, w := range sum.Warnings {
			r.Metrics.Warnings.WithLabelValues(string(w.Code)).Inc()
		}
		if sum.BaseWritten {
			r.Metrics.RecordsAppended.Add(float64(sum.New()))
		}
		if runErr == nil && !sum.DryRun {
			r.Metrics.SeriesLength.WithLabelValues("rial").Set(float64(sum.BaseTotal))
			r.Metrics.SeriesLength.WithLabelValues("toman").Set(float64(sum.BaseTotal))
		}
	}

	if r.Recorder != nil {
		if err := r.Recorder.RecordRun(evt); err != nil {
			r.Logger.WithError(err).Error("record run")
		}
	}

	if r.Notifier != nil {
		text := notifier.FormatRunSummary(evt)
		if runErr == nil && sum.New() > 0 {
			text += "\n" + notifier.FormatNewRecords(sum.NewRecords, sum.NewDerived)
		}
		if runErr == nil && sum.Market != nil {
			text += "\n" + notifier.FormatMarket(*sum.Market)
		}
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		if err := r.Notifier.SendWithRetry(nctx, text, 3); err != nil {
			r.Logger.WithError(err).Error("send notification")
		}
	}
}

// Event converts the summary into a journal entry.
func (s *Summary) Event(runErr error) *recorder.RunEvent {
	evt := &recorder.RunEvent{
		ID:         s.RunID,
		Mode:       string(s.Mode),
		DryRun:     s.DryRun,
		StartedAt:  s.StartedAt,
		FinishedAt: time.Now(),
		Pages:      s.Pages,
		Failures:   s.Failures,
		Fetched:    s.Fetched,
		New:        s.New(),
		Dropped:    s.Dropped,
		StopReason: string(s.StopReason),
		BaseTotal:  s.BaseTotal,
		FirstDate:  s.FirstDate,
		LastDate:   s.LastDate,
		Warnings:   s.Warnings,
	}
	if runErr != nil {
		evt.Err = runErr.Error()
	}
	return evt
}
