package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"RialLedger/internal/notifier"
	"RialLedger/internal/pipeline"
	"RialLedger/internal/recorder"
)

// Runner performs one update run.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Summary, error)
}

// Scheduler triggers update runs from cron and chat commands. At most one
// run is active at a time; triggers that arrive meanwhile are skipped.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Runner
	Recorder recorder.Recorder
	Options  pipeline.Options
	Logger   *logrus.Logger
	Ctx      context.Context

	running sync.Mutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner Runner, rec recorder.Recorder, opts pipeline.Options, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   runner,
		Recorder: rec,
		Options:  opts,
		Logger:   logger,
		Ctx:      ctx,
	}
}

// RegisterDaily registers the incremental update.
func (s *Scheduler) RegisterDaily(dailyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info("scheduler stopped")
}

// RunNow executes the update immediately. ran is false when another run was
// already in progress.
func (s *Scheduler) RunNow() (sum *pipeline.Summary, ran bool, err error) {
	if !s.running.TryLock() {
		s.Logger.Warn("update already running, skipping trigger")
		return nil, false, nil
	}
	defer s.running.Unlock()

	sum, err = s.Runner.Run(s.Ctx, s.Options)
	return sum, true, err
}

func (s *Scheduler) dailyTask() {
	s.Logger.Info("running scheduled update")
	if _, ran, err := s.RunNow(); ran && err != nil {
		s.Logger.WithError(err).Error("scheduled update failed")
	}
}

// HandleCommand processes a chat command and returns a reply. Run results
// are announced by the pipeline itself.
func (s *Scheduler) HandleCommand(_ context.Context, command string) string {
	switch command {
	case "/update":
		if _, ran, _ := s.RunNow(); !ran {
			return "An update is already running."
		}
		return ""
	case "/status":
		info, err := s.Recorder.LastRun()
		if err != nil {
			s.Logger.WithError(err).Error("read last run")
			return "Run history is unavailable."
		}
		return notifier.FormatLastRun(info)
	default:
		return "Available commands:\n• /update: fetch the latest rates now\n• /status: show the last run"
	}
}
