package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"RialLedger/internal/collector"
	"RialLedger/internal/config"
	"RialLedger/internal/converter"
	"RialLedger/internal/logging"
	"RialLedger/internal/notifier"
	"RialLedger/internal/observability"
	"RialLedger/internal/pipeline"
	"RialLedger/internal/reconcile"
	"RialLedger/internal/recorder"
	"RialLedger/internal/retry"
	"RialLedger/internal/scheduler"
	"RialLedger/internal/store"
)

const modeDaemon = "daemon"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	flag.StringVar(&cfgPath, "config", cfgPath, "path to the YAML config file")
	mode := flag.String("mode", string(pipeline.ModeIncremental), "incremental, rebuild or daemon")
	dryRun := flag.Bool("dry-run", false, "reconcile and report without writing files")
	records := flag.Int("records", 0, "incremental row limit (default from config)")
	maxPages := flag.Int("max-pages", 0, "page budget (default from config)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		return 1
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 1
	}
	logger.WithField("config", cfgPath).Info("RialLedger starting")

	opts := pipeline.Options{Mode: pipeline.ModeIncremental, DryRun: *dryRun, Records: cfg.Incremental.Records, MaxPages: *maxPages}
	if *records > 0 {
		opts.Records = *records
	}
	if *mode != modeDaemon {
		if opts.Mode, err = pipeline.ParseMode(*mode); err != nil {
			logger.WithError(err).Error("invalid -mode")
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
	}

	metrics := observability.NewMetrics("")
	runner, err := newRunner(cfg, logger, rec, metrics, tn)
	if err != nil {
		logger.WithError(err).Error("init pipeline")
		return 1
	}

	if *mode == modeDaemon {
		return daemon(ctx, cfg, logger, runner, rec, tn, metrics, opts)
	}

	sum, err := runner.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, pipeline.ErrFeedUnreachable) {
			logger.Error("could not reach the rate feed, nothing was written")
		}
		return 1
	}
	if sum.New() == 0 {
		logger.Info("already up to date")
	}
	return 0
}

func newRunner(cfg *config.Config, logger *logrus.Logger, rec recorder.Recorder, metrics *observability.Metrics, tn *notifier.TelegramNotifier) (*pipeline.Runner, error) {
	conv, err := converter.New(cfg.Conversion.Rate, cfg.Conversion.Places)
	if err != nil {
		return nil, err
	}

	engine := reconcile.NewEngine(logger)
	engine.MaxPages = cfg.Feed.MaxPages
	engine.PageTimeout = cfg.Feed.PageTimeout + cfg.Feed.InitialDelay + cfg.Feed.SettleDelay
	engine.Retry = retry.Fixed(cfg.Feed.Failures, cfg.Feed.RetryDelay)

	var snapshot collector.SnapshotLoader
	switch cfg.Snapshot.Source {
	case config.SnapshotCSV:
		snapshot = collector.NewCSVSnapshotLoader(cfg.Snapshot.CSVURL, cfg.Proxy, logger)
	default:
		snapshot = collector.NewHuggingFaceLoader(cfg.Snapshot.BaseURL, cfg.Snapshot.Dataset, cfg.Proxy, logger)
	}

	r := &pipeline.Runner{
		Feeds: func(context.Context) (collector.Feed, error) {
			return collector.NewTGJUFeed(collector.TGJUOptions{
				URL:          cfg.Feed.URL,
				UserAgent:    cfg.Feed.UserAgent,
				Proxy:        cfg.Proxy,
				Timeout:      cfg.Feed.PageTimeout,
				InitialDelay: cfg.Feed.InitialDelay,
				SettleDelay:  cfg.Feed.SettleDelay,
				Logger:       logger,
			}), nil
		},
		Snapshot:  snapshot,
		Store:     store.New(logger),
		Engine:    engine,
		Converter: conv,
		RialPath:  cfg.Storage.RialPath,
		TomanPath: cfg.Storage.TomanPath,
		Recorder:  rec,
		Metrics:   metrics,
		Logger:    logger,
	}
	if tn != nil {
		r.Notifier = tn
	}
	return r, nil
}

func daemon(ctx context.Context, cfg *config.Config, logger *logrus.Logger, runner *pipeline.Runner,
	rec recorder.Recorder, tn *notifier.TelegramNotifier, metrics *observability.Metrics, opts pipeline.Options) int {
	sched := scheduler.NewScheduler(ctx, runner, rec, opts, logger)
	if err := sched.RegisterDaily(cfg.Schedule.DailyCron); err != nil {
		logger.WithError(err).Error("register cron task")
		return 1
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("metrics server")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		logger.WithField("addr", cfg.Metrics.Addr).Info("metrics server started")
	}

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info("RUN_ON_START enabled, running update now")
		go sched.RunNow()
	}

	logger.WithField("cron", cfg.Schedule.DailyCron).Info("RialLedger is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	logger.Info("shutdown signal received, stopping")
	return 0
}
