package service

import (
	"context"
	"fmt"
	"time"

	"fitstake_miniapp/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	DefaultProgressSpec  = "@every 15m"
	DefaultReconcileSpec = "@every 5m"
)

type SchedulerConfig struct {
	ProgressSpec  string        `json:"progressSpec"`
	ReconcileSpec string        `json:"reconcileSpec"`
	JobTimeout    time.Duration `json:"jobTimeout"`
}

// Scheduler runs the periodic progress refresh and the settlement sweep.
// Nothing runs until Start; Stop waits for running jobs.
type Scheduler struct {
	cron       *cron.Cron
	jobTimeout time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewScheduler(cfg SchedulerConfig, challenges *ChallengeService, reconciler *Reconciler) (*Scheduler, error) {
	if cfg.ProgressSpec == "" {
		cfg.ProgressSpec = DefaultProgressSpec
	}
	if cfg.ReconcileSpec == "" {
		cfg.ReconcileSpec = DefaultReconcileSpec
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}

	cronLogger := cron.VerbosePrintfLogger(zap.NewStdLog(logger.Named("cron")))
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		jobTimeout: cfg.JobTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}

	if _, err := s.cron.AddFunc(cfg.ProgressSpec, s.job("progress", challenges.RefreshAllUsers)); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid progress schedule %q: %w", cfg.ProgressSpec, err)
	}
	if reconciler != nil {
		if _, err := s.cron.AddFunc(cfg.ReconcileSpec, s.job("reconcile", reconciler.Sweep)); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid reconcile schedule %q: %w", cfg.ReconcileSpec, err)
		}
	}

	return s, nil
}

func (s *Scheduler) job(name string, run func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.jobTimeout)
		defer cancel()

		if err := run(ctx); err != nil {
			logger.Named("scheduler").Error("scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Named("scheduler").Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop cancels running jobs and blocks until they return or ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
