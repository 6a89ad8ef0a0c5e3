package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/config"
)

// Exporter publishes the periodic summary.
type Exporter interface {
	Run(ctx context.Context) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	monitor  *Monitor
	exporter Exporter
	cfg      config.Config
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance. exporter may be nil.
func NewScheduler(cfg config.Config, monitor *Monitor, exporter Exporter, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Export.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Export.Timezone, err)
	}

	// probes must not pile up behind a slow drain
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		cron:     c,
		monitor:  monitor,
		exporter: exporter,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler")

	if _, err := s.cron.AddFunc(s.cfg.Sync.ProbeSchedule, s.probe); err != nil {
		return fmt.Errorf("schedule sync probe %q: %w", s.cfg.Sync.ProbeSchedule, err)
	}

	if s.exporter != nil {
		if _, err := s.cron.AddFunc(s.cfg.Export.CronSchedule, s.export); err != nil {
			return fmt.Errorf("schedule export %q: %w", s.cfg.Export.CronSchedule, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	s.monitor.Probe(ctx)
}

func (s *Scheduler) export() {
	if !s.monitor.Online() {
		s.logger.Info("skipping export while offline")
		return
	}
	s.logger.Info("running export")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.exporter.Run(ctx); err != nil {
		s.logger.Error("export failed", zap.Error(err))
		return
	}
	s.logger.Info("export completed")
}
