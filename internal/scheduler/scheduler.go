// Package scheduler runs the portal's periodic housekeeping on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"portal/api/internal/config"
	"portal/api/internal/portal"
)

// Job is a named unit of periodic work.
type Job struct {
	Name string
	Spec string
	Run  func() int
}

// JobObserver is told how long each run took.
type JobObserver interface {
	ObserveJob(job string, d time.Duration)
}

type Scheduler struct {
	cron     *cron.Cron
	logger   *zap.Logger
	observer JobObserver
}

// New creates a stopped scheduler. A job that is still running when its next
// tick fires is skipped, and a panicking job is logged and recovered.
func New(logger *zap.Logger, observer JobObserver) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:   logger,
		observer: observer,
	}
}

func (s *Scheduler) Add(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("scheduler: job %q has no run func", job.Name)
	}
	_, err := s.cron.AddFunc(job.Spec, func() {
		start := time.Now()
		n := job.Run()
		d := time.Since(start)
		if s.observer != nil {
			s.observer.ObserveJob(job.Name, d)
		}
		s.logger.Debug("job finished", zap.String("job", job.Name), zap.Int("affected", n), zap.Duration("took", d))
	})
	if err != nil {
		return fmt.Errorf("scheduler: job %q spec %q: %w", job.Name, job.Spec, err)
	}
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents further runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PortalJobs returns the housekeeping jobs for p.
func PortalJobs(p *portal.Portal, cfg config.RetentionConfig) []Job {
	return []Job{
		{
			Name: "prune_read_notifications",
			Spec: cfg.PruneSchedule,
			Run:  func() int { return p.PruneNotifications(cfg.ReadNotificationsAfter) },
		},
		{
			Name: "evict_idle_clients",
			Spec: cfg.PruneSchedule,
			Run:  func() int { return p.EvictIdle(cfg.IdleClientsAfter) },
		},
		{
			Name: "directory_sync",
			Spec: cfg.DirectorySyncSchedule,
			Run:  p.SyncIntegrations,
		},
	}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
