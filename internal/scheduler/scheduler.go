// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"dailyforge/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// jobTimeout bounds a single run of any job.
const jobTimeout = 30 * time.Second

// Scheduler wraps cron-based jobs.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

// New creates a scheduler whose jobs observe ctx. Jobs never overlap with
// their own previous run and a panicking job does not stop the others.
func New(ctx context.Context) *Scheduler {
	l := cronLogger{logger.SystemLogger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		ctx: ctx,
	}
}

// Add registers job under a cron spec such as "@every 5m" or "0 0 * * *".
func (s *Scheduler) Add(spec, name string, job func(ctx context.Context) error) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return 0, fmt.Errorf("schedule %s: %w", name, err)
	}
	return id, nil
}

func (s *Scheduler) run(name string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()
	start := time.Now()
	if err := job(ctx); err != nil {
		logger.ErrorLogger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
		return
	}
	logger.SystemLogger.Debug("Scheduled job finished",
		zap.String("job", name), zap.Duration("took", time.Since(start)))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.ErrorLogger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
