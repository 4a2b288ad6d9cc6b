// Package scheduler runs the periodic background jobs on robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser accepts five-field specs, an optional leading seconds field and
// descriptors such as @every 1m.
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Job is one unit of background work. The context is cancelled on Stop.
type Job func(ctx context.Context) error

// Scheduler owns a cron instance whose jobs never overlap themselves.
type Scheduler struct {
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// slogLogger adapts slog to cron.Logger.
type slogLogger struct{}

func (slogLogger) Info(msg string, kv ...any) {
	slog.Debug("cron_event", append([]any{"event", msg}, kv...)...)
}

func (slogLogger) Error(err error, msg string, kv ...any) {
	slog.Error("cron_event", append([]any{"event", msg, "error", err}, kv...)...)
}

// New creates a stopped scheduler evaluating specs in loc.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	logger := slogLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		c: cron.New(
			cron.WithParser(Parser),
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job under name.
// PRE: spec parses with Parser
// POST: job runs on every activation; failures are logged, not retried
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.c.AddFunc(spec, func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			slog.Error("job_failed", "job", name, "error", err)
			return
		}
		slog.Debug("job_done", "job", name, "duration_ms", time.Since(start).Milliseconds())
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	slog.Info("job_scheduled", "job", name, "spec", spec)
	return nil
}

// Len reports the number of registered jobs.
func (s *Scheduler) Len() int {
	return len(s.c.Entries())
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop cancels running jobs and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
