// Package scheduler runs the periodic budget jobs on cron expressions.
//
// A job never overlaps with itself: a tick that fires while the previous
// run is still in progress is skipped. Every run gets its own timeout.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron schedules in a fixed time zone.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration

	wg      sync.WaitGroup
	mu      sync.Mutex
	base    context.Context
	jobs    map[string]cron.Job
	entries map[string]cron.EntryID
	onStart []string
}

// New creates a scheduler evaluating schedules in loc. A non-positive
// timeout leaves job runs unbounded.
func New(loc *time.Location, timeout time.Duration, logger *slog.Logger) *Scheduler {
	logger = logger.With("component", "scheduler")
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{logger}),
		),
		logger:  logger,
		timeout: timeout,
		base:    context.Background(),
		jobs:    make(map[string]cron.Job),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers a job under a unique name with a standard five-field cron
// expression or a descriptor such as "@daily".
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	l := cronLogger{s.logger.With("job", name)}
	wrapped := cron.NewChain(cron.Recover(l), cron.SkipIfStillRunning(l)).
		Then(cron.FuncJob(func() { s.run(name, job) }))

	id, err := s.cron.AddJob(spec, wrapped)
	if err != nil {
		return fmt.Errorf("job %q: invalid schedule %q: %w", name, spec, err)
	}
	s.jobs[name] = wrapped
	s.entries[name] = id
	return nil
}

// RunOnStart makes Run trigger the named job once right after it starts.
func (s *Scheduler) RunOnStart(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStart = append(s.onStart, name)
}

// Trigger runs a job immediately in the calling goroutine. It is skipped,
// like a cron tick, when the same job is already running. It reports
// whether the job exists.
func (s *Scheduler) Trigger(name string) bool {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false
	}
	job.Run()
	return true
}

// Next returns the next scheduled time of a job, or the zero time when the
// scheduler is not running or the job is unknown.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Run starts the scheduler and blocks until ctx is cancelled. Job contexts
// derive from ctx. Run returns once in-flight jobs have finished.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	onStart := append([]string(nil), s.onStart...)
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(names))
	for _, name := range names {
		s.logger.Info("job scheduled", "job", name, "next", s.Next(name))
	}

	for _, name := range onStart {
		name := name
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Trigger(name)
		}()
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	s.mu.Lock()
	ctx := s.base
	s.mu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("job failed", "job", name, "duration", time.Since(start), "error", err)
		return
	}
	s.logger.Debug("job finished", "job", name, "duration", time.Since(start))
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
