// Package scheduler runs periodic maintenance jobs on gocron.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/dmitrijs2005/academyhub/internal/server/metrics"
	"github.com/go-co-op/gocron/v2"
)

// JobFunc is one run of a job.
type JobFunc func(ctx context.Context) error

// JobInfo is the run history of a job.
type JobInfo struct {
	Name       string
	Every      time.Duration
	RunCount   int
	ErrorCount int
	LastRun    time.Time
	LastError  string
}

type Scheduler struct {
	gocron gocron.Scheduler
	logger logging.Logger

	mu   sync.Mutex
	jobs map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
}

type job struct {
	info  JobInfo
	inner gocron.Job
}

func New(logger logging.Logger) (*Scheduler, error) {
	logger = logger.With("module", "scheduler")
	g, err := gocron.NewScheduler(gocron.WithLogger(gocronLogger{l: logger}))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gocron: g,
		logger: logger,
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// AddJob runs fn every interval. Runs never overlap; a run that is due
// while the previous one is still going is rescheduled.
func (s *Scheduler) AddJob(name string, every time.Duration, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}

	j := &job{info: JobInfo{Name: name, Every: every}}
	inner, err := s.gocron.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(s.wrap(j, fn)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", name, err)
	}
	j.inner = inner
	s.jobs[name] = j

	s.logger.Info(context.Background(), "added job", "name", name, "every", every)
	return nil
}

func (s *Scheduler) wrap(j *job, fn JobFunc) func() {
	return func() {
		start := time.Now()
		err := fn(s.ctx)
		metrics.RecordJob(j.info.Name, time.Since(start), err == nil)

		s.mu.Lock()
		j.info.RunCount++
		j.info.LastRun = start
		if err != nil {
			j.info.ErrorCount++
			j.info.LastError = err.Error()
		} else {
			j.info.LastError = ""
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Error(s.ctx, "job failed", "name", j.info.Name, "error", err)
			return
		}
		s.logger.Debug(s.ctx, "job completed", "name", j.info.Name, "took", time.Since(start))
	}
}

// RunNow triggers name outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return j.inner.RunNow()
}

// Job returns a snapshot of the history of name.
func (s *Scheduler) Job(name string) (JobInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return JobInfo{}, false
	}
	return j.info, true
}

func (s *Scheduler) Start() {
	s.gocron.Start()
	s.logger.Info(context.Background(), "scheduler started", "jobs", len(s.jobs))
}

// Stop cancels running jobs and waits for them.
func (s *Scheduler) Stop() error {
	s.cancel()
	return s.gocron.Shutdown()
}

// Run starts the scheduler and stops it once ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	return s.Stop()
}

type gocronLogger struct {
	l logging.Logger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.l.Debug(context.Background(), msg, args...) }
func (g gocronLogger) Info(msg string, args ...any)  { g.l.Info(context.Background(), msg, args...) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.l.Warn(context.Background(), msg, args...) }
func (g gocronLogger) Error(msg string, args ...any) { g.l.Error(context.Background(), msg, args...) }
