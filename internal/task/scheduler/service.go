package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "govreminder/pkg/logx"
)

// Config controls the trigger.
type Config struct {
	Spec     string
	Timezone string // IANA TZ, e.g. "Europe/Berlin"; empty means Local
	// RunOnStart fires one run immediately after Start.
	RunOnStart bool
	// Timeout bounds a single run; 0 means no bound beyond the service context.
	Timeout time.Duration
}

// Job is the work triggered on every tick.
type Job func(ctx context.Context) error

// Stats are best-effort counters for diagnostics.
type Stats struct {
	Runs    uint64
	Skipped uint64
	Failed  uint64
}

// Service runs one Job on a schedule.
//
// Cron callbacks only hand the run off to its own goroutine, so stopping or
// rebuilding the cron never waits for a run to finish while s.mu is held.
type Service struct {
	mu      sync.Mutex
	log     logx.Logger
	cfg     Config
	job     Job
	stopped bool

	c   *cron.Cron
	loc *time.Location
	ctx context.Context

	running  atomic.Bool
	inflight sync.WaitGroup

	runs    atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

func New(cfg Config, job Job, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, job: job, log: log}
}

// Start registers the job and starts triggering. Runs receive ctx (or a
// child of it), so cancelling ctx aborts in-flight work.
func (s *Service) Start(ctx context.Context) error {
	if s.job == nil {
		return errors.New("scheduler: no job")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	c, loc, err := s.build(s.cfg)
	if err != nil {
		return err
	}
	s.ctx = ctx
	s.stopped = false
	s.commitLocked(c, loc)
	if s.cfg.RunOnStart {
		s.dispatchLocked("start")
	}
	return nil
}

// build compiles cfg into a cron that is not started yet.
func (s *Service) build(cfg Config) (*cron.Cron, *time.Location, error) {
	ps, err := ParseSchedule(cfg.Spec)
	if err != nil {
		return nil, nil, err
	}
	loc := loadLocation(s.log, cfg.Timezone)
	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(loc))

	job := cron.FuncJob(func() { s.dispatch("schedule") })
	if ps.Kind == SpecInterval {
		sched, jitter := intervalScheduleWithSpread(ps.Every, time.Now().In(loc), "govreminder")
		c.Schedule(sched, job)
		s.log.Debug("interval registered", logx.Duration("every", ps.Every), logx.Duration("startup_spread", jitter))
	} else if _, err := c.AddJob(ps.Cron, job); err != nil {
		return nil, nil, err
	}
	return c, loc, nil
}

func (s *Service) commitLocked(c *cron.Cron, loc *time.Location) {
	s.c = c
	s.loc = loc
	c.Start()
	s.log.Info("scheduler started",
		logx.String("spec", strings.TrimSpace(s.cfg.Spec)),
		logx.String("tz", loc.String()),
		logx.Time("next", s.nextLocked()),
	)
}

// Apply swaps the config. A changed spec or timezone rebuilds the trigger;
// a run in flight is not interrupted. On error the previous schedule stays.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	old := s.cfg
	if s.c == nil {
		s.cfg = cfg
		s.mu.Unlock()
		return nil
	}
	if strings.TrimSpace(old.Spec) == strings.TrimSpace(cfg.Spec) &&
		strings.TrimSpace(old.Timezone) == strings.TrimSpace(cfg.Timezone) {
		s.cfg = cfg
		s.mu.Unlock()
		return nil
	}
	c, loc, err := s.build(cfg)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	prev := s.c
	s.cfg = cfg
	s.commitLocked(c, loc)
	s.mu.Unlock()

	<-prev.Stop().Done()
	return nil
}

// Stop stops triggering and waits for an in-flight run until ctx expires.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	s.c = nil
	// no inflight.Add happens after this point
	s.stopped = true
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("scheduler stop: run still in flight")
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

// Next returns the next trigger time, or zero when stopped.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Service) nextLocked() time.Time {
	if s.c == nil {
		return time.Time{}
	}
	entries := s.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Service) Stats() Stats {
	return Stats{Runs: s.runs.Load(), Skipped: s.skipped.Load(), Failed: s.failed.Load()}
}

func (s *Service) dispatch(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatchLocked(reason)
}

// dispatchLocked starts a run unless one is still in flight or the service
// was stopped.
func (s *Service) dispatchLocked(reason string) {
	if s.stopped {
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.log.Warn("run skipped: previous run still in flight", logx.String("trigger", reason))
		return
	}
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	s.inflight.Add(1)
	go s.run(ctx, s.cfg.Timeout, reason)
}

func (s *Service) run(ctx context.Context, timeout time.Duration, reason string) {
	defer s.inflight.Done()
	defer s.running.Store(false)

	if ctx.Err() != nil {
		return
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.runs.Add(1)
	if err := s.job(ctx); err != nil {
		s.failed.Add(1)
		s.log.Error("scheduled run failed", logx.String("trigger", reason), logx.Err(err))
	}
}

func loadLocation(log logx.Logger, tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
