package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "govreminder/pkg/logx"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		kind    SpecKind
		every   time.Duration
		cron    string
		source  string
		wantErr bool
	}{
		{in: "*/30 * * * *", kind: SpecCron, cron: "*/30 * * * *", source: "cron"},
		{in: "@hourly", kind: SpecCron, cron: "@hourly", source: "cron"},
		{in: "@every 30m", kind: SpecCron, cron: "@every 30m", source: "cron"},
		{in: "cron: 0 9 * * *", kind: SpecCron, cron: "0 9 * * *", source: "cron"},
		{in: "30m", kind: SpecInterval, every: 30 * time.Minute, source: "duration"},
		{in: "02:30", kind: SpecInterval, every: 2*time.Hour + 30*time.Minute, source: "hhmm"},
		{in: "every: 00:45", kind: SpecInterval, every: 45 * time.Minute, source: "hhmm"},
		{in: "interval: 1h", kind: SpecInterval, every: time.Hour, source: "duration"},
		{in: "", wantErr: true},
		{in: "cron:", wantErr: true},
		{in: "00:00", wantErr: true},
		{in: "01:75", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSchedule(%q) = %+v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tt.in, err)
			}
			if got.Kind != tt.kind || got.Every != tt.every || got.Cron != tt.cron || got.Source != tt.source {
				t.Fatalf("ParseSchedule(%q) = %+v", tt.in, got)
			}
		})
	}
}

func TestValidateCompilesCron(t *testing.T) {
	t.Parallel()
	for _, ok := range []string{"*/30 * * * *", "0 */5 * * * *", "@daily", "45m"} {
		if err := Validate(ok); err != nil {
			t.Fatalf("Validate(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"61 * * * *", "@fortnightly", "* * *"} {
		if err := Validate(bad); err == nil {
			t.Fatalf("Validate(%q) = nil, want error", bad)
		}
	}
}

func TestSpreadScheduleDelaysFirstTick(t *testing.T) {
	t.Parallel()
	now := time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)
	sched, jitter := intervalScheduleWithSpread(time.Minute, now, "x")
	if jitter < 0 || jitter >= time.Minute {
		t.Fatalf("jitter = %v", jitter)
	}
	first := sched.Next(now)
	if want := now.Add(time.Minute + jitter); !first.Equal(want) {
		t.Fatalf("first = %v, want %v", first, want)
	}
	if second := sched.Next(first); second.Sub(first) != time.Minute {
		t.Fatalf("second tick %v after first", second.Sub(first))
	}
}

func TestRunOnStartAndOverlapSkip(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	var calls atomic.Int32

	s := New(Config{Spec: "@every 1h", RunOnStart: true}, func(ctx context.Context) error {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("run on start did not fire")
	}

	// a second trigger while the first is running is skipped
	s.dispatch("test")
	if got := s.Stats().Skipped; got != 1 {
		t.Fatalf("Skipped = %d, want 1", got)
	}

	close(release)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	s.Stop(stopCtx)

	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if !s.Next().IsZero() {
		t.Fatal("Next should be zero after Stop")
	}
}

func TestApplyRebuildsOnSpecChange(t *testing.T) {
	t.Parallel()
	s := New(Config{Spec: "0 0 1 1 *", Timezone: "UTC"}, func(context.Context) error { return nil }, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	before := s.Next()
	if err := s.Apply(Config{Spec: "0 0 1 6 *", Timezone: "UTC"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	after := s.Next()
	if after.Equal(before) || after.Month() != time.June {
		t.Fatalf("next after Apply = %v (before %v)", after, before)
	}

	if err := s.Apply(Config{Spec: "nonsense", Timezone: "UTC"}); err == nil {
		t.Fatal("Apply with a bad spec should fail")
	}
	if !s.Next().Equal(after) {
		t.Fatal("bad Apply should keep the previous schedule")
	}
}

func TestFailedRunsAreCounted(t *testing.T) {
	t.Parallel()
	s := New(Config{Spec: "@every 1h", Timeout: time.Second}, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("run context should carry the timeout")
		}
		return context.DeadlineExceeded
	}, logx.Nop())
	s.ctx = context.Background()
	s.dispatch("test")
	s.inflight.Wait()
	if st := s.Stats(); st.Runs != 1 || st.Failed != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestApplyDoesNotWaitForRunInFlight(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s := New(Config{Spec: "@every 1s"}, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		close(release)
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(stopCtx)
	}()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("cron tick did not start a run")
	}

	done := make(chan error, 1)
	go func() {
		done <- s.Apply(Config{Spec: "@every 2h"})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Apply blocked on the run in flight")
	}

	next := make(chan time.Time, 1)
	go func() { next <- s.Next() }()
	select {
	case got := <-next:
		if got.IsZero() {
			t.Fatal("Next is zero after Apply")
		}
	case <-time.After(time.Second):
		t.Fatal("Next blocked while a run is in flight")
	}
}

func TestStoppedServiceStartsNoRun(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	s := New(Config{Spec: "@every 1h"}, func(context.Context) error {
		calls.Add(1)
		return nil
	}, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop(context.Background())

	// a tick racing Stop must not add to the wait group after Wait began
	s.dispatch("schedule")
	s.inflight.Wait()
	if got := calls.Load(); got != 0 {
		t.Fatalf("calls = %d, want 0", got)
	}
}
