package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govreminder/internal/config"
	"govreminder/internal/metrics"
	"govreminder/internal/reminder"
	"govreminder/internal/storage"
	logx "govreminder/pkg/logx"
)

var testNow = time.Date(2022, 1, 3, 12, 0, 0, 0, time.UTC)

const activeBody = `{
  "slug": "governance-period-3",
  "start_datetime": "2022-01-01T00:00:00Z",
  "registration_end_datetime": "2022-01-14T00:00:00Z",
  "end_datetime": "2022-03-31T00:00:00Z",
  "voting_sessions": [
    {"voting_start_datetime": "2022-01-02T12:00:00Z", "voting_end_datetime": "2022-01-16T12:00:00Z"}
  ]
}`

const periodsBody = `{
  "count": 3,
  "results": [
    {"slug": "governance-period-1", "start_datetime": "2021-07-01T00:00:00Z", "registration_end_datetime": "2021-07-14T00:00:00Z", "end_datetime": "2021-09-30T00:00:00Z"},
    {"slug": "governance-period-2", "start_datetime": "2021-10-01T00:00:00Z", "registration_end_datetime": "2021-10-14T00:00:00Z", "end_datetime": "2021-12-31T00:00:00Z"},
    {"slug": "governance-period-3", "start_datetime": "2022-01-01T00:00:00Z", "registration_end_datetime": "2022-01-14T00:00:00Z", "end_datetime": "2022-03-31T00:00:00Z"}
  ]
}`

const prevSnapshot = `{"period_count": 2, "current_period": 2, "snapshot_timestamp": "2021-12-20 08:00"}`

type posted struct {
	Event   string
	Payload reminder.Payload
}

type fixture struct {
	cfgPath  string
	snapPath string
	govDown  atomic.Bool

	mu    sync.Mutex
	posts []posted
}

// newFixture serves the governance API and the webhook endpoint locally and
// writes a config pointing at them. mutate adjusts the config before it is
// written.
func newFixture(t *testing.T, mutate func(c *config.Config)) *fixture {
	t.Helper()
	t.Setenv(config.EnvIFTTTKey, "")
	t.Setenv(config.EnvTelegramToken, "")
	f := &fixture{}

	gov := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.govDown.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/api/periods/active":
			_, _ = io.WriteString(w, activeBody)
		case "/api/periods/":
			_, _ = io.WriteString(w, periodsBody)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(gov.Close)

	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p reminder.Payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		// /trigger/{event}/with/key/{key}
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
		if len(parts) < 2 {
			http.NotFound(w, r)
			return
		}
		f.mu.Lock()
		f.posts = append(f.posts, posted{Event: parts[1], Payload: p})
		f.mu.Unlock()
		_, _ = io.WriteString(w, "Congratulations! You've fired the event")
	}))
	t.Cleanup(hook.Close)

	dir := t.TempDir()
	f.snapPath = filepath.Join(dir, "governance_snapshot.json")
	f.cfgPath = filepath.Join(dir, "config.json")

	cfg := config.Default()
	cfg.Governance.BaseURL = gov.URL + "/api"
	cfg.IFTTT.BaseURL = hook.URL
	cfg.IFTTT.Key = "test-key"
	cfg.Notifier.RatePerSec = 0
	cfg.Storage.Path = f.snapPath
	if mutate != nil {
		mutate(&cfg)
	}
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.cfgPath, b, 0o644))
	return f
}

func (f *fixture) writeSnapshot(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.snapPath, []byte(body), 0o644))
}

func (f *fixture) readSnapshot(t *testing.T) storage.Snapshot {
	t.Helper()
	b, err := os.ReadFile(f.snapPath)
	require.NoError(t, err)
	var s storage.Snapshot
	require.NoError(t, json.Unmarshal(b, &s))
	return s
}

func (f *fixture) sent() []posted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]posted(nil), f.posts...)
}

func (f *fixture) newApp(t *testing.T) *App {
	t.Helper()
	a, err := NewApp(f.cfgPath, WithClock(func() time.Time { return testNow }), WithLogger(logx.Nop()))
	require.NoError(t, err)
	return a
}

func eventNames(ps []posted) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Event)
	}
	return out
}

func TestRunOnceNotifiesAndWritesSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	f.writeSnapshot(t, prevSnapshot)
	a := f.newApp(t)
	defer a.Close()

	rep, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeOK, rep.Outcome)
	assert.NotEmpty(t, rep.RunID)

	got := f.sent()
	require.Equal(t, []string{
		reminder.EventVoteReminder,
		reminder.EventNewPeriod,
		reminder.EventSignupReminder,
	}, eventNames(got))
	assert.Equal(t, reminder.Payload{Value1: "3", Value2: "2022-01-02 12:00:00", Value3: "2022-01-16 12:00:00"}, got[0].Payload)
	assert.Equal(t, reminder.Payload{Value1: "3", Value2: "Jan 01", Value3: "Jan 14"}, got[1].Payload)
	assert.Equal(t, got[1].Payload, got[2].Payload)

	for _, d := range rep.Deliveries {
		assert.True(t, d.OK(), "delivery %s: %s", d.Event, d.Error)
	}

	snap := f.readSnapshot(t)
	assert.Equal(t, 3, snap.PeriodCount)
	require.NotNil(t, snap.CurrentPeriod)
	assert.Equal(t, 3, *snap.CurrentPeriod)
	assert.Equal(t, "2022-01-03 12:00", snap.SnapshotTimestamp)
}

func TestSecondRunDoesNotRepeatNewPeriod(t *testing.T) {
	f := newFixture(t, nil)
	f.writeSnapshot(t, prevSnapshot)
	a := f.newApp(t)
	defer a.Close()

	_, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	rep, err := a.RunOnce(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(rep.Events))
	for _, ev := range rep.Events {
		names = append(names, ev.Name)
	}
	assert.NotContains(t, names, reminder.EventNewPeriod)
	assert.Contains(t, names, reminder.EventVoteReminder)
}

func TestFetchFailureLeavesSnapshotUntouched(t *testing.T) {
	f := newFixture(t, nil)
	f.writeSnapshot(t, prevSnapshot)
	f.govDown.Store(true)
	a := f.newApp(t)
	defer a.Close()

	rep, err := a.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, metrics.OutcomeFetchErr, rep.Outcome)
	assert.Empty(t, f.sent())

	b, err := os.ReadFile(f.snapPath)
	require.NoError(t, err)
	assert.Equal(t, prevSnapshot, string(b))
}

func TestMissingSnapshot(t *testing.T) {
	t.Run("fails by default", func(t *testing.T) {
		f := newFixture(t, nil)
		a := f.newApp(t)
		defer a.Close()

		rep, err := a.RunOnce(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrNoSnapshot)
		assert.Equal(t, metrics.OutcomeStoreErr, rep.Outcome)
		assert.Empty(t, f.sent())
	})

	t.Run("init_missing starts from zero", func(t *testing.T) {
		f := newFixture(t, func(c *config.Config) { c.Storage.InitMissing = true })
		a := f.newApp(t)
		defer a.Close()

		_, err := a.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Contains(t, eventNames(f.sent()), reminder.EventNewPeriod)
		assert.Equal(t, 3, f.readSnapshot(t).PeriodCount)
	})
}

func TestDryRunPostsNothingButSavesSnapshot(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.IFTTT.Key = ""
		c.Notifier.DryRun = true
	})
	f.writeSnapshot(t, prevSnapshot)
	a := f.newApp(t)
	defer a.Close()

	rep, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.sent())
	require.Len(t, rep.Deliveries, 3)
	for _, d := range rep.Deliveries {
		assert.True(t, d.DryRun)
	}
	assert.Equal(t, 3, f.readSnapshot(t).PeriodCount)
}

func TestReloadAppliesToNextRun(t *testing.T) {
	f := newFixture(t, nil)
	f.writeSnapshot(t, prevSnapshot)
	a := f.newApp(t)
	defer a.Close()

	rep, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, f.sent(), 3)
	assert.GreaterOrEqual(t, rep.Took, time.Duration(0))
	assert.Less(t, rep.Took, time.Minute, "took is measured on the wall clock, not the injected one")

	old := a.cfgm.Get()
	next := *old
	next.Reminders.VoteMaxAge = "1h"
	next.Notifier.DryRun = true
	a.applyReload(old, &next)

	rep, err = a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.sent(), 3, "dry run must not post")
	for _, ev := range rep.Events {
		assert.NotEqual(t, reminder.EventVoteReminder, ev.Name)
	}
	for _, d := range rep.Deliveries {
		assert.True(t, d.DryRun)
	}
}

func TestHealthDegradesAfterFailedRun(t *testing.T) {
	var h health
	assert.Equal(t, "ok", h.snapshot(time.Time{}).Status)

	h.record(Report{StartedAt: testNow, Outcome: metrics.OutcomeFetchErr, Err: "boom"})
	got := h.snapshot(time.Time{})
	assert.Equal(t, "degraded", got.Status)
	assert.Equal(t, "boom", got.LastError)
	assert.True(t, got.LastOK.IsZero())

	h.record(Report{StartedAt: testNow.Add(time.Hour), Outcome: metrics.OutcomeOK})
	got = h.snapshot(time.Time{})
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, testNow.Add(time.Hour), got.LastOK)
}

func TestResidentRunsOnStartAndStops(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Scheduler = config.SchedulerConfig{Enabled: true, Spec: "1h", RunOnStart: true}
	})
	f.writeSnapshot(t, prevSnapshot)
	a := f.newApp(t)
	require.True(t, a.Resident())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	require.Eventually(t, func() bool {
		return a.healthz().LastOK.Equal(testNow)
	}, 5*time.Second, 20*time.Millisecond)
	assert.False(t, a.healthz().NextRun.IsZero())
	assert.GreaterOrEqual(t, a.healthz().Runs, uint64(1))

	// the bus observer feeds metrics asynchronously
	require.Eventually(t, func() bool {
		families, err := a.metrics.Registry().Gather()
		if err != nil {
			return false
		}
		for _, mf := range families {
			if mf.GetName() == "govreminder_runs_total" && len(mf.GetMetric()) > 0 {
				return mf.GetMetric()[0].GetCounter().GetValue() == 1
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopSignal))

	select {
	case <-a.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	assert.NoError(t, a.Err())
	assert.Equal(t, 3, f.readSnapshot(t).PeriodCount)
}
