package reminder

import (
	"bytes"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govreminder/internal/governance"
	logx "govreminder/pkg/logx"
)

var now = time.Date(2021, 10, 10, 12, 0, 0, 0, time.UTC)

func ts(t time.Time) string { return t.Format(governance.TimestampLayout) }

func activeWithSession(start time.Time) governance.ActivePeriod {
	return governance.ActivePeriod{
		Period: governance.Period{Slug: "governance-period-4"},
		VotingSessions: []governance.VotingSession{{
			Slug:                "vote-1",
			VotingStartDatetime: ts(start),
			VotingEndDatetime:   ts(start.Add(14 * 24 * time.Hour)),
		}},
	}
}

func periods(count int, starts ...time.Time) governance.PeriodList {
	out := governance.PeriodList{Count: count}
	for _, s := range starts {
		out.Results = append(out.Results, governance.Period{
			StartDatetime:           ts(s),
			RegistrationEndDatetime: ts(s.Add(14 * 24 * time.Hour)),
		})
	}
	return out
}

func names(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Name)
	}
	return out
}

func TestVoteReminderWindow(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{"two days", 48 * time.Hour, true},
		{"exactly five days", 5 * 24 * time.Hour, true},
		{"ten days", 10 * 24 * time.Hour, false},
		{"thirty seconds", 30 * time.Second, false},
		{"exactly one minute", time.Minute, false},
		{"in the future", -time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := NewEvaluator(DefaultWindows(), logx.Nop())
			d := ev.Evaluate(Input{
				Now:            now,
				PreviousPeriod: 4,
				Active:         activeWithSession(now.Add(-tt.age)),
				Periods:        periods(4, now.Add(-60*24*time.Hour)),
			})
			if tt.want {
				require.Equal(t, []string{EventVoteReminder}, names(d.Events))
			} else {
				assert.Empty(t, d.Events)
			}
		})
	}
}

func TestVoteReminderPayload(t *testing.T) {
	t.Parallel()
	start := time.Date(2021, 10, 8, 15, 0, 0, 0, time.UTC)
	d := NewEvaluator(DefaultWindows(), logx.Nop()).Evaluate(Input{
		Now:            now,
		PreviousPeriod: 4,
		Active:         activeWithSession(start),
	})
	require.Len(t, d.Events, 1)
	assert.Equal(t, Payload{
		Value1: "4",
		Value2: "2021-10-08 15:00:00",
		Value3: "2021-10-22 15:00:00",
	}, d.Events[0].Payload)
	assert.True(t, d.HasCurrentPeriod)
	assert.Equal(t, 4, d.CurrentPeriod)
}

func TestNewPeriodDetection(t *testing.T) {
	t.Parallel()
	old := now.Add(-90 * 24 * time.Hour)
	latest := now.Add(-30 * 24 * time.Hour)

	tests := []struct {
		name     string
		count    int
		previous int
		want     bool
	}{
		{"count grew", 5, 4, true},
		{"unchanged", 4, 4, false},
		{"shrank", 3, 4, false},
		{"first run", 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := NewEvaluator(DefaultWindows(), logx.Nop()).Evaluate(Input{
				Now:            now,
				PreviousPeriod: tt.previous,
				Active:         governance.ActivePeriod{Period: governance.Period{Slug: "governance-period-4"}},
				Periods:        periods(tt.count, old, latest),
			})
			if !tt.want {
				assert.Empty(t, d.Events)
				return
			}
			require.Equal(t, []string{EventNewPeriod}, names(d.Events))
			assert.Equal(t, Payload{
				Value1: strconv.Itoa(tt.count),
				Value2: latest.Format("Jan 02"),
				Value3: latest.Add(14 * 24 * time.Hour).Format("Jan 02"),
			}, d.Events[0].Payload)
		})
	}
}

func TestSignupReminderEitherSide(t *testing.T) {
	t.Parallel()
	upcoming := now.Add(3 * 24 * time.Hour)
	justStarted := now.Add(-2 * 24 * time.Hour)
	farAway := now.Add(40 * 24 * time.Hour)

	d := NewEvaluator(DefaultWindows(), logx.Nop()).Evaluate(Input{
		Now:            now,
		PreviousPeriod: 3,
		Active:         governance.ActivePeriod{Period: governance.Period{Slug: "governance-period-3"}},
		Periods:        periods(3, justStarted, upcoming, farAway),
	})
	require.Equal(t, []string{EventSignupReminder, EventSignupReminder}, names(d.Events))
	// every signup reminder carries the newest dates across all periods
	for _, e := range d.Events {
		assert.Equal(t, "3", e.Payload.Value1)
		assert.Equal(t, farAway.Format("Jan 02"), e.Payload.Value2)
	}
}

func TestChecksAreIndependent(t *testing.T) {
	t.Parallel()
	upcoming := now.Add(24 * time.Hour)
	d := NewEvaluator(DefaultWindows(), logx.Nop()).Evaluate(Input{
		Now:            now,
		PreviousPeriod: 4,
		Active:         activeWithSession(now.Add(-48 * time.Hour)),
		Periods:        periods(5, now.Add(-90*24*time.Hour), upcoming),
	})
	assert.Equal(t, []string{EventVoteReminder, EventNewPeriod, EventSignupReminder}, names(d.Events))
	assert.Equal(t, 5, d.PeriodCount)
}

func TestCustomWindows(t *testing.T) {
	t.Parallel()
	w := Windows{VoteMinAge: time.Hour, VoteMaxAge: 24 * time.Hour, SignupWindow: time.Hour}
	d := NewEvaluator(w, logx.Nop()).Evaluate(Input{
		Now:            now,
		PreviousPeriod: 4,
		Active:         activeWithSession(now.Add(-48 * time.Hour)),
		Periods:        periods(4, now.Add(3*time.Hour)),
	})
	assert.Empty(t, d.Events)
}

func TestUnparseableSlugLeavesCurrentPeriodUnset(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	active := activeWithSession(now.Add(-48 * time.Hour))
	active.Slug = "governance-period-x"

	d := NewEvaluator(DefaultWindows(), logx.NewJSON(&buf, "DEBUG")).Evaluate(Input{Now: now, Active: active})
	assert.False(t, d.HasCurrentPeriod)
	require.Len(t, d.Events, 1)
	assert.Equal(t, "", d.Events[0].Payload.Value1)
	assert.Contains(t, buf.String(), "governance-period-x")
}

func TestInvalidDatesAreSkipped(t *testing.T) {
	t.Parallel()
	list := governance.PeriodList{Count: 2, Results: []governance.Period{
		{StartDatetime: "tbd", RegistrationEndDatetime: "tbd"},
	}}
	d := NewEvaluator(DefaultWindows(), logx.Nop()).Evaluate(Input{
		Now:     now,
		Active:  governance.ActivePeriod{VotingSessions: []governance.VotingSession{{VotingStartDatetime: "soon"}}},
		Periods: list,
	})
	// new period is due (2 > 0) but has no dates to report
	assert.Empty(t, d.Events)
}

func TestNewPeriodTimeline(t *testing.T) {
	t.Parallel()
	a := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)
	c := time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)

	tl, err := NewPeriodTimeline(logx.Nop(), periods(3, a, b, c).Results)
	require.NoError(t, err)
	assert.Equal(t, "Oct 01", tl.StartLabel())
	assert.Equal(t, "Oct 15", tl.RegistrationEndLabel())

	_, err = NewPeriodTimeline(logx.Nop(), nil)
	assert.ErrorIs(t, err, ErrNoTimeline)
}
