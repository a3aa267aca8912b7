package reminder

import (
	"errors"
	"strconv"
	"time"

	"govreminder/internal/governance"
	logx "govreminder/pkg/logx"
)

// Input is everything one decision needs.
type Input struct {
	Now time.Time
	// PreviousPeriod is current_period from the last snapshot; 0 when absent.
	PreviousPeriod int
	Active         governance.ActivePeriod
	Periods        governance.PeriodList
}

// Decision is the outcome of Evaluate: events to send plus the values the
// next snapshot should record.
type Decision struct {
	Events        []Event
	PeriodCount   int
	CurrentPeriod int
	// HasCurrentPeriod is false when the active slug did not end in a digit.
	HasCurrentPeriod bool
}

// Evaluator applies the reminder rules with configurable windows.
type Evaluator struct {
	windows Windows
	log     logx.Logger
}

func NewEvaluator(w Windows, log logx.Logger) *Evaluator {
	if log.IsZero() {
		log = logx.Nop()
	}
	def := DefaultWindows()
	if w.VoteMaxAge <= 0 {
		w.VoteMaxAge = def.VoteMaxAge
	}
	if w.SignupWindow <= 0 {
		w.SignupWindow = def.SignupWindow
	}
	return &Evaluator{windows: w, log: log}
}

func (e *Evaluator) Windows() Windows { return e.windows }

// Evaluate runs the vote, new-period, and signup checks in that order.
func (e *Evaluator) Evaluate(in Input) Decision {
	now := in.Now.UTC()
	cur, ok := governance.CurrentPeriod(e.log, in.Active.Slug)

	d := Decision{
		PeriodCount:      in.Periods.Count,
		CurrentPeriod:    cur,
		HasCurrentPeriod: ok,
	}
	var curLabel string
	if ok {
		curLabel = strconv.Itoa(cur)
	}

	d.Events = append(d.Events, e.voteReminders(now, curLabel, in.Active.VotingSessions)...)

	// Built lazily: both remaining checks share it.
	var (
		timeline    Timeline
		timelineErr error
		built       bool
	)
	getTimeline := func() (Timeline, error) {
		if !built {
			timeline, timelineErr = NewPeriodTimeline(e.log, in.Periods.Results)
			built = true
		}
		return timeline, timelineErr
	}
	countLabel := strconv.Itoa(in.Periods.Count)

	if in.Periods.Count > in.PreviousPeriod {
		if tl, err := getTimeline(); err != nil {
			e.logTimelineErr(EventNewPeriod, err)
		} else {
			d.Events = append(d.Events, Event{
				Name:    EventNewPeriod,
				Payload: Payload{Value1: countLabel, Value2: tl.StartLabel(), Value3: tl.RegistrationEndLabel()},
			})
		}
	}

	for _, p := range in.Periods.Results {
		start := governance.ParseTimestamp(e.log, p.StartDatetime)
		if !start.Valid {
			continue
		}
		if absDuration(start.Time.Sub(now)) > e.windows.SignupWindow {
			continue
		}
		tl, err := getTimeline()
		if err != nil {
			e.logTimelineErr(EventSignupReminder, err)
			break
		}
		d.Events = append(d.Events, Event{
			Name:    EventSignupReminder,
			Payload: Payload{Value1: countLabel, Value2: tl.StartLabel(), Value3: tl.RegistrationEndLabel()},
		})
	}

	return d
}

func (e *Evaluator) voteReminders(now time.Time, curLabel string, sessions []governance.VotingSession) []Event {
	var out []Event
	for _, s := range sessions {
		start := governance.ParseTimestamp(e.log, s.VotingStartDatetime)
		end := governance.ParseTimestamp(e.log, s.VotingEndDatetime)
		if !start.Valid {
			e.log.Debug("voting session skipped", logx.String("slug", s.Slug))
			continue
		}
		age := now.Sub(start.Time)
		if age <= e.windows.VoteMinAge || age > e.windows.VoteMaxAge {
			continue
		}
		out = append(out, Event{
			Name:    EventVoteReminder,
			Payload: Payload{Value1: curLabel, Value2: start.String(), Value3: end.String()},
		})
	}
	return out
}

func (e *Evaluator) logTimelineErr(event string, err error) {
	if errors.Is(err, ErrNoTimeline) {
		e.log.Warn("event skipped: no valid period dates", logx.String("event", event))
		return
	}
	e.log.Warn("event skipped", logx.String("event", event), logx.Err(err))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
