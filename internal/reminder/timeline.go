package reminder

import (
	"errors"

	"govreminder/internal/governance"
	logx "govreminder/pkg/logx"
)

// ErrNoTimeline is returned when no period carries a parseable start or
// registration end.
var ErrNoTimeline = errors.New("no valid period dates")

// labelLayout renders dates as "Oct 01".
const labelLayout = "Jan 02"

// Timeline is the newest start and newest registration end across a set of periods.
type Timeline struct {
	Start           governance.Timestamp
	RegistrationEnd governance.Timestamp
}

func (t Timeline) StartLabel() string { return t.Start.Time.Format(labelLayout) }

func (t Timeline) RegistrationEndLabel() string { return t.RegistrationEnd.Time.Format(labelLayout) }

// NewPeriodTimeline takes the maximum start and, independently, the maximum
// registration end across periods. Unparseable values are skipped.
func NewPeriodTimeline(log logx.Logger, periods []governance.Period) (Timeline, error) {
	var out Timeline
	for _, p := range periods {
		if s := governance.ParseTimestamp(log, p.StartDatetime); s.Valid && (!out.Start.Valid || s.Time.After(out.Start.Time)) {
			out.Start = s
		}
		if r := governance.ParseTimestamp(log, p.RegistrationEndDatetime); r.Valid && (!out.RegistrationEnd.Valid || r.Time.After(out.RegistrationEnd.Time)) {
			out.RegistrationEnd = r
		}
	}
	if !out.Start.Valid || !out.RegistrationEnd.Valid {
		return Timeline{}, ErrNoTimeline
	}
	return out, nil
}
