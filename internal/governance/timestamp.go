package governance

import (
	"time"

	logx "govreminder/pkg/logx"
)

// TimestampLayout is the only format the API uses for datetimes.
const TimestampLayout = "2006-01-02T15:04:05Z"

// displayLayout matches how the reminder payloads have always rendered
// session times ("2021-10-01 15:00:00").
const displayLayout = "2006-01-02 15:04:05"

// Timestamp is either a parsed UTC time (Valid) or the raw API string that
// failed to parse. Callers must check Valid before comparing.
type Timestamp struct {
	Time  time.Time
	Raw   string
	Valid bool
}

// ParseTimestamp parses raw in TimestampLayout. A malformed value is logged
// and returned as-is with Valid=false.
func ParseTimestamp(log logx.Logger, raw string) Timestamp {
	t, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		log.Warn("value is not a datetime", logx.String("value", raw))
		return Timestamp{Raw: raw}
	}
	return Timestamp{Time: t, Raw: raw, Valid: true}
}

// ParseTimestamps maps ParseTimestamp over raws, preserving order.
func ParseTimestamps(log logx.Logger, raws []string) []Timestamp {
	out := make([]Timestamp, len(raws))
	for i, raw := range raws {
		out[i] = ParseTimestamp(log, raw)
	}
	return out
}

// String renders a valid timestamp as "YYYY-MM-DD HH:MM:SS" and an invalid
// one as its raw value.
func (t Timestamp) String() string {
	if !t.Valid {
		return t.Raw
	}
	return t.Time.Format(displayLayout)
}
