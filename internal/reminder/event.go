package reminder

import "time"

// Event names double as the webhook trigger names.
const (
	EventVoteReminder   = "reminder_algo_vote"
	EventNewPeriod      = "new_algo_gov_period"
	EventSignupReminder = "reminder_algo_signup"
)

// Payload is the generic three-slot body the webhook relay understands.
// Slot meaning depends on the event.
type Payload struct {
	Value1 string `json:"value1"`
	Value2 string `json:"value2"`
	Value3 string `json:"value3"`
}

// Event is one notification to deliver.
type Event struct {
	Name    string
	Payload Payload
}

// Windows are the thresholds used by the checks.
type Windows struct {
	// A voting session qualifies when VoteMinAge < now-start <= VoteMaxAge.
	VoteMinAge time.Duration
	VoteMaxAge time.Duration
	// A period qualifies for a signup reminder when |start-now| <= SignupWindow.
	SignupWindow time.Duration
}

func DefaultWindows() Windows {
	return Windows{
		VoteMinAge:   time.Minute,
		VoteMaxAge:   5 * 24 * time.Hour,
		SignupWindow: 5 * 24 * time.Hour,
	}
}
