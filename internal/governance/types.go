package governance

// Period is one governance period as returned by /periods/.
// Fields the reminders don't use are ignored.
type Period struct {
	ID                      int    `json:"id,omitempty"`
	Slug                    string `json:"slug"`
	Title                   string `json:"title,omitempty"`
	StartDatetime           string `json:"start_datetime"`
	RegistrationEndDatetime string `json:"registration_end_datetime"`
	EndDatetime             string `json:"end_datetime"`
}

// VotingSession is a single vote within the active period.
type VotingSession struct {
	ID                  int    `json:"id,omitempty"`
	Slug                string `json:"slug,omitempty"`
	VotingStartDatetime string `json:"voting_start_datetime"`
	VotingEndDatetime   string `json:"voting_end_datetime"`
}

// ActivePeriod is the /periods/active payload.
type ActivePeriod struct {
	Period
	VotingSessions []VotingSession `json:"voting_sessions"`
}

// PeriodList is the /periods/ payload.
type PeriodList struct {
	Count   int      `json:"count"`
	Results []Period `json:"results"`
}
