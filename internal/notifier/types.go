package notifier

import (
	"time"

	"govreminder/internal/reminder"
)

// Config controls webhook delivery.
type Config struct {
	BaseURL string // e.g. https://maker.ifttt.com
	Key     string
	Timeout time.Duration
	// RatePerSec paces sends. 0 disables pacing.
	RatePerSec int
	DryRun     bool
}

// Delivery is the outcome of one send. It is also the Data of the
// notifier.* bus events.
type Delivery struct {
	RunID    string           `json:"run_id"`
	Event    string           `json:"event"`
	Payload  reminder.Payload `json:"payload"`
	Status   int              `json:"status,omitempty"`
	DryRun   bool             `json:"dry_run,omitempty"`
	Error    string           `json:"error,omitempty"`
	At       time.Time        `json:"at"`
	Duration time.Duration    `json:"duration"`
}

// OK reports whether the webhook accepted the event.
func (d Delivery) OK() bool { return d.Error == "" && !d.DryRun }
