// Package scheduler triggers the reminder run in resident mode.
//
// A single job is registered from a schedule string (cron expression, "@every"
// descriptor, Go duration, or HH:MM interval). Triggers that fire while the
// previous run is still in flight are skipped, never queued.
package scheduler
