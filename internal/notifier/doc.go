// Package notifier delivers reminder events to the IFTTT maker webhook.
//
// Each event becomes one POST to {base}/trigger/{event}/with/key/{key} with a
// JSON body {"value1","value2","value3"}. Sends are sequential, paced by a
// token bucket, and never retried: a failed send is logged, published on the
// event bus, and the run carries on.
//
// # Mirror
//
// An optional Mirror (see the telegram subpackage) receives a human-readable
// copy of every event that was delivered. Mirror failures are logged only.
//
// # Dry run
//
// With DryRun set, events are logged and published as notifier.dry_run and
// nothing leaves the process.
package notifier
