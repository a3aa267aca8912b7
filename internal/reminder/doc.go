// Package reminder decides which notifications a run should fire.
//
// Evaluate compares freshly fetched governance data against the previous
// snapshot and the current time, and returns zero or more events:
//
//   - reminder_algo_vote: an active voting session started more than a minute
//     and at most five days ago.
//   - new_algo_gov_period: the period count grew since the last snapshot.
//   - reminder_algo_signup: a period starts within five days of now
//     (either side). Fires once per qualifying period.
//
// The three checks are independent. Evaluate performs no I/O.
package reminder
