// Package governance reads the Algorand governance-period API.
//
// Client fetches the active period (with its voting sessions) and the full
// period list. The helpers in this package turn the API's loosely typed
// fields into values the reminder logic can compare: ParseTimestamp returns a
// tagged Timestamp instead of failing, and CurrentPeriod returns (index, ok)
// for the period slug.
package governance
