// Package storage persists the run snapshot and the delivery log.
//
// Two drivers are available:
//   - "file": the snapshot is a pretty-printed JSON document at Path, replaced
//     atomically on save. Deliveries go to <prefix>.deliveries.jsonl.
//   - "sqlite": a single database file holding both (pure-Go driver).
//
// Both drivers hold an advisory lock on <path>.lock for the lifetime of the
// store, so two processes never race on the same snapshot.
package storage
