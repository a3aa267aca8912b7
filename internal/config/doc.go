// Package config loads, validates, and hot-reloads govreminder configuration.
//
// JSON, YAML, and TOML files are all coerced to JSON and decoded strictly
// (unknown keys are rejected) on top of Default(). Secrets can come from the
// environment instead of the file. In resident mode Manager.Watch reloads the
// file on change and publishes validated configs to subscribers.
package config
