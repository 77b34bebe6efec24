// Package notifications delivers fleet events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. The Service interface covers the lifecycle milestones the fleet
// and reaper emit, so callers never touch HTTP glue directly.
package notifications
