// Package config loads and validates Hyperion's TOML configuration.
//
// Load resolves the config file (explicit path, then the user config dir, then
// a project-local hyperion.toml), merges it over Default(), expands home-relative
// paths, and validates the result. All durations are stored as integer seconds
// and converted at the call sites that consume them.
package config
