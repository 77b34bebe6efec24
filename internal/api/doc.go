// Package api defines transport-friendly types and the upload lifecycle
// operations shared by the CLI and daemon. It translates internal queue and
// fleet models into DTOs with camelCase JSON tags so consumers never couple
// to internal types.
package api
