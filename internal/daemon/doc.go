// Package daemon wires the worker fleet, the reaper, and the daily counter
// reset into a single long-running process guarded by a file lock.
package daemon
