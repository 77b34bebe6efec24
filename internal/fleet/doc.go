// Package fleet runs the fixed set of worker units that drain the task queue.
//
// Each unit polls for claimable tasks, drives a claimed task through the
// extraction and processing stages, and heartbeats on an independent schedule
// so slow stages never make a live unit look dead. The registry grades
// aggregate cluster health from slot heartbeats and assignments.
package fleet
