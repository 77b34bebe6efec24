// Package queue persists media tasks, their status pipeline, the per-task
// audit log, and the fixed fleet slots in a single SQLite database.
//
// All multi-row updates run inside one transaction, so a reader never sees a
// task whose status, assignment, and audit trail disagree. Status changes are
// guarded on the state the caller observed; a lost race returns
// ErrStaleTransition and changes nothing.
package queue
