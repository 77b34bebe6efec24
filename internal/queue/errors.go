package queue

import "errors"

// ErrInvalidTransition indicates a caller requested a status change that is not
// an edge of the pipeline graph. This is a programming or caller error and is
// never coerced into a different transition.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrStaleTransition indicates the task advanced past the status the caller
// observed before the transition could apply. The store leaves the task
// untouched; callers discard their result.
var ErrStaleTransition = errors.New("stale transition: task state has moved on")

// ErrUnknownWorker indicates a worker identifier outside the fixed fleet.
var ErrUnknownWorker = errors.New("unknown worker")
