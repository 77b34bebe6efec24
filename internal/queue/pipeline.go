package queue

// The status pipeline is a fixed graph:
//
//	PENDING -> UPLOADED -> EXTRACTING -> PROCESSING -> READY
//
// FAILED is reachable from every non-terminal status. READY and FAILED are
// terminal. UPLOADED is additionally reachable from EXTRACTING and PROCESSING,
// which is the reaper's recovery edge for tasks reclaimed from dead workers.
var successors = map[Status][]Status{
	StatusPending:    {StatusUploaded, StatusFailed},
	StatusUploaded:   {StatusExtracting, StatusFailed},
	StatusExtracting: {StatusProcessing, StatusUploaded, StatusFailed},
	StatusProcessing: {StatusReady, StatusUploaded, StatusFailed},
	StatusReady:      nil,
	StatusFailed:     nil,
}

// CanTransition reports whether to is a legal successor of from.
func CanTransition(from, to Status) bool {
	for _, next := range successors[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Successors returns the legal next statuses for a given status.
func Successors(from Status) []Status {
	next := successors[from]
	cp := make([]Status, len(next))
	copy(cp, next)
	return cp
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(status Status) bool {
	return status == StatusReady || status == StatusFailed
}

// IsInFlight reports whether a status means a worker currently owns the task.
func IsInFlight(status Status) bool {
	return status == StatusExtracting || status == StatusProcessing
}
