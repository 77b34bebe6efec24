package queue_test

import (
	"testing"

	"hyperion/internal/queue"
)

func TestPipelineEdges(t *testing.T) {
	allowed := []struct{ from, to queue.Status }{
		{queue.StatusPending, queue.StatusUploaded},
		{queue.StatusPending, queue.StatusFailed},
		{queue.StatusUploaded, queue.StatusExtracting},
		{queue.StatusUploaded, queue.StatusFailed},
		{queue.StatusExtracting, queue.StatusProcessing},
		{queue.StatusExtracting, queue.StatusUploaded},
		{queue.StatusExtracting, queue.StatusFailed},
		{queue.StatusProcessing, queue.StatusReady},
		{queue.StatusProcessing, queue.StatusUploaded},
		{queue.StatusProcessing, queue.StatusFailed},
	}
	allowedSet := make(map[[2]queue.Status]bool, len(allowed))
	for _, edge := range allowed {
		allowedSet[[2]queue.Status{edge.from, edge.to}] = true
		if !queue.CanTransition(edge.from, edge.to) {
			t.Errorf("expected %s -> %s to be legal", edge.from, edge.to)
		}
	}

	for _, from := range queue.AllStatuses() {
		for _, to := range queue.AllStatuses() {
			if allowedSet[[2]queue.Status{from, to}] {
				continue
			}
			if queue.CanTransition(from, to) {
				t.Errorf("expected %s -> %s to be illegal", from, to)
			}
		}
	}
}

func TestTerminalStatusesHaveNoSuccessors(t *testing.T) {
	for _, status := range []queue.Status{queue.StatusReady, queue.StatusFailed} {
		if !queue.IsTerminal(status) {
			t.Errorf("expected %s to be terminal", status)
		}
		if next := queue.Successors(status); len(next) != 0 {
			t.Errorf("terminal %s has successors %v", status, next)
		}
	}
	for _, status := range []queue.Status{queue.StatusExtracting, queue.StatusProcessing} {
		if !queue.IsInFlight(status) {
			t.Errorf("expected %s to be in-flight", status)
		}
	}
	if queue.IsInFlight(queue.StatusUploaded) {
		t.Error("UPLOADED must not count as in-flight")
	}
}
