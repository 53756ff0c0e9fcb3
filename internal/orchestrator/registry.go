package orchestrator

import "sync"

// CancelRegistry tracks in-flight runs so cancellation broadcasts can reach
// the worker that owns a message. Cancellation is best effort: the flag is
// polled at step boundaries, and a signal for an unknown message is dropped.
type CancelRegistry struct {
	mu   sync.Mutex
	runs map[string]bool
}

// NewCancelRegistry creates an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{runs: make(map[string]bool)}
}

// Register adds a run for the given message id.
func (r *CancelRegistry) Register(messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[messageID] = false
}

// Unregister removes a run once it reaches a terminal state.
func (r *CancelRegistry) Unregister(messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, messageID)
}

// Cancel flags the run owning the message, if this worker has it.
func (r *CancelRegistry) Cancel(messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[messageID]; ok {
		r.runs[messageID] = true
	}
}

// Cancelled reports whether the run for the message has been flagged.
func (r *CancelRegistry) Cancelled(messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[messageID]
}
