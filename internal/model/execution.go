package model

import "time"

// Execution state constants. These exact strings appear in API responses
// and status broadcasts.
const (
	StateQueued    = "Queued"
	StateRunning   = "Running"
	StateCompleted = "Completed"
	StateCancelled = "Cancelled"
	StateFailed    = "Failed"
)

// validTransitions maps each state to the set of states it may transition to.
// Completed, Cancelled, and Failed are terminal; there is no requeueing.
var validTransitions = map[string]map[string]bool{
	StateQueued: {
		StateRunning:   true,
		StateFailed:    true,
		StateCancelled: true,
	},
	StateRunning: {
		StateCompleted: true,
		StateCancelled: true,
		StateFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one state to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether state is an end state.
func Terminal(state string) bool {
	return state == StateCompleted || state == StateCancelled || state == StateFailed
}

// Execution is one accepted, tracked unit of inference work.
type Execution struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Policy    Policy    `json:"policy"`
	State     string    `json:"state"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is an immutable point-in-time projection of an Execution, used
// for both status queries and broadcast messages.
type Snapshot struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartTime time.Time `json:"start_time"`
}

// Snapshot returns the current status projection of the execution.
func (e *Execution) Snapshot() Snapshot {
	return Snapshot{
		ID:        e.ID,
		State:     e.State,
		Result:    e.Result,
		Error:     e.Error,
		StartTime: e.CreatedAt,
	}
}
