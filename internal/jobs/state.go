// Package jobs tracks long-running backend jobs: a job is submitted to the
// server-side queue, identified by an opaque id, and polled on a fixed
// cadence until it reaches a terminal state. The tracker translates queue
// states into update/done callbacks without leaking its poll timer.
package jobs

import "context"

// State is a job queue state as reported by the backend.
type State string

// Job states. SUCCESS, FAILURE, and REVOKED are terminal — once observed,
// no further transition occurs and polling stops.
const (
	StatePending State = "PENDING"
	StateStarted State = "STARTED"
	StateSuccess State = "SUCCESS"
	StateFailure State = "FAILURE"
	StateRevoked State = "REVOKED"
)

// Terminal reports whether no further state transition can occur.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFailure, StateRevoked:
		return true
	default:
		return false
	}
}

// Status is a point-in-time snapshot of a tracked job. Progress fields and
// counters are advisory, for display only — control flow depends solely on
// State.
type Status struct {
	State   State  `json:"state"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
	// Counters holds free-form progress counters reported by the job,
	// e.g. new_count, skipped_count, updated_count, deleted_count.
	Counters map[string]int `json:"counters,omitempty"`
	// Err carries the diagnostic payload for FAILURE/REVOKED states.
	Err string `json:"error,omitempty"`
}

// Outcome is the final result delivered to the done callback.
type Outcome struct {
	Success bool
	Final   Status
}

// Queue is the external job queue, reachable through exactly two operations.
// Defined at the consumer per Go convention "accept interfaces, return
// structs" — the api package provides the real implementation.
type Queue interface {
	// Submit enqueues work of the given kind and returns the job id.
	Submit(ctx context.Context, kind string, params map[string]any) (string, error)
	// Status reads the current state of a job.
	Status(ctx context.Context, jobID string) (Status, error)
}

// Job submission kinds understood by the backend queue.
const (
	KindFetch      = "fetch"
	KindSyncStatus = "sync_status"
	KindClassify   = "classify"
)
