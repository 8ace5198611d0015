package jobs

import (
	"context"
	"time"
)

// State is the lifecycle stage of a job. Transitions only move forward:
// pending -> running -> done | failed (with retries cycling through running).
type State int

const (
	StatePending State = iota
	StateRunning
	StateDone
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Task is the work a job performs. The context carries the per-job timeout
// and the job's ID; the returned value is stored on the job as its result.
type Task func(ctx context.Context) (any, error)

type jobIDKey struct{}

// WithJobID returns a context carrying the job's ID. Workers attach it before
// running a task so the task can stamp its outputs.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, id)
}

// JobIDFrom returns the job ID carried by ctx, or the empty string when the
// task runs outside a worker.
func JobIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey{}).(string)
	return id
}

// Job tracks one unit of asynchronous work through its lifecycle.
type Job struct {
	ID         string    `json:"id"`
	Queue      string    `json:"queue"`
	State      State     `json:"state"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Attempts   int       `json:"attempts"`
	// Err holds the final error string for failed jobs.
	Err string `json:"error,omitempty"`
	// Result is the task's return value, available once the job is done.
	Result any `json:"result,omitempty"`
}
