package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue names used by the platform.
const (
	QueueForecasting = "forecasting"
	QueueScheduling  = "scheduling"
)

// ErrUnknownJob indicates no job exists for the requested ID.
var ErrUnknownJob = errors.New("jobs: unknown job")

// ErrQueueFull indicates the queue's buffer is exhausted.
var ErrQueueFull = errors.New("jobs: queue full")

type pending struct {
	id   string
	task Task
}

// Queue is an in-process job queue. Jobs are enqueued under a named queue
// and picked up by a Worker; their state survives in memory for API
// retrieval until the queue is garbage collected with the process.
type Queue struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	queues map[string]chan pending
	buffer int
}

// NewQueue creates a queue whose named sub-queues buffer up to the given
// number of pending jobs each.
func NewQueue(buffer int) *Queue {
	if buffer <= 0 {
		buffer = 64
	}
	return &Queue{
		jobs:   make(map[string]*Job),
		queues: make(map[string]chan pending),
		buffer: buffer,
	}
}

// Enqueue registers a job on the named queue and returns its ID.
func (q *Queue) Enqueue(queue string, task Task) (string, error) {
	if task == nil {
		return "", fmt.Errorf("jobs: task is nil")
	}
	id := uuid.NewString()
	job := &Job{ID: id, Queue: queue, State: StatePending, EnqueuedAt: time.Now()}

	q.mu.Lock()
	ch, ok := q.queues[queue]
	if !ok {
		ch = make(chan pending, q.buffer)
		q.queues[queue] = ch
	}
	q.jobs[id] = job
	q.mu.Unlock()

	select {
	case ch <- pending{id: id, task: task}:
		return id, nil
	default:
		q.mu.Lock()
		delete(q.jobs, id)
		q.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrQueueFull, queue)
	}
}

// Job returns a snapshot of the job with the given ID.
func (q *Queue) Job(id string) (Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return *job, nil
}

// channel returns the pending-job channel for the named queue, creating it
// on first use so workers can start before the first enqueue.
func (q *Queue) channel(queue string) chan pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.queues[queue]
	if !ok {
		ch = make(chan pending, q.buffer)
		q.queues[queue] = ch
	}
	return ch
}

// update applies fn to the stored job under the write lock and returns the
// resulting snapshot.
func (q *Queue) update(id string, fn func(*Job)) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	fn(job)
	return *job, true
}
