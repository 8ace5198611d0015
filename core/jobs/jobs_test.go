package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/events"
	"github.com/FlexMeasures/flexmeasures-sub003/internal/eventbus"
)

func runWorker(t *testing.T, q *Queue, cfg WorkerConfig, bus eventbus.EventBus) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w := NewWorker(q, cfg, bus, nil)
	go func() {
		w.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func waitTerminal(t *testing.T, q *Queue, id string) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := q.Job(id)
		if err != nil {
			t.Fatalf("job: %v", err)
		}
		if job.State.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return Job{}
}

func TestJobRunsToDone(t *testing.T) {
	q := NewQueue(8)
	stop := runWorker(t, q, WorkerConfig{Queue: QueueScheduling}, nil)
	defer stop()

	id, err := q.Enqueue(QueueScheduling, func(ctx context.Context) (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job := waitTerminal(t, q, id)
	if job.State != StateDone {
		t.Fatalf("state: %v (%s)", job.State, job.Err)
	}
	if job.Result != 42 || job.Attempts != 1 {
		t.Fatalf("result %v attempts %d", job.Result, job.Attempts)
	}
	if job.StartedAt.IsZero() || job.FinishedAt.Before(job.StartedAt) {
		t.Fatalf("timestamps not monotone: %v %v", job.StartedAt, job.FinishedAt)
	}
}

func TestTaskSeesOwnJobID(t *testing.T) {
	q := NewQueue(8)
	stop := runWorker(t, q, WorkerConfig{Queue: QueueScheduling}, nil)
	defer stop()

	id, err := q.Enqueue(QueueScheduling, func(ctx context.Context) (any, error) {
		return JobIDFrom(ctx), nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job := waitTerminal(t, q, id)
	if job.Result != id {
		t.Fatalf("task saw job id %v, want %s", job.Result, id)
	}
	if JobIDFrom(context.Background()) != "" {
		t.Fatalf("bare context must carry no job id")
	}
}

func TestJobFailureKeepsError(t *testing.T) {
	q := NewQueue(8)
	stop := runWorker(t, q, WorkerConfig{Queue: QueueScheduling}, nil)
	defer stop()

	id, err := q.Enqueue(QueueScheduling, func(ctx context.Context) (any, error) {
		return nil, fmt.Errorf("price data missing")
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job := waitTerminal(t, q, id)
	if job.State != StateFailed {
		t.Fatalf("state: %v", job.State)
	}
	if job.Err != "price data missing" {
		t.Fatalf("error string: %q", job.Err)
	}
}

func TestJobRetriesWithBackoff(t *testing.T) {
	q := NewQueue(8)
	cfg := WorkerConfig{Queue: QueueForecasting, MaxAttempts: 3, Backoff: time.Millisecond}
	stop := runWorker(t, q, cfg, nil)
	defer stop()

	var calls atomic.Int32
	id, err := q.Enqueue(QueueForecasting, func(ctx context.Context) (any, error) {
		if calls.Add(1) < 3 {
			return nil, fmt.Errorf("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job := waitTerminal(t, q, id)
	if job.State != StateDone || job.Attempts != 3 {
		t.Fatalf("state %v attempts %d", job.State, job.Attempts)
	}
}

func TestJobTimeout(t *testing.T) {
	q := NewQueue(8)
	cfg := WorkerConfig{Queue: QueueScheduling, JobTimeout: 10 * time.Millisecond}
	stop := runWorker(t, q, cfg, nil)
	defer stop()

	id, err := q.Enqueue(QueueScheduling, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job := waitTerminal(t, q, id)
	if job.State != StateFailed {
		t.Fatalf("state: %v", job.State)
	}
	if job.Err != context.DeadlineExceeded.Error() {
		t.Fatalf("error: %q", job.Err)
	}
}

func TestUnknownJob(t *testing.T) {
	q := NewQueue(8)
	if _, err := q.Job("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(1)
	block := func(ctx context.Context) (any, error) { return nil, nil }
	if _, err := q.Enqueue(QueueScheduling, block); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := q.Enqueue(QueueScheduling, block); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	// The rejected job must not linger in pending state.
	if _, err := q.Enqueue(QueueForecasting, block); err != nil {
		t.Fatalf("other queue should be unaffected: %v", err)
	}
}

func TestWorkerPublishesJobEvents(t *testing.T) {
	q := NewQueue(8)
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()

	stop := runWorker(t, q, WorkerConfig{Queue: QueueScheduling}, bus)
	defer stop()

	id, err := q.Enqueue(QueueScheduling, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitTerminal(t, q, id)

	states := map[string]bool{}
	timeout := time.After(time.Second)
	for len(states) < 2 {
		select {
		case e := <-sub:
			if je, ok := e.(events.JobEvent); ok && je.JobID == id {
				states[je.State] = true
			}
		case <-timeout:
			t.Fatalf("missing job events, saw %v", states)
		}
	}
	if !states["running"] || !states["done"] {
		t.Fatalf("expected running and done events, saw %v", states)
	}
}

func TestConcurrentWorkersSingleExecution(t *testing.T) {
	q := NewQueue(64)
	cfg := WorkerConfig{Queue: QueueScheduling, Concurrency: 4}
	stop := runWorker(t, q, cfg, nil)
	defer stop()

	var executions atomic.Int32
	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		id, err := q.Enqueue(QueueScheduling, func(ctx context.Context) (any, error) {
			executions.Add(1)
			return nil, nil
		})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		job := waitTerminal(t, q, id)
		if job.State != StateDone || job.Attempts != 1 {
			t.Fatalf("job %s: state %v attempts %d", id, job.State, job.Attempts)
		}
	}
	if got := executions.Load(); got != 20 {
		t.Fatalf("each job must run exactly once, got %d executions", got)
	}
}
