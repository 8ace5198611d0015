package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/events"
	"github.com/FlexMeasures/flexmeasures-sub003/core/logger"
	"github.com/FlexMeasures/flexmeasures-sub003/internal/eventbus"
)

// WorkerConfig tunes the worker pool draining one named queue.
type WorkerConfig struct {
	// Queue is the name of the queue to drain.
	Queue string `json:"queue"`
	// Concurrency is the number of goroutines executing jobs. Defaults to 1.
	Concurrency int `json:"concurrency"`
	// JobTimeout bounds a single attempt. Zero means no timeout.
	JobTimeout time.Duration `json:"job_timeout"`
	// MaxAttempts bounds retries. Defaults to 1 (no retry).
	MaxAttempts int `json:"max_attempts"`
	// Backoff is the delay before a retry, doubled on each attempt.
	Backoff time.Duration `json:"backoff"`
}

// Worker drains one named queue with a pool of goroutines. Each job runs on
// exactly one goroutine at a time; failed attempts are retried with
// exponential backoff up to MaxAttempts.
type Worker struct {
	queue *Queue
	cfg   WorkerConfig
	bus   eventbus.EventBus
	log   logger.Logger
}

// NewWorker creates a worker pool for the configured queue. The bus and
// logger may be nil.
func NewWorker(q *Queue, cfg WorkerConfig, bus eventbus.EventBus, log logger.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Worker{queue: q, cfg: cfg, bus: bus, log: log}
}

// Run drains the queue until the context is cancelled. It blocks; callers
// run it in a goroutine per the service lifecycle.
func (w *Worker) Run(ctx context.Context) {
	ch := w.queue.channel(w.cfg.Queue)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case p, ok := <-ch:
					if !ok {
						return
					}
					w.execute(ctx, p)
				}
			}
		}()
	}
	wg.Wait()
}

// execute runs one job through its attempts and records the outcome.
func (w *Worker) execute(ctx context.Context, p pending) {
	job, ok := w.queue.update(p.id, func(j *Job) {
		j.State = StateRunning
		j.StartedAt = time.Now()
	})
	if !ok {
		return
	}
	w.publish(job, nil)

	backoff := w.cfg.Backoff
	var result any
	var err error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		job, _ = w.queue.update(p.id, func(j *Job) { j.Attempts = attempt })
		result, err = w.attempt(ctx, p)
		if err == nil {
			break
		}
		if w.log != nil {
			w.log.Warnf("job %s attempt %d/%d failed: %v", p.id, attempt, w.cfg.MaxAttempts, err)
		}
		if attempt == w.cfg.MaxAttempts || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
		if ctx.Err() != nil {
			break
		}
	}

	job, _ = w.queue.update(p.id, func(j *Job) {
		j.FinishedAt = time.Now()
		if err != nil {
			j.State = StateFailed
			j.Err = err.Error()
			return
		}
		j.State = StateDone
		j.Result = result
	})
	w.publish(job, err)
	if w.log != nil && err == nil {
		w.log.Debugf("job %s on %s done after %d attempt(s)", p.id, w.cfg.Queue, job.Attempts)
	}
}

// attempt runs the task once under the per-job timeout, with the job's ID on
// the context.
func (w *Worker) attempt(ctx context.Context, p pending) (any, error) {
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer cancel()
	}
	return p.task(WithJobID(ctx, p.id))
}

func (w *Worker) publish(job Job, err error) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(events.JobEvent{
		JobID:   job.ID,
		Queue:   job.Queue,
		State:   job.State.String(),
		Attempt: job.Attempts,
		Err:     err,
	})
}
