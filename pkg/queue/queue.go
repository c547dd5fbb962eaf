package queue

import (
	"context"
	"fmt"
	"time"
)

// Job is one unit of delayed work. The ID doubles as the dedup key:
// enqueueing the same ID into the same queue twice is a no-op while
// the first copy is still outstanding.
type Job struct {
	ID       string
	Queue    string
	Payload  []byte
	Attempts int
}

// Handler processes a due job. Returning nil acknowledges the job.
// Returning a RescheduleError moves the job to a later slot without
// counting as a failure. Any other error triggers retry with backoff
// until the retry budget is exhausted.
type Handler func(ctx context.Context, job *Job) error

// FailureHandler runs once a job has exhausted its retries. It is the
// hook that turns a permanently failing send into a terminal touch
// state instead of a silent disappearance.
type FailureHandler func(ctx context.Context, job *Job, err error)

// Queue is the delayed job queue contract the scheduler and workers
// depend on. Delivery is at least once; handlers must be idempotent.
type Queue interface {
	Enqueue(ctx context.Context, queue, jobID string, payload []byte, delay time.Duration) error
	Reschedule(ctx context.Context, queue, jobID string, delay time.Duration) error
	Remove(ctx context.Context, queue, jobID string) error
}

// RescheduleError asks the consumer to run the job again after Delay.
// It is distinct from failure: attempts are not consumed. This is how
// a worker parks a job until the legal send window opens.
type RescheduleError struct {
	Delay time.Duration
}

func (e *RescheduleError) Error() string {
	return fmt.Sprintf("job rescheduled in %s", e.Delay)
}

// Reschedule builds a RescheduleError.
func Reschedule(delay time.Duration) error {
	return &RescheduleError{Delay: delay}
}

// retryDelay is the exponential backoff applied between retries.
func retryDelay(attempt int) time.Duration {
	d := 30 * time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= time.Hour {
			return time.Hour
		}
	}
	return d
}
