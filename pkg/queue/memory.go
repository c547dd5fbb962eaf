package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type memJob struct {
	id       string
	payload  []byte
	runAt    time.Time
	attempts int
}

// MemoryQueue is an in-process Queue with the same semantics as the
// Redis one: delayed delivery, job-ID dedup, reschedule and removal.
// It backs tests and single-process development runs.
type MemoryQueue struct {
	mu     sync.Mutex
	queues map[string]map[string]*memJob
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{queues: make(map[string]map[string]*memJob)}
}

// Enqueue schedules a job; an outstanding job ID is not duplicated.
func (m *MemoryQueue) Enqueue(ctx context.Context, queue, jobID string, payload []byte, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs, ok := m.queues[queue]
	if !ok {
		jobs = make(map[string]*memJob)
		m.queues[queue] = jobs
	}
	if _, exists := jobs[jobID]; exists {
		return nil
	}
	jobs[jobID] = &memJob{id: jobID, payload: payload, runAt: time.Now().Add(delay)}
	return nil
}

// Reschedule moves a job to a new delay, creating it if missing.
func (m *MemoryQueue) Reschedule(ctx context.Context, queue, jobID string, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs, ok := m.queues[queue]
	if !ok {
		jobs = make(map[string]*memJob)
		m.queues[queue] = jobs
	}
	job, exists := jobs[jobID]
	if !exists {
		job = &memJob{id: jobID}
		jobs[jobID] = job
	}
	job.runAt = time.Now().Add(delay)
	return nil
}

// Remove deletes an outstanding job.
func (m *MemoryQueue) Remove(ctx context.Context, queue, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if jobs, ok := m.queues[queue]; ok {
		delete(jobs, jobID)
	}
	return nil
}

// Jobs returns the outstanding jobs of a queue ordered by run time.
func (m *MemoryQueue) Jobs(queue string) []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Job
	for _, j := range m.queues[queue] {
		out = append(out, &Job{ID: j.id, Queue: queue, Payload: j.payload, Attempts: j.attempts})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// Size returns the number of outstanding jobs in a queue.
func (m *MemoryQueue) Size(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[queue])
}

// Drain synchronously runs every job due at the given instant through
// the handler, applying ack/reschedule/retry semantics. It loops until
// nothing more is due, which lets tests step through dispatch without
// timers.
func (m *MemoryQueue) Drain(ctx context.Context, queue string, now time.Time, maxRetries int, onFailure FailureHandler, h Handler) int {
	processed := 0
	for {
		job := m.popDue(queue, now)
		if job == nil {
			return processed
		}
		processed++

		err := h(ctx, &Job{ID: job.id, Queue: queue, Payload: job.payload, Attempts: job.attempts})
		if err == nil {
			continue
		}

		var resched *RescheduleError
		if errors.As(err, &resched) {
			// Parked, not failed: attempts are untouched.
			m.requeue(queue, job, now.Add(resched.Delay))
			continue
		}

		job.attempts++
		if job.attempts > maxRetries {
			if onFailure != nil {
				onFailure(ctx, &Job{ID: job.id, Queue: queue, Payload: job.payload, Attempts: job.attempts}, err)
			}
			continue
		}
		m.requeue(queue, job, now.Add(retryDelay(job.attempts)))
	}
}

func (m *MemoryQueue) popDue(queue string, now time.Time) *memJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, j := range m.queues[queue] {
		if !j.runAt.After(now) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)
	job := m.queues[queue][ids[0]]
	delete(m.queues[queue], ids[0])
	return job
}

func (m *MemoryQueue) requeue(queue string, job *memJob, runAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.runAt = runAt
	if m.queues[queue] == nil {
		m.queues[queue] = make(map[string]*memJob)
	}
	m.queues[queue][job.id] = job
}
