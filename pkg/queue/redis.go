package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dealerreach/backend/pkg/logger"
)

// visibilityTimeout is how long a popped job may stay in flight before
// the reaper hands it back to the scheduled set.
const visibilityTimeout = 5 * time.Minute

// popDueScript atomically moves due members from the scheduled set to
// the processing set, scored with a visibility deadline.
var popDueScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, id in ipairs(due) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[3], id)
end
return due
`)

// reapScript returns jobs whose visibility deadline expired to the
// scheduled set so another consumer can pick them up (at-least-once).
var reapScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, id in ipairs(expired) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[1], id)
end
return #expired
`)

// RedisQueue is a delayed job queue over Redis sorted sets. Each named
// queue keeps a scheduled ZSET (score = run-at), a processing ZSET
// (score = visibility deadline) and payload/attempt hashes.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue creates a queue over an existing Redis connection.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func scheduledKey(q string) string  { return "queue:" + q + ":scheduled" }
func processingKey(q string) string { return "queue:" + q + ":processing" }
func payloadKey(q string) string    { return "queue:" + q + ":payloads" }
func attemptsKey(q string) string   { return "queue:" + q + ":attempts" }

// Enqueue schedules a job. Re-enqueueing an outstanding job ID is a
// no-op, which is what makes scheduler retries and campaign resumes
// safe.
func (r *RedisQueue) Enqueue(ctx context.Context, queue, jobID string, payload []byte, delay time.Duration) error {
	runAt := time.Now().Add(delay).UnixMilli()

	pipe := r.rdb.TxPipeline()
	pipe.HSetNX(ctx, payloadKey(queue), jobID, payload)
	pipe.ZAddNX(ctx, scheduledKey(queue), redis.Z{Score: float64(runAt), Member: jobID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	return nil
}

// Reschedule moves an existing job to a new delay.
func (r *RedisQueue) Reschedule(ctx context.Context, queue, jobID string, delay time.Duration) error {
	runAt := time.Now().Add(delay).UnixMilli()
	if err := r.rdb.ZAdd(ctx, scheduledKey(queue), redis.Z{Score: float64(runAt), Member: jobID}).Err(); err != nil {
		return fmt.Errorf("failed to reschedule job %s: %w", jobID, err)
	}
	return nil
}

// Remove deletes an outstanding job and its payload. Removing a job
// that already ran is a no-op.
func (r *RedisQueue) Remove(ctx context.Context, queue, jobID string) error {
	pipe := r.rdb.TxPipeline()
	pipe.ZRem(ctx, scheduledKey(queue), jobID)
	pipe.ZRem(ctx, processingKey(queue), jobID)
	pipe.HDel(ctx, payloadKey(queue), jobID)
	pipe.HDel(ctx, attemptsKey(queue), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove job %s: %w", jobID, err)
	}
	return nil
}

// ack deletes every trace of a finished job.
func (r *RedisQueue) ack(ctx context.Context, queue, jobID string) error {
	pipe := r.rdb.TxPipeline()
	pipe.ZRem(ctx, processingKey(queue), jobID)
	pipe.HDel(ctx, payloadKey(queue), jobID)
	pipe.HDel(ctx, attemptsKey(queue), jobID)
	_, err := pipe.Exec(ctx)
	return err
}

// popDue claims up to limit due jobs from the queue.
func (r *RedisQueue) popDue(ctx context.Context, queue string, limit int) ([]*Job, error) {
	now := time.Now().UnixMilli()
	deadline := time.Now().Add(visibilityTimeout).UnixMilli()

	ids, err := popDueScript.Run(ctx, r.rdb,
		[]string{scheduledKey(queue), processingKey(queue)},
		now, limit, deadline,
	).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to pop due jobs: %w", err)
	}

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		payload, err := r.rdb.HGet(ctx, payloadKey(queue), id).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		attempts, _ := r.rdb.HGet(ctx, attemptsKey(queue), id).Result()
		n, _ := strconv.Atoi(attempts)
		jobs = append(jobs, &Job{ID: id, Queue: queue, Payload: []byte(payload), Attempts: n})
	}
	return jobs, nil
}

// reap returns expired in-flight jobs to the scheduled set.
func (r *RedisQueue) reap(ctx context.Context, queue string) error {
	now := time.Now().UnixMilli()
	return reapScript.Run(ctx, r.rdb,
		[]string{processingKey(queue), scheduledKey(queue)},
		now, 100,
	).Err()
}

// consumerSpec binds a handler and its concurrency to a queue name.
type consumerSpec struct {
	handler     Handler
	concurrency int
}

// Consumer polls queues and dispatches due jobs to their handlers with
// bounded per-queue concurrency.
type Consumer struct {
	rq         *RedisQueue
	log        logger.Logger
	maxRetries int
	onFailure  FailureHandler
	pollEvery  time.Duration

	mu    sync.Mutex
	specs map[string]consumerSpec
}

// NewConsumer creates a consumer. onFailure may be nil.
func NewConsumer(rq *RedisQueue, maxRetries int, onFailure FailureHandler, log logger.Logger) *Consumer {
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{
		rq:         rq,
		log:        log,
		maxRetries: maxRetries,
		onFailure:  onFailure,
		pollEvery:  500 * time.Millisecond,
		specs:      make(map[string]consumerSpec),
	}
}

// Register binds a handler to a queue with the given concurrency.
func (c *Consumer) Register(queue string, concurrency int, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if concurrency < 1 {
		concurrency = 1
	}
	c.specs[queue] = consumerSpec{handler: h, concurrency: concurrency}
}

// Run polls all registered queues until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup

	c.mu.Lock()
	specs := make(map[string]consumerSpec, len(c.specs))
	for q, s := range c.specs {
		specs[q] = s
	}
	c.mu.Unlock()

	for queue, spec := range specs {
		wg.Add(1)
		go func(queue string, spec consumerSpec) {
			defer wg.Done()
			c.pollLoop(ctx, queue, spec)
		}(queue, spec)
	}

	wg.Wait()
}

func (c *Consumer) pollLoop(ctx context.Context, queue string, spec consumerSpec) {
	sem := make(chan struct{}, spec.concurrency)
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	reapTicker := time.NewTicker(time.Minute)
	defer reapTicker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reapTicker.C:
			if err := c.rq.reap(ctx, queue); err != nil && ctx.Err() == nil {
				c.log.Error("queue reap failed", "queue", queue, "error", err)
			}
		case <-ticker.C:
			free := spec.concurrency - len(sem)
			if free <= 0 {
				continue
			}
			jobs, err := c.rq.popDue(ctx, queue, free)
			if err != nil {
				if ctx.Err() == nil {
					c.log.Error("queue poll failed", "queue", queue, "error", err)
				}
				continue
			}
			for _, job := range jobs {
				sem <- struct{}{}
				wg.Add(1)
				go func(job *Job) {
					defer wg.Done()
					defer func() { <-sem }()
					c.process(ctx, queue, spec.handler, job)
				}(job)
			}
		}
	}
}

// process runs one job and settles it: ack, park, retry or fail.
func (c *Consumer) process(ctx context.Context, queue string, handler Handler, job *Job) {
	err := handler(ctx, job)
	if err == nil {
		if ackErr := c.rq.ack(ctx, queue, job.ID); ackErr != nil {
			c.log.Error("job ack failed", "queue", queue, "job", job.ID, "error", ackErr)
		}
		return
	}

	var resched *RescheduleError
	if errors.As(err, &resched) {
		// Parked, not failed: attempts are untouched.
		pipe := c.rq.rdb.TxPipeline()
		pipe.ZRem(ctx, processingKey(queue), job.ID)
		pipe.ZAdd(ctx, scheduledKey(queue), redis.Z{
			Score:  float64(time.Now().Add(resched.Delay).UnixMilli()),
			Member: job.ID,
		})
		if _, pipeErr := pipe.Exec(ctx); pipeErr != nil {
			c.log.Error("job park failed", "queue", queue, "job", job.ID, "error", pipeErr)
		}
		return
	}

	attempts, incErr := c.rq.rdb.HIncrBy(ctx, attemptsKey(queue), job.ID, 1).Result()
	if incErr != nil {
		c.log.Error("job attempt bump failed", "queue", queue, "job", job.ID, "error", incErr)
		return
	}

	if int(attempts) > c.maxRetries {
		c.log.Warn("job failed permanently", "queue", queue, "job", job.ID, "attempts", attempts, "error", err)
		if ackErr := c.rq.ack(ctx, queue, job.ID); ackErr != nil {
			c.log.Error("failed job cleanup failed", "queue", queue, "job", job.ID, "error", ackErr)
		}
		if c.onFailure != nil {
			job.Attempts = int(attempts)
			c.onFailure(ctx, job, err)
		}
		return
	}

	delay := retryDelay(int(attempts))
	c.log.Warn("job failed, retrying", "queue", queue, "job", job.ID, "attempt", attempts, "retry_in", delay, "error", err)

	pipe := c.rq.rdb.TxPipeline()
	pipe.ZRem(ctx, processingKey(queue), job.ID)
	pipe.ZAdd(ctx, scheduledKey(queue), redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMilli()),
		Member: job.ID,
	})
	if _, pipeErr := pipe.Exec(ctx); pipeErr != nil {
		c.log.Error("job retry requeue failed", "queue", queue, "job", job.ID, "error", pipeErr)
	}
}
