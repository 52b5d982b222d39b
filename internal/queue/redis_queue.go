package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"pcos-backend/internal/shared/metrics"
	"pcos-backend/internal/shared/telemetry"
)

// RetryPolicy bounds redelivery of failed jobs.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// Delay returns the wait before the next delivery after the given number
// of completed failed attempts (1 => BackoffBase, doubling thereafter).
func (p RetryPolicy) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	return p.BackoffBase << (failures - 1)
}

// RedisQueue is a named, durable, at-least-once job queue on Redis.
//
// Layout: a waiting list consumed with BRPOPLPUSH into a per-queue
// processing list, a delayed zset scored by ready-time for backoff, and a
// dead list for jobs that exhausted their attempts. A job leaves the
// processing list only after its handler returns; entries stranded there
// by a crashed consumer are requeued on the next Consume start.
type RedisQueue struct {
	rdb    *redis.Client
	name   string
	policy RetryPolicy
}

// NewRedisQueue constructs a queue with the given name and retry policy.
func NewRedisQueue(rdb *redis.Client, name string, policy RetryPolicy) *RedisQueue {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 5
	}
	if policy.BackoffBase <= 0 {
		policy.BackoffBase = 5 * time.Second
	}
	return &RedisQueue{rdb: rdb, name: name, policy: policy}
}

func (q *RedisQueue) key(suffix string) string {
	return "queue:" + q.name + ":" + suffix
}

// Send enqueues a message onto the waiting list.
func (q *RedisQueue) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode queue message: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key("waiting"), payload).Err(); err != nil {
		return fmt.Errorf("queue send: %w", err)
	}
	return nil
}

// Consume pulls jobs until ctx is canceled, invoking handler for each.
// Failed jobs are rescheduled with exponential backoff until the attempt
// limit, then moved to the dead list.
func (q *RedisQueue) Consume(ctx context.Context, handler Handler) error {
	if err := q.recoverProcessing(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := q.promoteDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
			telemetry.Error("queue.promote_failed", map[string]any{"queue": q.name, "error": err.Error()})
		}

		payload, err := q.rdb.BRPopLPush(ctx, q.key("waiting"), q.key("processing"), time.Second).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			telemetry.Error("queue.receive_failed", map[string]any{"queue": q.name, "error": err.Error()})
			time.Sleep(time.Second)
			continue
		}

		handlerErr := handler(ctx, payload)
		if err := q.rdb.LRem(ctx, q.key("processing"), 1, payload).Err(); err != nil {
			telemetry.Error("queue.ack_failed", map[string]any{"queue": q.name, "error": err.Error()})
		}
		if handlerErr != nil {
			q.reschedule(ctx, payload, handlerErr)
		}
	}
}

// reschedule re-delivers a failed payload with backoff, or moves it to the
// dead list after the attempt limit.
func (q *RedisQueue) reschedule(ctx context.Context, payload string, cause error) {
	msg, err := DecodeMessage([]byte(payload))
	if err != nil {
		// Undecodable payloads cannot be retried meaningfully.
		q.bury(ctx, payload, fmt.Errorf("decode: %w", err))
		return
	}

	failures := msg.Attempt + 1
	if failures >= q.policy.MaxAttempts {
		q.bury(ctx, payload, cause)
		return
	}

	msg.Attempt = failures
	next, err := EncodeMessage(msg)
	if err != nil {
		q.bury(ctx, payload, fmt.Errorf("re-encode: %w", err))
		return
	}

	delay := q.policy.Delay(failures)
	readyAt := time.Now().Add(delay)
	if err := q.rdb.ZAdd(ctx, q.key("delayed"), &redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: string(next),
	}).Err(); err != nil {
		telemetry.Error("queue.reschedule_failed", map[string]any{"queue": q.name, "error": err.Error()})
		return
	}
	metrics.IncJobsRetried()
	telemetry.Info("queue.job_rescheduled", map[string]any{
		"queue":       q.name,
		"analysis_id": msg.AnalysisID,
		"attempt":     failures,
		"delay_ms":    delay.Milliseconds(),
		"error":       cause.Error(),
	})
}

func (q *RedisQueue) bury(ctx context.Context, payload string, cause error) {
	if err := q.rdb.LPush(ctx, q.key("dead"), payload).Err(); err != nil {
		telemetry.Error("queue.bury_failed", map[string]any{"queue": q.name, "error": err.Error()})
		return
	}
	metrics.IncJobsDead()
	telemetry.Error("queue.job_dead", map[string]any{
		"queue": q.name,
		"error": cause.Error(),
	})
}

// promoteDue moves delayed jobs whose ready-time has passed back onto the
// waiting list.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	due, err := q.rdb.ZRangeByScore(ctx, q.key("delayed"), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: 100,
	}).Result()
	if err != nil {
		return err
	}
	for _, payload := range due {
		removed, err := q.rdb.ZRem(ctx, q.key("delayed"), payload).Result()
		if err != nil {
			return err
		}
		// Another consumer may have claimed it between range and rem.
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.key("waiting"), payload).Err(); err != nil {
			return err
		}
	}
	return nil
}

// recoverProcessing requeues entries stranded in the processing list by a
// previous consumer that died mid-job.
func (q *RedisQueue) recoverProcessing(ctx context.Context) error {
	stranded, err := q.rdb.LRange(ctx, q.key("processing"), 0, -1).Result()
	if err != nil {
		return err
	}
	if len(stranded) == 0 {
		return nil
	}
	for _, payload := range stranded {
		if err := q.rdb.LPush(ctx, q.key("waiting"), payload).Err(); err != nil {
			return err
		}
	}
	if err := q.rdb.Del(ctx, q.key("processing")).Err(); err != nil {
		return err
	}
	telemetry.Info("queue.recovered", map[string]any{"queue": q.name, "count": len(stranded)})
	return nil
}

// DeadLetters returns the payloads currently on the dead list, for
// operator inspection.
func (q *RedisQueue) DeadLetters(ctx context.Context) ([]string, error) {
	return q.rdb.LRange(ctx, q.key("dead"), 0, -1).Result()
}

var _ Client = (*RedisQueue)(nil)
