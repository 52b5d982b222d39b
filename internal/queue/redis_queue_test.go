package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, policy RetryPolicy) (*RedisQueue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisQueue(rdb, "ml_queue", policy), rdb
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BackoffBase: 5 * time.Second}

	require.Equal(t, 5*time.Second, p.Delay(1))
	require.Equal(t, 10*time.Second, p.Delay(2))
	require.Equal(t, 20*time.Second, p.Delay(3))
	require.Equal(t, 40*time.Second, p.Delay(4))
	// Out-of-range input clamps to the first step.
	require.Equal(t, 5*time.Second, p.Delay(0))
}

func TestRedisQueueDeliversMessage(t *testing.T) {
	q, _ := newTestQueue(t, RetryPolicy{MaxAttempts: 5, BackoffBase: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sent := Message{AnalysisID: "analysis-1", RequestID: "req-1", EnqueuedAt: time.Now().UTC().Format(time.RFC3339)}
	require.NoError(t, q.Send(ctx, sent))

	received := make(chan Message, 1)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, body string) error {
			msg, err := DecodeMessage([]byte(body))
			if err != nil {
				return err
			}
			received <- msg
			return nil
		})
	}()

	select {
	case msg := <-received:
		require.Equal(t, sent.AnalysisID, msg.AnalysisID)
		require.Equal(t, sent.RequestID, msg.RequestID)
		require.Equal(t, 0, msg.Attempt)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
	cancel()

	// Acked: nothing left on any queue key.
	waiting, err := q.rdb.LLen(context.Background(), q.key("waiting")).Result()
	require.NoError(t, err)
	require.Zero(t, waiting)
}

func TestRedisQueueRetriesWithBackoff(t *testing.T) {
	q, _ := newTestQueue(t, RetryPolicy{MaxAttempts: 5, BackoffBase: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Send(ctx, Message{AnalysisID: "analysis-1"}))

	attempts := make(chan int, 8)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, body string) error {
			msg, err := DecodeMessage([]byte(body))
			if err != nil {
				return err
			}
			attempts <- msg.Attempt
			if msg.Attempt < 2 {
				return errors.New("transient failure")
			}
			return nil
		})
	}()

	var seen []int
	for len(seen) < 3 {
		select {
		case a := <-attempts:
			seen = append(seen, a)
		case <-time.After(10 * time.Second):
			t.Fatalf("deliveries stalled after %v", seen)
		}
	}
	require.Equal(t, []int{0, 1, 2}, seen)
}

func TestRedisQueueBuriesAfterMaxAttempts(t *testing.T) {
	q, _ := newTestQueue(t, RetryPolicy{MaxAttempts: 2, BackoffBase: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Send(ctx, Message{AnalysisID: "analysis-1"}))

	var calls int32
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, _ string) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("permanent failure")
		})
	}()

	deadline := time.Now().Add(10 * time.Second)
	var dead []string
	for time.Now().Before(deadline) {
		var err error
		dead, err = q.DeadLetters(context.Background())
		require.NoError(t, err)
		if len(dead) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Len(t, dead, 1)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))

	msg, err := DecodeMessage([]byte(dead[0]))
	require.NoError(t, err)
	require.Equal(t, "analysis-1", msg.AnalysisID)
	require.Equal(t, 1, msg.Attempt)
}

func TestRedisQueueRecoversStrandedJobs(t *testing.T) {
	q, rdb := newTestQueue(t, RetryPolicy{MaxAttempts: 5, BackoffBase: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Simulate a consumer that died mid-job.
	payload, err := EncodeMessage(Message{AnalysisID: "analysis-1"})
	require.NoError(t, err)
	require.NoError(t, rdb.LPush(ctx, q.key("processing"), payload).Err())

	received := make(chan string, 1)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, body string) error {
			received <- body
			return nil
		})
	}()

	select {
	case body := <-received:
		msg, err := DecodeMessage([]byte(body))
		require.NoError(t, err)
		require.Equal(t, "analysis-1", msg.AnalysisID)
	case <-time.After(5 * time.Second):
		t.Fatal("stranded job not recovered")
	}
}
