package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsJob(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "regenerate", Payload: []string{"x-1"}}))

	select {
	case job := <-done:
		assert.Equal(t, "job-1", job.ID)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job not processed")
	}
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var calls int32
	gaveUp := make(chan Job, 1)
	q := NewQueue("test", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnGiveUp:   func(job Job, _ error) { gaveUp <- job },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))

	select {
	case job := <-gaveUp:
		assert.Equal(t, 3, job.Attempt)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	case <-time.After(2 * time.Second):
		t.Fatal("job never abandoned")
	}
}

func TestQueuePermanentErrorSkipsRetries(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var lastErr error
	gaveUp := make(chan struct{}, 1)
	q := NewQueue("test", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return Permanent(errors.New("bad input"))
	}, QueueConfig{
		MaxRetries: 5,
		RetryDelay: time.Millisecond,
		OnGiveUp: func(_ Job, err error) {
			mu.Lock()
			lastErr = err
			mu.Unlock()
			gaveUp <- struct{}{}
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))

	select {
	case <-gaveUp:
	case <-time.After(2 * time.Second):
		t.Fatal("job never abandoned")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, IsPermanent(lastErr))
	assert.EqualError(t, lastErr, "bad input")
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "job-1"}))
	assert.Nil(t, Permanent(nil))
}
