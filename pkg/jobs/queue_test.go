package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "remind:APL-1", Kind: "remind", AppealID: "APL-1"}))

	select {
	case job := <-done:
		assert.Equal(t, "APL-1", job.AppealID)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job not processed")
	}
	assert.Eventually(t, func() bool { return q.InFlight() == 0 }, time.Second, 10*time.Millisecond)
}

func TestQueueRejectsDuplicateInFlight(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, _ Job) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "same"}))
	assert.ErrorIs(t, q.Enqueue(Job{ID: "same"}), ErrDuplicate)
	close(release)

	assert.Eventually(t, func() bool { return q.InFlight() == 0 }, time.Second, 10*time.Millisecond)
	assert.NoError(t, q.Enqueue(Job{ID: "same"}))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var calls int32
	q := NewQueue("test", func(context.Context, Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("boom")
		}
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "retry"}))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 3 && q.InFlight() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "x"}))
}
