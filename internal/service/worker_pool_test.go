package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"legal-doc-analyzer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsQueuedTasksAndDrains(t *testing.T) {
	pool := NewWorkerPool(3, 10, NewMockLogger())
	var ran atomic.Int32

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit("task", func(ctx context.Context) {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
		}))
	}
	assert.Equal(t, 10, pool.Pending())

	pool.Start()
	pool.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))
	assert.Equal(t, int32(10), ran.Load())

	assert.ErrorIs(t, pool.Submit("late", func(context.Context) {}), ErrPoolClosed)
}

func TestWorkerPool_FullQueue(t *testing.T) {
	pool := NewWorkerPool(1, 1, NewMockLogger())

	require.NoError(t, pool.Submit("first", func(context.Context) {}))
	err := pool.Submit("second", func(context.Context) {})
	assert.ErrorIs(t, err, domain.ErrQueueFull)
}

func TestWorkerPool_SurvivesPanics(t *testing.T) {
	logger := NewMockLogger()
	pool := NewWorkerPool(1, 2, logger)
	pool.Start()

	done := make(chan struct{})
	require.NoError(t, pool.Submit("boom", func(context.Context) { panic("boom") }))
	require.NoError(t, pool.Submit("after", func(context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
	assert.True(t, logger.Contains("Worker task panicked"))

	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestWorkerPool_ShutdownDeadlineCancelsTasks(t *testing.T) {
	pool := NewWorkerPool(1, 1, NewMockLogger())
	pool.Start()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, pool.Submit("long", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-cancelled:
	default:
		t.Fatal("running task was not cancelled")
	}
}
