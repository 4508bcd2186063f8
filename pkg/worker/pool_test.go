package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hbomb79/Siphon/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startPool(t *testing.T, size int) *worker.WorkerPool {
	pool := worker.NewWorkerPool(size)
	require.NoError(t, pool.Start())
	t.Cleanup(pool.Close)

	return pool
}

func Test_Do_ReturnsTaskError(t *testing.T) {
	pool := startPool(t, 2)
	expected := errors.New("test: expected error")

	err := pool.Do(context.Background(), "failing", func() error { return expected })
	assert.ErrorIs(t, err, expected)

	assert.NoError(t, pool.Do(context.Background(), "ok", func() error { return nil }))
}

func Test_Do_RecoversPanics(t *testing.T) {
	pool := startPool(t, 1)

	err := pool.Do(context.Background(), "panicking", func() error { panic("boom") })
	assert.ErrorContains(t, err, "boom")
	assert.ErrorIs(t, err, worker.ErrTaskPanicked)

	// Worker survives the panic and accepts more work
	assert.NoError(t, pool.Do(context.Background(), "after-panic", func() error { return nil }))
}

func Test_Do_BoundsConcurrency(t *testing.T) {
	const size = 3
	pool := startPool(t, size)

	var running, peak atomic.Int32
	wg := sync.WaitGroup{}
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), "counted", func() error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(size))
	assert.Equal(t, size, pool.Size())
}

func Test_Do_ContextCancelledWhileQueued(t *testing.T) {
	pool := startPool(t, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = pool.Do(context.Background(), "blocker", func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Do(ctx, "queued", func() error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func Test_Do_RequiresStartedPool(t *testing.T) {
	pool := worker.NewWorkerPool(1)
	err := pool.Do(context.Background(), "never", func() error { return nil })
	assert.ErrorIs(t, err, worker.ErrPoolNotStarted)

	require.NoError(t, pool.Start())
	assert.ErrorIs(t, pool.Start(), worker.ErrPoolStarted)
	pool.Close()
}

func Test_Busy_ReportsWorkingWorkers(t *testing.T) {
	pool := startPool(t, 2)
	release := make(chan struct{})
	started := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- pool.Do(context.Background(), "held", func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	busy := pool.Busy()
	require.Len(t, busy, 1)
	assert.Contains(t, busy[0], "pool-worker-")

	close(release)
	require.NoError(t, <-done)
	assert.Eventually(t, func() bool { return len(pool.Busy()) == 0 }, time.Second, 5*time.Millisecond)
}
