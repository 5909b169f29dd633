package workers

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitRunsEveryUnitOnce(t *testing.T) {
	p := New(4)
	defer p.Close()

	const n = 1000
	counts := make([]atomic.Int32, n)
	for i := 0; i < n; i++ {
		i := i
		require.NoError(t, p.Go(func() { counts[i].Add(1) }))
	}
	p.Wait()

	for i := range counts {
		require.Equal(t, int32(1), counts[i].Load(), "unit %d", i)
	}
	assert.Equal(t, 0, p.QueueSize())
}

func TestWaitOnIdlePoolReturns(t *testing.T) {
	p := New(2)
	defer p.Close()
	p.Wait()
}

func TestSize(t *testing.T) {
	p := New(3)
	defer p.Close()
	assert.Equal(t, 3, p.Size())

	q := New(0)
	defer q.Close()
	assert.Positive(t, q.Size())
}

func TestQueueSizeWhileBlocked(t *testing.T) {
	p := New(1)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Go(func() {
		close(started)
		<-release
	}))
	<-started
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Go(func() {}))
	}
	assert.Equal(t, 3, p.QueueSize())

	close(release)
	p.Wait()
	assert.Equal(t, 0, p.QueueSize())
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	var mu sync.Mutex
	var recovered []any
	p := New(1, WithPanicHandler(func(r *panics.Recovered) {
		mu.Lock()
		defer mu.Unlock()
		recovered = append(recovered, r.Value)
	}))
	defer p.Close()

	var ran atomic.Bool
	require.NoError(t, p.Go(func() { panic("boom") }))
	require.NoError(t, p.Go(func() { ran.Store(true) }))
	p.Wait()

	assert.True(t, ran.Load())
	assert.Equal(t, []any{"boom"}, recovered)
}

func TestCloseDrainsQueuedWork(t *testing.T) {
	p := New(2)
	var done atomic.Int32
	for i := 0; i < 50; i++ {
		require.NoError(t, p.Go(func() {
			time.Sleep(time.Millisecond)
			done.Add(1)
		}))
	}
	p.Close()
	assert.Equal(t, int32(50), done.Load())

	assert.ErrorIs(t, p.Go(func() {}), ErrClosed)
	p.Close()
}

func TestUnitsRunInParallel(t *testing.T) {
	p := New(4)
	defer p.Close()

	var wg sync.WaitGroup
	wg.Add(4)
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Go(func() {
			wg.Done()
			// blocks until all four units run at the same time
			wg.Wait()
		}))
	}
	p.Wait()
}
