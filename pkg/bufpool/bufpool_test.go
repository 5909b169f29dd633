package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLength(t *testing.T) {
	p := New()
	for _, size := range []int{1, 2, 3, 1000, 1 << 16, 1<<16 + 1} {
		b := p.Acquire(size)
		assert.Len(t, b.Bytes(), size)
		assert.GreaterOrEqual(t, b.Cap(), size)
		p.Release(b)
	}
}

func TestReleaseThenAcquireReusesAllocation(t *testing.T) {
	p := New()
	b := p.Acquire(1000)
	first := &b.Bytes()[:1][0]
	p.Release(b)

	for _, size := range []int{1000, 800, 513, 1} {
		b2 := p.Acquire(size)
		assert.Same(t, first, &b2.Bytes()[:1][0], "size %d", size)
		p.Release(b2)
	}

	s := p.Stats()
	assert.Equal(t, int64(1), s.Allocations)
	assert.Equal(t, int64(4), s.Reuses)
	assert.Equal(t, 1, s.Free)
}

func TestAcquireLargerThanFreeAllocates(t *testing.T) {
	p := New()
	small := p.Acquire(100)
	p.Release(small)

	big := p.Acquire(5000)
	assert.GreaterOrEqual(t, big.Cap(), 5000)
	assert.Equal(t, int64(2), p.Stats().Allocations)
	assert.Equal(t, 1, p.Stats().Free)
}

func TestAcquirePicksTightestFit(t *testing.T) {
	p := New()
	// capacities 1024 and 2048 after rounding
	a, b := p.Acquire(1024), p.Acquire(2048)
	p.Release(b)
	p.Release(a)

	got := p.Acquire(600)
	assert.Equal(t, 1024, got.Cap())
}

func TestDoubleReleaseIsIgnored(t *testing.T) {
	p := New()
	b := p.Acquire(64)
	p.Release(b)
	p.Release(b)
	assert.Equal(t, 1, p.Stats().Free)

	x, y := p.Acquire(64), p.Acquire(64)
	assert.NotSame(t, &x.Bytes()[0], &y.Bytes()[0])
}

func TestRetentionLimit(t *testing.T) {
	p := New(WithMaxPerClass(2))
	bufs := []*Buffer{p.Acquire(10), p.Acquire(10), p.Acquire(10)}
	for _, b := range bufs {
		p.Release(b)
	}
	assert.Equal(t, 2, p.Stats().Free)

	p.Clear()
	assert.Equal(t, 0, p.Stats().Free)
}

func TestNilPool(t *testing.T) {
	var p *Pool
	b := p.Acquire(10)
	require.Len(t, b.Bytes(), 10)
	p.Release(b)
}

func TestConcurrentLeasesNeverOverlap(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				b := p.Acquire(256 + i%300)
				data := b.Bytes()
				for j := range data {
					data[j] = id
				}
				for j := range data {
					if data[j] != id {
						t.Errorf("buffer shared: goroutine %d saw %d", id, data[j])
						return
					}
				}
				p.Release(b)
			}
		}(byte(g + 1))
	}
	wg.Wait()
	assert.LessOrEqual(t, p.Stats().Allocations, int64(8*2))
}

func BenchmarkPool(b *testing.B) {
	b.Run("pool", func(b *testing.B) {
		p := New()
		for i := 0; i < b.N; i++ {
			p.Release(p.Acquire(1 << 20))
		}
	})
	b.Run("make", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = make([]byte, 1<<20)
		}
	})
}
