// Package bufpool lends scratch byte buffers and takes them back, so that a
// batch of same-sized images allocates its scratch space once.
package bufpool

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

// Buffer is a leased byte slice. It belongs to the caller until released.
type Buffer struct {
	data   []byte
	leased bool
}

// Bytes returns the leased slice; its length is the requested size.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Cap is the capacity of the underlying allocation.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Stats describes pool activity.
type Stats struct {
	Allocations int64
	Reuses      int64
	Free        int
	FreeBytes   int
}

// Pool is a size-bucketed free list, safe for concurrent use. Bucket i holds
// buffers with capacity in [2^i, 2^(i+1)).
type Pool struct {
	mu          sync.Mutex
	buckets     [bits.UintSize][]*Buffer
	maxPerClass int

	allocations atomic.Int64
	reuses      atomic.Int64
}

type Option func(*Pool)

// WithMaxPerClass bounds how many free buffers each capacity class retains;
// n <= 0 keeps everything.
func WithMaxPerClass(n int) Option {
	return func(p *Pool) {
		p.maxPerClass = n
	}
}

func New(opts ...Option) *Pool {
	p := &Pool{maxPerClass: 16}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func floorClass(n int) int {
	return bits.Len(uint(n)) - 1
}

func ceilClass(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// Acquire returns a buffer of length size, reusing a released one when any
// free buffer is large enough. It never waits for a buffer to be released.
// A nil pool always allocates.
func (p *Pool) Acquire(size int) *Buffer {
	if size <= 0 {
		return &Buffer{data: []byte{}, leased: true}
	}
	if p == nil {
		return &Buffer{data: make([]byte, size), leased: true}
	}
	if b := p.take(size); b != nil {
		p.reuses.Add(1)
		return b
	}

	p.allocations.Add(1)
	return &Buffer{
		data:   make([]byte, size, 1<<ceilClass(size)),
		leased: true,
	}
}

func (p *Pool) take(size int) *Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	// buffers in the floor class may or may not fit, pick the tightest one
	class := floorClass(size)
	best := -1
	for i, b := range p.buckets[class] {
		if cap(b.data) >= size && (best == -1 || cap(b.data) < cap(p.buckets[class][best].data)) {
			best = i
		}
	}
	if best != -1 {
		return p.lease(class, best, size)
	}

	// every buffer in a higher class fits
	for class++; class < len(p.buckets); class++ {
		if n := len(p.buckets[class]); n > 0 {
			return p.lease(class, n-1, size)
		}
	}
	return nil
}

func (p *Pool) lease(class, i, size int) *Buffer {
	free := p.buckets[class]
	b := free[i]
	free[i] = free[len(free)-1]
	free[len(free)-1] = nil
	p.buckets[class] = free[:len(free)-1]

	b.data = b.data[:size]
	b.leased = true
	return b
}

// Release hands b back to the pool. Releasing nil, a zero-capacity buffer or
// an already released buffer does nothing.
func (p *Pool) Release(b *Buffer) {
	if p == nil || b == nil || cap(b.data) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !b.leased {
		return
	}
	b.leased = false

	class := floorClass(cap(b.data))
	if p.maxPerClass > 0 && len(p.buckets[class]) >= p.maxPerClass {
		return
	}
	p.buckets[class] = append(p.buckets[class], b)
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Allocations: p.allocations.Load(),
		Reuses:      p.reuses.Load(),
	}
	for _, free := range p.buckets {
		s.Free += len(free)
		for _, b := range free {
			s.FreeBytes += cap(b.data)
		}
	}
	return s
}

// Clear drops all free buffers.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.buckets {
		p.buckets[i] = nil
	}
}
