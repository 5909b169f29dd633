// Package workers is a fixed-size goroutine pool with an unbounded queue and
// a wait barrier.
package workers

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// ErrClosed is returned when work is submitted to a closed pool.
var ErrClosed = errors.New("worker pool is closed")

// Pool runs submitted functions on a fixed set of goroutines.
// Queued work always runs, Close drains the queue before returning.
type Pool struct {
	mu      sync.Mutex
	ready   *sync.Cond // queue got work or the pool is closing
	idle    *sync.Cond // queue empty and nothing running
	queue   []func()
	running int
	closed  bool

	size    int
	workers *conc.WaitGroup
	onPanic func(*panics.Recovered)
}

type Option func(*Pool)

// WithPanicHandler is called with every panic recovered from a unit of work.
func WithPanicHandler(f func(*panics.Recovered)) Option {
	return func(p *Pool) {
		p.onPanic = f
	}
}

// WithLogger logs recovered panics at error level.
func WithLogger(logger *slog.Logger) Option {
	return WithPanicHandler(func(r *panics.Recovered) {
		logger.Error("unit of work panicked", "panic", r.Value, "stack", string(r.Stack))
	})
}

// New starts n workers, n <= 0 means GOMAXPROCS.
func New(n int, opts ...Option) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		size:    n,
		workers: conc.NewWaitGroup(),
		onPanic: func(*panics.Recovered) {},
	}
	p.ready = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < n; i++ {
		p.workers.Go(p.loop)
	}
	return p
}

func (p *Pool) loop() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.ready.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		f := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.running++
		p.mu.Unlock()

		if r := panics.Try(f); r != nil {
			p.onPanic(r)
		}

		p.mu.Lock()
		p.running--
		if p.running == 0 && len(p.queue) == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

// Go enqueues f without blocking.
func (p *Pool) Go(f func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.queue = append(p.queue, f)
	p.ready.Signal()
	return nil
}

// Wait blocks until the queue is empty and no unit is running. Work submitted
// concurrently with Wait may or may not be waited for.
func (p *Pool) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) > 0 || p.running > 0 {
		p.idle.Wait()
	}
}

// Size is the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// QueueSize is the number of units waiting for a worker.
func (p *Pool) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.queue)
}

// Close stops accepting work, lets queued work finish and joins the workers.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.ready.Broadcast()
	p.mu.Unlock()

	p.workers.Wait()
}
