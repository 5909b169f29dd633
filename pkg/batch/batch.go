// Package batch runs filter chains over many files on a worker pool and
// resumes interrupted runs.
package batch

import (
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/panics"

	fimgs "github.com/rprtr258/fimgs/pkg"
	"github.com/rprtr258/fimgs/pkg/bufpool"
	"github.com/rprtr258/fimgs/pkg/imageio"
	"github.com/rprtr258/fimgs/pkg/resume"
	"github.com/rprtr258/fimgs/pkg/workers"
)

// Item is one input file, where its result goes and what to do with it.
type Item struct {
	Input  string
	Output string
	Chain  fimgs.Chain
}

type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusPartiallyFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusPartiallyFailed:
		return "partially failed"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

type Failure struct {
	Input string
	Err   error
}

// Report summarizes a run.
type Report struct {
	Status Status
	Total  int
	// Completed counts inputs done by this or any earlier run.
	Completed int
	// Skipped counts inputs not processed because they were already done.
	Skipped int
	// Processed counts inputs done by this run.
	Processed int
	// Failures are in input order.
	Failures []Failure
	Duration time.Duration
}

// Progress is reported after every processed input.
type Progress struct {
	Done  int
	Total int
	Input string
	Err   error
}

// Codec loads inputs into pooled buffers and saves outputs.
type Codec interface {
	Load(path string, pool *bufpool.Pool) (*fimgs.Image, *bufpool.Buffer, error)
	Save(path string, im *fimgs.Image) error
}

type Executor struct {
	workers         *workers.Pool
	pool            *bufpool.Pool
	codec           Codec
	logger          *slog.Logger
	checkpointEvery int
	overwrite       bool
	progress        func(Progress)

	status atomic.Int32
}

type Option func(*Executor)

// WithBufferPool shares pixel buffers with filters using the same pool.
func WithBufferPool(p *bufpool.Pool) Option {
	return func(e *Executor) { e.pool = p }
}

func WithCodec(c Codec) Option {
	return func(e *Executor) { e.codec = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithCheckpointEvery saves the resume state after every n successes,
// n <= 0 saves only at the end of the run.
func WithCheckpointEvery(n int) Option {
	return func(e *Executor) { e.checkpointEvery = n }
}

// WithOverwrite reprocesses inputs whose output file already exists. Without
// it, a resumed run treats such inputs as done, covering outputs written just
// before a crash and never recorded in the state file.
func WithOverwrite(overwrite bool) Option {
	return func(e *Executor) { e.overwrite = overwrite }
}

// WithProgress is called from the collecting goroutine, never concurrently.
func WithProgress(f func(Progress)) Option {
	return func(e *Executor) { e.progress = f }
}

func New(w *workers.Pool, opts ...Option) *Executor {
	e := &Executor{
		workers:  w,
		pool:     bufpool.New(),
		codec:    imageio.Codec{},
		logger:   slog.Default(),
		progress: func(Progress) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Status() Status {
	return Status(e.status.Load())
}

type result struct {
	index int
	err   error
}

// Run processes every item not yet recorded in the state file at statePath
// and records the ones that succeed. Individual failures never stop the run.
// An empty statePath disables resuming, existing outputs included.
func (e *Executor) Run(items []Item, statePath string) Report {
	start := time.Now()
	e.status.Store(int32(StatusRunning))

	tracker := resume.Load(statePath, e.logger)
	report := Report{Total: len(items)}

	var pending []int
	for i, item := range items {
		switch {
		case tracker.IsComplete(item.Input):
			report.Skipped++
		case statePath != "" && !e.overwrite && resume.IsAlreadyProduced(item.Output):
			e.logger.Debug("output exists, skipping", "input", item.Input, "output", item.Output)
			tracker.MarkComplete(item.Input)
			report.Skipped++
		default:
			pending = append(pending, i)
		}
	}
	e.logger.Info("batch started",
		"total", len(items),
		"skipped", report.Skipped,
		"pending", len(pending),
		"workers", e.workers.Size(),
	)

	results := make(chan result, len(pending))
	for _, i := range pending {
		i, item := i, items[i]
		if err := e.workers.Go(func() {
			results <- result{index: i, err: e.process(item)}
		}); err != nil {
			results <- result{index: i, err: errors.Wrap(err, "schedule")}
		}
	}

	var failed []result
	for done := 1; done <= len(pending); done++ {
		r := <-results
		input := items[r.index].Input
		if r.err != nil {
			e.logger.Warn("input failed", "input", input, "err", r.err)
			failed = append(failed, r)
		} else {
			tracker.MarkComplete(input)
			report.Processed++
			if e.checkpointEvery > 0 && report.Processed%e.checkpointEvery == 0 {
				e.save(tracker, statePath)
			}
		}
		e.progress(Progress{Done: done, Total: len(pending), Input: input, Err: r.err})
	}
	e.save(tracker, statePath)

	sort.Slice(failed, func(a, b int) bool { return failed[a].index < failed[b].index })
	for _, r := range failed {
		report.Failures = append(report.Failures, Failure{Input: items[r.index].Input, Err: r.err})
	}
	for _, item := range items {
		if tracker.IsComplete(item.Input) {
			report.Completed++
		}
	}

	report.Status = StatusCompleted
	if len(report.Failures) > 0 {
		report.Status = StatusPartiallyFailed
	}
	report.Duration = time.Since(start)
	e.status.Store(int32(report.Status))

	e.logger.Info("batch finished",
		"status", report.Status,
		"completed", report.Completed,
		"processed", report.Processed,
		"failed", len(report.Failures),
		"duration", report.Duration,
	)
	return report
}

func (e *Executor) save(tracker *resume.Tracker, statePath string) {
	if err := tracker.Save(statePath); err != nil {
		e.logger.Error("saving resume state", "path", statePath, "err", err)
	}
}

// process loads, filters and saves one item. Panics become errors so that the
// collector always hears back.
func (e *Executor) process(item Item) (err error) {
	if r := panics.Try(func() { err = e.processUnsafe(item) }); r != nil {
		return errors.Wrapf(r.AsError(), "process %q", item.Input)
	}
	return err
}

func (e *Executor) processUnsafe(item Item) error {
	start := time.Now()
	im, buf, err := e.codec.Load(item.Input, e.pool)
	if err != nil {
		return err
	}
	defer e.pool.Release(buf)

	if err := item.Chain.Apply(im); err != nil {
		return errors.Wrapf(err, "process %q", item.Input)
	}
	if err := e.codec.Save(item.Output, im); err != nil {
		return err
	}
	e.logger.Debug("input done", "input", item.Input, "output", item.Output, "took", time.Since(start))
	return nil
}
