package swarm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Task represents a unit of work for the swarm.
type Task func(ctx context.Context) error

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("swarm: engine stopped")

// Options bounds the worker pool.
type Options struct {
	Start, Min, Max int

	// Throttled reports whether a task error means the backend asked for
	// less load. Nil treats every error as healthy feedback.
	Throttled func(error) bool
}

// Engine runs submitted tasks on a pool whose size follows an AIMD target.
type Engine struct {
	aimd      *AIMD
	throttled func(error) bool

	tasks   chan Task
	quit    chan struct{}
	stopped sync.Once
	workers sync.WaitGroup
	pending sync.WaitGroup

	mu     sync.Mutex
	active int
	stats  Stats
	errs   []error
}

// Stats holds runtime statistics for the engine.
type Stats struct {
	ActiveWorkers  int
	Concurrency    int
	TasksCompleted int64
	TasksFailed    int64
	Throttled      int64
}

// NewEngine creates an engine. Call Start before submitting work.
func NewEngine(opts Options) *Engine {
	if opts.Start == 0 {
		opts.Start = 8
	}
	if opts.Max == 0 {
		opts.Max = 64
	}
	return &Engine{
		aimd:      NewAIMD(Limits{Start: opts.Start, Min: opts.Min, Max: opts.Max}),
		throttled: opts.Throttled,
		tasks:     make(chan Task, 1000),
		quit:      make(chan struct{}),
	}
}

// Start begins the worker loop. Tasks run with ctx; once ctx is done,
// queued tasks are failed with its error instead of being run.
func (e *Engine) Start(ctx context.Context) {
	e.spawn(ctx)
	e.workers.Add(1)
	go e.loop(ctx)
}

// Submit queues a task, blocking while the queue is full.
func (e *Engine) Submit(t Task) error {
	select {
	case <-e.quit:
		return ErrStopped
	default:
	}

	e.pending.Add(1)
	select {
	case e.tasks <- t:
		return nil
	case <-e.quit:
		e.pending.Done()
		return ErrStopped
	}
}

// Wait blocks until every submitted task has finished and returns their
// errors joined.
func (e *Engine) Wait() error {
	e.pending.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	return errors.Join(e.errs...)
}

// Stop shuts the pool down. Call Wait first; tasks still queued are abandoned.
func (e *Engine) Stop() {
	e.stopped.Do(func() { close(e.quit) })
	e.workers.Wait()
}

// GetStats returns current engine stats.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.ActiveWorkers = e.active
	s.Concurrency = e.aimd.Target()
	return s
}

func (e *Engine) loop(ctx context.Context) {
	defer e.workers.Done()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-e.quit:
			return
		case <-ticker.C:
			e.spawn(ctx)
		}
	}
}

// spawn tops the pool up to the AIMD target. Surplus workers retire on
// their own between tasks.
func (e *Engine) spawn(ctx context.Context) {
	target := e.aimd.Target()

	e.mu.Lock()
	missing := target - e.active
	e.active += max(missing, 0)
	e.mu.Unlock()

	for i := 0; i < missing; i++ {
		e.workers.Add(1)
		go e.worker(ctx)
	}
}

// retire removes the calling worker when the pool is above target.
func (e *Engine) retire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active > e.aimd.Target() {
		e.active--
		return true
	}
	return false
}

func (e *Engine) worker(ctx context.Context) {
	defer e.workers.Done()

	for {
		if e.retire() {
			return
		}

		select {
		case <-e.quit:
			e.mu.Lock()
			e.active--
			e.mu.Unlock()
			return
		case task := <-e.tasks:
			e.run(ctx, task)
		}
	}
}

func (e *Engine) run(ctx context.Context, task Task) {
	defer e.pending.Done()

	if err := ctx.Err(); err != nil {
		e.record(err, false)
		return
	}

	start := time.Now()
	err := task(ctx)
	latency := time.Since(start)

	throttled := err != nil && e.throttled != nil && e.throttled(err)
	e.aimd.Observe(Sample{Latency: latency, Throttled: throttled, Failed: err != nil && !throttled})
	e.record(err, throttled)
}

func (e *Engine) record(err error, throttled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.TasksCompleted++
	if throttled {
		e.stats.Throttled++
	}
	if err != nil {
		e.stats.TasksFailed++
		e.errs = append(e.errs, err)
	}
}
