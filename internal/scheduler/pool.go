package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// maxHighStreak is the number of consecutive High dequeues allowed while a
// Normal task is waiting.
const maxHighStreak = 3

// Pool is a fixed-size worker pool with priority-ordered dequeue.
type Pool struct {
	logger        *slog.Logger
	errHandler    func(error)
	restartBudget int

	// All enqueue and dequeue decisions happen under this one lock.
	mu         sync.Mutex
	cond       *sync.Cond
	queues     [3][]Task // indexed by Priority
	highStreak int
	restarts   int

	backlog atomic.Int64
	stopped atomic.Bool

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a pool and starts workers immediately.
func New(workers int, opts ...Option) (*Pool, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidWorkerCount, workers)
	}

	p := &Pool{
		logger:        slog.Default(),
		restartBudget: DefaultRestartBudget,
	}
	p.cond = sync.NewCond(&p.mu)

	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p, nil
}

// Execute enqueues a task at the given priority. It returns false, without
// enqueueing, once Stop has been requested or when task is nil.
func (p *Pool) Execute(task Task, pr Priority) bool {
	if task == nil {
		return false
	}
	if p.stopped.Load() {
		return false
	}

	p.mu.Lock()
	p.queues[pr] = append(p.queues[pr], task)
	p.backlog.Add(1)
	p.mu.Unlock()

	p.cond.Signal()
	return true
}

// Stop requests shutdown and blocks until every worker has exited, which
// happens only after the backlog is fully drained. Idempotent; in-flight and
// queued tasks are never cancelled.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)

		// Take the lock once so sleeping workers cannot miss the flag
		// between their condition check and cond.Wait.
		p.mu.Lock()
		defer p.mu.Unlock()
		p.cond.Broadcast()
	})

	p.wg.Wait()
}

// Backlog returns the number of tasks enqueued but not yet dequeued.
func (p *Pool) Backlog() int64 {
	return p.backlog.Load()
}

// worker runs until the pool is stopped and drained, or until an unhandled
// task failure takes it down.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		task, ok := p.dequeue()
		if !ok {
			return
		}

		if err := runTask(task); err != nil {
			if p.errHandler != nil {
				p.errHandler(err)
				continue
			}

			p.logger.Error("unhandled task failure, worker exiting",
				"worker", id,
				"error", err,
			)
			p.replaceWorker(id)
			return
		}
	}
}

// dequeue blocks until a task is available or the pool is stopped with an
// empty backlog.
func (p *Pool) dequeue() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if task := p.next(); task != nil {
			p.backlog.Add(-1)
			return task, true
		}
		if p.stopped.Load() && p.backlog.Load() == 0 {
			return nil, false
		}
		p.cond.Wait()
	}
}

// next applies the anti-starvation dequeue policy. Caller must hold mu.
func (p *Pool) next() Task {
	if (len(p.queues[Normal]) != 0 && p.highStreak >= maxHighStreak) ||
		(len(p.queues[High]) == 0 && len(p.queues[Normal]) != 0) {
		p.highStreak = 0
		return p.pop(Normal)
	}

	if len(p.queues[High]) != 0 {
		p.highStreak++
		return p.pop(High)
	}

	if len(p.queues[Low]) != 0 {
		return p.pop(Low)
	}

	return nil
}

// pop removes the head of a queue. Caller must hold mu and guarantee the
// queue is non-empty.
func (p *Pool) pop(pr Priority) Task {
	q := p.queues[pr]
	task := q[0]
	q[0] = nil // release the reference for GC
	p.queues[pr] = q[1:]
	return task
}

// replaceWorker starts a replacement for a worker lost to an unhandled task
// failure, while the restart budget lasts.
func (p *Pool) replaceWorker(id int) {
	p.mu.Lock()
	if p.restarts >= p.restartBudget {
		p.mu.Unlock()
		p.logger.Warn("worker restart budget exhausted, pool capacity reduced",
			"worker", id,
		)
		return
	}
	p.restarts++
	used := p.restarts
	p.mu.Unlock()

	p.logger.Warn("restarting worker",
		"worker", id,
		"restarts_used", used,
		"restart_budget", p.restartBudget,
	)

	p.wg.Add(1)
	go p.worker(id)
}

// runTask executes a task, converting panics into errors so a panicking task
// is indistinguishable from one returning an error.
func runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task.Execute()
}
