package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
)

// persistJob is one write against the store.
type persistJob struct {
	name string
	run  func(ctx context.Context) error
}

// writer runs store writes on a single background goroutine so store
// latency or failure never reaches a turn. Jobs are dropped with a warning
// when the queue is full.
type writer struct {
	pending chan persistJob
	timeout time.Duration
	log     *logger.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newWriter(size int, log *logger.Logger) *writer {
	if size < 1 {
		size = DefaultPersistQueueSize
	}
	w := &writer{
		pending: make(chan persistJob, size),
		timeout: 5 * time.Second,
		log:     logger.OrNop(log),
		done:    make(chan struct{}),
	}
	go w.processLoop()
	return w
}

// enqueue reports whether the job was accepted.
func (w *writer) enqueue(name string, run func(ctx context.Context) error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.log.Warn("persist after close dropped", "job", name)
		return false
	}
	select {
	case w.pending <- persistJob{name: name, run: run}:
		return true
	default:
		w.log.Warn("persist queue full; dropping write", "job", name, "capacity", cap(w.pending))
		return false
	}
}

func (w *writer) processLoop() {
	defer close(w.done)
	for job := range w.pending {
		w.runJob(job)
	}
}

func (w *writer) runJob(job persistJob) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("persist job panicked", "job", job.name, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := job.run(ctx); err != nil {
		w.log.Warn("persist failed", "job", job.name, "error", err)
	}
}

// close stops accepting jobs and waits until the queue drains or ctx ends.
func (w *writer) close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.pending)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
