package service

import (
	"context"
	"fmt"
	"sync"

	"legal-doc-analyzer/internal/domain"

	"github.com/rotisserie/eris"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = eris.New("worker pool is shut down")

// Task is one unit of background work.
type Task func(ctx context.Context)

type queuedTask struct {
	name string
	run  Task
}

// WorkerPool runs tasks on a fixed number of goroutines fed by a bounded
// queue. Submit never blocks: a full queue is reported to the caller.
type WorkerPool struct {
	workers int
	queue   chan queuedTask
	logger  domain.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	started bool
}

// NewWorkerPool creates a pool; call Start before submitting.
func NewWorkerPool(workers, queueSize int, logger domain.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers: workers,
		queue:   make(chan queuedTask, queueSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	p.logger.Info("Worker pool started", "workers", p.workers, "queue_size", cap(p.queue))
}

func (p *WorkerPool) work(id int) {
	defer p.wg.Done()
	for t := range p.queue {
		p.runTask(id, t)
	}
}

func (p *WorkerPool) runTask(worker int, t queuedTask) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker task panicked", fmt.Errorf("panic: %v", r), "worker", worker, "task", t.name)
		}
	}()
	p.logger.Debug("Worker picked up task", "worker", worker, "task", t.name)
	t.run(p.ctx)
}

// Submit enqueues a task. It returns domain.ErrQueueFull when the queue has
// no room and ErrPoolClosed after Shutdown.
func (p *WorkerPool) Submit(name string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- queuedTask{name: name, run: task}:
		return nil
	default:
		return eris.Wrapf(domain.ErrQueueFull, "task %s", name)
	}
}

// Pending is the number of queued tasks not yet picked up.
func (p *WorkerPool) Pending() int {
	return len(p.queue)
}

// Shutdown stops accepting work and waits for queued and running tasks to
// finish. If ctx expires first, running tasks see their context cancelled
// and ctx's error is returned.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("Worker pool drained")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
