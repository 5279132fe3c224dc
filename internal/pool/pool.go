package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/metrics"
)

// Task is the work a submitter hands to the pool. The context it receives
// carries the submitter's values but is never cancelled by the submitter.
type Task func(ctx context.Context)

type task struct {
	id       string
	ctx      context.Context
	fn       Task
	enqueued time.Time
	done     chan struct{}
	panicked bool
}

// WorkerPool runs submitted tasks on a fixed number of goroutines. Submitters
// that find every worker busy block on an unbuffered channel and are admitted
// in arrival order; nothing is ever rejected for being busy.
type WorkerPool struct {
	size   int
	tasks  chan *task
	quit   chan struct{}
	logger *zap.Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new fixed-size worker pool. A size of zero or less
// uses one worker per CPU.
func NewWorkerPool(size int, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &WorkerPool{
		size:   size,
		tasks:  make(chan *task),
		quit:   make(chan struct{}),
		logger: logger,
	}
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int {
	return p.size
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop refuses new submissions, lets in-flight tasks finish and waits for
// every worker to exit.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.quit)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

// Do blocks until a worker has run fn to completion. ctx is honoured only
// while waiting for a free worker: once admitted, the task runs to its end
// regardless of ctx. Returns domain.ErrPoolClosed after Stop.
func (p *WorkerPool) Do(ctx context.Context, id string, fn Task) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return domain.ErrPoolClosed
	}

	t := &task{
		id:       id,
		ctx:      context.WithoutCancel(ctx),
		fn:       fn,
		enqueued: time.Now(),
		done:     make(chan struct{}),
	}

	metrics.QueueDepth.Inc()
	select {
	case p.tasks <- t:
		metrics.QueueDepth.Dec()
	case <-ctx.Done():
		metrics.QueueDepth.Dec()
		return ctx.Err()
	case <-p.quit:
		metrics.QueueDepth.Dec()
		return domain.ErrPoolClosed
	}

	<-t.done
	if t.panicked {
		return fmt.Errorf("pool: task %s panicked", id)
	}
	return nil
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-p.quit:
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case t := <-p.tasks:
			p.run(id, t)
		}
	}
}

func (p *WorkerPool) run(workerID int, t *task) {
	metrics.QueueWait.Observe(time.Since(t.enqueued).Seconds())
	metrics.WorkersActive.Inc()

	defer func() {
		if r := recover(); r != nil {
			t.panicked = true
			p.logger.Error("Worker panic recovered",
				zap.Int("worker_id", workerID),
				zap.String("execution_id", t.id),
				zap.Any("panic", r),
			)
		}
		metrics.WorkersActive.Dec()
		close(t.done)
	}()

	p.logger.Debug("Worker processing execution",
		zap.Int("worker_id", workerID),
		zap.String("execution_id", t.id),
	)
	t.fn(t.ctx)
}
