package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/metrics"
)

// ErrPoolStopped is returned for tasks submitted to, or still queued in, a stopped pool
var ErrPoolStopped = stderrors.New("worker pool stopped")

// Task represents a unit of work to be executed
type Task func(ctx context.Context) error

// Future completes when its task has run
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) finish(err error) {
	f.err = err
	close(f.done)
}

// Done is closed once the task has finished
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the task error. It is only meaningful after Done is closed.
func (f *Future) Err() error {
	return f.err
}

// Wait blocks until the task finishes or ctx is done
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type job struct {
	name   string
	ctx    context.Context
	task   Task
	future *Future
}

// Pool runs sync tasks on a fixed set of workers fed by a bounded queue
type Pool struct {
	maxWorkers int
	tasks      chan job
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	// mu orders Submit's enqueue against Stop's drain
	mu         sync.RWMutex
	stopping   bool
	queued     int64
	logger     *logger.Logger
}

// NewPool creates a pool with the given number of workers and queue capacity
func NewPool(maxWorkers, queueSize int, log *logger.Logger) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < maxWorkers {
		queueSize = maxWorkers * 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		maxWorkers: maxWorkers,
		tasks:      make(chan job, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		logger:     log.Component("worker"),
	}
}

// Start starts the workers
func (p *Pool) Start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.logger.Infof("Started worker pool with %d workers", p.maxWorkers)
}

// Stop cancels running tasks, fails queued ones and waits for the workers to exit
func (p *Pool) Stop() {
	// Cancelling first releases senders blocked on a full queue
	p.cancel()
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return
	}
	p.stopping = true
	p.mu.Unlock()

	p.wg.Wait()
	p.drain()
	p.logger.Info("Worker pool stopped")
}

// Submit queues a task. The task context is ctx, additionally cancelled when the
// pool stops. Submit blocks while the queue is full.
func (p *Pool) Submit(ctx context.Context, name string, task Task) *Future {
	f := newFuture()
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopping {
		f.finish(ErrPoolStopped)
		return f
	}

	select {
	case p.tasks <- job{name: name, ctx: ctx, task: task, future: f}:
		metrics.SetQueueDepth(int(atomic.AddInt64(&p.queued, 1)))
	case <-ctx.Done():
		f.finish(ctx.Err())
	case <-p.ctx.Done():
		f.finish(ErrPoolStopped)
	}
	return f
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case j := <-p.tasks:
			metrics.SetQueueDepth(int(atomic.AddInt64(&p.queued, -1)))
			if p.ctx.Err() != nil {
				j.future.finish(ErrPoolStopped)
				continue
			}
			p.execute(j)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) execute(j job) {
	start := time.Now()

	taskCtx, cancel := context.WithCancel(j.ctx)
	stop := context.AfterFunc(p.ctx, cancel)
	err := p.safeRun(taskCtx, j)
	stop()
	cancel()

	metrics.RecordTask(j.name, err, time.Since(start))
	if err != nil {
		p.logger.With("task", j.name).ErrorWithErr(err, "Task failed")
	}
	j.future.finish(err)
}

func (p *Pool) safeRun(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", j.name, r)
		}
	}()
	return j.task(ctx)
}

// drain fails the tasks left in the queue after the workers exited
func (p *Pool) drain() {
	for {
		select {
		case j := <-p.tasks:
			metrics.SetQueueDepth(int(atomic.AddInt64(&p.queued, -1)))
			j.future.finish(ErrPoolStopped)
		default:
			return
		}
	}
}
