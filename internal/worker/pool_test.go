package worker

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
)

func waitFuture(t *testing.T, f *Future) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := f.Wait(ctx)
	if stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatal("task did not finish")
	}
	return err
}

func TestPool_Submit(t *testing.T) {
	p := NewPool(2, 4, logger.Nop())
	p.Start()
	defer p.Stop()

	boom := stderrors.New("boom")
	tests := []struct {
		name    string
		task    Task
		wantErr error
	}{
		{name: "success", task: func(ctx context.Context) error { return nil }},
		{name: "error", task: func(ctx context.Context) error { return boom }, wantErr: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := waitFuture(t, p.Submit(context.Background(), tt.name, tt.task))
			if !stderrors.Is(err, tt.wantErr) {
				t.Errorf("Wait() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	p := NewPool(1, 1, logger.Nop())
	p.Start()
	defer p.Stop()

	err := waitFuture(t, p.Submit(context.Background(), "panics", func(ctx context.Context) error {
		panic("bad task")
	}))
	if err == nil {
		t.Fatal("Wait() error = nil, want the recovered panic")
	}

	// The worker survived
	if err := waitFuture(t, p.Submit(context.Background(), "after", func(ctx context.Context) error { return nil })); err != nil {
		t.Errorf("Wait() error = %v after a panic", err)
	}
}

func TestPool_Concurrency(t *testing.T) {
	p := NewPool(3, 10, logger.Nop())
	p.Start()
	defer p.Stop()

	var active, peak int32
	futures := make([]*Future, 9)
	for i := range futures {
		futures[i] = p.Submit(context.Background(), "work", func(ctx context.Context) error {
			n := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil
		})
	}
	for _, f := range futures {
		if err := waitFuture(t, f); err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	}
	if peak > 3 {
		t.Errorf("peak concurrency = %d, want at most 3", peak)
	}
}

func TestPool_Stop(t *testing.T) {
	p := NewPool(1, 2, logger.Nop())
	p.Start()

	started := make(chan struct{})
	running := p.Submit(context.Background(), "long", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	queued := p.Submit(context.Background(), "queued", func(ctx context.Context) error { return nil })

	p.Stop()

	if err := waitFuture(t, running); !stderrors.Is(err, context.Canceled) {
		t.Errorf("running task error = %v, want context.Canceled", err)
	}
	if err := waitFuture(t, queued); !stderrors.Is(err, ErrPoolStopped) {
		t.Errorf("queued task error = %v, want ErrPoolStopped", err)
	}
	if err := waitFuture(t, p.Submit(context.Background(), "late", func(ctx context.Context) error { return nil })); !stderrors.Is(err, ErrPoolStopped) {
		t.Errorf("late task error = %v, want ErrPoolStopped", err)
	}
}

func TestPool_SubmitRacingStop(t *testing.T) {
	tests := []struct {
		name      string
		workers   int
		queueSize int
		senders   int
	}{
		{name: "roomy queue", workers: 2, queueSize: 64, senders: 16},
		{name: "full queue", workers: 1, queueSize: 1, senders: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(tt.workers, tt.queueSize, logger.Nop())
			p.Start()

			var mu sync.Mutex
			var futures []*Future
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < tt.senders; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					for j := 0; j < 8; j++ {
						f := p.Submit(context.Background(), "work", func(ctx context.Context) error {
							time.Sleep(time.Millisecond)
							return nil
						})
						mu.Lock()
						futures = append(futures, f)
						mu.Unlock()
					}
				}()
			}
			close(start)
			p.Stop()
			wg.Wait()

			// Every future completes: it ran, or it was failed by Submit or the drain
			for _, f := range futures {
				if err := waitFuture(t, f); err != nil && !stderrors.Is(err, ErrPoolStopped) && !stderrors.Is(err, context.Canceled) {
					t.Errorf("Wait() error = %v", err)
				}
			}
			if got := atomic.LoadInt64(&p.queued); got != 0 {
				t.Errorf("queued = %d after Stop, want 0", got)
			}
		})
	}
}

func TestPool_StopTwice(t *testing.T) {
	p := NewPool(1, 1, logger.Nop())
	p.Start()
	p.Stop()
	p.Stop()

	if err := waitFuture(t, p.Submit(context.Background(), "late", func(ctx context.Context) error { return nil })); !stderrors.Is(err, ErrPoolStopped) {
		t.Errorf("late task error = %v, want ErrPoolStopped", err)
	}
}

func TestPool_SubmitHonoursContext(t *testing.T) {
	p := NewPool(1, 1, logger.Nop())
	p.Start()
	defer p.Stop()

	release := make(chan struct{})
	defer close(release)
	block := func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}
	p.Submit(context.Background(), "busy", block)
	p.Submit(context.Background(), "fills queue", block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// Either the queue is still full or the worker picked a task up in between
	f := p.Submit(ctx, "waits", block)
	select {
	case <-f.Done():
		if err := f.Err(); err != nil && !stderrors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Submit() error = %v, want context.DeadlineExceeded", err)
		}
	case <-time.After(time.Second):
	}
}
