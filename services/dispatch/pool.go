package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// ErrPoolClosed is returned by Submit after Close has been called.
var ErrPoolClosed = errors.New("dispatch: pool closed")

// Dispatcher runs units of work off the caller's goroutine.
type Dispatcher interface {
	// Submit queues task. It blocks only while the queue is full.
	Submit(ctx context.Context, task func()) error
	// Close stops accepting work and waits for queued tasks to finish.
	Close()
}

// Pool is a fixed-size worker pool fed by a bounded queue.
type Pool struct {
	tasks  chan func()
	wg     conc.WaitGroup
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool starts size workers. queueSize bounds the number of waiting tasks.
func NewPool(size, queueSize int, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		tasks:  make(chan func(), queueSize),
		logger: logger,
	}
	for i := 0; i < size; i++ {
		p.wg.Go(p.work)
	}
	logger.Debug("worker pool started", zap.Int("workers", size), zap.Int("queue", queueSize))
	return p
}

func (p *Pool) work() {
	for task := range p.tasks {
		var catcher panics.Catcher
		catcher.Try(task)
		if r := catcher.Recovered(); r != nil {
			p.logger.Error("worker task panicked", zap.Any("panic", r.Value), zap.String("stack", string(r.Stack)))
		}
	}
}

func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

// Run executes fn on d and waits for its result. If ctx ends first the caller
// stops waiting but fn still runs to completion. A panic in fn is returned as
// an error wrapping the recovered value.
func Run[T any](ctx context.Context, d Dispatcher, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)

	err := d.Submit(ctx, func() {
		var (
			res     result
			catcher panics.Catcher
		)
		catcher.Try(func() { res.val, res.err = fn() })
		if r := catcher.Recovered(); r != nil {
			res.err = r.AsError()
		}
		done <- res
	})
	if err != nil {
		var zero T
		return zero, err
	}

	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
