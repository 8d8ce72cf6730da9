// Package dispatch runs best-effort work off the request path: a bounded
// queue drained by a fixed pool of workers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed is returned by Submit after Close has been called.
var ErrClosed = errors.New("dispatcher is closed")

// ErrQueueFull is returned by Submit when the queue has no free slot.
var ErrQueueFull = errors.New("dispatch queue is full")

// Task is one unit of background work.
type Task func(ctx context.Context) error

// Observer receives task outcomes, typically for metrics.
type Observer interface {
	TaskCompleted(name string, err error, duration time.Duration)
	TaskDropped(name string)
}

type job struct {
	name string
	ctx  context.Context
	fn   Task
}

// Config sizes the dispatcher.
type Config struct {
	Workers   int
	QueueSize int
	// Timeout bounds each task. Zero means no per-task timeout.
	Timeout time.Duration
}

// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	queue    chan job
	timeout  time.Duration
	observer Observer
	logger   zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New starts cfg.Workers workers. observer may be nil.
func New(cfg Config, observer Observer, logger zerolog.Logger) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	d := &Dispatcher{
		queue:    make(chan job, cfg.QueueSize),
		timeout:  cfg.Timeout,
		observer: observer,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}

	return d
}

// Submit enqueues fn without blocking. The task context keeps the values of
// ctx but not its cancellation, so work outlives the request that queued it.
func (d *Dispatcher) Submit(ctx context.Context, name string, fn Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- job{name: name, ctx: context.WithoutCancel(ctx), fn: fn}:
		return nil
	default:
		d.logger.Warn().Str("task", name).Msg("dispatch queue full, dropping task")
		if d.observer != nil {
			d.observer.TaskDropped(name)
		}
		return ErrQueueFull
	}
}

// Close stops accepting tasks and waits for queued ones to finish or ctx to
// expire, whichever comes first.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher drain interrupted: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	ctx := j.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	err := d.safeCall(ctx, j)
	duration := time.Since(start)

	if err != nil {
		d.logger.Error().Err(err).Str("task", j.name).Dur("duration", duration).Msg("background task failed")
	} else {
		d.logger.Debug().Str("task", j.name).Dur("duration", duration).Msg("background task completed")
	}

	if d.observer != nil {
		d.observer.TaskCompleted(j.name, err, duration)
	}
}

func (d *Dispatcher) safeCall(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", j.name, r)
		}
	}()
	return j.fn(ctx)
}
