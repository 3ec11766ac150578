package notification

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opticash/opticash-api/internal/pkg/email"
)

// ErrDispatcherClosed is returned by Enqueue after Shutdown.
var ErrDispatcherClosed = errors.New("notification dispatcher closed")

// Sender delivers a single message. *email.Mailer implements it.
type Sender interface {
	Send(ctx context.Context, msg *email.Message) error
}

// Config tunes retry and pacing.
type Config struct {
	MaxRetries  int           // retries after the first attempt
	RetryDelay  time.Duration // wait before a failed task goes back to the head
	Throttle    time.Duration // pause after every processed task
	SendTimeout time.Duration // deadline for one delivery attempt
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		RetryDelay:  time.Second,
		Throttle:    200 * time.Millisecond,
		SendTimeout: 10 * time.Second,
	}
}

// Task is a queued message and its retry count.
type Task struct {
	Message    *email.Message
	Retries    int
	EnqueuedAt time.Time
}

// Outcome is the terminal state of a task.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeDropped   Outcome = "dropped"
)

// Result reports how a task ended.
type Result struct {
	Task    Task
	Outcome Outcome
	Err     error // last delivery error, nil when delivered
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithOnResult registers a hook called once per task when it is delivered
// or dropped. It runs on the worker goroutine.
func WithOnResult(fn func(Result)) Option {
	return func(d *Dispatcher) {
		d.onResult = fn
	}
}

// Dispatcher is an in-process FIFO of outbound emails drained by at most one
// worker goroutine. Failed tasks are retried at the head of the queue, so a
// failing message delays the ones behind it instead of being overtaken.
type Dispatcher struct {
	sender   Sender
	cfg      Config
	onResult func(Result)

	baseCtx context.Context
	abort   context.CancelFunc

	mu      sync.Mutex
	queue   *list.List
	running bool
	closed  bool
	idle    chan struct{} // closed when the current worker exits
}

// NewDispatcher creates a dispatcher. No goroutine runs until the first Enqueue.
func NewDispatcher(sender Sender, cfg Config, opts ...Option) *Dispatcher {
	def := DefaultConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.Throttle < 0 {
		cfg.Throttle = def.Throttle
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sender:  sender,
		cfg:     cfg,
		baseCtx: ctx,
		abort:   cancel,
		queue:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue appends msg to the queue and starts the worker if none is running.
// It never blocks on delivery.
func (d *Dispatcher) Enqueue(msg *email.Message) error {
	if msg == nil {
		return errors.New("notification: nil message")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		log.Warn().Str("template", msg.Template).Msg("Notification refused, dispatcher is shut down")
		return ErrDispatcherClosed
	}

	d.queue.PushBack(&Task{Message: msg, EnqueuedAt: time.Now()})

	if !d.running {
		d.running = true
		d.idle = make(chan struct{})
		go d.run(d.idle)
	}
	return nil
}

// Len returns the number of queued tasks, excluding one being delivered.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Len()
}

// Running reports whether a worker goroutine is active.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Drain blocks until the queue is empty and the worker has exited, or ctx ends.
func (d *Dispatcher) Drain(ctx context.Context) error {
	for {
		d.mu.Lock()
		if !d.running && d.queue.Len() == 0 {
			d.mu.Unlock()
			return nil
		}
		idle := d.idle
		d.mu.Unlock()

		if idle == nil {
			return nil
		}

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Shutdown refuses new work and waits for queued tasks to finish. When ctx
// ends first the worker is aborted and the remaining tasks are lost.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	err := d.Drain(ctx)
	if err == nil {
		d.abort()
		log.Info().Msg("Notification dispatcher stopped")
		return nil
	}

	d.abort()

	d.mu.Lock()
	lost := d.queue.Len()
	d.queue.Init()
	d.mu.Unlock()

	log.Error().Err(err).Int("lost", lost).Msg("Notification dispatcher shutdown deadline exceeded")
	return err
}

func (d *Dispatcher) run(idle chan struct{}) {
	defer close(idle)

	for {
		d.mu.Lock()
		front := d.queue.Front()
		if front == nil || d.baseCtx.Err() != nil {
			d.running = false
			d.mu.Unlock()
			return
		}
		task := d.queue.Remove(front).(*Task)
		d.mu.Unlock()

		d.process(task)

		d.sleep(d.cfg.Throttle)
	}
}

func (d *Dispatcher) process(task *Task) {
	ctx, cancel := context.WithTimeout(d.baseCtx, d.cfg.SendTimeout)
	err := d.sender.Send(ctx, task.Message)
	cancel()

	if err == nil {
		log.Info().
			Str("to", task.Message.To).
			Str("template", task.Message.Template).
			Int("retries", task.Retries).
			Msg("Notification delivered")
		d.report(Result{Task: *task, Outcome: OutcomeDelivered})
		return
	}

	if task.Retries < d.cfg.MaxRetries && d.baseCtx.Err() == nil {
		task.Retries++
		log.Warn().
			Err(err).
			Str("to", task.Message.To).
			Str("template", task.Message.Template).
			Int("retry", task.Retries).
			Int("max_retries", d.cfg.MaxRetries).
			Msg("Notification delivery failed, retrying")

		if d.sleep(d.cfg.RetryDelay) {
			d.mu.Lock()
			d.queue.PushFront(task)
			d.mu.Unlock()
			return
		}
	}

	log.Error().
		Err(err).
		Str("to", task.Message.To).
		Str("template", task.Message.Template).
		Int("retries", task.Retries).
		Msg("Notification dropped")
	d.report(Result{Task: *task, Outcome: OutcomeDropped, Err: err})
}

func (d *Dispatcher) report(r Result) {
	if d.onResult != nil {
		d.onResult(r)
	}
}

// sleep waits for dur unless the dispatcher is aborted. It reports whether
// the full wait completed.
func (d *Dispatcher) sleep(dur time.Duration) bool {
	if dur <= 0 {
		return d.baseCtx.Err() == nil
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.baseCtx.Done():
		return false
	}
}
