// Package worker provides an in-process task execution pool instrumented
// through the telemetry collector.
//
// The pool is the reference integration of the collector's task contract:
// every execution is bracketed by BeginTask before the handler runs and
// exactly one of CompleteTask or FailTask after, with a stable task id
// across both calls. Panicking handlers are recovered and reported as
// failures; the pool itself never crashes on handler misbehavior.
//
// # Usage
//
// Register handlers, then either run tasks synchronously:
//
//	pool := worker.NewPool(obs, logger, worker.DefaultConfig())
//	pool.RegisterHandler("thumbnail", makeThumbnail)
//	result, err := pool.Execute(ctx, worker.NewTask("", "thumbnail", input))
//
// or start background workers and submit:
//
//	pool.Start(ctx)
//	defer pool.Stop()
//	pool.Submit(ctx, worker.NewTask("", "thumbnail", input))
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/couchparty/telemetrykit/telemetry"
)

// Sentinel errors for comparison using errors.Is().
var (
	// ErrUnknownTaskType is returned when no handler is registered for a
	// task's type.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrHandlerExists is returned when a handler is registered twice for
	// the same type.
	ErrHandlerExists = errors.New("handler already registered")

	// ErrQueueFull is returned by Submit when the queue is at capacity.
	ErrQueueFull = errors.New("task queue full")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("worker pool already started")
)

// Task is one unit of work.
type Task struct {
	// ID is the stable task id used across the begin/complete hooks.
	// Generated when empty.
	ID string `json:"id"`

	// Type routes the task to its handler.
	Type string `json:"type"`

	// Queue names the logical queue the task belongs to.
	Queue string `json:"queue,omitempty"`

	// Input contains the task parameters.
	Input map[string]interface{} `json:"input,omitempty"`
}

// NewTask creates a task, generating an id when none is supplied.
func NewTask(id, taskType string, input map[string]interface{}) *Task {
	if id == "" {
		id = uuid.NewString()
	}
	return &Task{ID: id, Type: taskType, Input: input}
}

// Handler processes one task and returns its result.
type Handler func(ctx context.Context, task *Task) (interface{}, error)

// Config configures the pool.
type Config struct {
	// Workers is the number of concurrent background workers.
	Workers int
	// QueueSize is the submit queue capacity.
	QueueSize int
}

// DefaultConfig returns defaults suitable for most embedders.
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 256,
	}
}

// Pool executes tasks with telemetry instrumentation around every run.
type Pool struct {
	obs    *telemetry.Client
	logger *telemetry.Logger
	cfg    Config

	mu       sync.Mutex
	handlers map[string]Handler
	started  bool
	cancel   context.CancelFunc

	queue chan *Task
	wg    sync.WaitGroup
}

// NewPool creates a pool bound to the given collector. The collector must
// not be nil; the logger may be.
func NewPool(obs *telemetry.Client, logger *telemetry.Logger, cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &Pool{
		obs:      obs,
		logger:   logger,
		cfg:      cfg,
		handlers: make(map[string]Handler),
		queue:    make(chan *Task, cfg.QueueSize),
	}
}

// RegisterHandler registers the handler for a task type. Must be called
// before Start.
func (p *Pool) RegisterHandler(taskType string, handler Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.handlers[taskType]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerExists, taskType)
	}
	p.handlers[taskType] = handler
	return nil
}

// Submit enqueues a task for background execution without blocking.
func (p *Pool) Submit(ctx context.Context, task *Task) error {
	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, p.cfg.QueueSize)
	}
}

// Start launches the background workers. They run until Stop is called or
// ctx is cancelled.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx)
	}

	if p.logger != nil {
		p.logger.Info("Worker pool started", map[string]interface{}{
			"workers":    p.cfg.Workers,
			"queue_size": p.cfg.QueueSize,
		})
	}
	return nil
}

// Stop cancels the workers and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.started = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.queue:
			_, _ = p.Execute(ctx, task)
		}
	}
}

// Execute runs one task synchronously, fully instrumented: BeginTask before
// the handler, CompleteTask on success, FailTask on error or panic. The
// handler's result and error are returned unchanged.
func (p *Pool) Execute(ctx context.Context, task *Task) (result interface{}, err error) {
	p.mu.Lock()
	handler, ok := p.handlers[task.Type]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, task.Type)
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	p.obs.BeginTask(task.ID, task.Type, task.Queue)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panic: %v", r)
			p.obs.FailTask(task.ID, err)
			if p.logger != nil {
				p.logger.Error("Task handler panicked", map[string]interface{}{
					"task_id":   task.ID,
					"task_type": task.Type,
					"panic":     fmt.Sprintf("%v", r),
				})
			}
		}
	}()

	result, err = handler(ctx, task)
	if err != nil {
		p.obs.FailTask(task.ID, err)
		return nil, err
	}
	p.obs.CompleteTask(task.ID, "success", result, "")
	return result, nil
}
