// Package worker runs fire-and-forget tasks on a small pool of goroutines.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/killfeed/internal/adapters/mq/queue"
	"github.com/okian/killfeed/pkg/logger"
	"github.com/okian/killfeed/pkg/metrics"
)

const (
	defaultWorkers     = 4
	defaultTaskBacklog = 256
	defaultTaskTimeout = 30 * time.Second
)

// Task is one unit of background work. Name labels logs and metrics.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool executes tasks. A failing or panicking task is logged and counted;
// it never takes the pool down.
type Pool struct {
	tasks       *queue.Mailbox[Task]
	workers     int
	backlog     int
	taskTimeout time.Duration
	name        string
	logger      logger.Logger

	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewPool creates a pool. Call Start before submitting.
func NewPool(opts ...Option) *Pool {
	p := &Pool{
		workers:     defaultWorkers,
		backlog:     defaultTaskBacklog,
		taskTimeout: defaultTaskTimeout,
		name:        "worker",
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.tasks = queue.NewMailbox[Task](p.name, queue.WithCapacity(p.backlog))
	return p
}

// Start launches the workers. They stop when ctx ends or Shutdown is called.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.run(ctx)
		}
	})
}

// Submit queues t without blocking. A full backlog drops the task.
func (p *Pool) Submit(ctx context.Context, t Task) bool {
	if p.tasks.TryPost(t) {
		return true
	}
	metrics.RecordHookFailure(t.Name)
	p.logger.Warn(ctx, "task dropped", logger.String("task", t.Name), logger.Int("backlog", p.tasks.Cap()))
	return false
}

// Shutdown stops accepting tasks and waits for running ones to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	_ = p.tasks.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.tasks.Done():
			return
		case t := <-p.tasks.Receive():
			p.exec(ctx, t)
		}
	}
}

func (p *Pool) exec(ctx context.Context, t Task) {
	ctx, cancel := context.WithTimeout(ctx, p.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.RecordHookFailure(t.Name)
			metrics.RecordErrorByComponent(p.name, "panic")
			p.logger.Error(ctx, "task panicked", logger.String("task", t.Name), logger.Any("panic", r))
		}
	}()

	if err := t.Run(ctx); err != nil {
		metrics.RecordHookFailure(t.Name)
		p.logger.Warn(ctx, "task failed", logger.String("task", t.Name), logger.Error(err))
	}
}
