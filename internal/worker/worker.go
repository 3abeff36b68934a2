package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

type WorkerPool struct {
	taskQueue chan Task
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isClosing bool
	ctx       context.Context
	cancel    context.CancelFunc
	log       zerolog.Logger
}

// NewWorkerPool starts size workers sharing a queue of queueSize pending tasks.
func NewWorkerPool(size, queueSize int, log zerolog.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = 1000
	}
	ctx, cancel := context.WithCancel(context.Background())
	wp := &WorkerPool{
		taskQueue: make(chan Task, queueSize),
		ctx:       ctx,
		cancel:    cancel,
		log:       log,
	}

	for range size {
		wp.wg.Add(1)
		go wp.startWorker()
	}

	return wp
}

func (wp *WorkerPool) startWorker() {
	defer wp.wg.Done()
	for task := range wp.taskQueue {
		if err := task(wp.ctx); err != nil {
			wp.log.Warn().Err(err).Msg("worker task failed")
		}
	}
}

// Submit queues t and reports whether it was accepted. It is safe to call
// concurrently with Shutdown.
func (wp *WorkerPool) Submit(t Task) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.isClosing {
		wp.log.Warn().Msg("task submitted during shutdown, dropping")
		return false
	}
	select {
	case wp.taskQueue <- t:
		return true
	default:
		wp.log.Warn().Msg("task queue full, dropping task")
		return false
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish. Tasks
// still running when ctx ends see their context cancelled.
func (wp *WorkerPool) Shutdown(ctx context.Context) {
	wp.mu.Lock()
	if wp.isClosing {
		wp.mu.Unlock()
		return
	}
	wp.isClosing = true
	close(wp.taskQueue)
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		wp.cancel()
		<-done
	}
	wp.cancel()
}
