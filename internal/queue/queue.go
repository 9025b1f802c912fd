package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Task is one parse request waiting for the worker.
type Task struct {
	ID        string
	URL       string
	Region    string
	CreatedAt time.Time
}

type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue is a bounded FIFO. Tasks pushed before Close can still be
// popped after it.
type InMemoryQueue struct {
	tasks  chan *Task
	mu     sync.RWMutex
	closed bool
}

func NewInMemoryQueue(capacity int) *InMemoryQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &InMemoryQueue{
		tasks: make(chan *Task, capacity),
	}
}

// Push never blocks. It fails with ErrQueueFull when the queue is at capacity.
func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop blocks until a task is available, the queue is closed and drained, or
// ctx is done.
func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case task, ok := <-q.tasks:
		if !ok {
			return nil, ErrQueueClosed
		}
		return task, nil
	}
}

func (q *InMemoryQueue) Size() int {
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.tasks)
	}

	return nil
}
