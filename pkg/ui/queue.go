package ui

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueStopped is returned when work is posted after Stop.
var ErrQueueStopped = errors.New("ui: queue stopped")

// DefaultQueueSize is the task buffer used when NewQueue gets zero.
const DefaultQueueSize = 64

// Queue runs posted functions one at a time on a single goroutine.
type Queue struct {
	tasks   chan func()
	done    chan struct{}
	exited  chan struct{}
	running atomic.Bool

	stopOnce sync.Once
}

// NewQueue creates a queue with room for size pending tasks.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		tasks:  make(chan func(), size),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Start runs the queue on a new goroutine.
func (q *Queue) Start() {
	go q.Run()
}

// Run executes tasks until Stop is called. Only one Run may be active.
func (q *Queue) Run() {
	if !q.running.CompareAndSwap(false, true) {
		return
	}
	defer close(q.exited)

	for {
		select {
		case <-q.done:
			return
		case fn := <-q.tasks:
			fn()
		}
	}
}

// Post schedules fn. It blocks while the buffer is full.
func (q *Queue) Post(fn func()) error {
	select {
	case <-q.done:
		return ErrQueueStopped
	default:
	}
	select {
	case q.tasks <- fn:
		return nil
	case <-q.done:
		return ErrQueueStopped
	}
}

// Sync schedules fn and waits until it has run. It must not be called from
// a task running on the queue.
func (q *Queue) Sync(fn func()) error {
	ran := make(chan struct{})
	if err := q.Post(func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-q.done:
		return ErrQueueStopped
	}
}

// Stop ends Run and waits for the running task to finish. Pending tasks are
// dropped.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.done)
	})
	if q.running.Load() {
		<-q.exited
	}
}
