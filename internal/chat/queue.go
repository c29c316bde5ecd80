package chat

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Queue serializes sends. Items are processed one at a time in enqueue order
// by a single drain goroutine; a drain is started whenever an item arrives
// and none is running.
type Queue struct {
	mu       sync.Mutex
	idle     *sync.Cond
	items    []string
	draining bool
	process  func(text string)
}

// NewQueue creates a queue that hands each item to process. process must
// block until the item is fully handled.
func NewQueue(process func(text string)) *Queue {
	q := &Queue{process: process}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends text and starts a drain if none is active.
func (q *Queue) Enqueue(text string) {
	q.mu.Lock()
	q.items = append(q.items, text)
	start := !q.draining
	q.draining = true
	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

// drain pops items until the list is empty. The emptiness check and the
// flag reset happen under one lock, so an Enqueue racing with the exit either
// lands before the check or observes draining == false and starts a new drain.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}
		text := q.items[0]
		q.items[0] = ""
		q.items = q.items[1:]
		q.mu.Unlock()

		q.run(text)
	}
}

// run processes one item. A panic is logged and the queue moves on.
func (q *Queue) run(text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("component", "queue").Interface("panic", r).Msg("send queue: item panicked")
		}
	}()
	q.process(text)
}

// Len returns the number of items waiting, excluding the one in progress.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Draining reports whether a drain goroutine is active.
func (q *Queue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Wait blocks until the queue is empty and no drain is active.
func (q *Queue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.draining || len(q.items) > 0 {
		q.idle.Wait()
	}
}

// Reset drops all pending items. The item in progress, if any, runs to
// completion.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
