package service

import (
	"log/slog"
	"sync"

	"github.com/Strob0t/taskbridge/internal/domain/task"
)

// Registry connects finished results to the one client currently waiting
// for each task. Await, Publish and Cancel share a single critical section,
// so a result stored before Publish is never missed by a concurrent Await.
//
// Subscriber channels must be buffered with capacity >= 1; the registry
// never blocks on a send.
type Registry struct {
	mu      sync.Mutex
	store   *ResultStore
	waiters map[string]chan *task.Result
}

// NewRegistry creates a Registry reading results from store.
func NewRegistry(store *ResultStore) *Registry {
	return &Registry{
		store:   store,
		waiters: make(map[string]chan *task.Result),
	}
}

// Await delivers the stored result for taskID on ch and returns true, or,
// when no result exists yet, registers ch as the task's subscriber and
// returns false. Either way ch becomes the most recent subscriber: a
// previously registered channel is closed without a value.
func (r *Registry) Await(taskID string, ch chan *task.Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.supersede(taskID, ch)

	if res, ok := r.store.Get(taskID); ok {
		delete(r.waiters, taskID)
		deliver(ch, res)
		return true
	}

	r.waiters[taskID] = ch
	return false
}

// supersede closes the registered subscriber of taskID unless it is ch.
// Callers hold r.mu.
func (r *Registry) supersede(taskID string, ch chan *task.Result) {
	prev, ok := r.waiters[taskID]
	if !ok || prev == ch {
		return
	}
	delete(r.waiters, taskID)
	close(prev)
	slog.Debug("subscriber replaced", "task_id", taskID)
}

// Publish pushes the stored result for taskID to its subscriber, if any,
// and clears the subscription. Without a subscriber it does nothing; late
// clients get the result through Await.
func (r *Registry) Publish(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.waiters[taskID]
	if !ok {
		return false
	}
	res, ok := r.store.Get(taskID)
	if !ok {
		slog.Error("publish without stored result", "task_id", taskID)
		return false
	}

	delete(r.waiters, taskID)
	deliver(ch, res)
	return true
}

// Cancel removes ch as the subscriber of taskID, typically on client
// disconnect. It is a no-op when ch is no longer the live subscriber.
func (r *Registry) Cancel(taskID string, ch chan *task.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.waiters[taskID]; ok && cur == ch {
		delete(r.waiters, taskID)
	}
}

// Waiting returns the number of registered subscribers.
func (r *Registry) Waiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}

func deliver(ch chan *task.Result, res *task.Result) {
	select {
	case ch <- res:
	default:
		slog.Warn("subscriber channel full, result dropped", "task_id", res.TaskID)
	}
}
