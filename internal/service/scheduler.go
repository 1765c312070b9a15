package service

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrSchedulerStopped is returned by Submit outside of Run.
var ErrSchedulerStopped = errors.New("scheduler is not running")

// Scheduler runs submitted units of work on goroutines, at most
// maxParallel at a time. Submit never blocks and is safe from any
// goroutine. While running it accepts every unit: the queue is a hand-off
// buffer, and when it is full the unit is started directly and waits for
// a slot on its own goroutine. Units accepted before shutdown always run
// to completion.
type Scheduler struct {
	mu      sync.RWMutex
	running bool
	stopped bool
	ready   chan struct{}
	base    context.Context

	queue chan func(context.Context)
	sem   *semaphore.Weighted
	wg    sync.WaitGroup
}

// NewScheduler creates a stopped Scheduler. Call Run to start it.
func NewScheduler(queueSize, maxParallel int) *Scheduler {
	if queueSize < 1 {
		queueSize = 1
	}
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Scheduler{
		ready: make(chan struct{}),
		queue: make(chan func(context.Context), queueSize),
		sem:   semaphore.NewWeighted(int64(maxParallel)),
	}
}

// Submit hands fn to the running scheduler. It fails fast with
// ErrSchedulerStopped before Run has started or after it returned.
func (s *Scheduler) Submit(fn func(context.Context)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return ErrSchedulerStopped
	}
	select {
	case s.queue <- fn:
	default:
		// Run holds the write lock before it waits, so this Add cannot
		// race with wg.Wait.
		s.start(s.base, fn)
	}
	return nil
}

// Running reports whether Submit currently accepts work.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Ready is closed once Run has started accepting work.
func (s *Scheduler) Ready() <-chan struct{} {
	return s.ready
}

// Run drains the queue until ctx is cancelled, then stops accepting work,
// starts whatever is still queued and waits for all units to return.
// Units receive a context detached from ctx's cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	base := context.WithoutCancel(ctx)
	s.base = base
	s.running = true
	close(s.ready)
	s.mu.Unlock()

	slog.Info("scheduler started", "queue_size", cap(s.queue))

	for {
		select {
		case fn := <-s.queue:
			s.start(base, fn)
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.stopped = true
			s.mu.Unlock()

		drain:
			for {
				select {
				case fn := <-s.queue:
					s.start(base, fn)
				default:
					break drain
				}
			}
			s.wg.Wait()
			slog.Info("scheduler stopped")
			return nil
		}
	}
}

// start spawns fn at once; the goroutine waits for a parallelism slot so
// the caller never blocks.
func (s *Scheduler) start(ctx context.Context, fn func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Acquire only fails on a cancelled context; ctx is detached.
		_ = s.sem.Acquire(ctx, 1)
		defer s.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("scheduled unit panicked", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn(ctx)
	}()
}
