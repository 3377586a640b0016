package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// TaskFunc runs one cycle of a scheduled task. The passed context carries the
// soft deadline; a task that overruns it must discard its result.
type TaskFunc func(ctx context.Context) error

// Task is a named periodic job. Tasks are cooperative: a cycle that is still
// running when the next interval fires is skipped, never run concurrently
// with itself.
type Task struct {
	Name         string
	Interval     time.Duration
	SoftDeadline time.Duration
	Run          TaskFunc

	running atomic.Bool
	skips   atomic.Uint64
	runs    atomic.Uint64
}

// Runs returns the number of completed cycles.
func (t *Task) Runs() uint64 { return t.runs.Load() }

// Skips returns the number of cycles skipped because the previous one was
// still running.
func (t *Task) Skips() uint64 { return t.skips.Load() }

// ErrorFunc receives task errors; nil means errors are dropped.
type ErrorFunc func(task string, err error)

// Scheduler drives a set of Tasks off a Clock. Each task gets its own loop
// goroutine; overlap across tasks is allowed, overlap within a task is not.
type Scheduler struct {
	clock Clock
	onErr ErrorFunc
	tasks []*Task

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a scheduler. onErr may be nil.
func New(clock Clock, onErr ErrorFunc) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{clock: clock, onErr: onErr}
}

// Register adds a task. Must be called before Start.
func (s *Scheduler) Register(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
}

// Start launches all task loops. Idempotent.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
}

// Stop cancels all loops and waits for in-flight cycles to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.started = false
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t *Task) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(t.Interval):
		}
		if !t.running.CompareAndSwap(false, true) {
			t.skips.Add(1)
			continue
		}
		// Run the cycle off the loop goroutine so the next interval fire is
		// still observed while the cycle is in flight. Stop waits for it
		// through the group.
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runOnce(ctx, t)
		}()
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t *Task) {
	defer t.running.Store(false)

	runCtx := ctx
	var cancel context.CancelFunc
	if t.SoftDeadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t.SoftDeadline)
		defer cancel()
	}
	if err := t.Run(runCtx); err != nil {
		if s.onErr != nil {
			s.onErr(t.Name, err)
		}
		return
	}
	t.runs.Add(1)
}
