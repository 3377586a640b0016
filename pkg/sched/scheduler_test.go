package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestManualClockAdvanceFiresWaiters(t *testing.T) {
	c := NewManualClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	ch := c.After(3 * time.Second)

	c.Advance(2 * time.Second)
	select {
	case <-ch:
		t.Fatalf("waiter fired early")
	default:
	}

	c.Advance(time.Second)
	select {
	case at := <-ch:
		if !at.Equal(c.Now()) {
			t.Fatalf("unexpected fire time %v", at)
		}
	default:
		t.Fatalf("waiter did not fire")
	}
}

func TestSchedulerRunsTaskOnInterval(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	var runs atomic.Int64
	done := make(chan struct{}, 8)

	s := New(clock, nil)
	s.Register(&Task{
		Name:     "tick",
		Interval: 3 * time.Second,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			done <- struct{}{}
			return nil
		},
	})
	s.Start(context.Background())
	defer s.Stop()

	for i := 0; i < 3; i++ {
		// Give the loop a moment to block on After before advancing.
		time.Sleep(10 * time.Millisecond)
		clock.Advance(3 * time.Second)
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("cycle %d did not run", i)
		}
	}
	if got := runs.Load(); got != 3 {
		t.Fatalf("expected 3 runs, got %d", got)
	}
}

func TestSchedulerSkipsOverlappingCycle(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	block := make(chan struct{})
	started := make(chan struct{}, 1)

	task := &Task{
		Name:     "slow",
		Interval: time.Second,
		Run: func(ctx context.Context) error {
			started <- struct{}{}
			<-block
			return nil
		},
	}
	s := New(clock, nil)
	s.Register(task)
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(10 * time.Millisecond)
	clock.Advance(time.Second)
	<-started

	// Fire the interval again while the first cycle is stuck.
	time.Sleep(10 * time.Millisecond)
	clock.Advance(time.Second)
	time.Sleep(50 * time.Millisecond)

	if task.Skips() == 0 {
		t.Fatalf("expected overlapping cycle to be skipped")
	}
	close(block)
}

func TestSchedulerSoftDeadlineCancelsRun(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	var taskErr error
	errCh := make(chan struct{}, 1)

	s := New(clock, func(name string, err error) {
		taskErr = err
		errCh <- struct{}{}
	})
	s.Register(&Task{
		Name:         "deadline",
		Interval:     time.Second,
		SoftDeadline: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(10 * time.Millisecond)
	clock.Advance(time.Second)

	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatalf("deadline error never surfaced")
	}
	if taskErr != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", taskErr)
	}
}
