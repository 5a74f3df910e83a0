package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(2, 8, time.Second)
	p.Start(ctx)

	var n atomic.Int32
	for i := 0; i < 5; i++ {
		id, err := p.Submit("count", func(context.Context) { n.Add(1) })
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if id == "" {
			t.Error("expected a job id")
		}
	}
	p.Stop()
	if got := n.Load(); got != 5 {
		t.Errorf("ran %d jobs, want 5", got)
	}
}

func TestPool_QueueFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(1, 1, 0)
	p.Start(ctx)

	release := make(chan struct{})
	started := make(chan struct{})
	if _, err := p.Submit("block", func(context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatal(err)
	}
	<-started

	if _, err := p.Submit("queued", func(context.Context) {}); err != nil {
		t.Fatalf("second job should fit in the queue: %v", err)
	}
	if _, err := p.Submit("overflow", func(context.Context) {}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	close(release)
	p.Stop()
	if _, err := p.Submit("late", func(context.Context) {}); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestPool_JobTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(1, 1, 20*time.Millisecond)
	p.Start(ctx)

	done := make(chan error, 1)
	if _, err := p.Submit("slow", func(ctx context.Context) {
		select {
		case <-ctx.Done():
			done <- ctx.Err()
		case <-time.After(5 * time.Second):
			done <- nil
		}
	}); err != nil {
		t.Fatal(err)
	}
	if err := <-done; !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	p.Stop()
}

func TestPool_RecoversPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(1, 2, 0)
	p.Start(ctx)

	var ran atomic.Bool
	p.Submit("boom", func(context.Context) { panic("model crashed") })
	p.Submit("after", func(context.Context) { ran.Store(true) })
	p.Stop()
	if !ran.Load() {
		t.Error("worker died after a panicking job")
	}
}
