package notifier

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyPublisher struct {
	failures int
	calls    int
	sent     []string
}

func (f *flakyPublisher) Publish(_, text string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("not connected")
	}
	f.sent = append(f.sent, text)
	return nil
}

func TestPublishWithRetry_RecoversAfterFailures(t *testing.T) {
	p := &flakyPublisher{failures: 2}
	if err := PublishWithRetry(context.Background(), p, "t", "hello", 2, time.Millisecond); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if p.calls != 3 || len(p.sent) != 1 || p.sent[0] != "hello" {
		t.Errorf("calls = %d, sent = %v", p.calls, p.sent)
	}
}

func TestPublishWithRetry_GivesUp(t *testing.T) {
	p := &flakyPublisher{failures: 10}
	err := PublishWithRetry(context.Background(), p, "t", "hello", 2, time.Millisecond)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3", p.calls)
	}
}

func TestPublishWithRetry_StopsOnCancel(t *testing.T) {
	p := &flakyPublisher{failures: 10}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := PublishWithRetry(ctx, p, "t", "hello", 5, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}
