package notifier

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Publisher sends text to a topic.
type Publisher interface {
	Publish(topic, text string) error
}

// PublishWithRetry publishes with exponential backoff between attempts, starting at backoff.
func PublishWithRetry(ctx context.Context, p Publisher, topic, text string, maxRetries int, backoff time.Duration) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := p.Publish(topic, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		wait := backoff << uint(i)
		log.Warnf("publish to %s failed (attempt %d/%d): %v, retrying in %v", topic, i+1, maxRetries+1, err, wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxRetries+1, lastErr)
}
