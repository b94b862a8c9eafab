package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig configures backoff for transient collaborator failures.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for hosted-API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// withRetry runs fn, retrying transient failures with exponential backoff.
// Non-transient errors are returned immediately. The backoff sleep observes
// context cancellation.
func withRetry(ctx context.Context, cfg RetryConfig, logger *slog.Logger, op string, fn func() error) error {
	var lastErr error
	delay := cfg.InitialInterval

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !Transient(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		logger.Debug("retrying after transient error",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled during retry: %w", op, ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, cfg.MaxInterval)
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, cfg.MaxRetries+1, lastErr)
}
