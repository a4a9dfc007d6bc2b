package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/junsooki/camview/internal/device"
)

// RetryConfig bounds how long the capture goroutine keeps trying to open the
// camera before giving up.
type RetryConfig struct {
	MaxRetries    int           // attempts after the first one
	RetryDelay    time.Duration // delay before the first retry
	MaxRetryDelay time.Duration // cap for the doubled delay
}

// DefaultRetryConfig retries five times starting at 500ms, capped at 8s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    5,
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 8 * time.Second,
	}
}

// backoff returns RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func backoff(attempt int, cfg RetryConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return cfg.MaxRetryDelay
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if cfg.MaxRetryDelay > 0 && delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay
}

// retryable reports whether waiting could make err go away. A busy or
// briefly missing device can come back; a format the hardware does not offer
// cannot.
func retryable(err error) bool {
	if errors.Is(err, device.ErrFormatUnsupported) {
		return false
	}
	return errors.Is(err, device.ErrDeviceUnavailable) || errors.Is(err, device.ErrStreamOpen)
}

// withRetry calls fn until it succeeds, fails permanently, runs out of
// attempts or ctx is done.
func withRetry(ctx context.Context, cfg RetryConfig, logger *slog.Logger, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				logger.Info("camera opened after retry", "attempts", attempt+1)
			}
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			return fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		delay := backoff(attempt+1, cfg)
		logger.Warn("camera open failed, retrying",
			"attempt", attempt+1,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
			"error", err,
		)

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}
