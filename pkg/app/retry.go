package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/small-frappuccino/zealox/pkg/errors"
	"github.com/small-frappuccino/zealox/pkg/log"
)

// ErrAuthentication is returned when Discord rejected the token. It is never
// retried.
var ErrAuthentication = errors.New("discord rejected the bot token")

// connectStrategy is the start-up retry policy: five attempts, 5s delay
// doubling after each failure.
func connectStrategy(maxAttempts int) apperrors.RetryStrategy {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return apperrors.RetryStrategy{
		MaxAttempts: maxAttempts,
		BaseDelay:   5 * time.Second,
		Multiplier:  2,
	}
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// connectWithRetry calls open until it succeeds, the attempts run out, ctx
// ends, or the failure is an authentication error.
func connectWithRetry(ctx context.Context, open func() error, strategy apperrors.RetryStrategy, sleep sleepFunc) error {
	logger := log.DiscordLogger()
	var lastErr error
	for attempt := 1; attempt <= strategy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = open()
		if lastErr == nil {
			return nil
		}
		if apperrors.IsAuthenticationError(lastErr) {
			logger.Error("❌ Authentication failed. Please check the bot token.", "err", lastErr)
			return fmt.Errorf("%w: %v", ErrAuthentication, lastErr)
		}
		if attempt == strategy.MaxAttempts {
			break
		}
		delay := strategy.Delay(attempt)
		logger.Warn("⚠️ Connection failed, retrying",
			"attempt", attempt,
			"max_attempts", strategy.MaxAttempts,
			"retry_in", delay,
			"err", lastErr,
		)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", strategy.MaxAttempts, lastErr)
}
