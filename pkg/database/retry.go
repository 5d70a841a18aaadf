package database

import (
	"context"
	"fmt"
	"time"

	"media_pipeline/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// WithRetry runs op up to c.RetryCount times with c.RetryInterval between attempts.
// When every attempt fails the last error is returned wrapped in ErrConnect.
func WithRetry(ctx context.Context, c Connection, name string, op func() error) error {
	attempts := c.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(c.RetryInterval)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return op()
	}, b, func(err error, next time.Duration) {
		logger.Log.Warn(fmt.Sprintf("%s connect failed, retrying...", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("next", next),
			zap.Error(err),
		)
	})
	if err != nil {
		return fmt.Errorf("%w: %s after %d attempts: %v", ErrConnect, name, attempt, err)
	}

	logger.Log.Info(fmt.Sprintf("%s connected", name), zap.Int("attempt", attempt))
	return nil
}
