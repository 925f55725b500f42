package utils

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

const lockRetryStep = 50 * time.Millisecond

// TryLock is a best-effort mutex over Redis. A nil locker, a Redis failure or a key still held
// after wait all return ok=false with a no-op release; the caller proceeds and relies on the
// database for correctness.
func TryLock(ctx context.Context, locker *redislock.Client, logger *logrus.Logger, key string, ttl time.Duration, wait time.Duration) (release func(), ok bool) {
	release = func() {}
	if locker == nil {
		return release, false
	}
	retries := int(wait / lockRetryStep)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(lockRetryStep), retries),
	}
	lock, err := locker.Obtain(ctx, key, ttl, opts)
	if err != nil {
		if logger != nil {
			entry := logger.WithField("lock", key).WithError(err)
			if errors.Is(err, redislock.ErrNotObtained) {
				entry.Warn("lock busy; continuing without it")
			} else {
				entry.Warn("lock unavailable; continuing without it")
			}
		}
		return release, false
	}
	return func() {
		// The request context may already be cancelled; always try to free the key.
		_ = lock.Release(context.Background())
	}, true
}
