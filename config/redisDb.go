package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ConnectRedisWithRetry connects the Redis client and the lock client built on it.
// Call this from main() AFTER the HTTP server is listening.
//
// maxAttempts <= 0 retries until ctx is done.
func ConnectRedisWithRetry(ctx context.Context, maxAttempts int) (*redis.Client, *redislock.Client, error) {
	redisAddr := envString("REDIS_ADDRESS", "localhost:6379")

	var attempt int
	for {
		attempt++
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: envString("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
			PoolSize: 100,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			logg.WithFields(logrus.Fields{"attempt": attempt, "addr": redisAddr}).Info("connected to redis")
			return rdb, redislock.New(rdb), nil
		}
		_ = rdb.Close()
		if maxAttempts > 0 && attempt >= maxAttempts {
			return nil, nil, fmt.Errorf("connect redis %s after %d attempts: %w", redisAddr, attempt, err)
		}

		sleep := retryDelay(attempt)
		logg.WithFields(logrus.Fields{"attempt": attempt, "addr": redisAddr, "retry_in": sleep.String()}).WithError(err).Warn("failed to connect redis")
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// GetRedisObject decodes key into dest. A nil client or a missing key is a miss, not an error.
func GetRedisObject(ctx context.Context, rdb *redis.Client, key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err = json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

// GetRedisVersion reads a counter bumped by BumpRedisVersion. A nil client or a missing key reads as 0.
func GetRedisVersion(ctx context.Context, rdb *redis.Client, versionKey string) (int64, error) {
	if rdb == nil {
		return 0, nil
	}
	v, err := rdb.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetRedisObjectIfVersion writes obj only while versionKey still holds version, so a reader
// that loaded rows before an invalidation cannot put them back. It reports whether it wrote.
func SetRedisObjectIfVersion(ctx context.Context, rdb *redis.Client, key, versionKey string, version int64, obj interface{}, exp time.Duration) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return false, err
	}
	written := false
	err = rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, objInByte, exp)
			return nil
		})
		written = err == nil
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return written, err
}

// BumpRedisVersion increments versionKey and drops keys in one MULTI.
func BumpRedisVersion(ctx context.Context, rdb *redis.Client, versionKey string, keys ...string) error {
	if rdb == nil {
		return nil
	}
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		return nil
	})
	return err
}
