/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package redisbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/acronis/go-raterelay/log"
	"github.com/acronis/go-raterelay/retry"
)

// NewClient creates a new Redis client. The connection is established lazily.
func NewClient(cfg *Config) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Address()},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

const connectMaxInterval = 5 * time.Second

// Connect creates a new Redis client and pings the server, retrying with exponential backoff.
func Connect(ctx context.Context, cfg *Config, logger log.FieldLogger) (redis.UniversalClient, error) {
	client := NewClient(cfg)
	policy := retry.ExponentialBackoffPolicy{
		InitialInterval:  time.Duration(cfg.Connect.InitialInterval),
		MaxInterval:      connectMaxInterval,
		MaxRetryAttempts: cfg.Connect.RetryAttempts,
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("failed to connect to Redis, will retry",
			log.String("address", cfg.Address()), log.Duration("retry_in", next), log.Error(err))
	}
	if err := retry.DoWithRetry(ctx, policy, isTransientErr, notify, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to Redis at %s: %w", cfg.Address(), err)
	}
	logger.Info("connected to Redis", log.String("address", cfg.Address()))
	return client, nil
}

// isTransientErr reports false for errors that reconnecting cannot fix.
func isTransientErr(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := err.Error()
	for _, prefix := range []string{"WRONGPASS", "NOAUTH", "NOPERM"} {
		if strings.HasPrefix(msg, prefix) {
			return false
		}
	}
	return true
}

// Pinger checks Redis availability.
type Pinger struct {
	Client redis.UniversalClient
}

// Ping reports an error if Redis cannot be reached.
func (p Pinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
