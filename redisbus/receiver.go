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
	"github.com/rs/xid"

	"github.com/acronis/go-raterelay/log"
	"github.com/acronis/go-raterelay/service"
)

// Handler processes a received message. The handler is responsible for acknowledging it.
// Returning an error leaves the message unacknowledged.
type Handler func(ctx context.Context, msg *Message) error

// Receiver reads messages from a stream within a consumer group and passes them to the handler one by one.
type Receiver struct {
	client       redis.UniversalClient
	stream       string
	group        string
	consumer     string
	blockTimeout time.Duration
	batchSize    int64
	claimMinIdle time.Duration
	handler      Handler
	logger       log.FieldLogger
}

var _ service.Worker = (*Receiver)(nil)

// NewReceiver creates a new Receiver for the stream.
func NewReceiver(client redis.UniversalClient, stream string, cfg *Config, handler Handler, logger log.FieldLogger) *Receiver {
	consumer := cfg.Consumer
	if consumer == "" {
		consumer = "raterelay-" + xid.New().String()
	}
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &Receiver{
		client:       client,
		stream:       stream,
		group:        cfg.Group,
		consumer:     consumer,
		blockTimeout: time.Duration(cfg.BlockTimeout),
		batchSize:    int64(cfg.BatchSize),
		claimMinIdle: time.Duration(cfg.ClaimMinIdle),
		handler:      handler,
		logger:       logger.With(log.String("stream", stream), log.String("consumer", consumer)),
	}
}

// Consumer returns the name of the consumer within the group.
func (r *Receiver) Consumer() string {
	return r.consumer
}

// Run reads and handles messages until the context is canceled.
func (r *Receiver) Run(ctx context.Context) error {
	if err := r.ensureGroup(ctx); err != nil {
		return err
	}
	if r.claimMinIdle > 0 {
		if err := r.claimStale(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("failed to claim stale messages", log.Error(err))
		}
	}

	r.logger.Info("receiver started")
	for ctx.Err() == nil {
		streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    r.group,
			Consumer: r.consumer,
			Streams:  []string{r.stream, ">"},
			Count:    r.batchSize,
			Block:    r.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			if isNoGroupErr(err) {
				if err = r.ensureGroup(ctx); err == nil {
					continue
				}
			}
			r.logger.Warn("failed to read messages", log.Error(err))
			r.pause(ctx)
			continue
		}
		for _, s := range streams {
			r.handle(ctx, s.Messages)
		}
	}
	r.logger.Info("receiver stopped")
	return nil
}

func (r *Receiver) handle(ctx context.Context, messages []redis.XMessage) {
	for _, xm := range messages {
		msg := DecodeMessage(r.stream, xm)
		msg.ack = r.makeAck(xm.ID)
		if err := r.handler(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("failed to handle message",
				log.String("id", xm.ID), log.String("correlation_id", msg.CorrelationID), log.Error(err))
		}
	}
}

func (r *Receiver) makeAck(id string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return r.client.XAck(ctx, r.stream, r.group, id).Err()
	}
}

func (r *Receiver) ensureGroup(ctx context.Context) error {
	err := r.client.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %q for stream %q: %w", r.group, r.stream, err)
	}
	return nil
}

// claimStale takes over messages delivered to other consumers of the group but not acknowledged in time,
// e.g. requests abandoned by a stopped relay instance, and handles them.
func (r *Receiver) claimStale(ctx context.Context) error {
	start := "0-0"
	for {
		messages, next, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   r.stream,
			Group:    r.group,
			Consumer: r.consumer,
			MinIdle:  r.claimMinIdle,
			Start:    start,
			Count:    r.batchSize,
		}).Result()
		if err != nil {
			return err
		}
		if len(messages) > 0 {
			r.logger.Info("claimed stale messages", log.Int("count", len(messages)))
			r.handle(ctx, messages)
		}
		if next == "0-0" || next == "" || ctx.Err() != nil {
			return nil
		}
		start = next
	}
}

func (r *Receiver) pause(ctx context.Context) {
	t := time.NewTimer(r.blockTimeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func isNoGroupErr(err error) bool {
	return strings.HasPrefix(err.Error(), "NOGROUP")
}
