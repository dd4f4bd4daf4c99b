/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package redisbus

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-raterelay/config"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newTestConfig(t *testing.T, mr *miniredis.Miniredis) *Config {
	t.Helper()
	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := NewDefaultConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.BlockTimeout = config.TimeDuration(time.Millisecond * 50)
	cfg.ClaimMinIdle = 0
	cfg.Connect.InitialInterval = config.TimeDuration(time.Millisecond * 10)
	return cfg
}

type collectingHandler struct {
	mu   sync.Mutex
	msgs []*Message
	ack  bool
}

func (h *collectingHandler) Handle(ctx context.Context, msg *Message) error {
	h.mu.Lock()
	h.msgs = append(h.msgs, msg)
	h.mu.Unlock()
	if h.ack {
		return msg.Ack(ctx)
	}
	return nil
}

func (h *collectingHandler) Messages() []*Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Message(nil), h.msgs...)
}

func runReceiver(t *testing.T, r *Receiver) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second * 5):
			t.Fatal("receiver did not stop")
		}
	}
}
