/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package relay

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

const testHost = "test-host"

type recordingSink struct {
	mu   sync.Mutex
	msgs []OutgoingMessage
	err  error
}

func (s *recordingSink) Send(_ context.Context, msg OutgoingMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSink) Messages() []OutgoingMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OutgoingMessage(nil), s.msgs...)
}

func (s *recordingSink) CorrelationIDs() []string {
	var ids []string
	for _, msg := range s.Messages() {
		ids = append(ids, msg.CorrelationID)
	}
	return ids
}

type ackCounter struct {
	acked atomic.Int32
	err   error
}

func (c *ackCounter) Ack(context.Context) error {
	c.acked.Inc()
	return c.err
}

func newTestDispatcher(t interface{ Helper() }, rate int, queue *RequestQueue, sink Sink, opts DispatcherOpts) (*Dispatcher, *Quota) {
	t.Helper()
	quota, err := NewQuota(rate)
	if err != nil {
		panic(err)
	}
	if opts.Host == "" {
		opts.Host = testHost
	}
	return NewDispatcher(quota, queue, sink, opts), quota
}
