/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package relay

import (
	"context"
	"time"
)

// Acknowledger marks an inbound delivery as processed toward the transport it came from.
type Acknowledger interface {
	Ack(ctx context.Context) error
}

// AckFunc is an adapter to allow the use of ordinary functions as Acknowledger.
type AckFunc func(ctx context.Context) error

// Ack implements Acknowledger.
func (f AckFunc) Ack(ctx context.Context) error {
	return f(ctx)
}

// PendingRequest is a work request which has been admitted but not replied yet.
type PendingRequest struct {
	// CorrelationID is echoed back unchanged in the reply.
	CorrelationID string

	// ReplyTo is the address the reply is sent to. Empty means the reply is skipped,
	// but the request is still processed and acknowledged.
	ReplyTo string

	Payload []byte

	// ReceivedAt is used only for observability.
	ReceivedAt time.Time

	acker Acknowledger
}

// NewPendingRequest creates a new PendingRequest received now.
// The acknowledger is called exactly once, after the reply is sent (or skipped). It may be nil.
func NewPendingRequest(correlationID, replyTo string, payload []byte, acker Acknowledger) *PendingRequest {
	return &PendingRequest{
		CorrelationID: correlationID,
		ReplyTo:       replyTo,
		Payload:       payload,
		ReceivedAt:    time.Now(),
		acker:         acker,
	}
}

func (r *PendingRequest) ack(ctx context.Context) error {
	if r.acker == nil {
		return nil
	}
	return r.acker.Ack(ctx)
}

// ControlMessage is a message received on the control address.
type ControlMessage struct {
	// Properties contain at least "opcode" and optionally "rate".
	Properties    map[string]interface{}
	ReplyTo       string
	CorrelationID string
}

// OutgoingMessage is a message sent to an arbitrary address.
type OutgoingMessage struct {
	Address       string
	Body          []byte
	CorrelationID string
	Properties    map[string]interface{}
}

// Sink sends outgoing messages to the bus.
type Sink interface {
	Send(ctx context.Context, msg OutgoingMessage) error
}

// SinkFunc is an adapter to allow the use of ordinary functions as Sink.
type SinkFunc func(ctx context.Context, msg OutgoingMessage) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, msg OutgoingMessage) error {
	return f(ctx, msg)
}
