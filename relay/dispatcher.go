/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package relay

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/acronis/go-raterelay/log"
)

// PropertyLocation is the name of the message property carrying the location of the service instance.
const PropertyLocation = "location"

const processedBySuffix = "\nProcessed by service running on "

const dropWarningInterval = 10 * time.Second

// DispatcherOpts represents options for Dispatcher.
type DispatcherOpts struct {
	// Host is appended to every reply body.
	Host string

	// Location is set as the "location" property of every reply.
	Location string

	Logger           log.FieldLogger
	MetricsCollector MetricsCollector
}

// Dispatcher drains the request queue within the quota and replies to the drained requests.
// Dispatcher is not safe for concurrent use.
type Dispatcher struct {
	quota    *Quota
	queue    *RequestQueue
	sink     Sink
	host     string
	location string
	logger   log.FieldLogger
	metrics  MetricsCollector
	dropLogs rate.Sometimes
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(quota *Quota, queue *RequestQueue, sink Sink, opts DispatcherOpts) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	return &Dispatcher{
		quota:    quota,
		queue:    queue,
		sink:     sink,
		host:     opts.Host,
		location: opts.Location,
		logger:   opts.Logger,
		metrics:  opts.MetricsCollector,
		dropLogs: rate.Sometimes{First: 1, Interval: dropWarningInterval},
	}
}

// Admit enqueues the request and drains whatever the current quota allows.
// It returns the number of dispatched requests.
func (d *Dispatcher) Admit(ctx context.Context, req *PendingRequest) int {
	d.metrics.IncRequestsReceived()
	if dropped := d.queue.Enqueue(req); dropped != nil {
		d.drop(ctx, dropped)
	}
	return d.Drain(ctx)
}

// OnTick starts a new quota period and drains the queue.
// It returns the number of dispatched requests.
func (d *Dispatcher) OnTick(ctx context.Context) int {
	d.quota.ResetPeriod()
	return d.Drain(ctx)
}

// Drain dispatches the most recent requests while the queue is not empty and the quota allows it.
// It returns the number of dispatched requests.
func (d *Dispatcher) Drain(ctx context.Context) int {
	n := 0
	for d.queue.Len() > 0 && d.quota.TrySpend() {
		req, _ := d.queue.DequeueOne()
		d.dispatch(ctx, req)
		n++
	}
	d.metrics.SetQueueLength(d.queue.Len())
	return n
}

// QueueLen returns the number of requests waiting for the quota.
func (d *Dispatcher) QueueLen() int {
	return d.queue.Len()
}

func (d *Dispatcher) dispatch(ctx context.Context, req *PendingRequest) {
	if req.ReplyTo != "" {
		if err := d.sink.Send(ctx, d.makeReply(req)); err != nil {
			d.metrics.IncReplyErrors()
			d.logger.Warn("failed to send reply",
				log.String("correlation_id", req.CorrelationID),
				log.String("reply_to", req.ReplyTo),
				log.Error(err))
		}
	} else {
		d.logger.Debug("request has no reply address, reply skipped",
			log.String("correlation_id", req.CorrelationID))
	}
	d.ack(ctx, req)
	d.metrics.IncRequestsDispatched()
}

func (d *Dispatcher) drop(ctx context.Context, req *PendingRequest) {
	d.metrics.IncRequestsDropped()
	d.dropLogs.Do(func() {
		d.logger.Warn("request queue is full, request dropped",
			log.String("correlation_id", req.CorrelationID),
			log.Int("queue_length", d.queue.Len()),
			log.Duration("waited", time.Since(req.ReceivedAt)))
	})
	d.ack(ctx, req)
}

func (d *Dispatcher) ack(ctx context.Context, req *PendingRequest) {
	if err := req.ack(ctx); err != nil {
		d.metrics.IncAckErrors()
		d.logger.Warn("failed to acknowledge request",
			log.String("correlation_id", req.CorrelationID), log.Error(err))
	}
}

func (d *Dispatcher) makeReply(req *PendingRequest) OutgoingMessage {
	body := make([]byte, 0, len(req.Payload)+len(processedBySuffix)+len(d.host))
	body = append(body, req.Payload...)
	body = append(body, processedBySuffix...)
	body = append(body, d.host...)
	return OutgoingMessage{
		Address:       req.ReplyTo,
		Body:          body,
		CorrelationID: req.CorrelationID,
		Properties:    map[string]interface{}{PropertyLocation: d.location},
	}
}
