/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package relay

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/atomic"

	"github.com/acronis/go-raterelay/log"
)

const defaultInboxSize = 64

// Stats is a snapshot of the relay state.
type Stats struct {
	Rate        int   `json:"rate"`
	Remaining   int   `json:"remaining"`
	QueueLength int   `json:"queueLength"`
	Dispatched  int64 `json:"dispatched"`
	Running     bool  `json:"running"`
}

// Option is a functional option for the Relay.
type Option func(*Relay)

// WithMetricsCollector sets the metrics collector. If it is *PrometheusMetrics,
// the relay registers it in Prometheus when it is run as a service unit.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(r *Relay) {
		r.metrics = mc
	}
}

// WithInboxSize sets the buffer size of the channels work requests and control messages are posted to.
func WithInboxSize(n int) Option {
	return func(r *Relay) {
		r.inboxSize = n
	}
}

// Relay owns the quota, the request queue, the dispatcher and the control handler,
// and serializes ticks, work requests and control messages in a single goroutine.
// Submit, SubmitControl and Stats are safe for concurrent use.
type Relay struct {
	quota        *Quota
	dispatcher   *Dispatcher
	control      *ControlHandler
	tickInterval time.Duration
	logger       log.FieldLogger
	metrics      MetricsCollector
	inboxSize    int

	requests chan *PendingRequest
	commands chan *ControlMessage

	rate        atomic.Int64
	remaining   atomic.Int64
	queueLength atomic.Int64
	dispatched  atomic.Int64
	running     atomic.Bool
}

// New creates a new Relay which sends replies to the sink.
func New(cfg *Config, sink Sink, logger log.FieldLogger, options ...Option) (*Relay, error) {
	quota, err := NewQuota(cfg.InitialRate)
	if err != nil {
		return nil, err
	}
	tickInterval := time.Duration(cfg.TickInterval)
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	host := cfg.Host
	if host == "" {
		if host, err = os.Hostname(); err != nil {
			return nil, fmt.Errorf("get hostname: %w", err)
		}
	}
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	warnIfIdleRate(logger, quota.Rate())

	r := &Relay{
		quota:        quota,
		tickInterval: tickInterval,
		logger:       logger,
		metrics:      disabledMetrics{},
		inboxSize:    defaultInboxSize,
	}
	for _, opt := range options {
		opt(r)
	}
	r.requests = make(chan *PendingRequest, r.inboxSize)
	r.commands = make(chan *ControlMessage, r.inboxSize)

	queue := NewRequestQueue()
	if cfg.Queue.Capacity > 0 {
		queue = NewBoundedRequestQueue(cfg.Queue.Capacity, cfg.Queue.OverflowPolicy)
	}
	r.dispatcher = NewDispatcher(quota, queue, sink, DispatcherOpts{
		Host:             host,
		Location:         cfg.Location,
		Logger:           logger,
		MetricsCollector: r.metrics,
	})
	r.control = NewControlHandler(quota, sink, ControlHandlerOpts{
		Location:         cfg.Location,
		Logger:           logger,
		MetricsCollector: r.metrics,
	})
	r.metrics.SetRate(quota.Rate())
	r.publishStats()
	return r, nil
}

// Run processes ticks, work requests and control messages until the context is canceled.
// Requests still queued at that moment are abandoned without acknowledgement,
// so the bus redelivers them to another consumer.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	r.running.Store(true)
	defer r.running.Store(false)

	r.logger.Info("relay started",
		log.Int("rate", r.quota.Rate()), log.Duration("tick_interval", r.tickInterval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped", log.Int("abandoned_requests", r.dispatcher.QueueLen()))
			return nil
		case <-ticker.C:
			r.dispatched.Add(int64(r.dispatcher.OnTick(ctx)))
		case req := <-r.requests:
			r.dispatched.Add(int64(r.dispatcher.Admit(ctx, req)))
		case msg := <-r.commands:
			r.control.Handle(ctx, msg)
		}
		r.publishStats()
	}
}

// Submit posts the work request to the relay.
// It blocks while the inbox is full and returns the context error if the context is done first.
func (r *Relay) Submit(ctx context.Context, req *PendingRequest) error {
	select {
	case r.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitControl posts the control message to the relay.
// It blocks while the inbox is full and returns the context error if the context is done first.
func (r *Relay) SubmitControl(ctx context.Context, msg *ControlMessage) error {
	select {
	case r.commands <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the latest snapshot of the relay state.
func (r *Relay) Stats() Stats {
	return Stats{
		Rate:        int(r.rate.Load()),
		Remaining:   int(r.remaining.Load()),
		QueueLength: int(r.queueLength.Load()),
		Dispatched:  r.dispatched.Load(),
		Running:     r.running.Load(),
	}
}

// MustRegisterMetrics registers Prometheus metrics of the relay, if any.
func (r *Relay) MustRegisterMetrics() {
	if pm, ok := r.metrics.(*PrometheusMetrics); ok {
		pm.MustRegister()
	}
}

// UnregisterMetrics unregisters Prometheus metrics of the relay, if any.
func (r *Relay) UnregisterMetrics() {
	if pm, ok := r.metrics.(*PrometheusMetrics); ok {
		pm.Unregister()
	}
}

func (r *Relay) publishStats() {
	r.rate.Store(int64(r.quota.Rate()))
	r.remaining.Store(int64(r.quota.Remaining()))
	r.queueLength.Store(int64(r.dispatcher.QueueLen()))
}
