/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package relay

import "github.com/prometheus/client_golang/prometheus"

const controlMetricsLabelOpcode = "opcode"

const unknownOpcodeLabelValue = "unknown"

// MetricsCollector represents a collector of metrics for the relay.
type MetricsCollector interface {
	IncRequestsReceived()
	IncRequestsDispatched()
	IncRequestsDropped()
	IncReplyErrors()
	IncAckErrors()
	IncControlCommands(opcode string)
	SetQueueLength(n int)
	SetRate(rate int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents a collector of Prometheus metrics for the relay.
type PrometheusMetrics struct {
	RequestsReceived   prometheus.Counter
	RequestsDispatched prometheus.Counter
	RequestsDropped    prometheus.Counter
	ReplyErrors        prometheus.Counter
	AckErrors          prometheus.Counter
	ControlCommands    *prometheus.CounterVec
	QueueLength        prometheus.Gauge
	Rate               prometheus.Gauge
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	newCounter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        name,
			Help:        help,
			ConstLabels: opts.ConstLabels,
		})
	}
	newGauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        name,
			Help:        help,
			ConstLabels: opts.ConstLabels,
		})
	}
	return &PrometheusMetrics{
		RequestsReceived:   newCounter("relay_requests_received_total", "Number of received work requests."),
		RequestsDispatched: newCounter("relay_requests_dispatched_total", "Number of work requests dequeued and processed."),
		RequestsDropped:    newCounter("relay_requests_dropped_total", "Number of work requests dropped because the queue was full."),
		ReplyErrors:        newCounter("relay_reply_errors_total", "Number of replies which could not be sent."),
		AckErrors:          newCounter("relay_ack_errors_total", "Number of inbound messages which could not be acknowledged."),
		ControlCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "relay_control_commands_total",
			Help:        "Number of received control commands.",
			ConstLabels: opts.ConstLabels,
		}, []string{controlMetricsLabelOpcode}),
		QueueLength: newGauge("relay_queue_length", "Current number of queued work requests."),
		Rate:        newGauge("relay_rate", "Currently configured rate (requests per second)."),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.collectors()...)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	for _, c := range pm.collectors() {
		prometheus.Unregister(c)
	}
}

func (pm *PrometheusMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		pm.RequestsReceived,
		pm.RequestsDispatched,
		pm.RequestsDropped,
		pm.ReplyErrors,
		pm.AckErrors,
		pm.ControlCommands,
		pm.QueueLength,
		pm.Rate,
	}
}

// IncRequestsReceived increments the counter of received work requests.
func (pm *PrometheusMetrics) IncRequestsReceived() {
	pm.RequestsReceived.Inc()
}

// IncRequestsDispatched increments the counter of processed work requests.
func (pm *PrometheusMetrics) IncRequestsDispatched() {
	pm.RequestsDispatched.Inc()
}

// IncRequestsDropped increments the counter of dropped work requests.
func (pm *PrometheusMetrics) IncRequestsDropped() {
	pm.RequestsDropped.Inc()
}

// IncReplyErrors increments the counter of failed reply sends.
func (pm *PrometheusMetrics) IncReplyErrors() {
	pm.ReplyErrors.Inc()
}

// IncAckErrors increments the counter of failed acknowledgements.
func (pm *PrometheusMetrics) IncAckErrors() {
	pm.AckErrors.Inc()
}

// IncControlCommands increments the counter of control commands.
// Opcodes other than SET_RATE and GET_RATE are counted under the "unknown" label.
func (pm *PrometheusMetrics) IncControlCommands(opcode string) {
	if opcode != OpcodeSetRate && opcode != OpcodeGetRate {
		opcode = unknownOpcodeLabelValue
	}
	pm.ControlCommands.With(prometheus.Labels{controlMetricsLabelOpcode: opcode}).Inc()
}

// SetQueueLength sets the current queue length.
func (pm *PrometheusMetrics) SetQueueLength(n int) {
	pm.QueueLength.Set(float64(n))
}

// SetRate sets the currently configured rate.
func (pm *PrometheusMetrics) SetRate(rate int) {
	pm.Rate.Set(float64(rate))
}

type disabledMetrics struct{}

func (disabledMetrics) IncRequestsReceived()     {}
func (disabledMetrics) IncRequestsDispatched()   {}
func (disabledMetrics) IncRequestsDropped()      {}
func (disabledMetrics) IncReplyErrors()          {}
func (disabledMetrics) IncAckErrors()            {}
func (disabledMetrics) IncControlCommands(string) {}
func (disabledMetrics) SetQueueLength(int)       {}
func (disabledMetrics) SetRate(int)              {}
