/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package relay

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-raterelay/testutil"
)

func TestDecodeControlCommand(t *testing.T) {
	tests := []struct {
		name    string
		props   map[string]interface{}
		want    ControlCommand
		wantErr bool
	}{
		{
			name:  "string rate",
			props: map[string]interface{}{"opcode": "SET_RATE", "rate": "50"},
			want:  ControlCommand{Opcode: OpcodeSetRate, Rate: 50},
		},
		{
			name:  "integer rate",
			props: map[string]interface{}{"opcode": "SET_RATE", "rate": 75},
			want:  ControlCommand{Opcode: OpcodeSetRate, Rate: 75},
		},
		{
			name:  "float rate",
			props: map[string]interface{}{"opcode": "SET_RATE", "rate": 80.0},
			want:  ControlCommand{Opcode: OpcodeSetRate, Rate: 80},
		},
		{
			name:  "no rate",
			props: map[string]interface{}{"opcode": "GET_RATE", "api": ControlAPIVersion},
			want:  ControlCommand{Opcode: OpcodeGetRate},
		},
		{
			name:    "non-numeric rate",
			props:   map[string]interface{}{"opcode": "SET_RATE", "rate": "fast"},
			want:    ControlCommand{Opcode: OpcodeSetRate},
			wantErr: true,
		},
		{
			name: "nil properties",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := DecodeControlCommand(tt.props)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, cmd)
		})
	}
}

func newTestControlHandler(t *testing.T, rate int, sink Sink, metrics MetricsCollector) (*ControlHandler, *Quota) {
	t.Helper()
	quota, err := NewQuota(rate)
	require.NoError(t, err)
	return NewControlHandler(quota, sink, ControlHandlerOpts{Location: "On-Stage", MetricsCollector: metrics}), quota
}

func TestControlHandler_SetRate(t *testing.T) {
	sink := &recordingSink{}
	metrics := NewPrometheusMetrics()
	h, quota := newTestControlHandler(t, 200, sink, metrics)

	msg := &ControlMessage{
		Properties:    map[string]interface{}{"opcode": "SET_RATE", "rate": "50"},
		ReplyTo:       "ctl.replies",
		CorrelationID: "ctl-1",
	}
	require.True(t, h.Handle(context.Background(), msg))
	require.Equal(t, 50, quota.Rate())

	msgs := sink.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, OutgoingMessage{
		Address:       "ctl.replies",
		CorrelationID: "ctl-1",
		Properties: map[string]interface{}{
			"api":      "amq-demo.server-control.v1",
			"opcode":   "SET_RATE",
			"rate":     50,
			"location": "On-Stage",
		},
	}, msgs[0])

	// Applying the same rate again leaves the state unchanged and yields the same reply.
	require.True(t, h.Handle(context.Background(), msg))
	require.Equal(t, 50, quota.Rate())
	msgs = sink.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, msgs[0], msgs[1])

	testutil.RequireGaugeValue(t, metrics.Rate, 50)
	require.True(t, testutil.AssertCounterVecValue(t, metrics.ControlCommands, prometheus.Labels{"opcode": "SET_RATE"}, 2))
}

func TestControlHandler_SetInvalidRate(t *testing.T) {
	for _, rate := range []interface{}{"0", "-3", -1, "fast", nil} {
		sink := &recordingSink{}
		h, quota := newTestControlHandler(t, 200, sink, nil)

		props := map[string]interface{}{"opcode": "SET_RATE"}
		if rate != nil {
			props["rate"] = rate
		}
		require.True(t, h.Handle(context.Background(), &ControlMessage{Properties: props, ReplyTo: "ctl.replies"}))
		require.Equal(t, 200, quota.Rate(), "rate %v", rate)

		msgs := sink.Messages()
		require.Len(t, msgs, 1)
		require.Equal(t, 200, msgs[0].Properties["rate"])
	}
}

func TestControlHandler_GetRate(t *testing.T) {
	sink := &recordingSink{}
	h, quota := newTestControlHandler(t, 120, sink, nil)
	require.True(t, quota.TrySpend())

	require.True(t, h.Handle(context.Background(), &ControlMessage{
		Properties:    map[string]interface{}{"opcode": "GET_RATE", "rate": "10"},
		ReplyTo:       "ctl.replies",
		CorrelationID: "ctl-2",
	}))
	require.Equal(t, 120, quota.Rate())
	require.Equal(t, 59, quota.Remaining())

	msgs := sink.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "ctl-2", msgs[0].CorrelationID)
	require.Equal(t, "GET_RATE", msgs[0].Properties["opcode"])
	require.Equal(t, 120, msgs[0].Properties["rate"])
}

func TestControlHandler_UnknownOpcode(t *testing.T) {
	sink := &recordingSink{}
	metrics := NewPrometheusMetrics()
	h, quota := newTestControlHandler(t, 200, sink, metrics)

	for _, opcode := range []interface{}{"RESET", "set_rate", "", nil} {
		props := map[string]interface{}{"rate": "10"}
		if opcode != nil {
			props["opcode"] = opcode
		}
		require.False(t, h.Handle(context.Background(), &ControlMessage{Properties: props, ReplyTo: "ctl.replies"}))
	}
	require.Equal(t, 200, quota.Rate())
	require.Empty(t, sink.Messages())
	require.True(t, testutil.AssertCounterVecValue(t, metrics.ControlCommands, prometheus.Labels{"opcode": "unknown"}, 4))
}

func TestControlHandler_NoReplyAddress(t *testing.T) {
	sink := &recordingSink{}
	h, quota := newTestControlHandler(t, 200, sink, nil)

	require.True(t, h.Handle(context.Background(), &ControlMessage{
		Properties: map[string]interface{}{"opcode": "SET_RATE", "rate": 30},
	}))
	require.Equal(t, 30, quota.Rate())
	require.Empty(t, sink.Messages())
}
