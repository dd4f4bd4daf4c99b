/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package relay

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/acronis/go-raterelay/log"
)

// ControlAPIVersion is set as the "api" property of every control reply.
const ControlAPIVersion = "amq-demo.server-control.v1"

// Control opcodes.
const (
	OpcodeSetRate = "SET_RATE"
	OpcodeGetRate = "GET_RATE"
)

// Names of control message properties.
const (
	PropertyAPI    = "api"
	PropertyOpcode = "opcode"
	PropertyRate   = "rate"
)

// ControlCommand is a typed view of control message properties.
type ControlCommand struct {
	Opcode string `mapstructure:"opcode"`
	Rate   int    `mapstructure:"rate"`
}

// DecodeControlCommand decodes control message properties.
// Values are decoded weakly, so the rate may be passed as a string ("50") as well as a number.
// When the rate cannot be decoded, it stays zero and the error is returned together with the command.
func DecodeControlCommand(props map[string]interface{}) (ControlCommand, error) {
	var cmd ControlCommand
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{WeaklyTypedInput: true, Result: &cmd})
	if err != nil {
		return cmd, err
	}
	if err = dec.Decode(props); err != nil {
		return cmd, fmt.Errorf("decode control command: %w", err)
	}
	return cmd, nil
}

// ControlHandlerOpts represents options for ControlHandler.
type ControlHandlerOpts struct {
	// Location is set as the "location" property of every control reply.
	Location string

	Logger           log.FieldLogger
	MetricsCollector MetricsCollector
}

// ControlHandler applies control commands to the quota and replies with the current rate.
// ControlHandler is not safe for concurrent use.
type ControlHandler struct {
	quota    *Quota
	sink     Sink
	location string
	logger   log.FieldLogger
	metrics  MetricsCollector
}

// NewControlHandler creates a new ControlHandler.
func NewControlHandler(quota *Quota, sink Sink, opts ControlHandlerOpts) *ControlHandler {
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	return &ControlHandler{quota: quota, sink: sink, location: opts.Location, logger: opts.Logger, metrics: opts.MetricsCollector}
}

// Handle processes the control message. Unknown opcodes are ignored without a reply.
// It reports whether the opcode was recognized.
func (h *ControlHandler) Handle(ctx context.Context, msg *ControlMessage) bool {
	cmd, err := DecodeControlCommand(msg.Properties)
	if err != nil {
		h.logger.Debug("control message is decoded partially", log.Error(err))
	}
	h.metrics.IncControlCommands(cmd.Opcode)

	switch cmd.Opcode {
	case OpcodeSetRate:
		prevRate := h.quota.Rate()
		newRate := h.quota.SetRate(cmd.Rate)
		h.metrics.SetRate(newRate)
		if newRate != prevRate {
			h.logger.Info("rate changed", log.Int("prev_rate", prevRate), log.Int("rate", newRate))
			warnIfIdleRate(h.logger, newRate)
		}
	case OpcodeGetRate:
	default:
		return false
	}

	if msg.ReplyTo == "" {
		return true
	}
	reply := OutgoingMessage{
		Address:       msg.ReplyTo,
		CorrelationID: msg.CorrelationID,
		Properties: map[string]interface{}{
			PropertyAPI:      ControlAPIVersion,
			PropertyOpcode:   cmd.Opcode,
			PropertyRate:     h.quota.Rate(),
			PropertyLocation: h.location,
		},
	}
	if err = h.sink.Send(ctx, reply); err != nil {
		h.metrics.IncReplyErrors()
		h.logger.Warn("failed to send control reply",
			log.String("opcode", cmd.Opcode), log.String("reply_to", msg.ReplyTo), log.Error(err))
	}
	return true
}

// warnIfIdleRate warns about rates which give zero quota per period after halving.
func warnIfIdleRate(logger log.FieldLogger, rate int) {
	if rate < 2 {
		logger.Warn("rate below 2 grants no dispatches per period", log.Int("rate", rate))
	}
}
