/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package redisbus

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"

	"github.com/acronis/go-raterelay/relay"
)

// Names of stream entry fields.
const (
	FieldBody           = "body"
	FieldCorrelationID  = "correlation_id"
	FieldReplyTo        = "reply_to"
	PropertyFieldPrefix = "prop:"
)

// Message is a message received from a stream.
type Message struct {
	// ID is the stream entry ID.
	ID string

	// Stream is the address the message was received on.
	Stream string

	Body          []byte
	CorrelationID string
	ReplyTo       string

	// Properties are always decoded as strings.
	Properties map[string]interface{}

	ack func(ctx context.Context) error
}

var _ relay.Acknowledger = (*Message)(nil)

// Ack acknowledges the message within the consumer group it was read by.
func (m *Message) Ack(ctx context.Context) error {
	if m.ack == nil {
		return nil
	}
	return m.ack(ctx)
}

// PropertyString returns the property value as a string.
func (m *Message) PropertyString(name string) string {
	return cast.ToString(m.Properties[name])
}

// EncodeMessage converts the outgoing message into stream entry values.
// Property values are converted to strings.
func EncodeMessage(msg relay.OutgoingMessage) (map[string]interface{}, error) {
	values := make(map[string]interface{}, 3+len(msg.Properties))
	values[FieldBody] = string(msg.Body)
	if msg.CorrelationID != "" {
		values[FieldCorrelationID] = msg.CorrelationID
	}
	for name, val := range msg.Properties {
		str, err := cast.ToStringE(val)
		if err != nil {
			return nil, fmt.Errorf("encode property %q: %w", name, err)
		}
		values[PropertyFieldPrefix+name] = str
	}
	return values, nil
}

// EncodeRequest converts the outgoing message into stream entry values and sets the address replies are expected on.
func EncodeRequest(msg relay.OutgoingMessage, replyTo string) (map[string]interface{}, error) {
	values, err := EncodeMessage(msg)
	if err != nil {
		return nil, err
	}
	if replyTo != "" {
		values[FieldReplyTo] = replyTo
	}
	return values, nil
}

// DecodeMessage converts the stream entry into a Message. Unknown fields are ignored.
func DecodeMessage(stream string, xm redis.XMessage) *Message {
	msg := &Message{ID: xm.ID, Stream: stream, Properties: make(map[string]interface{})}
	for field, val := range xm.Values {
		str := cast.ToString(val)
		switch {
		case field == FieldBody:
			msg.Body = []byte(str)
		case field == FieldCorrelationID:
			msg.CorrelationID = str
		case field == FieldReplyTo:
			msg.ReplyTo = str
		case strings.HasPrefix(field, PropertyFieldPrefix):
			msg.Properties[strings.TrimPrefix(field, PropertyFieldPrefix)] = str
		}
	}
	return msg
}

// PropertyNames returns sorted names of the message properties.
func (m *Message) PropertyNames() []string {
	names := make([]string, 0, len(m.Properties))
	for name := range m.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
