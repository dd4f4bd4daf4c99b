/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package redisbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-raterelay/relay"
)

func TestSender_Send(t *testing.T) {
	_, client := newTestRedis(t)
	sender := NewSender(client, 100)
	ctx := context.Background()

	require.NoError(t, sender.Send(ctx, relay.OutgoingMessage{
		Address:       "client.replies",
		Body:          []byte("payload\nProcessed by service running on relay-1"),
		CorrelationID: "abc",
		Properties:    map[string]interface{}{relay.PropertyLocation: "On-Stage"},
	}))

	entries, err := client.XRange(ctx, "client.replies", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	msg := DecodeMessage("client.replies", entries[0])
	require.Equal(t, "payload\nProcessed by service running on relay-1", string(msg.Body))
	require.Equal(t, "abc", msg.CorrelationID)
	require.Equal(t, "", msg.ReplyTo)
	require.Equal(t, "On-Stage", msg.PropertyString("location"))
}

func TestSender_SendRequest(t *testing.T) {
	_, client := newTestRedis(t)
	sender := NewSender(client, 0)
	ctx := context.Background()

	id, err := sender.SendRequest(ctx, relay.OutgoingMessage{Address: "FraudDetection/v1", Body: []byte("check")}, "client.replies")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entries, err := client.XRange(ctx, "FraudDetection/v1", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, id, entries[0].ID)
	require.Equal(t, "client.replies", DecodeMessage("FraudDetection/v1", entries[0]).ReplyTo)
}

func TestSender_Errors(t *testing.T) {
	mr, client := newTestRedis(t)
	sender := NewSender(client, 0)

	require.ErrorIs(t, sender.Send(context.Background(), relay.OutgoingMessage{Body: []byte("x")}), ErrEmptyAddress)

	mr.Close()
	require.Error(t, sender.Send(context.Background(), relay.OutgoingMessage{Address: "client.replies"}))
}
