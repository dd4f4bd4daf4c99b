/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package redisbus provides the message bus of the relay on top of Redis Streams.
//
// An address is a stream key. Sending a message is XADD to the stream named by the address.
// Receiving is XREADGROUP within a consumer group, so concurrent relay instances
// share the load, and acknowledging a message is XACK.
//
// Every stream entry carries the fields "body", "correlation_id" and "reply_to",
// plus one "prop:<name>" field per application property.
package redisbus
