/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package relay implements a rate-governed request/response relay.
//
// Work requests are pushed onto a stack and answered at a bounded rate: every tick
// (500ms by default) the quota is reset to half of the configured per-second rate,
// and the most recently received requests are answered first until either the stack
// is empty or the quota is exhausted. Requests which did not fit into the quota stay
// queued for the next tick.
//
// A control path lets an operator query (GET_RATE) or change (SET_RATE) the rate at runtime.
//
// All state is owned by a single goroutine (Relay.Run). Bus receivers, the ticker and
// the control path talk to it only through channels, so Quota, RequestQueue, Dispatcher
// and ControlHandler need no locking and can be tested directly without a transport.
package relay
