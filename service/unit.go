/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

// Unit represents a service unit that can be started and stopped.
// Each Unit is a distinct component within a service (the relay loop, a bus receiver,
// the ops HTTP server) with its own lifecycle.
type Unit interface {
	// Start begins the unit's operation. It may block for the unit's lifetime.
	//
	// If Start succeeds, it must not write anything to the provided error channel.
	// The channel must not be used after the Start method has returned.
	Start(fatalErr chan<- error)

	// Stop halts the unit. If 'gracefully' is true, the unit should attempt a clean shutdown.
	// It may be called even if Start has failed or was never called.
	Stop(gracefully bool) error
}

// MetricsRegisterer is an interface for objects that can register its own metrics.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
