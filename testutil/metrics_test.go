/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRequireCounterValue(t *testing.T) {
	eventsCounter := prometheus.NewCounter(prometheus.CounterOpts{Name: "events"})
	eventsCounter.Add(42)

	mt := &mockT{}
	RequireCounterValue(mt, eventsCounter, 41)
	require.True(t, mt.failed)

	mt = &mockT{}
	RequireCounterValue(mt, eventsCounter, 42)
	require.False(t, mt.failed)
}

func TestRequireGaugeValue(t *testing.T) {
	queueLen := prometheus.NewGauge(prometheus.GaugeOpts{Name: "queue_length"})
	queueLen.Set(7)

	mt := &mockT{}
	RequireGaugeValue(mt, queueLen, 8)
	require.True(t, mt.failed)

	mt = &mockT{}
	RequireGaugeValue(mt, queueLen, 7)
	require.False(t, mt.failed)
}

func TestAssertCounterVecValue(t *testing.T) {
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "commands"}, []string{"opcode"})
	commands.With(prometheus.Labels{"opcode": "GET_RATE"}).Add(3)

	mt := &mockT{}
	require.True(t, AssertCounterVecValue(mt, commands, prometheus.Labels{"opcode": "GET_RATE"}, 3))
	require.False(t, AssertCounterVecValue(mt, commands, prometheus.Labels{"opcode": "GET_RATE"}, 2))
}
