/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-raterelay/log/logtest"
)

func TestService_Start(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	var running int32
	unit := newStubUnit("relay", &running, nil)
	srv := New(logRecorder, unit)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	require.NoError(t, waitTrue(func() bool { return atomic.LoadInt32(&running) == 1 }, time.Second*3))
	require.Equal(t, int32(1), unit.mustRegisterMetricsCalled.Load())

	srv.Signals <- os.Interrupt

	require.NoError(t, <-done)
	require.NoError(t, waitTrue(func() bool { return atomic.LoadInt32(&running) == 0 }, time.Second*3))
	require.Equal(t, int32(1), unit.unregisterMetricsCalled.Load())
	require.Equal(t, int32(1), unit.stopGracefullyCalled.Load())

	_, found := logRecorder.FindEntry("service got signal")
	require.True(t, found)
}

func TestService_StartContext(t *testing.T) {
	ctx, ctxCancel := context.WithCancel(context.Background())

	var running int32
	unit := newStubUnit("relay", &running, nil)
	srv := New(logtest.NewRecorder(), unit)

	done := make(chan error, 1)
	go func() { done <- srv.StartContext(ctx) }()
	require.NoError(t, waitTrue(func() bool { return atomic.LoadInt32(&running) == 1 }, time.Second*3))

	ctxCancel()

	require.NoError(t, <-done)
	require.Equal(t, int32(1), unit.stopGracefullyCalled.Load())
}

func TestService_FatalError(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	srv := New(logRecorder, NewWorkerUnit(WorkerFunc(func(ctx context.Context) error {
		return errors.New("redis: connection refused")
	})))

	err := srv.Start()
	require.ErrorContains(t, err, "fatal error: redis: connection refused")

	_, found := logRecorder.FindEntry("service fatal error")
	require.True(t, found)
}

func TestService_StopError(t *testing.T) {
	var running int32
	unit := newStubUnit("relay", &running, errors.New("flush failed"))
	srv := New(logtest.NewRecorder(), unit)

	ctx, ctxCancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.StartContext(ctx) }()
	require.NoError(t, waitTrue(func() bool { return atomic.LoadInt32(&running) == 1 }, time.Second*3))
	ctxCancel()

	require.EqualError(t, <-done, "stop service gracefully: flush failed")
}
