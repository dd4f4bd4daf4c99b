/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewQuota(t *testing.T) {
	for _, rate := range []int{0, -1, -200} {
		_, err := NewQuota(rate)
		require.ErrorIs(t, err, ErrInvalidRate)
	}

	q, err := NewQuota(200)
	require.NoError(t, err)
	require.Equal(t, 200, q.Rate())
	require.Equal(t, 100, q.Remaining())
}

func TestQuota_ResetPeriod(t *testing.T) {
	tests := []struct {
		rate          int
		wantRemaining int
	}{
		{rate: 1, wantRemaining: 0},
		{rate: 2, wantRemaining: 1},
		{rate: 7, wantRemaining: 3},
		{rate: 10, wantRemaining: 5},
		{rate: 200, wantRemaining: 100},
	}
	for _, tt := range tests {
		q, err := NewQuota(tt.rate)
		require.NoError(t, err)
		for q.TrySpend() {
		}
		require.Equal(t, 0, q.Remaining())

		q.ResetPeriod()
		require.Equal(t, tt.wantRemaining, q.Remaining(), "rate %d", tt.rate)
	}
}

func TestQuota_TrySpend(t *testing.T) {
	q, err := NewQuota(10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.True(t, q.TrySpend())
		require.Equal(t, 4-i, q.Remaining())
	}

	// Exhausted quota is never driven below zero.
	for i := 0; i < 3; i++ {
		require.False(t, q.TrySpend())
		require.Equal(t, 0, q.Remaining())
	}
}

func TestQuota_SetRate(t *testing.T) {
	q, err := NewQuota(10)
	require.NoError(t, err)
	require.True(t, q.TrySpend())

	require.Equal(t, 10, q.SetRate(0))
	require.Equal(t, 10, q.SetRate(-5))
	require.Equal(t, 10, q.Rate())

	require.Equal(t, 50, q.SetRate(50))
	require.Equal(t, 50, q.SetRate(50))
	require.Equal(t, 50, q.Rate())

	// The current period is not affected.
	require.Equal(t, 4, q.Remaining())
	q.ResetPeriod()
	require.Equal(t, 25, q.Remaining())
}
