/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package relay

import "errors"

// ErrInvalidRate is returned when a non-positive rate is used for creating a Quota.
var ErrInvalidRate = errors.New("rate must be a positive integer")

// Quota tracks the configured rate and the allowance left in the current period.
// A period is half of the rate's time unit, so each period grants rate/2 (integer division) dispatches.
// Quota is not safe for concurrent use.
type Quota struct {
	rate      int
	remaining int
}

// NewQuota creates a new Quota. The first period starts immediately.
func NewQuota(initialRate int) (*Quota, error) {
	if initialRate <= 0 {
		return nil, ErrInvalidRate
	}
	q := &Quota{rate: initialRate}
	q.ResetPeriod()
	return q, nil
}

// ResetPeriod starts a new period.
func (q *Quota) ResetPeriod() {
	q.remaining = q.rate / 2
}

// TrySpend takes one unit from the current period's allowance.
// It reports false, without any side effect, when the allowance is exhausted.
func (q *Quota) TrySpend() bool {
	if q.remaining <= 0 {
		return false
	}
	q.remaining--
	return true
}

// SetRate changes the rate if the new value is positive, otherwise the value is ignored.
// It always returns the resulting rate. The allowance of the current period is not touched.
func (q *Quota) SetRate(newRate int) int {
	if newRate > 0 {
		q.rate = newRate
	}
	return q.rate
}

// Rate returns the configured rate.
func (q *Quota) Rate() int {
	return q.rate
}

// Remaining returns the allowance left in the current period.
func (q *Quota) Remaining() int {
	return q.remaining
}
