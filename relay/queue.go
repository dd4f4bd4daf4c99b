/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package relay

// OverflowPolicy defines what happens when a bounded RequestQueue is full.
type OverflowPolicy string

// Overflow policies.
const (
	// OverflowRejectNewest drops the arriving request.
	OverflowRejectNewest OverflowPolicy = "reject-newest"
	// OverflowDropOldest drops the request at the bottom of the stack (the one which has waited the longest).
	OverflowDropOldest OverflowPolicy = "drop-oldest"
)

// RequestQueue buffers pending requests and serves them last-in-first-out:
// under sustained overload the freshest request is answered first and old ones may starve.
// RequestQueue is not safe for concurrent use.
type RequestQueue struct {
	items    []*PendingRequest
	capacity int
	policy   OverflowPolicy
}

// NewRequestQueue creates an unbounded RequestQueue.
func NewRequestQueue() *RequestQueue {
	return &RequestQueue{}
}

// NewBoundedRequestQueue creates a RequestQueue holding at most capacity requests.
// Zero capacity means the queue is unbounded.
func NewBoundedRequestQueue(capacity int, policy OverflowPolicy) *RequestQueue {
	if policy == "" {
		policy = OverflowRejectNewest
	}
	return &RequestQueue{capacity: capacity, policy: policy}
}

// Enqueue pushes the request. If the queue is bounded and full, the overflow policy
// decides which request is dropped; the dropped one is returned (nil if nothing was dropped).
func (q *RequestQueue) Enqueue(req *PendingRequest) (dropped *PendingRequest) {
	if q.capacity > 0 && len(q.items) >= q.capacity {
		if q.policy != OverflowDropOldest {
			return req
		}
		dropped = q.items[0]
		copy(q.items, q.items[1:])
		q.items[len(q.items)-1] = nil
		q.items = q.items[:len(q.items)-1]
	}
	q.items = append(q.items, req)
	return dropped
}

// DequeueOne removes and returns the most recently enqueued request.
func (q *RequestQueue) DequeueOne() (*PendingRequest, bool) {
	n := len(q.items)
	if n == 0 {
		return nil, false
	}
	req := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	return req, true
}

// Len returns the number of queued requests.
func (q *RequestQueue) Len() int {
	return len(q.items)
}
