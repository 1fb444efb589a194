// Package metrics provides in-process counters for the relay pipeline.
// Counters are process-local and surface only through logs; there is no
// exporter or alerting path.
package metrics

import "sync/atomic"

// Relay aggregates the per-stage counters of the message pipeline.
type Relay struct {
	received        atomic.Int64
	unwatched       atomic.Int64
	filtered        atomic.Int64
	forwarded       atomic.Int64
	sinkRejected    atomic.Int64
	networkFailures atomic.Int64
	unexpected      atomic.Int64
}

// NewRelay creates a zeroed counter set.
func NewRelay() *Relay { return &Relay{} }

func (r *Relay) Received()       { r.received.Add(1) }
func (r *Relay) Unwatched()      { r.unwatched.Add(1) }
func (r *Relay) Filtered()       { r.filtered.Add(1) }
func (r *Relay) Forwarded()      { r.forwarded.Add(1) }
func (r *Relay) SinkRejected()   { r.sinkRejected.Add(1) }
func (r *Relay) NetworkFailure() { r.networkFailures.Add(1) }
func (r *Relay) Unexpected()     { r.unexpected.Add(1) }

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Received        int64
	Unwatched       int64
	Filtered        int64
	Forwarded       int64
	SinkRejected    int64
	NetworkFailures int64
	Unexpected      int64
}

// Snapshot returns the current counter values.
func (r *Relay) Snapshot() Snapshot {
	return Snapshot{
		Received:        r.received.Load(),
		Unwatched:       r.unwatched.Load(),
		Filtered:        r.filtered.Load(),
		Forwarded:       r.forwarded.Load(),
		SinkRejected:    r.sinkRejected.Load(),
		NetworkFailures: r.networkFailures.Load(),
		Unexpected:      r.unexpected.Load(),
	}
}
