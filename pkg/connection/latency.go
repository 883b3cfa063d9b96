package connection

import (
	"time"
)

// LatencySample is one measured round trip.
type LatencySample struct {
	Value      time.Duration
	CapturedAt time.Time
}

// latencyRing is a fixed-capacity ring buffer of latency samples. The
// oldest sample is evicted on overflow.
type latencyRing struct {
	samples []LatencySample
	next    int
	full    bool
}

func newLatencyRing(capacity int) *latencyRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &latencyRing{
		samples: make([]LatencySample, capacity),
	}
}

// Add records a sample, evicting the oldest when the buffer is full.
func (r *latencyRing) Add(value time.Duration, at time.Time) {
	r.samples[r.next] = LatencySample{Value: value, CapturedAt: at}
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

// Len returns the number of buffered samples.
func (r *latencyRing) Len() int {
	if r.full {
		return len(r.samples)
	}
	return r.next
}

// Average returns the simple mean of buffered samples, or 0 when empty.
func (r *latencyRing) Average() time.Duration {
	n := r.Len()
	if n == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < n; i++ {
		sum += r.at(i).Value
	}
	return sum / time.Duration(n)
}

// Prune drops samples captured before the cutoff. Remaining samples are
// compacted in capture order.
func (r *latencyRing) Prune(cutoff time.Time) {
	n := r.Len()
	kept := make([]LatencySample, 0, n)
	for i := 0; i < n; i++ {
		s := r.at(i)
		if !s.CapturedAt.Before(cutoff) {
			kept = append(kept, s)
		}
	}

	r.next = 0
	r.full = false
	for _, s := range kept {
		r.Add(s.Value, s.CapturedAt)
	}
}

// at returns the i-th sample in capture order.
func (r *latencyRing) at(i int) LatencySample {
	if r.full {
		return r.samples[(r.next+i)%len(r.samples)]
	}
	return r.samples[i]
}
