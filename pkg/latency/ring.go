// ABOUTME: Fixed-capacity measurement ring
// ABOUTME: Keeps the most recent latency samples per category
package latency

import "time"

// Measurement is one latency sample.
type Measurement struct {
	Value time.Duration
	At    time.Time
}

// ring is a fixed-capacity FIFO of measurements. When full, adding
// evicts the oldest entry. Not safe for concurrent use; the Monitor's
// mutex guards access.
type ring struct {
	entries []Measurement
	start   int
	count   int
}

func newRing(capacity int) *ring {
	return &ring{
		entries: make([]Measurement, capacity),
	}
}

func (r *ring) add(m Measurement) {
	if r.count < len(r.entries) {
		r.entries[(r.start+r.count)%len(r.entries)] = m
		r.count++
		return
	}
	r.entries[r.start] = m
	r.start = (r.start + 1) % len(r.entries)
}

func (r *ring) len() int {
	return r.count
}

func (r *ring) clear() {
	r.start = 0
	r.count = 0
}

// values returns a copy of the ring contents, oldest first.
func (r *ring) values() []Measurement {
	out := make([]Measurement, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.entries[(r.start+i)%len(r.entries)]
	}
	return out
}

// stats computes average, min, and max in milliseconds over the ring.
// An empty ring reports zeros.
func (r *ring) stats() (avgMs, minMs, maxMs float64, count int) {
	if r.count == 0 {
		return 0, 0, 0, 0
	}

	var sum time.Duration
	min := r.entries[r.start].Value
	max := min
	for i := 0; i < r.count; i++ {
		v := r.entries[(r.start+i)%len(r.entries)].Value
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	toMs := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
	return toMs(sum) / float64(r.count), toMs(min), toMs(max), r.count
}
