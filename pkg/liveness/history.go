package liveness

import "math"

// DefaultNodWindow is the number of roll angles a nod is judged against.
const DefaultNodWindow = 10

// RollHistory is a fixed-capacity window of the most recent roll angles.
// Pushing into a full window drops the oldest value.
type RollHistory struct {
	buf   []float64
	start int
	size  int
}

// NewRollHistory creates an empty window holding up to capacity values.
func NewRollHistory(capacity int) *RollHistory {
	if capacity < 2 {
		capacity = 2
	}
	return &RollHistory{buf: make([]float64, capacity)}
}

// Push appends a roll angle, evicting the oldest one when full.
func (h *RollHistory) Push(angle float64) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = angle
		h.size++
		return
	}
	h.buf[h.start] = angle
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of stored angles.
func (h *RollHistory) Len() int {
	return h.size
}

// Cap returns the window capacity.
func (h *RollHistory) Cap() int {
	return len(h.buf)
}

// Full reports whether the window holds Cap values.
func (h *RollHistory) Full() bool {
	return h.size == len(h.buf)
}

// Reset empties the window.
func (h *RollHistory) Reset() {
	h.start = 0
	h.size = 0
}

// Values returns the stored angles, oldest first.
func (h *RollHistory) Values() []float64 {
	out := make([]float64, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Latest returns the most recently pushed angle.
func (h *RollHistory) Latest() (float64, bool) {
	if h.size == 0 {
		return 0, false
	}
	return h.buf[(h.start+h.size-1)%len(h.buf)], true
}

// MeanAbsExceptLatest averages the absolute values of every stored angle
// except the newest one.
func (h *RollHistory) MeanAbsExceptLatest() (float64, bool) {
	if h.size < 2 {
		return 0, false
	}
	var sum float64
	for i := 0; i < h.size-1; i++ {
		sum += math.Abs(h.buf[(h.start+i)%len(h.buf)])
	}
	return sum / float64(h.size-1), true
}
