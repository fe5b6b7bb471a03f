// Package recognition turns per-frame hand observations into stable predictions.
package recognition

import "math"

// DefaultWindowSize is the number of recent samples a window keeps.
const DefaultWindowSize = 5

// Sample is one per-frame letter prediction.
type Sample struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// State describes how full a window is.
type State int

const (
	StateEmpty State = iota
	StateAccumulating
	StateFull
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateFull:
		return "full"
	}
	return "unknown"
}

// Window is a FIFO of the most recent samples. It is not safe for concurrent
// use; a session owns exactly one.
type Window struct {
	size    int
	samples []Sample
}

// NewWindow creates a window holding at most size samples.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{
		size:    size,
		samples: make([]Sample, 0, size),
	}
}

// Observe appends a sample, evicting the oldest once the window is full.
// Confidence is clamped to [0,1].
func (w *Window) Observe(s Sample) {
	s.Confidence = clamp01(s.Confidence)
	if len(w.samples) == w.size {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:w.size-1]
	}
	w.samples = append(w.samples, s)
}

// Vote returns the label with the highest summed confidence and that sum
// divided by the window length. Equal sums go to the label observed most
// recently. An empty window votes ("", 0).
func (w *Window) Vote() (string, float64) {
	if len(w.samples) == 0 {
		return "", 0
	}

	sums := make(map[string]float64, len(w.samples))
	lastSeen := make(map[string]int, len(w.samples))
	for i, s := range w.samples {
		sums[s.Label] += s.Confidence
		lastSeen[s.Label] = i
	}

	var winner string
	best := -1.0
	for label, sum := range sums {
		if sum > best || (sum == best && lastSeen[label] > lastSeen[winner]) {
			winner, best = label, sum
		}
	}

	return winner, clamp01(best / float64(len(w.samples)))
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	return len(w.samples)
}

// Size returns the capacity.
func (w *Window) Size() int {
	return w.size
}

// Samples returns a copy of the samples, oldest first.
func (w *Window) Samples() []Sample {
	out := make([]Sample, len(w.samples))
	copy(out, w.samples)
	return out
}

// State reports whether the window is empty, filling or full.
func (w *Window) State() State {
	switch {
	case len(w.samples) == 0:
		return StateEmpty
	case len(w.samples) < w.size:
		return StateAccumulating
	default:
		return StateFull
	}
}

// Reset empties the window.
func (w *Window) Reset() {
	w.samples = w.samples[:0]
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
