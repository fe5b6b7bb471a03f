package classifier

import (
	"context"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Mock is a test Classifier returning queued predictions.
// Once the queue drains the last prediction repeats.
type Mock struct {
	mu        sync.Mutex
	queue     []Prediction
	last      Prediction
	labeler   func(width, height int) Prediction
	err       error
	delay     time.Duration
	calls     int
	active    int
	maxActive int
	sizes     [][2]int
}

// NewMock creates a Mock that answers with predictions in order.
func NewMock(predictions ...Prediction) *Mock {
	return &Mock{queue: predictions}
}

// Push appends predictions to the queue.
func (m *Mock) Push(predictions ...Prediction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, predictions...)
}

// SetError makes every call fail with err.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Classify was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// SetLabeler answers every call from the region size instead of the queue.
func (m *Mock) SetLabeler(fn func(width, height int) Prediction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labeler = fn
}

// SetDelay makes every call take at least d.
func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// MaxConcurrent returns the largest number of calls seen in flight at once.
func (m *Mock) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}

// Sizes returns the width and height of every region classified.
func (m *Mock) Sizes() [][2]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][2]int, len(m.sizes))
	copy(out, m.sizes)
	return out
}

// Classify returns the next queued prediction.
func (m *Mock) Classify(ctx context.Context, region gocv.Mat) (Prediction, error) {
	m.mu.Lock()
	m.calls++
	m.active++
	m.maxActive = max(m.maxActive, m.active)
	w, h := region.Cols(), region.Rows()
	m.sizes = append(m.sizes, [2]int{w, h})
	pred, err := m.next(w, h)
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	m.active--
	m.mu.Unlock()
	return pred, err
}

// next must be called with mu held.
func (m *Mock) next(width, height int) (Prediction, error) {
	if m.err != nil {
		return Prediction{}, m.err
	}
	if m.labeler != nil {
		return m.labeler(width, height), nil
	}
	if len(m.queue) > 0 {
		m.last = m.queue[0]
		m.queue = m.queue[1:]
	}
	return m.last, nil
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}
