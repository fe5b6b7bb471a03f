package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]HandLandmarks, len(m.hands))
	for i, h := range m.hands {
		out[i] = h
		out[i].Points = Clone(h.Points)
	}
	return out, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// LetterALandmarks returns a right hand fingerspelling "A": a closed fist
// with the thumb upright against the side of the index finger.
func LetterALandmarks() HandLandmarks {
	return HandLandmarks{
		Handedness: "Right",
		Score:      0.97,
		Points: []Point3D{
			{X: 0.48, Y: 0.80, Z: 0},
			// thumb
			{X: 0.54, Y: 0.76, Z: -0.01}, {X: 0.58, Y: 0.70, Z: -0.02}, {X: 0.60, Y: 0.63, Z: -0.03}, {X: 0.60, Y: 0.57, Z: -0.03},
			// index
			{X: 0.56, Y: 0.62, Z: -0.01}, {X: 0.57, Y: 0.55, Z: -0.04}, {X: 0.55, Y: 0.60, Z: -0.06}, {X: 0.54, Y: 0.64, Z: -0.05},
			// middle
			{X: 0.51, Y: 0.61, Z: 0}, {X: 0.52, Y: 0.54, Z: -0.04}, {X: 0.50, Y: 0.59, Z: -0.06}, {X: 0.49, Y: 0.63, Z: -0.05},
			// ring
			{X: 0.46, Y: 0.62, Z: 0}, {X: 0.46, Y: 0.56, Z: -0.03}, {X: 0.45, Y: 0.61, Z: -0.05}, {X: 0.44, Y: 0.64, Z: -0.04},
			// pinky
			{X: 0.42, Y: 0.65, Z: 0.01}, {X: 0.41, Y: 0.59, Z: -0.02}, {X: 0.40, Y: 0.63, Z: -0.04}, {X: 0.40, Y: 0.66, Z: -0.03},
		},
	}
}

// HelloLandmarks returns a right hand held flat beside the head, fingers
// together and extended, as registered for the word "hello".
// Its similarity to LetterALandmarks stays below the default word threshold.
func HelloLandmarks() HandLandmarks {
	return HandLandmarks{
		Handedness: "Right",
		Score:      0.93,
		Points: []Point3D{
			{X: 0.41, Y: 0.78, Z: 0},
			// thumb
			{X: 0.47, Y: 0.73, Z: -0.01}, {X: 0.52, Y: 0.67, Z: -0.02}, {X: 0.55, Y: 0.61, Z: -0.02}, {X: 0.57, Y: 0.55, Z: -0.02},
			// index
			{X: 0.47, Y: 0.57, Z: 0}, {X: 0.48, Y: 0.45, Z: -0.01}, {X: 0.485, Y: 0.38, Z: -0.01}, {X: 0.49, Y: 0.32, Z: -0.01},
			// middle
			{X: 0.42, Y: 0.56, Z: 0}, {X: 0.42, Y: 0.43, Z: -0.01}, {X: 0.42, Y: 0.35, Z: -0.01}, {X: 0.42, Y: 0.28, Z: -0.01},
			// ring
			{X: 0.37, Y: 0.57, Z: 0}, {X: 0.365, Y: 0.45, Z: -0.01}, {X: 0.36, Y: 0.38, Z: -0.01}, {X: 0.355, Y: 0.32, Z: -0.01},
			// pinky
			{X: 0.33, Y: 0.60, Z: 0.01}, {X: 0.32, Y: 0.50, Z: 0}, {X: 0.315, Y: 0.44, Z: 0}, {X: 0.31, Y: 0.39, Z: 0},
		},
	}
}
