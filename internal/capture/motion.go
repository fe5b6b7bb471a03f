package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion detection constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
	// DefaultHoldFrames keeps the gate open while a sign is held still.
	DefaultHoldFrames = 10
)

// MotionDetector gates live recognition on frame-to-frame change.
// Signers hold a pose still, so once motion is seen the gate stays open
// for a number of frames before closing again.
type MotionDetector struct {
	threshold   float64
	hold        int
	remaining   int
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage of
// pixels that must change, e.g. 1.0 means 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		hold:      DefaultHoldFrames,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and reports whether the share
// of changed pixels exceeds the threshold, along with that share.
// The first frame only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detect(frame)
}

func (m *MotionDetector) detect(frame *gocv.Mat) (bool, float64) {
	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	nonZero := gocv.CountNonZero(thresh)
	totalPixels := thresh.Rows() * thresh.Cols()
	changePercent := float64(nonZero) / float64(totalPixels) * 100.0

	blurred.CopyTo(&m.prevGray)

	return changePercent > m.threshold, changePercent
}

// Active reports whether frame should be recognized: it shows motion, or
// motion was seen within the last hold frames.
func (m *MotionDetector) Active(frame *gocv.Mat) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if moved, _ := m.detect(frame); moved {
		m.remaining = m.hold
		return true
	}
	if m.remaining > 0 {
		m.remaining--
		return true
	}
	return false
}

// Reset drops the baseline frame and closes the gate.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *MotionDetector) reset() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
	m.remaining = 0
}

// Close releases resources used by the motion detector.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

// SetThreshold sets the change percentage. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}

// SetHold sets how many still frames follow motion before the gate closes.
// Negative values are ignored.
func (m *MotionDetector) SetHold(frames int) {
	if frames < 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.hold = frames
}
