package recognition

// Smoothing thresholds.
const (
	// InteractiveThreshold applies to session-backed letter recognition.
	InteractiveThreshold = 0.7
	// SingleShotThreshold applies to stateless one-frame requests.
	SingleShotThreshold = 0.4
)

// Smoother stabilizes letter predictions over a Window.
type Smoother struct {
	window    *Window
	threshold float64
}

// NewSmoother creates a Smoother over a window of size samples.
func NewSmoother(size int, threshold float64) *Smoother {
	return &Smoother{
		window:    NewWindow(size),
		threshold: threshold,
	}
}

// NewInteractiveSmoother is the smoother used by streams and sessions.
func NewInteractiveSmoother() *Smoother {
	return NewSmoother(DefaultWindowSize, InteractiveThreshold)
}

// NewSingleShotSmoother judges one frame on its own.
func NewSingleShotSmoother() *Smoother {
	return NewSmoother(1, SingleShotThreshold)
}

// Observe records s and returns the smoothed label and confidence. Below the
// threshold the label is Uncertain; the window keeps the sample either way.
func (s *Smoother) Observe(sample Sample) (string, float64) {
	s.window.Observe(sample)

	label, confidence := s.window.Vote()
	if confidence < s.threshold {
		return Uncertain, confidence
	}
	return label, confidence
}

// Window exposes the underlying window.
func (s *Smoother) Window() *Window {
	return s.window
}

// Threshold returns the confidence threshold.
func (s *Smoother) Threshold() float64 {
	return s.threshold
}

// Reset clears the history.
func (s *Smoother) Reset() {
	s.window.Reset()
}
