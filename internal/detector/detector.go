package detector

import "gocv.io/x/gocv"

// Detector defines the interface for hand landmark extractors.
type Detector interface {
	// Detect analyzes a frame and returns detected hand landmarks, best ranked first.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// Script overrides the location of the landmark service script.
	Script string

	// Python overrides the interpreter used to run the script.
	Python string
}

// DefaultConfig returns a Config tuned for single-hand sign recognition.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.2,
		MinTrackingConf: 0.2,
	}
}
