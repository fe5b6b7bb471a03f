// Package classifier adapts the external letter classifier.
package classifier

import (
	"context"
	"errors"
	"math"

	"gocv.io/x/gocv"
)

// ErrUnavailable is returned when no classifier is loaded or it is failing.
var ErrUnavailable = errors.New("sign classifier unavailable")

// Alphabet is the closed label set of the letter model.
var Alphabet = []string{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
}

// Prediction is one raw classifier output.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier labels a cropped hand image.
type Classifier interface {
	Classify(ctx context.Context, region gocv.Mat) (Prediction, error)
	Close() error
}

// Canonicalize maps labels that need motion to the static letter they resemble.
// J is traced with the I hand shape, so a still frame cannot tell them apart.
func Canonicalize(label string) string {
	if label == "J" {
		return "I"
	}
	return label
}

// InAlphabet reports whether label is a known letter.
func InAlphabet(label string) bool {
	for _, l := range Alphabet {
		if l == label {
			return true
		}
	}
	return false
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
