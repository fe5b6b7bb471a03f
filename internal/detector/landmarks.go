// Package detector provides the hand-landmark extraction boundary and landmark types.
package detector

import (
	"errors"
	"fmt"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// ErrInvalidLandmarks is returned when a landmark set is too small to describe a hand.
var ErrInvalidLandmarks = errors.New("invalid landmarks")

// Connections lists joint pairs forming the hand skeleton, used for drawing.
var Connections = [][2]int{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{MiddleMCP, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{RingMCP, PinkyMCP}, {Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
}

// Point3D represents a 3D point in image-relative coordinates.
// X and Y are in [0,1] of the frame width and height; Z is depth relative to the wrist.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is one hand as reported by the extractor.
type HandLandmarks struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"` // "Left" or "Right"
	Score      float64   `json:"score"`
}

// Validate checks that the hand carries at least NumLandmarks points.
// The geometry itself is already normalized by the extractor and is left untouched.
func (h *HandLandmarks) Validate() error {
	if h == nil {
		return fmt.Errorf("%w: no hand", ErrInvalidLandmarks)
	}
	if len(h.Points) < NumLandmarks {
		return fmt.Errorf("%w: got %d points, want %d", ErrInvalidLandmarks, len(h.Points), NumLandmarks)
	}
	return nil
}

// First returns the hand the extractor ranked first.
// Additional hands are ignored.
func First(hands []HandLandmarks) (*HandLandmarks, bool) {
	if len(hands) == 0 {
		return nil, false
	}
	return &hands[0], true
}

// Clone returns a deep copy of the points.
func Clone(points []Point3D) []Point3D {
	if points == nil {
		return nil
	}
	out := make([]Point3D, len(points))
	copy(out, points)
	return out
}
