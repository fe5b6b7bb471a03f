package recognition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

func letterA() (Result, error) {
	return Result{Prediction: "A", Mode: ModeLetter, Confidence: 0.8, HasHand: true}, nil
}

func TestArbiter_DefaultThreshold(t *testing.T) {
	a := NewArbiter(gesture.NewMatcher(gesture.NewLibrary()), 0)
	assert.Equal(t, gesture.DefaultWordThreshold, a.Threshold())
}

func TestArbiter_NoHandSkipsEverything(t *testing.T) {
	a := NewArbiter(gesture.NewMatcher(gesture.NewLibrary()), 0)
	called := false

	d, err := a.Decide(nil, true, func() (Result, error) {
		called = true
		return letterA()
	})
	require.NoError(t, err)
	assert.Equal(t, NoHand(), d.Result)
	assert.False(t, called)
}

func TestArbiter_EmptyLibraryFallsThrough(t *testing.T) {
	a := NewArbiter(gesture.NewMatcher(gesture.NewLibrary()), 0)
	hand := detector.HelloLandmarks()

	d, err := a.Decide(&hand, true, letterA)
	require.NoError(t, err)
	assert.Equal(t, "A", d.Prediction)
	assert.Equal(t, ModeLetter, d.Mode)
}

func TestArbiter_ThresholdBoundary(t *testing.T) {
	lib := gesture.NewLibrary()
	hand := detector.HelloLandmarks()
	require.NoError(t, lib.Register("hello", hand.Points))

	// An exact match meets a threshold of 1.
	a := NewArbiter(gesture.NewMatcher(lib), 1.0)
	d, err := a.Decide(&hand, true, letterA)
	require.NoError(t, err)
	assert.Equal(t, ModeWord, d.Mode)
	assert.Equal(t, "hello", d.Prediction)
}

func TestArbiter_LetterError(t *testing.T) {
	a := NewArbiter(gesture.NewMatcher(gesture.NewLibrary()), 0)
	hand := detector.HelloLandmarks()
	boom := errors.New("boom")

	_, err := a.Decide(&hand, false, func() (Result, error) { return Result{}, boom })
	assert.ErrorIs(t, err, boom)
}

func TestResult_Stable(t *testing.T) {
	assert.False(t, NoHand().Stable())
	assert.False(t, UncertainHand().Stable())
	assert.True(t, Result{Prediction: "A", Mode: ModeLetter, HasHand: true}.Stable())
}
