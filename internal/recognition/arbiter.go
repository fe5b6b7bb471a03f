package recognition

import (
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

// LetterFunc runs the letter path for the current hand.
type LetterFunc func() (Result, error)

// Decision is an arbitrated result with the ranked word alternatives.
type Decision struct {
	Result
	Alternatives []gesture.Candidate
}

// Arbiter chooses between a word match and the letter path.
type Arbiter struct {
	matcher   *gesture.Matcher
	threshold float64
}

// NewArbiter creates an Arbiter. A threshold <= 0 uses the default word threshold.
func NewArbiter(matcher *gesture.Matcher, threshold float64) *Arbiter {
	if threshold <= 0 {
		threshold = gesture.DefaultWordThreshold
	}
	return &Arbiter{matcher: matcher, threshold: threshold}
}

// Threshold returns the word threshold.
func (a *Arbiter) Threshold() float64 {
	return a.threshold
}

// Decide arbitrates one frame. A nil or invalid hand yields the no-hand
// result. In word mode a reference at or above the threshold wins outright;
// otherwise letter decides. Word mode reports alternatives either way.
func (a *Arbiter) Decide(hand *detector.HandLandmarks, wordMode bool, letter LetterFunc) (Decision, error) {
	if hand == nil || hand.Validate() != nil {
		return Decision{Result: NoHand(), Alternatives: []gesture.Candidate{}}, nil
	}

	alternatives := []gesture.Candidate{}
	if wordMode && a.matcher != nil {
		alternatives = gesture.Alternatives(a.matcher.Match(hand.Points))

		if best, ok := a.matcher.BestMatch(hand.Points, a.threshold); ok {
			return Decision{
				Result: Result{
					Prediction: best.Name,
					Mode:       ModeWord,
					Confidence: clamp01(best.Similarity),
					HasHand:    true,
				},
				Alternatives: alternatives,
			}, nil
		}
	}

	result, err := letter()
	if err != nil {
		return Decision{Alternatives: alternatives}, err
	}
	return Decision{Result: result, Alternatives: alternatives}, nil
}
