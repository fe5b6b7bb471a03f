package gesture

import (
	"sort"

	"github.com/ayusman/mudra/internal/detector"
)

// Matching defaults.
const (
	// DefaultWordThreshold is the minimum similarity for a word to win.
	DefaultWordThreshold = 0.85
	// MinCandidateSimilarity filters candidates offered as alternatives.
	MinCandidateSimilarity = 0.5
	// MaxAlternatives caps the ranked candidates reported below the winner.
	MaxAlternatives = 3
)

// Candidate is one scored reference.
type Candidate struct {
	Name       string  `json:"word"`
	Similarity float64 `json:"similarity"`
}

// Matcher scores live landmarks against a Library.
type Matcher struct {
	library *Library
}

// NewMatcher creates a Matcher reading from library.
func NewMatcher(library *Library) *Matcher {
	return &Matcher{library: library}
}

// Library returns the backing reference library.
func (m *Matcher) Library() *Library {
	return m.library
}

// Match scores every reference, highest similarity first.
// Equal scores keep the library listing order.
func (m *Matcher) Match(landmarks []detector.Point3D) []Candidate {
	refs := m.library.snapshot()
	candidates := make([]Candidate, 0, len(refs))

	for _, ref := range refs {
		candidates = append(candidates, Candidate{
			Name:       ref.Name,
			Similarity: Similarity(landmarks, ref.Landmarks),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	return candidates
}

// BestMatch returns the top candidate when it reaches threshold.
func (m *Matcher) BestMatch(landmarks []detector.Point3D, threshold float64) (Candidate, bool) {
	candidates := m.Match(landmarks)
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	best := candidates[0]
	if best.Similarity < threshold {
		return Candidate{}, false
	}
	return best, true
}

// Alternatives returns up to MaxAlternatives candidates ranked below the
// first, skipping those at or below MinCandidateSimilarity.
func Alternatives(ranked []Candidate) []Candidate {
	plausible := make([]Candidate, 0, len(ranked))
	for _, c := range ranked {
		if c.Similarity > MinCandidateSimilarity {
			plausible = append(plausible, c)
		}
	}

	if len(plausible) <= 1 {
		return []Candidate{}
	}

	rest := plausible[1:]
	if len(rest) > MaxAlternatives {
		rest = rest[:MaxAlternatives]
	}
	out := make([]Candidate, len(rest))
	copy(out, rest)
	return out
}
