package recognition

// Mode names the path that produced a result.
type Mode string

const (
	ModeLetter Mode = "letter"
	ModeWord   Mode = "word"
	ModeNone   Mode = "none"
)

// Reported labels that are not letters or words.
const (
	NoneLabel = "None"
	Uncertain = "Uncertain"
)

// Result is the outcome of one frame.
type Result struct {
	Prediction string  `json:"prediction"`
	Mode       Mode    `json:"prediction_type"`
	Confidence float64 `json:"confidence"`
	HasHand    bool    `json:"has_hand"`
}

// NoHand is the result for a frame without a usable hand.
func NoHand() Result {
	return Result{Prediction: NoneLabel, Mode: ModeNone}
}

// UncertainHand is the result for a hand that could not be classified.
func UncertainHand() Result {
	return Result{Prediction: Uncertain, Mode: ModeLetter, HasHand: true}
}

// Stable reports whether the result names a letter or word.
func (r Result) Stable() bool {
	return r.HasHand && r.Prediction != Uncertain && r.Prediction != NoneLabel
}
