package recognition

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/detector"
)

// Request is one frame to recognize.
type Request struct {
	Frame *gocv.Mat
	// Smoother holds the letter history. Nil judges the frame on its own.
	Smoother *Smoother
	WordMode bool
	// Debug renders the annotated frame and the hand crop as base64 JPEG.
	Debug bool
}

// Outcome is a decision plus what was seen on the way.
type Outcome struct {
	Decision
	Hand       *detector.HandLandmarks
	Box        image.Rectangle
	DebugImage string
	HandROI    string
}

// Pipeline runs landmark extraction, arbitration and the letter path.
type Pipeline struct {
	detector   detector.Detector
	detectMu   sync.Mutex
	classifier classifier.Classifier
	arbiter    *Arbiter
	padding    int
}

// NewPipeline wires the stages. A negative padding uses capture.DefaultPadding;
// zero crops the landmark box exactly.
func NewPipeline(det detector.Detector, cls classifier.Classifier, arbiter *Arbiter, padding int) *Pipeline {
	if padding < 0 {
		padding = capture.DefaultPadding
	}
	return &Pipeline{
		detector:   det,
		classifier: cls,
		arbiter:    arbiter,
		padding:    padding,
	}
}

// Landmarks returns the first-ranked valid hand in frame, or nil.
func (p *Pipeline) Landmarks(frame *gocv.Mat) (*detector.HandLandmarks, error) {
	p.detectMu.Lock()
	hands, err := p.detector.Detect(frame)
	p.detectMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	hand, ok := detector.First(hands)
	if !ok || hand.Validate() != nil {
		return nil, nil
	}
	return hand, nil
}

// Process recognizes one frame. A result computed after ctx is cancelled is
// dropped and ctx.Err() returned instead.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Frame == nil || req.Frame.Empty() {
		return nil, capture.ErrInvalidImage
	}

	smoother := req.Smoother
	if smoother == nil {
		smoother = NewSingleShotSmoother()
	}

	hand, err := p.Landmarks(req.Frame)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Hand: hand}
	decision, err := p.arbiter.Decide(hand, req.WordMode, func() (Result, error) {
		return p.letter(ctx, req, hand, smoother, out)
	})
	if err != nil {
		return nil, err
	}
	out.Decision = decision

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req.Debug {
		if err := p.renderDebug(req.Frame, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Pipeline) letter(ctx context.Context, req Request, hand *detector.HandLandmarks, smoother *Smoother, out *Outcome) (Result, error) {
	frame := *req.Frame
	box, err := capture.HandRegion(frame.Cols(), frame.Rows(), hand.Points, p.padding)
	if errors.Is(err, capture.ErrNoHandRegion) {
		return UncertainHand(), nil
	}
	if err != nil {
		return Result{}, err
	}
	out.Box = box

	if !capture.Classifiable(box) {
		return UncertainHand(), nil
	}

	region := capture.Crop(frame, box)
	defer region.Close()

	if req.Debug {
		roi, err := capture.EncodeBase64JPEG(region)
		if err != nil {
			return Result{}, err
		}
		out.HandROI = roi
	}

	pred, err := p.classifier.Classify(ctx, region)
	if err != nil {
		return Result{}, err
	}

	label, confidence := smoother.Observe(Sample{
		Label:      classifier.Canonicalize(pred.Label),
		Confidence: pred.Confidence,
	})
	return Result{
		Prediction: label,
		Mode:       ModeLetter,
		Confidence: confidence,
		HasHand:    true,
	}, nil
}

func (p *Pipeline) renderDebug(frame *gocv.Mat, out *Outcome) error {
	annotation := capture.Annotation{Box: out.Box}
	if out.Hand != nil {
		annotation.Landmarks = out.Hand.Points
	}
	if out.Mode == ModeWord {
		annotation.Title = capture.WordTitle(out.Prediction, out.Confidence)
		for i, alt := range out.Alternatives {
			if i == 2 {
				break
			}
			annotation.Lines = append(annotation.Lines, capture.AltLine(i+1, alt.Name, alt.Similarity))
		}
	}

	debug := capture.Annotate(*frame, annotation)
	defer debug.Close()

	encoded, err := capture.EncodeBase64JPEG(debug)
	if err != nil {
		return fmt.Errorf("encode debug image: %w", err)
	}
	out.DebugImage = encoded
	return nil
}
