package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/observability"
	"github.com/ayusman/mudra/internal/resilience"
)

// Status describes the classifier to streaming clients.
type Status struct {
	Loaded bool   `json:"loaded"`
	Device string `json:"device"`
}

// Guarded serializes access to a classifier and trips a circuit breaker
// when it keeps failing. A nil inner classifier is always unavailable.
type Guarded struct {
	inner   Classifier
	device  string
	breaker *resilience.CircuitBreaker
	mu      sync.Mutex
	logger  zerolog.Logger
}

// NewGuarded wraps inner. breaker may be nil.
func NewGuarded(inner Classifier, device string, breaker *resilience.CircuitBreaker) *Guarded {
	return &Guarded{
		inner:   inner,
		device:  device,
		breaker: breaker,
		logger:  observability.WithComponent("classifier"),
	}
}

// Status reports whether classification can currently be attempted.
func (g *Guarded) Status() Status {
	loaded := g.inner != nil
	if loaded && g.breaker != nil && g.breaker.State() == resilience.StateOpen {
		loaded = false
	}
	device := g.device
	if device == "" {
		device = "unknown"
	}
	return Status{Loaded: loaded, Device: device}
}

// Classify runs the inner classifier in the single inference slot.
func (g *Guarded) Classify(ctx context.Context, region gocv.Mat) (Prediction, error) {
	if g.inner == nil {
		return Prediction{}, ErrUnavailable
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// The caller may have gone away while waiting for the slot.
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	var pred Prediction
	call := func() error {
		start := time.Now()
		var err error
		pred, err = g.inner.Classify(ctx, region)
		observability.RecordClassifier(time.Since(start), err)
		return err
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Call(call)
		observability.SetCircuitBreakerState(g.breaker.Name(), int(g.breaker.State()))
	} else {
		err = call()
	}

	if errors.Is(err, resilience.ErrOpen) {
		return Prediction{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		g.logger.Warn().Err(err).Msg("classification failed")
		return Prediction{}, err
	}

	pred.Confidence = clamp01(pred.Confidence)
	return pred, nil
}

// Close closes the inner classifier.
func (g *Guarded) Close() error {
	if g.inner == nil {
		return nil
	}
	return g.inner.Close()
}
