package classifier

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/resilience"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"J", "I"},
		{"I", "I"},
		{"A", "A"},
		{"Z", "Z"},
		{"j", "j"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Canonicalize(tt.in); got != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInAlphabet(t *testing.T) {
	if len(Alphabet) != 26 {
		t.Errorf("expected 26 letters, got %d", len(Alphabet))
	}
	if !InAlphabet("Q") {
		t.Error("expected Q in alphabet")
	}
	if InAlphabet("hello") {
		t.Error("expected words outside the alphabet")
	}
}

func TestClassifyResponse(t *testing.T) {
	pred, err := classifyResponse{Label: "B", Confidence: 1.4}.prediction()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Label != "B" || pred.Confidence != 1 {
		t.Errorf("expected clamped B/1.0, got %+v", pred)
	}

	if _, err := (classifyResponse{Error: "model not loaded"}).prediction(); err == nil {
		t.Error("expected service error to surface")
	}
	if _, err := (classifyResponse{}).prediction(); err == nil {
		t.Error("expected error for empty label")
	}
}

func TestClamp01(t *testing.T) {
	for in, want := range map[float64]float64{-0.5: 0, 0.3: 0.3, 2: 1} {
		if got := clamp01(in); got != want {
			t.Errorf("clamp01(%f) = %f, want %f", in, got, want)
		}
	}
	if clamp01(math.NaN()) != 0 {
		t.Error("expected NaN to clamp to 0")
	}
}

func newRegion() gocv.Mat {
	return gocv.NewMatWithSize(64, 48, gocv.MatTypeCV8UC3)
}

func TestGuarded_NilClassifierIsUnavailable(t *testing.T) {
	g := NewGuarded(nil, "", nil)
	region := newRegion()
	defer region.Close()

	_, err := g.Classify(context.Background(), region)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}

	status := g.Status()
	if status.Loaded {
		t.Error("expected status not loaded")
	}
	if status.Device != "unknown" {
		t.Errorf("expected device unknown, got %q", status.Device)
	}
	if err := g.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestGuarded_Classify(t *testing.T) {
	mock := NewMock(Prediction{Label: "A", Confidence: 0.9})
	g := NewGuarded(mock, "cpu", nil)
	region := newRegion()
	defer region.Close()

	pred, err := g.Classify(context.Background(), region)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if pred.Label != "A" || pred.Confidence != 0.9 {
		t.Errorf("unexpected prediction %+v", pred)
	}

	sizes := mock.Sizes()
	if len(sizes) != 1 || sizes[0] != [2]int{48, 64} {
		t.Errorf("expected one 48x64 region, got %v", sizes)
	}

	if s := g.Status(); !s.Loaded || s.Device != "cpu" {
		t.Errorf("unexpected status %+v", s)
	}
}

func TestGuarded_CancelledContext(t *testing.T) {
	mock := NewMock(Prediction{Label: "A", Confidence: 0.9})
	g := NewGuarded(mock, "cpu", nil)
	region := newRegion()
	defer region.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Classify(ctx, region); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if mock.Calls() != 0 {
		t.Errorf("expected classifier not to run, got %d calls", mock.Calls())
	}
}

func TestGuarded_BreakerOpens(t *testing.T) {
	mock := NewMock()
	mock.SetError(errors.New("cuda out of memory"))
	breaker := resilience.NewCircuitBreaker("classifier", 2, time.Minute)
	g := NewGuarded(mock, "cuda", breaker)
	region := newRegion()
	defer region.Close()

	for i := 0; i < 2; i++ {
		_, err := g.Classify(context.Background(), region)
		if err == nil || errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: expected raw classifier error, got %v", i, err)
		}
	}

	_, err := g.Classify(context.Background(), region)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable once the breaker opens, got %v", err)
	}
	if mock.Calls() != 2 {
		t.Errorf("expected open breaker to skip the classifier, got %d calls", mock.Calls())
	}
	if g.Status().Loaded {
		t.Error("expected status not loaded while breaker is open")
	}
}

func TestMock_RepeatsLastPrediction(t *testing.T) {
	mock := NewMock(Prediction{Label: "A", Confidence: 0.5}, Prediction{Label: "B", Confidence: 0.6})
	region := newRegion()
	defer region.Close()

	want := []string{"A", "B", "B"}
	for i, label := range want {
		pred, _ := mock.Classify(context.Background(), region)
		if pred.Label != label {
			t.Errorf("call %d: expected %s, got %s", i, label, pred.Label)
		}
	}
}

func TestGuarded_SingleInferenceSlot(t *testing.T) {
	mock := NewMock(Prediction{Label: "A", Confidence: 0.9})
	mock.SetDelay(5 * time.Millisecond)
	g := NewGuarded(mock, "cpu", nil)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			region := newRegion()
			defer region.Close()
			if _, err := g.Classify(context.Background(), region); err != nil {
				t.Errorf("Classify() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if mock.Calls() != callers {
		t.Errorf("expected %d calls, got %d", callers, mock.Calls())
	}
	if n := mock.MaxConcurrent(); n != 1 {
		t.Errorf("expected calls never to overlap, saw %d in flight", n)
	}
}

func TestMock_ReportsOverlap(t *testing.T) {
	mock := NewMock(Prediction{Label: "A", Confidence: 0.9})
	mock.SetDelay(100 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			region := newRegion()
			defer region.Close()
			mock.Classify(context.Background(), region)
		}()
	}
	wg.Wait()

	if n := mock.MaxConcurrent(); n != 2 {
		t.Errorf("expected unguarded calls to overlap, saw %d in flight", n)
	}
}

func TestMock_Labeler(t *testing.T) {
	mock := NewMock(Prediction{Label: "A", Confidence: 0.9})
	mock.SetLabeler(func(w, h int) Prediction {
		if w > h {
			return Prediction{Label: "wide", Confidence: 0.8}
		}
		return Prediction{Label: "tall", Confidence: 0.7}
	})
	region := newRegion()
	defer region.Close()

	pred, err := mock.Classify(context.Background(), region)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if pred.Label != "tall" || pred.Confidence != 0.7 {
		t.Errorf("unexpected prediction %+v", pred)
	}
}
