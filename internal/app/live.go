package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/events"
	"github.com/ayusman/mudra/internal/recognition"
	"github.com/ayusman/mudra/internal/session"
)

// Live loop timing.
const (
	// IdleFPS is the frame rate when no motion is detected.
	IdleFPS = 5
	// ActiveFPS is the frame rate while someone is signing.
	ActiveFPS = 15
	// IdleTimeout is how long without motion before dropping back to IdleFPS.
	IdleTimeout = 2 * time.Second
	// LiveSessionID names the session used by the local camera.
	LiveSessionID = "live"
)

// RunLive reads the local camera until ctx is cancelled or the camera runs out
// of frames. Frames are recognized only while the motion gate is open; the
// letter window is cleared whenever the loop goes idle.
func (a *App) RunLive(ctx context.Context) error {
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer a.camera.Close()
	a.camera.SetFPS(IdleFPS)

	sess := a.sessions.Open(LiveSessionID)
	defer a.sessions.Release(sess)

	activeMode := false
	lastMotion := time.Now()
	var last string

	ticker := time.NewTicker(time.Second / IdleFPS)
	defer ticker.Stop()

	a.logger.Info().Msg("live recognition started")
	defer a.logger.Info().Msg("live recognition stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if !a.IsEnabled() {
			continue
		}

		frame, err := a.camera.ReadFrame()
		if errors.Is(err, capture.ErrNoMoreFrames) {
			return nil
		}
		if err != nil {
			a.logger.Warn().Err(err).Msg("error reading frame")
			continue
		}

		if a.motion.Active(frame) {
			lastMotion = time.Now()
			if !activeMode {
				activeMode = true
				a.camera.SetFPS(ActiveFPS)
				ticker.Reset(time.Second / ActiveFPS)
				a.logger.Debug().Msg("switched to active mode")
			}
		} else if activeMode && time.Since(lastMotion) > IdleTimeout {
			activeMode = false
			a.camera.SetFPS(IdleFPS)
			ticker.Reset(time.Second / IdleFPS)
			sess.WithSmoother(func(s *recognition.Smoother) error {
				s.Reset()
				return nil
			})
			last = ""
			a.logger.Debug().Msg("switched to idle mode")
		}

		if !activeMode {
			frame.Close()
			continue
		}

		result, err := a.processLive(ctx, sess, frame)
		frame.Close()
		if errors.Is(err, context.Canceled) || errors.Is(err, session.ErrSessionClosed) {
			return nil
		}
		if err != nil {
			a.logger.Warn().Err(err).Msg("live frame failed")
			continue
		}

		if result.Stable() && result.Prediction != last {
			last = result.Prediction
			a.emit(ctx, result)
		}
	}
}

// processLive recognizes one camera frame in the live session and publishes
// the annotated frame to the preview.
func (a *App) processLive(ctx context.Context, sess *session.Session, frame *gocv.Mat) (recognition.Result, error) {
	var out *recognition.Outcome
	err := sess.WithSmoother(func(s *recognition.Smoother) error {
		var err error
		out, err = a.pipeline.Process(ctx, recognition.Request{
			Frame:    frame,
			Smoother: s,
			WordMode: a.WordMode(),
		})
		return err
	})
	if err != nil {
		return recognition.Result{}, err
	}

	annotation := capture.Annotation{Box: out.Box}
	if out.Hand != nil {
		annotation.Landmarks = out.Hand.Points
	}
	if out.Stable() {
		annotation.Title = fmt.Sprintf("%s (%.2f)", out.Prediction, out.Confidence)
	}
	annotated := capture.Annotate(*frame, annotation)
	defer annotated.Close()
	if jpeg, err := capture.EncodeJPEG(annotated); err == nil {
		a.preview.Publish(jpeg)
	}

	return out.Result, nil
}

func (a *App) emit(ctx context.Context, result recognition.Result) {
	a.logger.Info().
		Str("prediction", result.Prediction).
		Str("prediction_type", string(result.Mode)).
		Float64("confidence", result.Confidence).
		Msg("sign recognized")

	err := a.events.PublishResult(ctx, events.RecognitionEvent{
		SessionID:  LiveSessionID,
		Prediction: result.Prediction,
		Mode:       string(result.Mode),
		Confidence: result.Confidence,
		Timestamp:  time.Now(),
	})
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to publish live result")
	}

	a.mu.RLock()
	callback := a.onResult
	a.mu.RUnlock()
	if callback != nil {
		callback(result)
	}
}
