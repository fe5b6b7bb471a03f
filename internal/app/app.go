// Package app wires the mudra recognition service and the live camera loop.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/events"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/observability"
	"github.com/ayusman/mudra/internal/recognition"
	"github.com/ayusman/mudra/internal/resilience"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/vocabulary"
)

// Options replaces components that New would otherwise build from config.
type Options struct {
	Detector   detector.Detector
	Classifier classifier.Classifier
	Camera     capture.Camera
	StaticDir  string
}

// App owns every long-lived component of the service.
type App struct {
	config     *config.Config
	store      *store.Store
	detector   detector.Detector
	breaker    *resilience.CircuitBreaker
	classifier *classifier.Guarded
	library    *gesture.Library
	pipeline   *recognition.Pipeline
	sessions   *session.Manager
	registry   *vocabulary.Registry
	events     *events.Publisher
	camera     capture.Camera
	motion     *capture.MotionDetector
	preview    *capture.Preview
	staticDir  string

	enabled  bool
	wordMode bool
	onResult func(recognition.Result)
	mu       sync.RWMutex
	logger   zerolog.Logger
}

// New builds the App and loads the stored words into the library.
// Missing model services degrade to an unavailable classifier and a
// detector that sees no hands; they never fail start-up.
func New(cfg *config.Config, opts Options) (*App, error) {
	logger := observability.WithComponent("app")

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{
		config:    cfg,
		store:     st,
		library:   gesture.NewLibrary(),
		staticDir: opts.StaticDir,
		enabled:   true,
		wordMode:  cfg.LiveWordMode,
		logger:    logger,
	}

	a.detector = opts.Detector
	if a.detector == nil {
		det, err := detector.NewMediaPipeDetector(detector.Config{
			MaxHands:        1,
			MinConfidence:   detector.DefaultConfig().MinConfidence,
			MinTrackingConf: detector.DefaultConfig().MinTrackingConf,
			Script:          cfg.DetectorScript,
			Python:          cfg.Python,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("MediaPipe not available, using mock detector")
			a.detector = detector.NewMockDetector()
		} else {
			a.detector = det
			logger.Info().Msg("using MediaPipe hand detection")
		}
	}

	inner := opts.Classifier
	if inner == nil {
		cls, err := classifier.NewSubprocess(classifier.SubprocessConfig{
			Script: cfg.ClassifierScript,
			Python: cfg.Python,
			Model:  cfg.ClassifierModel,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("sign classifier not available")
		} else {
			inner = cls
		}
	}
	a.breaker = resilience.NewCircuitBreaker("classifier", cfg.BreakerMaxFailures, cfg.BreakerResetTimeout)
	a.classifier = classifier.NewGuarded(inner, cfg.Device, a.breaker)

	arbiter := recognition.NewArbiter(gesture.NewMatcher(a.library), cfg.WordThreshold)
	a.pipeline = recognition.NewPipeline(a.detector, a.classifier, arbiter, cfg.RegionPadding)
	a.sessions = session.NewManager(session.WithGauge(observability.ActiveSessions))

	a.events = events.New(&events.Config{
		Brokers:      cfg.KafkaBrokers,
		ResultsTopic: cfg.KafkaResultsTopic,
		WordsTopic:   cfg.KafkaWordsTopic,
		ClientID:     cfg.KafkaClientID,
		Enabled:      cfg.KafkaEnabled,
	})

	a.registry = vocabulary.New(vocabulary.Config{
		Library:    a.library,
		Landmarker: a.pipeline,
		Store:      st,
		Dir:        cfg.WordsDir,
		Events:     a.events,
	})
	if _, err := a.registry.Load(); err != nil {
		a.Close()
		return nil, err
	}

	a.camera = opts.Camera
	if a.camera == nil {
		a.camera = capture.NewCamera(capture.CameraConfig{DeviceID: cfg.CameraID, FPS: IdleFPS})
	}
	a.motion = capture.NewMotionDetector(cfg.MotionThreshold)
	a.preview = capture.NewPreview()

	return a, nil
}

// Server builds the HTTP server over the App's components.
func (a *App) Server() *server.Server {
	return server.New(server.Config{
		StaticDir:      a.staticDir,
		Recognizer:     a.pipeline,
		Classifier:     a.classifier,
		Sessions:       a.sessions,
		Registry:       a.registry,
		Events:         a.events,
		Preview:        a.preview,
		ModelName:      a.config.ClassifierModel,
		MetricsEnabled: a.config.MetricsEnabled,
	})
}

// Serve runs the HTTP server and the idle-session sweeper until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	go a.sessions.Run(ctx, a.config.SessionSweepInterval, a.config.SessionIdleTTL)

	a.logger.Info().
		Str("addr", a.config.HTTPAddr).
		Int("words", a.library.Len()).
		Bool("classifier_loaded", a.classifier.Status().Loaded).
		Msg("starting recognition service")
	return a.Server().Run(ctx, a.config.HTTPAddr)
}

// ImportWordImages registers one word per image file in dir.
func (a *App) ImportWordImages(ctx context.Context, dir string) (int, error) {
	return a.registry.ImportDir(ctx, dir)
}

// Words returns the registered word names.
func (a *App) Words() []string {
	return a.registry.List()
}

// SetEnabled enables or disables live recognition.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether live recognition is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetWordMode switches live word matching on or off.
func (a *App) SetWordMode(wordMode bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.wordMode = wordMode
}

// WordMode reports whether live recognition matches words first.
func (a *App) WordMode() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.wordMode
}

// OnResult sets a callback for every stable live result that differs from the previous one.
func (a *App) OnResult(fn func(recognition.Result)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onResult = fn
}

// Pipeline returns the recognition pipeline.
func (a *App) Pipeline() *recognition.Pipeline {
	return a.pipeline
}

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager {
	return a.sessions
}

// Library returns the shared reference library.
func (a *App) Library() *gesture.Library {
	return a.library
}

// Registry returns the word registry.
func (a *App) Registry() *vocabulary.Registry {
	return a.registry
}

// Preview returns the live preview buffer.
func (a *App) Preview() *capture.Preview {
	return a.preview
}

// Close releases every component. It is safe to call once after New.
func (a *App) Close() error {
	if a.sessions != nil {
		a.sessions.CloseAll()
	}
	if a.motion != nil {
		a.motion.Close()
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Error().Err(err).Msg("error closing event publisher")
		}
	}
	if a.classifier != nil {
		if err := a.classifier.Close(); err != nil {
			a.logger.Error().Err(err).Msg("error closing classifier")
		}
	}
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			a.logger.Error().Err(err).Msg("error closing detector")
		}
	}
	return a.store.Close()
}
