// Package server provides the HTTP and WebSocket surface of the mudra recognition service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/events"
	"github.com/ayusman/mudra/internal/observability"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/vocabulary"
)

// Config holds the server configuration. Nil components disable their routes.
type Config struct {
	StaticDir      string
	Recognizer     api.Recognizer
	Classifier     api.StatusReporter
	Sessions       *session.Manager
	Registry       *vocabulary.Registry
	Events         events.Emitter
	Preview        *capture.Preview
	ModelName      string
	MetricsEnabled bool
}

// Server represents the HTTP server for the mudra service.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	logger zerolog.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: observability.WithComponent("server"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if s.config.Recognizer != nil && s.config.Classifier != nil {
		predict := api.NewPredictHandler(s.config.Recognizer, s.config.Classifier, s.config.Sessions, s.config.ModelName)
		s.mux.HandleFunc("GET /api/sign-to-text", predict.Info)
		s.mux.HandleFunc("POST /api/sign-to-text/predict", predict.Letter)
		s.mux.HandleFunc("POST /csl-predict", predict.Word)
		s.mux.HandleFunc("POST /api/predict", predict.ByMode)

		if s.config.Sessions != nil {
			stream := NewSignStreamHandler(s.config.Recognizer, s.config.Classifier, s.config.Sessions, s.config.Events)
			s.mux.Handle("GET /ws/call/{call_sid}", stream)
			s.mux.Handle("GET /ws/sign", stream)
		}
	}

	if s.config.Registry != nil {
		words := api.NewWordsHandler(s.config.Registry)
		s.mux.HandleFunc("POST /upload-word", words.Upload)
		s.mux.HandleFunc("GET /words", words.List)
		s.mux.HandleFunc("GET /words/{name}", words.Get)
		s.mux.HandleFunc("GET /words/{name}/image", words.Image)
		s.mux.HandleFunc("DELETE /words/{name}", words.Delete)
	}

	if s.config.Preview != nil {
		s.mux.Handle("GET /api/stream", NewStreamHandler(s.config.Preview))
	}

	if s.config.MetricsEnabled {
		s.mux.Handle("GET /metrics", observability.Handler())
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Classifier != nil {
		response["classifier"] = s.config.Classifier.Status()
	}
	if s.config.Sessions != nil {
		response["sessions"] = s.config.Sessions.Len()
	}
	if s.config.Registry != nil {
		response["words"] = s.config.Registry.Library().Len()
	}

	writeJSON(w, http.StatusOK, response)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}
