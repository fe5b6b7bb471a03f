package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/events"
	"github.com/ayusman/mudra/internal/observability"
	"github.com/ayusman/mudra/internal/recognition"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/session"
)

const (
	// maxFrameBytes bounds one binary frame.
	maxFrameBytes = 8 << 20
	writeWait     = 10 * time.Second
)

// Record types sent to stream clients.
const (
	TypeConnectionStatus = "connection_status"
	TypeModelStatus      = "model_status"
	TypeResult           = "sign_detection_result"
	TypeError            = "error"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // browser and phone clients connect cross-origin
	},
}

type connectionStatus struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	CallSID string `json:"call_sid"`
}

type modelStatus struct {
	Type string `json:"type"`
	classifier.Status
}

type detectionResult struct {
	Type           string           `json:"type"`
	Letter         string           `json:"letter"`
	Confidence     float64          `json:"confidence"`
	PredictionType recognition.Mode `json:"prediction_type"`
	HasHand        bool             `json:"has_hand"`
}

type errorRecord struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SignStreamHandler recognizes binary image frames sent over a WebSocket.
// Each connection owns one session; frames are processed strictly in order.
type SignStreamHandler struct {
	recognizer api.Recognizer
	status     api.StatusReporter
	sessions   *session.Manager
	events     events.Emitter
	logger     zerolog.Logger
}

// NewSignStreamHandler creates a SignStreamHandler. emitter may be nil.
func NewSignStreamHandler(recognizer api.Recognizer, status api.StatusReporter, sessions *session.Manager, emitter events.Emitter) *SignStreamHandler {
	return &SignStreamHandler{
		recognizer: recognizer,
		status:     status,
		sessions:   sessions,
		events:     emitter,
		logger:     observability.WithComponent("stream"),
	}
}

// ServeHTTP handles WebSocket upgrade requests. The session id is the
// call_sid path value, or a generated uuid. mode=word enables word matching.
func (h *SignStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	callSID := r.PathValue("call_sid")
	if callSID == "" {
		callSID = uuid.New().String()
	}
	wordMode := r.URL.Query().Get("mode") == "word"
	// A call_sid may reconnect; the correlation id tells the connections apart.
	logger, _ := observability.WithCorrelation(observability.WithSession(h.logger, callSID))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := h.sessions.Open(callSID)
	defer h.sessions.Release(sess)

	observability.StreamOpened()
	defer observability.StreamClosed()

	// Unblock the read loop when the server shuts down.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		conn.Close()
	}()
	defer wg.Wait()
	defer cancel()

	logger.Info().Bool("word_mode", wordMode).Msg("stream connected")

	if err := h.write(conn, connectionStatus{Type: TypeConnectionStatus, Status: "connected", CallSID: callSID}); err != nil {
		return
	}
	if err := h.write(conn, modelStatus{Type: TypeModelStatus, Status: h.status.Status()}); err != nil {
		return
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				logger.Warn().Err(err).Msg("stream read failed")
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			if h.write(conn, errorRecord{Type: TypeError, Message: "expected a binary image frame"}) != nil {
				break
			}
			continue
		}

		record, stop := h.handleFrame(ctx, sess, data, wordMode, logger)
		if stop {
			break
		}
		if h.write(conn, record) != nil {
			break
		}
	}

	logger.Info().Int("frames", sess.Frames()).Msg("stream disconnected")
}

// handleFrame recognizes one frame. stop is true when the stream must end.
func (h *SignStreamHandler) handleFrame(ctx context.Context, sess *session.Session, data []byte, wordMode bool, logger zerolog.Logger) (any, bool) {
	frame, err := capture.Decode(data)
	if err != nil {
		observability.RecordFrame("stream", "invalid")
		return errorRecord{Type: TypeError, Message: "Invalid image data"}, false
	}
	defer frame.Close()

	var out *recognition.Outcome
	err = sess.WithSmoother(func(s *recognition.Smoother) error {
		var perr error
		out, perr = h.recognizer.Process(ctx, recognition.Request{
			Frame:    &frame,
			Smoother: s,
			WordMode: wordMode,
		})
		return perr
	})

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, session.ErrSessionClosed):
		return nil, true
	case errors.Is(err, classifier.ErrUnavailable):
		observability.RecordFrame("stream", "unavailable")
		return errorRecord{Type: TypeError, Message: "Sign language detection model not loaded"}, false
	default:
		observability.RecordFrame("stream", "error")
		observability.RecordError("process", "stream")
		logger.Error().Err(err).Msg("frame processing failed")
		return errorRecord{Type: TypeError, Message: err.Error()}, false
	}

	observability.RecordFrame("stream", string(out.Mode))
	if out.Stable() && h.events != nil {
		event := events.RecognitionEvent{
			SessionID:  sess.ID,
			Prediction: out.Prediction,
			Mode:       string(out.Mode),
			Confidence: out.Confidence,
			Timestamp:  time.Now(),
		}
		if err := h.events.PublishResult(ctx, event); err != nil {
			logger.Warn().Err(err).Msg("failed to publish result")
		}
	}

	return detectionResult{
		Type:           TypeResult,
		Letter:         out.Prediction,
		Confidence:     out.Confidence,
		PredictionType: out.Mode,
		HasHand:        out.HasHand,
	}, false
}

func (h *SignStreamHandler) write(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
