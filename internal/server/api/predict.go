package api

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/observability"
	"github.com/ayusman/mudra/internal/recognition"
	"github.com/ayusman/mudra/internal/session"
)

// MaxUploadBytes bounds a multipart upload.
const MaxUploadBytes = 32 << 20

// Recognizer processes one frame.
type Recognizer interface {
	Process(ctx context.Context, req recognition.Request) (*recognition.Outcome, error)
}

// StatusReporter reports classifier availability.
type StatusReporter interface {
	Status() classifier.Status
}

// PredictHandler serves the single-shot recognition endpoints.
type PredictHandler struct {
	recognizer Recognizer
	status     StatusReporter
	sessions   *session.Manager
	modelName  string
	logger     zerolog.Logger
}

// NewPredictHandler creates a PredictHandler. sessions may be nil, in which
// case session_id is ignored and every frame is judged on its own.
func NewPredictHandler(recognizer Recognizer, status StatusReporter, sessions *session.Manager, modelName string) *PredictHandler {
	return &PredictHandler{
		recognizer: recognizer,
		status:     status,
		sessions:   sessions,
		modelName:  modelName,
		logger:     observability.WithComponent("api"),
	}
}

type predictResponse struct {
	recognition.Result
	DebugImage string  `json:"debug_image"`
	HandROI    *string `json:"hand_roi"`
	SessionID  string  `json:"session_id,omitempty"`
}

type wordPredictResponse struct {
	predictResponse
	Alternatives []gesture.Candidate `json:"alternatives"`
}

type endpointInfo struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

type infoResponse struct {
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Model     string         `json:"model"`
	Device    string         `json:"device"`
	Endpoints []endpointInfo `json:"endpoints"`
}

// Letter handles POST /api/sign-to-text/predict.
func (h *PredictHandler) Letter(w http.ResponseWriter, r *http.Request) {
	h.predict(w, r, "letter", false)
}

// Word handles POST /csl-predict.
func (h *PredictHandler) Word(w http.ResponseWriter, r *http.Request) {
	h.predict(w, r, "word", true)
}

// ByMode handles POST /api/predict?mode=word|letter. The default is letter.
func (h *PredictHandler) ByMode(w http.ResponseWriter, r *http.Request) {
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "letter":
		h.predict(w, r, "predict", false)
	case "word":
		h.predict(w, r, "predict", true)
	default:
		writeError(w, http.StatusBadRequest, "mode must be word or letter")
	}
}

// Info handles GET /api/sign-to-text.
func (h *PredictHandler) Info(w http.ResponseWriter, r *http.Request) {
	status := h.status.Status()
	model := "Not loaded"
	if status.Loaded {
		model = h.modelName
	}

	writeJSON(w, http.StatusOK, infoResponse{
		Status:  "ok",
		Message: "Sign Language Detection API is operational",
		Model:   model,
		Device:  status.Device,
		Endpoints: []endpointInfo{
			{Path: "/api/sign-to-text", Method: http.MethodGet, Description: "API information"},
			{Path: "/api/sign-to-text/predict", Method: http.MethodPost, Description: "Predict letter sign from image"},
			{Path: "/csl-predict", Method: http.MethodPost, Description: "Predict word or letter sign from image"},
			{Path: "/api/predict", Method: http.MethodPost, Description: "Predict with mode=word or mode=letter"},
		},
	})
}

func (h *PredictHandler) predict(w http.ResponseWriter, r *http.Request, endpoint string, wordMode bool) {
	if !h.status.Status().Loaded {
		observability.RecordFrame(endpoint, "unavailable")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:   "Sign language detection model not loaded",
			Message: "The detection model failed to initialize",
		})
		return
	}

	data, err := readUpload(w, r)
	if err != nil {
		observability.RecordFrame(endpoint, "invalid")
		writeError(w, http.StatusBadRequest, "Invalid image data")
		return
	}

	frame, err := capture.Decode(data)
	if err != nil {
		observability.RecordFrame(endpoint, "invalid")
		writeError(w, http.StatusBadRequest, "Invalid image data")
		return
	}
	defer frame.Close()

	sessionID := r.FormValue("session_id")
	out, err := h.process(r.Context(), &frame, sessionID, wordMode)
	if err != nil {
		h.writeProcessError(w, r, endpoint, err)
		return
	}
	observability.RecordFrame(endpoint, string(out.Mode))

	resp := predictResponse{
		Result:     out.Result,
		DebugImage: out.DebugImage,
	}
	if out.HandROI != "" {
		resp.HandROI = &out.HandROI
	}
	if h.sessions != nil {
		resp.SessionID = sessionID
	}

	if !wordMode {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	alternatives := out.Alternatives
	if alternatives == nil {
		alternatives = []gesture.Candidate{}
	}
	writeJSON(w, http.StatusOK, wordPredictResponse{predictResponse: resp, Alternatives: alternatives})
}

// process runs the frame in the caller's session when one is named. A session
// swept between lookup and use is reopened once.
func (h *PredictHandler) process(ctx context.Context, frame *gocv.Mat, sessionID string, wordMode bool) (*recognition.Outcome, error) {
	req := recognition.Request{Frame: frame, WordMode: wordMode, Debug: true}
	if sessionID == "" || h.sessions == nil {
		return h.recognizer.Process(ctx, req)
	}

	var out *recognition.Outcome
	for attempt := 0; attempt < 2; attempt++ {
		err := h.sessions.Acquire(sessionID).WithSmoother(func(s *recognition.Smoother) error {
			req.Smoother = s
			var err error
			out, err = h.recognizer.Process(ctx, req)
			return err
		})
		if !errors.Is(err, session.ErrSessionClosed) {
			return out, err
		}
	}
	return nil, session.ErrSessionClosed
}

func (h *PredictHandler) writeProcessError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	observability.RecordFrame(endpoint, "error")

	switch {
	case errors.Is(err, capture.ErrInvalidImage):
		writeError(w, http.StatusBadRequest, "Invalid image data")
	case errors.Is(err, classifier.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:   "Sign language detection model not loaded",
			Message: err.Error(),
		})
	case errors.Is(err, context.Canceled):
		h.logger.Debug().Str("endpoint", endpoint).Msg("client went away")
	default:
		observability.RecordError("process", "api")
		h.logger.Error().Err(err).Str("endpoint", endpoint).Str("path", r.URL.Path).Msg("prediction failed")
		writeError(w, http.StatusInternalServerError, "Prediction failed")
	}
}

// readUpload returns the first "file" part of a multipart request.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	files, err := uploadedFiles(w, r)
	if err != nil {
		return nil, err
	}
	return readFile(files[0])
}

func uploadedFiles(w http.ResponseWriter, r *http.Request) ([]*multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		return nil, err
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		return nil, http.ErrMissingFile
	}
	return files, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
