package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/observability"
	"github.com/ayusman/mudra/internal/vocabulary"
)

// WordsHandler serves word registration and listing.
type WordsHandler struct {
	registry *vocabulary.Registry
	logger   zerolog.Logger
}

// NewWordsHandler creates a WordsHandler.
func NewWordsHandler(registry *vocabulary.Registry) *WordsHandler {
	return &WordsHandler{
		registry: registry,
		logger:   observability.WithComponent("api"),
	}
}

type uploadResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	TotalWords int    `json:"total_words,omitempty"`
}

type listWordsResponse struct {
	Words []string `json:"words"`
	Count int      `json:"count"`
}

// Upload handles POST /upload-word?word_name=. Failures are reported with
// success=false and status 200.
func (h *WordsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("word_name")

	files, err := uploadedFiles(w, r)
	if errors.Is(err, http.ErrMissingFile) {
		writeJSON(w, http.StatusOK, uploadResponse{Message: "No image file provided"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, uploadResponse{Message: "Failed to read upload"})
		return
	}
	if name == "" {
		name = r.FormValue("word_name")
	}

	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		data, err := readFile(fh)
		if err != nil {
			writeJSON(w, http.StatusOK, uploadResponse{Message: "Failed to read upload"})
			return
		}
		images = append(images, data)
	}

	reg, err := h.registry.Register(r.Context(), name, images)
	if err != nil {
		writeJSON(w, http.StatusOK, uploadResponse{Message: h.failureMessage(name, err)})
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:    true,
		Message:    fmt.Sprintf("Word '%s' saved successfully", reg.Name),
		TotalWords: reg.TotalWords,
	})
}

func (h *WordsHandler) failureMessage(name string, err error) string {
	switch {
	case errors.Is(err, capture.ErrInvalidImage):
		return "Failed to decode image"
	case errors.Is(err, vocabulary.ErrNoHand):
		return "No hand detected in the image"
	case errors.Is(err, vocabulary.ErrInvalidName):
		return "A valid word_name is required"
	default:
		observability.RecordError("register", "api")
		h.logger.Error().Err(err).Str("word", name).Msg("word registration failed")
		return "Failed to save word"
	}
}

// List handles GET /words.
func (h *WordsHandler) List(w http.ResponseWriter, r *http.Request) {
	names := h.registry.List()
	writeJSON(w, http.StatusOK, listWordsResponse{Words: names, Count: len(names)})
}

// Get handles GET /words/{name}.
func (h *WordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	word, err := h.registry.Describe(name)
	if err != nil {
		h.writeLookupError(w, name, "describe", err)
		return
	}
	writeJSON(w, http.StatusOK, word)
}

// Image handles GET /words/{name}/image.
func (h *WordsHandler) Image(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	image, err := h.registry.Image(name)
	if err != nil {
		h.writeLookupError(w, name, "image", err)
		return
	}
	if len(image) == 0 {
		writeError(w, http.StatusNotFound, "no image stored for word")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(image)
}

// Delete handles DELETE /words/{name}.
func (h *WordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.registry.Delete(name); err != nil {
		h.writeLookupError(w, name, "delete", err)
		return
	}
	names := h.registry.List()
	writeJSON(w, http.StatusOK, uploadResponse{
		Success:    true,
		Message:    fmt.Sprintf("Word '%s' deleted", name),
		TotalWords: len(names),
	})
}

func (h *WordsHandler) writeLookupError(w http.ResponseWriter, name, op string, err error) {
	if errors.Is(err, vocabulary.ErrUnknownWord) {
		writeError(w, http.StatusNotFound, "word not found")
		return
	}
	observability.RecordError(op, "api")
	h.logger.Error().Err(err).Str("word", name).Msgf("word %s failed", op)
	writeError(w, http.StatusInternalServerError, "internal error")
}
