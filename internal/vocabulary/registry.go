// Package vocabulary registers reference words: it extracts landmarks from
// example images, keeps the shared library current and persists every word.
package vocabulary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/events"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/observability"
	"github.com/ayusman/mudra/internal/store"
)

var (
	// ErrInvalidName is returned for empty names or names that are not a plain file stem.
	ErrInvalidName = errors.New("invalid word name")
	// ErrNoHand is returned when none of the images shows a hand.
	ErrNoHand = errors.New("no hand detected in the image")
	// ErrUnknownWord is returned for names that are not registered.
	ErrUnknownWord = errors.New("unknown word")
)

// Landmarker extracts the first valid hand from a frame, or nil.
type Landmarker interface {
	Landmarks(frame *gocv.Mat) (*detector.HandLandmarks, error)
}

// Config wires a Registry. Store, Dir and Events are optional.
type Config struct {
	Library    *gesture.Library
	Landmarker Landmarker
	Store      *store.Store
	Dir        string
	Events     events.Emitter
}

// Registration reports a registered word.
type Registration struct {
	Name       string
	Samples    int
	Skipped    int
	TotalWords int
}

// Word describes a registered word and the samples behind it.
type Word struct {
	Name      string             `json:"word"`
	Landmarks []detector.Point3D `json:"landmarks"`
	Samples   []store.Sample     `json:"samples,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Registry turns example images into library references.
type Registry struct {
	config Config
	// mu orders registrations so the store and the library agree on the last write.
	mu     sync.Mutex
	logger zerolog.Logger
}

// New creates a Registry.
func New(config Config) *Registry {
	return &Registry{
		config: config,
		logger: observability.WithComponent("vocabulary"),
	}
}

// Library returns the shared reference library.
func (r *Registry) Library() *gesture.Library {
	return r.config.Library
}

// List returns registered word names in registration order.
func (r *Registry) List() []string {
	return r.config.Library.List()
}

// Register extracts a hand from every image, averages the landmarks and
// stores the result under name, replacing any earlier reference.
// Images without a hand are skipped; if none has one the word is not saved.
func (r *Registry) Register(ctx context.Context, name string, images [][]byte) (*Registration, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return nil, err
	}

	var (
		samples  [][]detector.Point3D
		snapshot []byte
		decoded  int
	)
	for i, data := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		points, jpeg, err := r.extract(data)
		switch {
		case errors.Is(err, capture.ErrInvalidImage):
			r.logger.Debug().Str("word", name).Int("image", i).Msg("skipping undecodable image")
			continue
		case errors.Is(err, ErrNoHand):
			decoded++
			continue
		case err != nil:
			return nil, err
		}
		decoded++
		samples = append(samples, points)
		if snapshot == nil {
			snapshot = jpeg
		}
	}

	if len(samples) == 0 {
		if decoded == 0 {
			return nil, capture.ErrInvalidImage
		}
		return nil, ErrNoHand
	}

	reference, err := gesture.Average(samples)
	if err != nil {
		return nil, fmt.Errorf("average landmarks: %w", err)
	}

	r.mu.Lock()
	if r.config.Store != nil {
		if err := r.config.Store.Words().Save(&store.Word{Name: name}, reference, snapshot, samples); err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("save word %q: %w", name, err)
		}
	}
	if err := r.config.Library.Register(name, reference); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()

	r.writeImage(name, snapshot)

	reg := &Registration{
		Name:       name,
		Samples:    len(samples),
		Skipped:    len(images) - len(samples),
		TotalWords: r.config.Library.Len(),
	}
	observability.SetRegisteredWords(reg.TotalWords)

	if r.config.Events != nil {
		err := r.config.Events.PublishWord(ctx, events.WordEvent{
			Name:       reg.Name,
			Samples:    reg.Samples,
			TotalWords: reg.TotalWords,
			Timestamp:  time.Now(),
		})
		if err != nil {
			r.logger.Warn().Err(err).Str("word", name).Msg("failed to publish word event")
		}
	}

	r.logger.Info().
		Str("word", reg.Name).
		Int("samples", reg.Samples).
		Int("skipped", reg.Skipped).
		Int("total_words", reg.TotalWords).
		Msg("word registered")
	return reg, nil
}

// Describe returns the registered word name. Stored words carry their
// per-image samples and timestamps.
func (r *Registry) Describe(name string) (*Word, error) {
	ref, ok := r.config.Library.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWord, name)
	}

	word := &Word{
		Name:      ref.Name,
		Landmarks: detector.Clone(ref.Landmarks),
		CreatedAt: ref.CreatedAt,
	}
	if r.config.Store == nil {
		return word, nil
	}

	stored, err := r.config.Store.Words().GetByName(name)
	if errors.Is(err, store.ErrNotFound) {
		return word, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get word %q: %w", name, err)
	}
	samples, err := r.config.Store.Samples().GetByWordID(stored.ID)
	if err != nil {
		return nil, fmt.Errorf("get samples for %q: %w", name, err)
	}
	word.Samples = samples
	word.CreatedAt = stored.CreatedAt
	word.UpdatedAt = stored.UpdatedAt
	return word, nil
}

// Image returns the JPEG snapshot stored with name. It is empty when the
// word was registered without a store.
func (r *Registry) Image(name string) ([]byte, error) {
	if _, ok := r.config.Library.Lookup(name); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWord, name)
	}
	if r.config.Store == nil {
		return nil, nil
	}

	image, err := r.config.Store.Words().Image(name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image for %q: %w", name, err)
	}
	return image, nil
}

// Delete removes name from the store, the library and the words directory.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.config.Library.Lookup(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWord, name)
	}
	if r.config.Store != nil {
		err := r.config.Store.Words().Delete(name)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("delete word %q: %w", name, err)
		}
	}
	r.config.Library.Remove(name)

	if r.config.Dir != "" {
		path := filepath.Join(r.config.Dir, name+".jpg")
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn().Err(err).Str("path", path).Msg("failed to remove word image")
		}
	}

	total := r.config.Library.Len()
	observability.SetRegisteredWords(total)
	r.logger.Info().Str("word", name).Int("total_words", total).Msg("word deleted")
	return nil
}

func (r *Registry) extract(data []byte) ([]detector.Point3D, []byte, error) {
	frame, err := capture.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	defer frame.Close()

	hand, err := r.config.Landmarker.Landmarks(&frame)
	if err != nil {
		return nil, nil, err
	}
	if hand == nil {
		return nil, nil, ErrNoHand
	}

	jpeg, err := capture.EncodeJPEG(frame)
	if err != nil {
		return nil, nil, err
	}
	return detector.Clone(hand.Points), jpeg, nil
}

func (r *Registry) writeImage(name string, jpeg []byte) {
	if r.config.Dir == "" || len(jpeg) == 0 {
		return
	}
	if err := os.MkdirAll(r.config.Dir, 0o755); err != nil {
		r.logger.Warn().Err(err).Str("dir", r.config.Dir).Msg("failed to create words directory")
		return
	}
	path := filepath.Join(r.config.Dir, name+".jpg")
	if err := os.WriteFile(path, jpeg, 0o644); err != nil {
		r.logger.Warn().Err(err).Str("path", path).Msg("failed to write word image")
	}
}

// Load registers every stored word into the library and returns how many were loaded.
// Words whose landmarks cannot be read are skipped.
func (r *Registry) Load() (int, error) {
	if r.config.Store == nil {
		return 0, nil
	}

	words, err := r.config.Store.Words().List()
	if err != nil {
		return 0, fmt.Errorf("list words: %w", err)
	}

	loaded := 0
	for _, w := range words {
		landmarks, err := r.config.Store.Words().Landmarks(w.ID)
		if err != nil {
			r.logger.Warn().Err(err).Str("word", w.Name).Msg("failed to load landmarks")
			continue
		}
		if err := r.config.Library.Register(w.Name, landmarks); err != nil {
			r.logger.Warn().Err(err).Str("word", w.Name).Msg("skipping stored word")
			continue
		}
		loaded++
	}

	observability.SetRegisteredWords(r.config.Library.Len())
	r.logger.Info().Int("words", loaded).Msg("loaded words from database")
	return loaded, nil
}

// ImportDir registers one word per image in dir, named after the file stem.
// Files are processed in name order; a file that fails is logged and skipped.
func (r *Registry) ImportDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read words directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	imported := 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return imported, err
		}

		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			r.logger.Warn().Err(err).Str("file", file).Msg("failed to read word image")
			continue
		}

		name := strings.TrimSuffix(file, filepath.Ext(file))
		if _, err := r.Register(ctx, name, [][]byte{data}); err != nil {
			r.logger.Warn().Err(err).Str("file", file).Msg("failed to import word")
			continue
		}
		imported++
	}
	return imported, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
