package gesture

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/detector"
)

// Reference is a named word shape. It is never modified after registration.
type Reference struct {
	Name      string
	Landmarks []detector.Point3D
	CreatedAt time.Time
}

// Library holds the registered word shapes in memory.
// It is safe for concurrent use; registrations replace whole entries under
// the write lock so readers never see a partial reference.
type Library struct {
	mu      sync.RWMutex
	entries map[string]*Reference
	order   []string
}

// NewLibrary creates an empty Library.
func NewLibrary() *Library {
	return &Library{
		entries: make(map[string]*Reference),
	}
}

// Register inserts or overwrites the reference for name.
// An overwritten name keeps its original listing position.
func (l *Library) Register(name string, landmarks []detector.Point3D) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("register: name is required")
	}

	hand := detector.HandLandmarks{Points: landmarks}
	if err := hand.Validate(); err != nil {
		return fmt.Errorf("register %q: %w", name, err)
	}

	ref := &Reference{
		Name:      name,
		Landmarks: detector.Clone(landmarks),
		CreatedAt: time.Now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[name]; !exists {
		l.order = append(l.order, name)
	}
	l.entries[name] = ref

	return nil
}

// Remove drops the reference for name and reports whether it existed.
func (l *Library) Remove(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[name]; !ok {
		return false
	}
	delete(l.entries, name)
	for i, n := range l.order {
		if n == name {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns the registered names in insertion order.
func (l *Library) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, len(l.order))
	copy(names, l.order)
	return names
}

// Lookup returns the reference registered under name.
func (l *Library) Lookup(name string) (*Reference, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ref, ok := l.entries[name]
	return ref, ok
}

// Len returns the number of registered references.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// snapshot returns the references in listing order.
func (l *Library) snapshot() []*Reference {
	l.mu.RLock()
	defer l.mu.RUnlock()

	refs := make([]*Reference, 0, len(l.order))
	for _, name := range l.order {
		refs = append(refs, l.entries[name])
	}
	return refs
}
