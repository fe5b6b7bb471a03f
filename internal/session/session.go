// Package session keeps one recognition session per connection.
package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/mudra/internal/recognition"
)

// ErrSessionClosed is returned for work on a session that has been closed.
var ErrSessionClosed = errors.New("session closed")

// Session owns the smoothing history of one connection.
type Session struct {
	ID string

	mu       sync.Mutex
	smoother *recognition.Smoother
	opened   time.Time
	lastSeen atomic.Int64
	frames   int
	closed   bool
	now      func() time.Time
	// reapable sessions belong to request/response clients and may be
	// swept when idle. Connection-held sessions live until released.
	reapable bool
}

func newSession(id string, smoother *recognition.Smoother, now func() time.Time) *Session {
	s := &Session{
		ID:       id,
		smoother: smoother,
		opened:   now(),
		now:      now,
	}
	s.lastSeen.Store(s.opened.UnixNano())
	return s
}

// WithSmoother runs fn with exclusive access to the session's smoother.
// Frames of one session are therefore processed strictly in order.
func (s *Session) WithSmoother(fn func(*recognition.Smoother) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.frames++
	s.lastSeen.Store(s.now().UnixNano())
	return fn(s.smoother)
}

// Frames returns how many frames were handed to the session.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// LastSeen returns when the session last received a frame.
// It does not wait for a frame in progress.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Opened returns when the session was created.
func (s *Session) Opened() time.Time {
	return s.opened
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close waits for in-flight work, then discards the window.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.smoother.Reset()
}
