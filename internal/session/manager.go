package session

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/observability"
	"github.com/ayusman/mudra/internal/recognition"
)

// Manager maps connection ids to sessions.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	newSmoother func() *recognition.Smoother
	gauge       prometheus.Gauge
	now         func() time.Time
	logger      zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithGauge reports the session count to gauge.
func WithGauge(gauge prometheus.Gauge) Option {
	return func(m *Manager) { m.gauge = gauge }
}

// WithSmootherFactory overrides how new sessions build their smoother.
func WithSmootherFactory(fn func() *recognition.Smoother) Option {
	return func(m *Manager) { m.newSmoother = fn }
}

// NewManager creates a Manager whose sessions use the interactive smoother.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		newSmoother: recognition.NewInteractiveSmoother,
		now:         time.Now,
		logger:      observability.WithComponent("session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open creates a fresh session for id. An existing session under the same id
// is closed and replaced.
func (m *Manager) Open(id string) *Session {
	s := newSession(id, m.newSmoother(), m.now)

	m.mu.Lock()
	old := m.sessions[id]
	m.sessions[id] = s
	m.updateGauge()
	m.mu.Unlock()

	if old != nil {
		old.close()
		m.logger.Debug().Str("session_id", id).Msg("session replaced")
	}
	return s
}

// Close discards the session for id. It reports whether one existed.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		m.updateGauge()
	}
	m.mu.Unlock()

	if ok {
		s.close()
	}
	return ok
}

// Release closes s and removes it if it is still the session registered
// under its id. A stream that was replaced does not close its successor.
func (m *Manager) Release(s *Session) {
	m.mu.Lock()
	if m.sessions[s.ID] == s {
		delete(m.sessions, s.ID)
		m.updateGauge()
	}
	m.mu.Unlock()

	s.close()
}

// Get returns the session for id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Acquire returns the session for id, opening one if needed. Sessions it
// opens are closed by Sweep once idle; sessions from Open are not.
func (m *Manager) Acquire(id string) *Session {
	if s, ok := m.Get(id); ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := newSession(id, m.newSmoother(), m.now)
	s.reapable = true
	m.sessions[id] = s
	m.updateGauge()
	return s
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions opened by Acquire that have been idle for longer
// than maxIdle and returns how many.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.reapable && s.LastSeen().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.updateGauge()
	m.mu.Unlock()

	for _, s := range stale {
		s.close()
	}
	if len(stale) > 0 {
		m.logger.Debug().Int("count", len(stale)).Msg("idle sessions closed")
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(maxIdle)
		}
	}
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.updateGauge()
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

// updateGauge must be called with mu held.
func (m *Manager) updateGauge() {
	if m.gauge != nil {
		m.gauge.Set(float64(len(m.sessions)))
	}
}
