package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/exphon/speech-recording-app/internal/bundle"
	"github.com/exphon/speech-recording-app/internal/recording"
)

var (
	// ErrSessionNotFound is returned for an unknown or expired session ID
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions is returned when MaxSessions is reached
	ErrTooManySessions = errors.New("too many active sessions")
)

// Observer receives session count changes; *metrics.Metrics implements it
type Observer interface {
	SetActiveSessions(n int)
}

type nopObserver struct{}

func (nopObserver) SetActiveSessions(int) {}

// ManagerConfig contains configuration for the session manager
type ManagerConfig struct {
	Timeout         time.Duration // idle time before a session expires
	CleanupInterval time.Duration
	MaxSessions     int                // zero means unlimited
	Analyzer        recording.Analyzer // optional voice activity analysis
}

// Manager manages all active wizard sessions
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *slog.Logger
	config   ManagerConfig

	normalizer recording.Normalizer
	assembler  *bundle.Assembler
	observer   Observer

	// Cleanup management
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a session manager and starts its cleanup routine
func NewManager(logger *slog.Logger, config ManagerConfig, normalizer recording.Normalizer, assembler *bundle.Assembler) *Manager {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	mgr := &Manager{
		sessions:   make(map[string]*Session),
		logger:     logger,
		config:     config,
		normalizer: normalizer,
		assembler:  assembler,
		observer:   nopObserver{},
		ctx:        ctx,
		cancel:     cancel,
		cleanup:    make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr
}

// SetObserver installs an observer for the active session count
func (m *Manager) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	m.mu.Lock()
	m.observer = o
	m.mu.Unlock()
}

// Create starts a new empty session
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		return nil, ErrTooManySessions
	}

	now := time.Now()
	s := &Session{
		ID:           uuid.NewString(),
		StartTime:    now,
		lastActivity: now,
		job:          bundle.NewJob(m.assembler),
	}
	logger := m.logger.With(slog.String("session_id", s.ID))
	s.newRecorder = func() *recording.Recorder {
		r := recording.NewRecorder(m.normalizer, recording.NewStore(), logger)
		if m.config.Analyzer != nil {
			r.SetAnalyzer(m.config.Analyzer)
		}
		return r
	}
	s.recorder = s.newRecorder()

	m.sessions[s.ID] = s
	m.observer.SetActiveSessions(len(m.sessions))

	m.logger.Info("Created session",
		slog.String("session_id", s.ID),
		slog.Int("active_sessions", len(m.sessions)),
	)

	return s, nil
}

// Get retrieves an existing session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Reset clears a session's recordings and metadata
func (m *Manager) Reset(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.Reset()

	m.logger.Info("Session reset", slog.String("session_id", id))
	return nil
}

// Remove deletes a session
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	delete(m.sessions, id)
	m.observer.SetActiveSessions(len(m.sessions))

	m.logger.Info("Session removed",
		slog.String("session_id", id),
		slog.Int("recordings", s.Store().Len()),
		slog.Duration("duration", time.Since(s.StartTime)),
	)
	return true
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns all sessions, oldest first
func (m *Manager) List() []*Session {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})
	return sessions
}

// Stop halts the cleanup routine. Sessions stay readable.
func (m *Manager) Stop() {
	m.logger.Info("Stopping session manager...")
	m.cancel()
	<-m.cleanup
	m.logger.Info("Session manager stopped", slog.Int("remaining_sessions", m.Count()))
}

func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	m.logger.Debug("Session cleanup routine started",
		slog.Duration("timeout", m.config.Timeout),
		slog.Duration("check_interval", m.config.CleanupInterval),
	)

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpiredSessions(time.Now())
		}
	}
}

// cleanupExpiredSessions removes sessions idle for longer than the timeout.
// A session assembling an archive is never expired.
func (m *Manager) cleanupExpiredSessions(now time.Time) int {
	if m.config.Timeout <= 0 {
		return 0
	}

	var expired []string
	m.mu.RLock()
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity()) > m.config.Timeout && s.ArchiveState() != bundle.StateAssembling {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	if len(expired) > 0 {
		m.logger.Info("Cleaning up expired sessions", slog.Int("expired_count", len(expired)))
		for _, id := range expired {
			m.Remove(id)
		}
	}
	return len(expired)
}
