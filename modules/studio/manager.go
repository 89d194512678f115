package studio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"styleforge-server/modules/common/model"
	"styleforge-server/modules/common/notify"
	"styleforge-server/modules/generation"
	"styleforge-server/modules/history"
	"styleforge-server/modules/ingest"
)

// ErrSessionNotFound - unknown or already closed session
var ErrSessionNotFound = errors.New("session not found")

// Deps - collaborators shared by every session
type Deps struct {
	Pipeline  *ingest.Pipeline
	Generator generation.Generator
	History   *history.Store
	Hub       *notify.Hub
	Log       zerolog.Logger

	// Extra orchestrator options (attempt cap, backoff, test sleepers).
	OrchestratorOptions []generation.Option
}

// Metrics - session counters
type Metrics struct {
	TotalSessions  int       `json:"totalSessions"`
	ActiveSessions int       `json:"activeSessions"`
	StartTime      time.Time `json:"startTime"`
}

// Manager owns every live session.
type Manager struct {
	deps Deps
	log  zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	metrics  Metrics
}

// NewManager - empty manager
func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		log:      deps.Log,
		sessions: make(map[string]*Session),
		metrics:  Metrics{StartTime: time.Now()},
	}
}

// Create opens a new session.
func (m *Manager) Create() *Session {
	id := uuid.NewString()
	now := time.Now()

	var notifier notify.Notifier = notify.Log(m.log)
	if m.deps.Hub != nil {
		notifier = notify.Multi(m.deps.Hub, notifier)
	}
	notifier = notify.ForSession(notifier, id)

	opts := []generation.Option{
		generation.WithNotifier(notifier),
		generation.WithLogger(m.log.With().Str("session_id", id).Logger()),
	}
	if m.deps.History != nil {
		opts = append(opts, generation.WithHistory(m.deps.History))
	}
	opts = append(opts, m.deps.OrchestratorOptions...)

	s := &Session{
		ID:           id,
		CreatedAt:    now,
		lastActivity: now,
		Upload:       ingest.NewUploadSlot(m.deps.Pipeline, notifier),
		Orchestrator: generation.New(m.deps.Generator, opts...),
	}
	s.Orchestrator.OnState(func(st generation.State) {
		if st.Status == model.StatusSucceeded && st.Result != nil {
			s.setSelected(*st.Result)
		}
		if m.deps.Hub != nil {
			m.deps.Hub.PublishState(id, st)
		}
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.metrics.TotalSessions++
	m.metrics.ActiveSessions++
	total, active := m.metrics.TotalSessions, m.metrics.ActiveSessions
	m.mu.Unlock()

	m.log.Info().Str("session_id", id).Int("total", total).Int("active", active).Msg("✅ Created new session")
	return s
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.Touch()
	return s, nil
}

// Close tears a session down and forgets it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		m.metrics.ActiveSessions--
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	m.teardown(s)
	m.log.Info().Str("session_id", id).Msg("👋 Session closed")
	return nil
}

// CloseAll tears down every session (server shutdown).
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.metrics.ActiveSessions = 0
	m.mu.Unlock()

	for _, s := range sessions {
		m.teardown(s)
	}
	if len(sessions) > 0 {
		m.log.Info().Int("sessions", len(sessions)).Msg("🧹 Closed all sessions")
	}
}

func (m *Manager) teardown(s *Session) {
	s.close()
	if m.deps.Hub != nil {
		m.deps.Hub.CloseSession(s.ID)
	}
}

// Metrics - counters snapshot
func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// CleanupInactive closes sessions idle for longer than maxIdle that have no
// generation in flight and no WebSocket listener.
func (m *Manager) CleanupInactive(maxIdle time.Duration) int {
	now := time.Now()

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity()) <= maxIdle || s.Orchestrator.Active() != nil {
			continue
		}
		if m.deps.Hub != nil && m.deps.Hub.ClientCount(id) > 0 {
			continue
		}
		stale = append(stale, id)
	}
	m.mu.RUnlock()

	cleaned := 0
	for _, id := range stale {
		if m.Close(id) == nil {
			cleaned++
		}
	}
	if cleaned > 0 {
		m.log.Info().Int("cleaned", cleaned).Int("active", m.Metrics().ActiveSessions).Msg("🧼 Cleaned up inactive sessions")
	}
	return cleaned
}

// RunCleanup sweeps inactive sessions every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval, maxIdle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.log.Info().Dur("interval", interval).Dur("max_idle", maxIdle).Msg("🔄 Started session cleanup routine")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.CleanupInactive(maxIdle)
		}
	}
}
