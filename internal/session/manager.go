package session

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

const (
	// DefaultMaxSessions is the default maximum number of live sessions.
	DefaultMaxSessions = 32

	// DefaultIdleTTL is how long an unused session survives pruning.
	DefaultIdleTTL = time.Hour
)

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	// Session is applied to every session the manager creates.
	Session Config

	// Deps are shared by every session.
	Deps Deps

	// MaxSessions is the maximum number of sessions allowed.
	// Defaults to DefaultMaxSessions.
	MaxSessions int

	// IdleTTL is the idle time after which Create may evict a session.
	// Defaults to DefaultIdleTTL.
	IdleTTL time.Duration
}

// Manager is a registry of live sessions keyed by id.
type Manager struct {
	cfg         Config
	deps        Deps
	maxSessions int
	idleTTL     time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}

	return &Manager{
		cfg:         cfg.Session,
		deps:        cfg.Deps,
		maxSessions: maxSessions,
		idleTTL:     idleTTL,
		sessions:    make(map[string]*Session),
	}
}

// Create starts a new empty session. Idle sessions are pruned first; if the
// limit is still reached an ERR_406 error is returned.
func (m *Manager) Create() (*Session, error) {
	m.Prune(m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions {
		return nil, lenserrors.New(lenserrors.ErrCodeSessionLimit,
			fmt.Sprintf("maximum %d sessions reached", m.maxSessions), nil).
			WithSuggestion("Delete an old session first")
	}

	sess, err := New(m.cfg, m.deps)
	if err != nil {
		return nil, err
	}
	m.sessions[sess.ID()] = sess

	slog.Debug("session_created", slog.String("session", sess.ID()), slog.Int("live", len(m.sessions)))
	return sess, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	return sess, nil
}

// Delete closes and forgets the session with id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return notFound(id)
	}
	return sess.Close()
}

// List returns summaries of every live session, ordered by id.
func (m *Manager) List() []Info {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	slices.SortFunc(infos, func(a, b Info) int {
		return strings.Compare(a.ID, b.ID)
	})
	return infos
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune closes sessions unused for longer than olderThan and returns how
// many were removed.
func (m *Manager) Prune(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		_ = s.Close()
		slog.Info("session_pruned", slog.String("session", s.ID()))
	}
	return len(stale)
}

// Close closes every session.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func notFound(id string) error {
	return lenserrors.New(lenserrors.ErrCodeSessionNotFound, "session not found", nil).
		WithDetail("session", id)
}
