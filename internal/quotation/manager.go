package quotation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	pkgerrors "github.com/traverseglobe/quotation-backend/pkg/errors"
)

// Manager keeps one Container per agent session. Sessions are minted by
// Create; Get only returns live sessions or ones with a persisted document.
// Sessions untouched for Config.IdleTimeout are flushed and closed by
// EvictIdle.
type Manager struct {
	mu       sync.Mutex
	base     Params
	idle     time.Duration
	sessions map[string]*session
	sweep    Task
	closed   bool
}

type session struct {
	c        *Container
	lastUsed time.Time
}

func NewManager(base Params) (*Manager, error) {
	if base.Storage == nil {
		return nil, fmt.Errorf("quotation storage required")
	}
	if base.Scheduler == nil {
		base.Scheduler = NewTimerScheduler()
	}
	if base.Clock == nil {
		base.Clock = SystemClock()
	}
	return &Manager{
		base:     base,
		idle:     base.Config.withDefaults().IdleTimeout,
		sessions: map[string]*session{},
	}, nil
}

// SessionKey is the storage key of a session's document.
func (m *Manager) SessionKey(sessionID string) string {
	prefix := m.base.Config.withDefaults().StorageKey
	return prefix + ":" + sessionID
}

func (m *Manager) paramsFor(id string) Params {
	params := m.base
	params.Config.StorageKey = m.SessionKey(id)
	return params
}

// Create starts a new session with a default document.
func (m *Manager) Create(ctx context.Context) (string, *Container, error) {
	id := uuid.NewString()
	c, err := newContainer(m.paramsFor(id))
	if err != nil {
		return "", nil, err
	}
	return id, m.insert(id, c), nil
}

// Get returns a live session, or reopens one whose document is persisted.
// Unknown ids are NOT_FOUND. Storage is read without holding the registry
// lock.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Container, error) {
	id, err := normalizeSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if c := m.lookup(id); c != nil {
		return c, nil
	}

	key := m.SessionKey(id)
	data, err := m.base.Storage.Load(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load quotation session")
	}
	if data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quotation session not found")
	}

	c, err := newContainer(m.paramsFor(id))
	if err != nil {
		return nil, err
	}
	c.restore(data)
	return m.insert(id, c), nil
}

func (m *Manager) lookup(id string) *Container {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	s.lastUsed = m.base.Clock.Now()
	return s.c
}

// insert registers c unless a concurrent Get won the race, in which case the
// existing container is kept and c is discarded.
func (m *Manager) insert(id string, c *Container) *Container {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.base.Clock.Now()
	if s, ok := m.sessions[id]; ok {
		c.Close()
		s.lastUsed = now
		return s.c
	}
	m.sessions[id] = &session{c: c, lastUsed: now}
	return c
}

// Delete clears the session's persisted document and forgets the container.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	c, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	id, _ := normalizeSessionID(sessionID)

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	clearErr := c.ClearAll(ctx)
	c.Close()
	return clearErr
}

// Len reports how many sessions are live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle flushes and closes every session unused for the idle timeout and
// reports how many were evicted. Evicted sessions reopen from storage on the
// next Get.
func (m *Manager) EvictIdle(ctx context.Context) (int, error) {
	m.mu.Lock()
	cutoff := m.base.Clock.Now().Add(-m.idle)
	var idle []*Container
	for id, s := range m.sessions {
		if !s.lastUsed.After(cutoff) {
			idle = append(idle, s.c)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	var err error
	for _, c := range idle {
		err = multierr.Append(err, c.Flush(ctx))
		c.Close()
	}
	return len(idle), err
}

// StartEviction runs EvictIdle every interval until Close.
func (m *Manager) StartEviction(interval time.Duration) {
	if interval <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.sweep != nil {
		return
	}
	m.scheduleSweepLocked(interval)
}

func (m *Manager) scheduleSweepLocked(interval time.Duration) {
	m.sweep = m.base.Scheduler.AfterFunc(interval, func() {
		evicted, err := m.EvictIdle(context.Background())
		if err != nil && m.base.Logger != nil {
			m.base.Logger.Error(context.Background(), "failed to flush idle quotation sessions", err)
		}
		if evicted > 0 && m.base.Logger != nil {
			m.base.Logger.Debug(m.base.Logger.WithField(context.Background(), "evicted", evicted), "evicted idle quotation sessions")
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.closed {
			m.scheduleSweepLocked(interval)
		}
	})
}

// Close stops eviction, flushes pending autosaves and closes every container.
// Flush errors are combined; every container is closed regardless.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	if m.sweep != nil {
		m.sweep.Stop()
		m.sweep = nil
	}
	sessions := m.sessions
	m.sessions = map[string]*session{}
	m.mu.Unlock()

	var err error
	for _, s := range sessions {
		err = multierr.Append(err, s.c.Flush(ctx))
		s.c.Close()
	}
	return err
}

func normalizeSessionID(sessionID string) (string, error) {
	parsed, err := uuid.Parse(sessionID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session id")
	}
	return parsed.String(), nil
}
