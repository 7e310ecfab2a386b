// Package session suppresses cache invalidation of the note a user is
// editing until the edit finishes.
package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultExpiry ends sessions that are never closed explicitly.
const DefaultExpiry = 5 * time.Minute

// Session is an active edit.
type Session struct {
	EditedNoteID      string    `json:"edited_note_id"`
	OriginatingNoteID string    `json:"originating_note_id"`
	StartedAt         time.Time `json:"started_at"`
}

// Invalidator applies invalidations for note ids.
type Invalidator func(ctx context.Context, ids ...string)

// Listener is notified after a session ended and its queue was applied.
type Listener func(s Session, flushed []string)

// Manager tracks at most one active session. It is safe for concurrent use.
type Manager struct {
	invalidate Invalidator
	expiry     time.Duration
	logger     *slog.Logger

	mu        sync.Mutex
	active    *Session
	queue     []string
	timer     *time.Timer
	gen       uint64
	listeners []Listener
}

// NewManager returns a Manager applying invalidations through fn. A zero
// expiry selects DefaultExpiry.
func NewManager(fn Invalidator, expiry time.Duration, logger *slog.Logger) *Manager {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{invalidate: fn, expiry: expiry, logger: logger}
}

// OnEnd registers l for session ends, explicit or by expiry.
func (m *Manager) OnEnd(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Start opens a session, first ending the previous one.
func (m *Manager) Start(ctx context.Context, editedNoteID, originatingNoteID string) Session {
	m.End(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	s := Session{EditedNoteID: editedNoteID, OriginatingNoteID: originatingNoteID, StartedAt: time.Now()}
	m.active = &s
	m.gen++
	gen := m.gen
	m.timer = time.AfterFunc(m.expiry, func() { m.expire(gen) })
	m.logger.Debug("session: started",
		slog.String("edited_note_id", editedNoteID),
		slog.String("originating_note_id", originatingNoteID))
	return s
}

// End closes the active session, applies its queued invalidations and
// notifies listeners. It reports whether a session was active.
func (m *Manager) End(ctx context.Context) bool {
	m.mu.Lock()
	s, queue, listeners, ok := m.takeLocked()
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.finish(ctx, s, queue, listeners)
	return true
}

func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	s, queue, listeners, ok := m.takeLocked()
	m.mu.Unlock()
	if !ok {
		return
	}
	m.logger.Info("session: expired",
		slog.String("originating_note_id", s.OriginatingNoteID),
		slog.Duration("after", m.expiry))
	m.finish(context.Background(), s, queue, listeners)
}

func (m *Manager) takeLocked() (Session, []string, []Listener, bool) {
	if m.active == nil {
		return Session{}, nil, nil, false
	}
	s := *m.active
	queue := m.queue
	m.active = nil
	m.queue = nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	return s, queue, slices.Clone(m.listeners), true
}

func (m *Manager) finish(ctx context.Context, s Session, queue []string, listeners []Listener) {
	if len(queue) > 0 && m.invalidate != nil {
		m.invalidate(ctx, queue...)
	}
	for _, l := range listeners {
		l(s, queue)
	}
}

// Active returns the current session.
func (m *Manager) Active() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Session{}, false
	}
	return *m.active, true
}

// ShouldSuppressInvalidation reports whether noteID is the originating
// note of the active session.
func (m *Manager) ShouldSuppressInvalidation(noteID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suppressedLocked(noteID)
}

func (m *Manager) suppressedLocked(noteID string) bool {
	return m.active != nil && m.active.OriginatingNoteID == noteID
}

// RequestInvalidation queues ids that are suppressed and applies the rest
// immediately.
func (m *Manager) RequestInvalidation(ctx context.Context, ids ...string) {
	var now []string
	m.mu.Lock()
	for _, id := range ids {
		if m.suppressedLocked(id) {
			if !slices.Contains(m.queue, id) {
				m.queue = append(m.queue, id)
			}
			continue
		}
		now = append(now, id)
	}
	m.mu.Unlock()
	if len(now) > 0 && m.invalidate != nil {
		m.invalidate(ctx, now...)
	}
}

// InvalidateNow applies ids regardless of the active session.
func (m *Manager) InvalidateNow(ctx context.Context, ids ...string) {
	if len(ids) > 0 && m.invalidate != nil {
		m.invalidate(ctx, ids...)
	}
}

// Queued returns the ids waiting for the session to end.
func (m *Manager) Queued() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.queue)
}

// Close stops the expiry timer without applying the queue.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
}
