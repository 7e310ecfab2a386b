package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/staleness"
)

// Default sizes.
const (
	DefaultGlobalSize   = 1000
	DefaultPerNoteNotes = 200
	DefaultPerNoteSize  = 100
	defaultL2Timeout    = 5 * time.Second
)

// Address locates a result. Self-referencing directives are stored per
// note, everything else globally.
type Address struct {
	Key        string
	NoteID     string
	SelfAccess bool
}

func (a Address) perNote() bool { return a.SelfAccess && a.NoteID != "" }

// Options configures a Manager. Zero sizes select the defaults.
type Options struct {
	GlobalSize   int
	PerNoteNotes int
	PerNoteSize  int
	Policy       staleness.Policy
	// L2 is the persistent tier; nil disables it.
	L2        Persistent
	L2Timeout time.Duration
	Logger    *slog.Logger
}

// Manager routes results between the global and per-note caches and the
// persistent tier. It is safe for concurrent use.
type Manager struct {
	global  *GlobalCache
	perNote *PerNoteCache
	once    *OnceStore
	checker staleness.Checker
	l2      Persistent
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	// pending counts background persistent writes; idle is signalled
	// when it drops to zero.
	pending int
	idle    sync.Cond
}

// NewManager builds a Manager from o.
func NewManager(o Options) (*Manager, error) {
	if o.GlobalSize == 0 {
		o.GlobalSize = DefaultGlobalSize
	}
	if o.PerNoteNotes == 0 {
		o.PerNoteNotes = DefaultPerNoteNotes
	}
	if o.PerNoteSize == 0 {
		o.PerNoteSize = DefaultPerNoteSize
	}
	if o.L2 == nil {
		o.L2 = NopPersistent{}
	}
	if o.L2Timeout == 0 {
		o.L2Timeout = defaultL2Timeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	global, err := NewGlobalCache(o.GlobalSize)
	if err != nil {
		return nil, err
	}
	perNote, err := NewPerNoteCache(o.PerNoteNotes, o.PerNoteSize)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		global:  global,
		perNote: perNote,
		once:    NewOnceStore(),
		checker: staleness.Checker{Policy: o.Policy},
		l2:      o.L2,
		timeout: o.L2Timeout,
		logger:  o.Logger,
	}
	m.idle.L = &m.mu
	return m, nil
}

// Checker returns the staleness checker used by GetIfValid.
func (m *Manager) Checker() staleness.Checker { return m.checker }

// Once returns the store backing once[...] expressions.
func (m *Manager) Once() *OnceStore { return m.once }

// Global returns the shared tier.
func (m *Manager) Global() *GlobalCache { return m.global }

// PerNote returns the per-note tier.
func (m *Manager) PerNote() *PerNoteCache { return m.perNote }

// Get returns a copy of the first-tier entry at a.
func (m *Manager) Get(a Address) (*Result, bool) {
	if a.perNote() {
		return m.perNote.Get(a.NoteID, a.Key)
	}
	return m.global.Get(a.Key)
}

// Put stores a copy of r in the first tier.
func (m *Manager) Put(a Address, r *Result) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if a.perNote() {
		m.perNote.Put(a.NoteID, a.Key, r)
	} else {
		m.global.Put(a.Key, r)
	}
	return nil
}

// GetIfValid returns the first-tier entry at a unless it must be
// re-executed against notes.
func (m *Manager) GetIfValid(a Address, notes *models.Collection) (*Result, bool) {
	r, ok := m.Get(a)
	if !ok || m.checker.ShouldReExecute(r.Fingerprint, r.Err, notes) {
		return nil, false
	}
	return r, true
}

// GetWithL2Fallback reads the first tier and, on a miss, the persistent
// tier. A persistent hit is copied into the first tier before returning.
// Unreadable persistent entries are dropped and reported as misses.
func (m *Manager) GetWithL2Fallback(ctx context.Context, a Address) (*Result, bool, error) {
	if r, ok := m.Get(a); ok {
		return r, true, nil
	}
	var (
		data []byte
		ok   bool
		err  error
	)
	if a.perNote() {
		data, ok, err = m.l2.GetPerNote(ctx, a.NoteID, a.Key)
	} else {
		data, ok, err = m.l2.GetGlobal(ctx, a.Key)
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: l2 get: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	r, err := DecodeEntry(data)
	if err != nil {
		m.logger.Warn("cache: dropping unreadable l2 entry",
			slog.String("key", a.Key),
			slog.String("note_id", a.NoteID),
			slog.String("error", err.Error()))
		m.removeL2(ctx, a)
		return nil, false, nil
	}
	if err := m.Put(a, r); err != nil {
		return nil, false, err
	}
	return r.Clone(), true, nil
}

// PutWithL2 stores r in the first tier and writes it to the persistent
// tier in the background. Flush waits for pending writes.
func (m *Manager) PutWithL2(a Address, r *Result) error {
	if err := m.Put(a, r); err != nil {
		return err
	}
	data, err := EncodeEntry(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.pending++
	go func() {
		defer m.writeDone()
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		var err error
		if a.perNote() {
			err = m.l2.PutPerNote(ctx, a.NoteID, a.Key, data)
		} else {
			err = m.l2.PutGlobal(ctx, a.Key, data)
		}
		if err != nil {
			m.logger.Warn("cache: l2 put failed",
				slog.String("key", a.Key),
				slog.String("note_id", a.NoteID),
				slog.String("error", err.Error()))
		}
	}()
	return nil
}

// InvalidateForNotes drops the per-note entries of ids in both tiers.
// Global entries are left to the staleness check.
func (m *Manager) InvalidateForNotes(ctx context.Context, ids ...string) {
	m.Flush()
	for _, id := range ids {
		m.perNote.ClearNote(id)
		if err := m.l2.ClearNote(ctx, id); err != nil {
			m.logger.Warn("cache: l2 clear failed",
				slog.String("note_id", id),
				slog.String("error", err.Error()))
		}
	}
}

// InvalidateKey drops key from the global tier and, when noteID is set,
// from that note's entries. Refresh triggers use it.
func (m *Manager) InvalidateKey(ctx context.Context, key, noteID string) {
	m.Flush()
	m.global.Remove(key)
	m.removeL2(ctx, Address{Key: key})
	if noteID == "" {
		m.perNote.RemoveKey(key)
		return
	}
	m.perNote.Remove(noteID, key)
	m.removeL2(ctx, Address{Key: key, NoteID: noteID, SelfAccess: true})
}

func (m *Manager) removeL2(ctx context.Context, a Address) {
	var err error
	if a.perNote() {
		err = m.l2.RemovePerNote(ctx, a.NoteID, a.Key)
	} else {
		err = m.l2.RemoveGlobal(ctx, a.Key)
	}
	if err != nil {
		m.logger.Warn("cache: l2 remove failed",
			slog.String("key", a.Key),
			slog.String("error", err.Error()))
	}
}

// EvictTo shrinks the global tier to at most size entries, least recently
// used first, and returns the number removed.
func (m *Manager) EvictTo(size int) int { return m.global.EvictTo(size) }

// EvictForMemoryPressure shrinks the global tier to fraction of its
// current size.
func (m *Manager) EvictForMemoryPressure(fraction float64) int {
	fraction = min(max(fraction, 0), 1)
	target := int(float64(m.global.Len()) * fraction)
	removed := m.EvictTo(target)
	m.logger.Info("cache: evicted for memory pressure",
		slog.Int("removed", removed),
		slog.Int("remaining", m.global.Len()))
	return removed
}

func (m *Manager) writeDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending--
	if m.pending == 0 {
		m.idle.Broadcast()
	}
}

// Flush waits for pending persistent writes. It may be called while
// other goroutines keep writing.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.pending > 0 {
		m.idle.Wait()
	}
}

// Close waits for pending writes; later PutWithL2 calls only update the
// first tier.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.Flush()
	return nil
}
