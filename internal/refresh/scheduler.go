package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the polling period of the scheduler.
const DefaultInterval = 30 * time.Second

// Registration ties triggers to a cached directive. NoteID is empty for
// globally shared entries.
type Registration struct {
	Key      string
	NoteID   string
	Triggers []Trigger
}

// Callback is invoked for every registration whose trigger fired.
type Callback func(r Registration)

type entry struct {
	reg   Registration
	since time.Time
	fired []bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler polls registrations on a single ticker.
type Scheduler struct {
	interval time.Duration
	fire     Callback
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	last    time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	started  bool
}

// NewScheduler returns a stopped scheduler firing through fire.
func NewScheduler(interval time.Duration, fire Callback, logger *slog.Logger, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		interval: interval,
		fire:     fire,
		logger:   logger,
		now:      time.Now,
		entries:  make(map[string]*entry),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.last = s.now()
	return s
}

func entryKey(key, noteID string) string { return noteID + "\x00" + key }

// Register adds r, replacing an earlier registration of the same key and
// note. Registrations without triggers are ignored.
func (s *Scheduler) Register(r Registration) {
	if len(r.Triggers) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entryKey(r.Key, r.NoteID)] = &entry{
		reg:   r,
		since: s.now(),
		fired: make([]bool, len(r.Triggers)),
	}
}

// Deregister removes the registration of key and noteID.
func (s *Scheduler) Deregister(key, noteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, entryKey(key, noteID))
}

// Len returns the number of registrations.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Tick fires every registration with an occurrence in the window since the
// previous tick, up to and including now.
func (s *Scheduler) Tick(now time.Time) int {
	var due []Registration
	s.mu.Lock()
	for k, e := range s.entries {
		from := s.last
		if e.since.After(from) {
			from = e.since
		}
		hit := false
		for i, t := range e.reg.Triggers {
			if e.fired[i] {
				continue
			}
			next, ok := t.Next(from)
			if !ok || next.After(now) {
				continue
			}
			hit = true
			if !t.Recurring() {
				e.fired[i] = true
			}
		}
		if hit {
			due = append(due, e.reg)
		}
		if exhausted(e) {
			delete(s.entries, k)
		}
	}
	s.last = now
	s.mu.Unlock()

	for _, r := range due {
		s.fire(r)
	}
	return len(due)
}

func exhausted(e *entry) bool {
	for i, t := range e.reg.Triggers {
		if t.Recurring() || !e.fired[i] {
			return false
		}
	}
	return true
}

// Start launches the ticker goroutine. It is a no-op when already started.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.loop()
}

func (s *Scheduler) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.Tick(s.now()); n > 0 {
				s.logger.Debug("refresh: fired", slog.Int("count", n))
			}
		}
	}
}

// Stop cancels the ticker and waits for the loop to exit. It is idempotent.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.done
		}
	})
}

// Run starts the scheduler and stops it when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}
