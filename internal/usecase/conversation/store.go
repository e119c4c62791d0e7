// Package conversation holds the observable message log shown to the user.
package conversation

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"portfolio-assistant/internal/domain"
)

// DefaultRetention is the number of messages kept in the log.
const DefaultRetention = 20

// Listener receives a snapshot of the log after every change. Snapshots are
// never modified after delivery. A listener must not call mutating Store
// methods synchronously.
type Listener func(msgs []domain.Message)

type subscription struct {
	id uint64
	fn Listener
}

// Store is a goroutine-safe, bounded message log. Every mutation replaces
// the backing slice, so a snapshot handed out earlier stays consistent.
type Store struct {
	mu        sync.Mutex
	msgs      []domain.Message
	loading   bool
	retention int
	greeting  func() string
	subs      []subscription
	nextID    atomic.Uint64

	notifyMu sync.Mutex // serialises listener delivery
	logger   *slog.Logger
}

// NewStore creates a store seeded with one greeting. greeting is evaluated
// on every reset, so it can reflect data that loads later. Retention values
// below 1 fall back to DefaultRetention.
func NewStore(retention int, greeting func() string, logger *slog.Logger) *Store {
	if retention < 1 {
		retention = DefaultRetention
	}
	if greeting == nil {
		greeting = func() string { return Greeting("") }
	}
	s := &Store{retention: retention, greeting: greeting, logger: logger}
	s.msgs = []domain.Message{s.newGreeting()}
	return s
}

// Greeting returns the opening assistant line for an owner name. An empty
// name gives a neutral version.
func Greeting(ownerName string) string {
	if ownerName == "" {
		return "Hi! 👋 I'm a Portfolio AI Assistant. I can help you learn about the portfolio owner's professional experience, skills, projects, and how to get in touch. What would you like to know?"
	}
	return "Hi! 👋 I'm " + ownerName + "'s Portfolio AI Assistant. I can help you learn about their professional experience, skills, projects, and how to contact them. What would you like to know?"
}

func (s *Store) newGreeting() domain.Message {
	return domain.NewMessage(domain.RoleAssistant, s.greeting())
}

// Append adds msg to the end of the log, dropping the oldest entries beyond
// the retention window, and notifies listeners before returning.
func (s *Store) Append(msg domain.Message) {
	s.mutate(func(cur []domain.Message) []domain.Message {
		return append(cur, msg)
	})
}

// ShowPlaceholder appends a loading placeholder unless one is already shown.
func (s *Store) ShowPlaceholder() {
	s.mutate(func(cur []domain.Message) []domain.Message {
		for _, m := range cur {
			if m.IsLoading {
				return nil
			}
		}
		placeholder := domain.NewMessage(domain.RoleAssistant, "")
		placeholder.IsLoading = true
		return append(cur, placeholder)
	})
}

// Resolve removes any loading placeholder and appends msg in one change.
func (s *Store) Resolve(msg domain.Message) {
	s.mutate(func(cur []domain.Message) []domain.Message {
		out := make([]domain.Message, 0, len(cur)+1)
		for _, m := range cur {
			if !m.IsLoading {
				out = append(out, m)
			}
		}
		return append(out, msg)
	})
}

// Clear resets the log to a single fresh greeting.
func (s *Store) Clear() {
	greeting := s.newGreeting()
	s.mutate(func([]domain.Message) []domain.Message {
		return []domain.Message{greeting}
	})
}

// Current returns a copy of the log.
func (s *Store) Current() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]domain.Message, len(s.msgs))
	copy(cp, s.msgs)
	return cp
}

// SetLoading updates the loading flag and notifies listeners when it changes.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	changed := s.loading != loading
	s.loading = loading
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Loading reports whether a cycle is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Subscribe registers fn and immediately delivers the current snapshot to
// it. The returned function removes the subscription.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	id := s.nextID.Add(1)
	sub := subscription{id: id, fn: fn}

	s.notifyMu.Lock()
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	snapshot := s.msgs
	s.mu.Unlock()
	s.call(sub, snapshot)
	s.notifyMu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				subs := make([]subscription, 0, len(s.subs)-1)
				subs = append(subs, s.subs[:i]...)
				s.subs = append(subs, s.subs[i+1:]...)
				return
			}
		}
	}
}

// mutate applies fn to a copy of the log. A nil result means no change.
func (s *Store) mutate(fn func(cur []domain.Message) []domain.Message) {
	s.mu.Lock()
	cur := make([]domain.Message, len(s.msgs), len(s.msgs)+1)
	copy(cur, s.msgs)
	next := fn(cur)
	if next == nil {
		s.mu.Unlock()
		return
	}
	if over := len(next) - s.retention; over > 0 {
		next = next[over:]
	}
	// Full slice expression so appends by readers cannot reach the store's
	// backing array.
	s.msgs = next[:len(next):len(next)]
	s.mu.Unlock()
	s.notify()
}

// notify delivers the latest snapshot to every listener. Deliveries are
// serialised and always read the state at delivery time, so listeners never
// see the log move backwards. notifyMu is always taken before mu.
func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	snapshot := s.msgs
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		s.call(sub, snapshot)
	}
}

func (s *Store) call(sub subscription, snapshot []domain.Message) {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Error("conversation listener panicked", "subscription", sub.id, "panic", r)
		}
	}()
	sub.fn(snapshot)
}
