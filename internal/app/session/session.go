// Package session holds one signed-in user's live view of their tracker: the
// latest tree, its stats, and a feed of snapshots for streaming consumers.
package session

import (
	"context"
	"sync"

	"dsa_tracker/internal/app/livesync"
	"dsa_tracker/internal/app/tree"
	"dsa_tracker/internal/domain/model"
	"dsa_tracker/internal/platform/logger"
)

type Snapshot struct {
	Tree  []model.Category `json:"tree"`
	Stats model.Stats      `json:"stats"`
}

type Session struct {
	controller *livesync.Controller
	log        *logger.Logger

	mu          sync.Mutex
	tenantID    string
	generation  uint64
	unsubscribe func()
	snapshot    Snapshot
	published   bool
	listeners   map[int]chan Snapshot
	nextID      int
	closed      bool
}

func New(controller *livesync.Controller, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	return &Session{
		controller: controller,
		log:        log.With("component", "session"),
		listeners:  make(map[int]chan Snapshot),
	}
}

// SetTenant points the session at tenantID, replacing any previous
// subscription. An empty id signs the session out. ctx bounds the lifetime of
// the new subscription.
func (s *Session) SetTenant(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if tenantID == s.tenantID && (tenantID == "" || s.unsubscribe != nil) {
		s.mu.Unlock()
		return nil
	}
	previous := s.unsubscribe
	s.unsubscribe = nil
	s.tenantID = tenantID
	s.generation++
	gen := s.generation
	s.snapshot = Snapshot{}
	s.published = false
	// a snapshot the reader has not taken yet belongs to the previous tenant
	for _, ch := range s.listeners {
		drain(ch)
	}
	s.mu.Unlock()

	// outside the lock: unsubscribe waits for an in-flight delivery, which takes s.mu
	if previous != nil {
		previous()
	}
	if tenantID == "" {
		s.log.Debug("session signed out")
		return nil
	}

	unsubscribe, err := s.controller.Subscribe(ctx, tenantID, func(t []model.Category) {
		s.publish(gen, t)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed || s.generation != gen {
		s.mu.Unlock()
		unsubscribe()
		return nil
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return nil
}

func (s *Session) publish(gen uint64, t []model.Category) {
	snap := Snapshot{Tree: t, Stats: tree.ComputeStats(t)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.generation {
		return
	}
	s.snapshot = snap
	s.published = true
	for _, ch := range s.listeners {
		offer(ch, snap)
	}
}

// offer replaces whatever the listener has not read yet with snap.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	drain(ch)
	select {
	case ch <- snap:
	default:
	}
}

func drain(ch chan Snapshot) {
	select {
	case <-ch:
	default:
	}
}

func (s *Session) TenantID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenantID
}

// Current returns the last published snapshot and whether one exists yet.
func (s *Session) Current() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.published
}

func (s *Session) Tree() []model.Category {
	snap, _ := s.Current()
	return snap.Tree
}

func (s *Session) Stats() model.Stats {
	snap, _ := s.Current()
	return snap.Stats
}

func (s *Session) Search(q string) []model.Problem {
	return tree.SearchProblems(s.Tree(), q)
}

// Updates returns a channel carrying the newest snapshot. A slow reader only
// ever sees the latest one. The channel is primed with the current snapshot
// when there is one, and closed by the returned cancel func or Close.
func (s *Session) Updates() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = ch
	if s.published {
		ch <- s.snapshot
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if l, ok := s.listeners[id]; ok {
				delete(s.listeners, id)
				close(l)
			}
		})
	}
}

// Close tears the subscription down and ends every Updates channel.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	for id, ch := range s.listeners {
		delete(s.listeners, id)
		drain(ch)
		close(ch)
	}
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
