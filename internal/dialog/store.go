package dialog

import (
	"context"
	"sync"
	"time"
)

// DefaultStateTTL expires dialog state left untouched for this long.
const DefaultStateTTL = 24 * time.Hour

// StateStore holds per-client dialog state. Get returns IdleState for
// unknown or expired clients.
type StateStore interface {
	Get(ctx context.Context, clientID string) (State, error)
	Set(ctx context.Context, clientID string, state State) error
	Reset(ctx context.Context, clientID string) error
}

// MemoryStateStore keeps state in process memory and drops entries idle
// for longer than the TTL.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]State
	ttl    time.Duration
	now    func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryStateStore creates a store. A ttl <= 0 disables expiry. When
// sweepEvery > 0 a janitor goroutine removes expired entries until Close.
func NewMemoryStateStore(ttl, sweepEvery time.Duration) *MemoryStateStore {
	s := &MemoryStateStore{
		states: make(map[string]State),
		ttl:    ttl,
		now:    time.Now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if ttl > 0 && sweepEvery > 0 {
		go s.janitor(sweepEvery)
	} else {
		close(s.done)
	}
	return s
}

func (s *MemoryStateStore) expired(st State, now time.Time) bool {
	return s.ttl > 0 && !st.UpdatedAt.IsZero() && now.Sub(st.UpdatedAt) > s.ttl
}

func (s *MemoryStateStore) Get(ctx context.Context, clientID string) (State, error) {
	now := s.now()
	s.mu.RLock()
	st, ok := s.states[clientID]
	s.mu.RUnlock()
	if ok && !s.expired(st, now) {
		return st, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the write lock; a concurrent Set may have landed.
	if st, ok := s.states[clientID]; ok && !s.expired(st, now) {
		return st, nil
	}
	st = IdleState()
	st.UpdatedAt = now
	s.states[clientID] = st
	return st, nil
}

func (s *MemoryStateStore) Set(ctx context.Context, clientID string, state State) error {
	state.UpdatedAt = s.now()
	s.mu.Lock()
	s.states[clientID] = state
	s.mu.Unlock()
	return nil
}

func (s *MemoryStateStore) Reset(ctx context.Context, clientID string) error {
	return s.Set(ctx, clientID, IdleState())
}

// Len reports how many clients currently have state.
func (s *MemoryStateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Sweep removes expired entries and returns how many were dropped.
func (s *MemoryStateStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, st := range s.states {
		if s.expired(st, now) {
			delete(s.states, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryStateStore) janitor(every time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

// Close stops the janitor goroutine.
func (s *MemoryStateStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}
