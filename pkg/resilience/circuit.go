// SPDX-License-Identifier: Apache-2.0

// Package resilience guards every role call with an authorization gate, a
// per-role circuit breaker, bounded retries with linear backoff, and a
// per-attempt timeout.
package resilience

import (
	"sync"
	"time"
)

// CircuitState tracks role health for the process lifetime. It is scoped
// per role name, not per plan: it measures systemic role health.
type CircuitState struct {
	Failures  int
	OpenUntil time.Time
}

// CircuitStore is an explicit keyed store of circuit state owned by the
// boundary it is passed to. There is no ambient or static state.
type CircuitStore struct {
	mu     sync.Mutex
	states map[string]*CircuitState
}

// NewCircuitStore creates an empty circuit store.
func NewCircuitStore() *CircuitStore {
	return &CircuitStore{states: make(map[string]*CircuitState)}
}

// Gate checks the circuit for a role before a call. If the circuit is open
// it returns false with the reopen time. If a previously open circuit's
// window has passed, the state is cleared before allowing the call.
func (s *CircuitStore) Gate(role string, now time.Time) (allowed bool, openUntil time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state(role)
	if !state.OpenUntil.IsZero() {
		if now.Before(state.OpenUntil) {
			return false, state.OpenUntil
		}
		state.Failures = 0
		state.OpenUntil = time.Time{}
	}
	return true, time.Time{}
}

// RecordFailure adds a failure for the role and reports whether it tripped
// the breaker. A tripped breaker stays open until now+resetWindow.
func (s *CircuitStore) RecordFailure(role string, threshold int, resetWindow time.Duration, now time.Time) (tripped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state(role)
	state.Failures++
	if state.Failures >= threshold {
		state.OpenUntil = now.Add(resetWindow)
		return true
	}
	return false
}

// Reset clears the role's circuit after a successful call.
func (s *CircuitStore) Reset(role string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state(role)
	state.Failures = 0
	state.OpenUntil = time.Time{}
}

// Snapshot returns a copy of the role's current state.
func (s *CircuitStore) Snapshot(role string) CircuitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state(role)
}

// state returns the mutable state for a role. Must be called under lock.
func (s *CircuitStore) state(role string) *CircuitState {
	state, ok := s.states[role]
	if !ok {
		state = &CircuitState{}
		s.states[role] = state
	}
	return state
}
