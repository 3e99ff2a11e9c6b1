// SPDX-License-Identifier: Apache-2.0

// Package phase implements the orchestration lifecycle state machine.
//
// The machine enforces the only legal sequence of phases
// (idle, planning, executing, verifying, writing_memory, auditing) plus the
// error and safe_mode states, and tracks a consecutive-error counter used by
// the safe-mode escalation policy.
package phase

import (
	"fmt"
	"sync"
)

// State is a lifecycle phase of the orchestrator.
type State string

const (
	StateIdle          State = "idle"
	StatePlanning      State = "planning"
	StateExecuting     State = "executing"
	StateVerifying     State = "verifying"
	StateWritingMemory State = "writing_memory"
	StateAuditing      State = "auditing"
	StateError         State = "error"
	StateSafeMode      State = "safe_mode"
)

// Event triggers a phase transition.
type Event string

const (
	EventPlanRequested     Event = "plan_requested"
	EventPlanApproved      Event = "plan_approved"
	EventPlanRejected      Event = "plan_rejected"
	EventExecutionComplete Event = "execution_complete"
	EventWriteMemory       Event = "write_memory"
	EventMemoryWritten     Event = "memory_written"
	EventMemoryWriteFailed Event = "memory_write_failed"
	EventAuditRequested    Event = "audit_requested"
	EventAuditComplete     Event = "audit_complete"
	EventAuditFailed       Event = "audit_failed"
	EventRecover           Event = "recover"
	EventFatalError        Event = "fatal_error"
	EventEscalateSafeMode  Event = "escalate_safe_mode"
)

// Result reports whether a transition was accepted. Rejected transitions
// carry a reason instead of failing loudly.
type Result struct {
	Accepted bool
	Reason   string
}

// transitions maps each state to the events it accepts and their targets.
// escalate_safe_mode is handled separately: it is accepted from every state.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventPlanRequested:  StatePlanning,
		EventAuditRequested: StateAuditing,
	},
	StatePlanning: {
		EventPlanApproved: StateExecuting,
		EventPlanRejected: StateError,
		EventFatalError:   StateError,
	},
	StateExecuting: {
		EventExecutionComplete: StateVerifying,
		EventWriteMemory:       StateWritingMemory,
		EventFatalError:        StateError,
	},
	StateVerifying: {
		EventWriteMemory: StateWritingMemory,
		EventFatalError:  StateError,
	},
	StateWritingMemory: {
		EventMemoryWritten:     StateIdle,
		EventMemoryWriteFailed: StateError,
		EventFatalError:        StateError,
	},
	StateAuditing: {
		EventAuditComplete: StateIdle,
		EventAuditFailed:   StateError,
		EventFatalError:    StateError,
	},
	StateError: {
		EventRecover: StateIdle,
	},
	// safe_mode accepts no events; it is exited only by an explicit
	// operator action (Reset).
	StateSafeMode: {},
}

// failureEvents increment the consecutive-error counter.
var failureEvents = map[Event]bool{
	EventPlanRejected:      true,
	EventFatalError:        true,
	EventMemoryWriteFailed: true,
	EventAuditFailed:       true,
}

// successEvents reset the consecutive-error counter. Recover deliberately
// does not reset it: the tally must survive a recovered failure so sustained
// failure across runs can still escalate to safe mode.
var successEvents = map[Event]bool{
	EventMemoryWritten: true,
	EventAuditComplete: true,
}

// Machine is the orchestration phase state machine. It is safe for
// concurrent use, though the serialization queue guarantees at most one
// orchestration drives it at a time.
type Machine struct {
	mu                sync.Mutex
	state             State
	consecutiveErrors int
}

// NewMachine creates a machine in the idle state.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// Transition applies an event. Invalid transitions are rejected with a
// reason, never an error or panic.
func (m *Machine) Transition(event Event) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event == EventEscalateSafeMode {
		m.state = StateSafeMode
		return Result{Accepted: true}
	}

	next, ok := transitions[m.state][event]
	if !ok {
		return Result{
			Accepted: false,
			Reason:   fmt.Sprintf("event %q not allowed in state %q", event, m.state),
		}
	}

	m.state = next
	if failureEvents[event] {
		m.consecutiveErrors++
	} else if successEvents[event] {
		m.consecutiveErrors = 0
	}
	return Result{Accepted: true}
}

// State returns the current phase.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ConsecutiveErrors returns the current consecutive-error tally.
func (m *Machine) ConsecutiveErrors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveErrors
}

// InSafeMode reports whether the machine is in the restrictive safe_mode
// state.
func (m *Machine) InSafeMode() bool {
	return m.State() == StateSafeMode
}

// Reset is the operator recovery action: it returns the machine to idle and
// clears the error tally. It is the only way out of safe_mode.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateIdle
	m.consecutiveErrors = 0
}
