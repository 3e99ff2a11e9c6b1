// SPDX-License-Identifier: Apache-2.0

package phase

import (
	"strings"
	"testing"
)

func mustAccept(t *testing.T, m *Machine, event Event) {
	t.Helper()
	if res := m.Transition(event); !res.Accepted {
		t.Fatalf("expected %s accepted in state %s: %s", event, m.State(), res.Reason)
	}
}

func TestHappyPathSequence(t *testing.T) {
	m := NewMachine()
	sequence := []Event{
		EventPlanRequested,
		EventPlanApproved,
		EventExecutionComplete,
		EventWriteMemory,
		EventMemoryWritten,
		EventAuditRequested,
		EventAuditComplete,
	}
	for _, event := range sequence {
		mustAccept(t, m, event)
	}
	if m.State() != StateIdle {
		t.Errorf("expected idle after full cycle, got %s", m.State())
	}
	if m.ConsecutiveErrors() != 0 {
		t.Errorf("expected zero consecutive errors, got %d", m.ConsecutiveErrors())
	}
}

func TestInvalidTransitionRejectedWithReason(t *testing.T) {
	m := NewMachine()
	mustAccept(t, m, EventPlanRequested)

	res := m.Transition(EventAuditRequested)
	if res.Accepted {
		t.Fatalf("audit_requested must be rejected while planning")
	}
	if !strings.Contains(res.Reason, "audit_requested") || !strings.Contains(res.Reason, "planning") {
		t.Errorf("reason should name event and state, got %q", res.Reason)
	}
	if m.State() != StatePlanning {
		t.Errorf("rejected transition must not change state")
	}
}

func TestConsecutiveErrorsTally(t *testing.T) {
	m := NewMachine()

	mustAccept(t, m, EventPlanRequested)
	mustAccept(t, m, EventPlanRejected)
	if m.ConsecutiveErrors() != 1 {
		t.Fatalf("expected 1 after plan_rejected, got %d", m.ConsecutiveErrors())
	}

	// Recover does not reset: the tally survives across failed runs.
	mustAccept(t, m, EventRecover)
	if m.ConsecutiveErrors() != 1 {
		t.Errorf("recover must preserve the tally, got %d", m.ConsecutiveErrors())
	}

	mustAccept(t, m, EventPlanRequested)
	mustAccept(t, m, EventFatalError)
	if m.ConsecutiveErrors() != 2 {
		t.Errorf("expected 2 after fatal_error, got %d", m.ConsecutiveErrors())
	}
	mustAccept(t, m, EventRecover)

	// A successful completion breaks the streak.
	mustAccept(t, m, EventAuditRequested)
	mustAccept(t, m, EventAuditComplete)
	if m.ConsecutiveErrors() != 0 {
		t.Errorf("audit_complete must reset the tally, got %d", m.ConsecutiveErrors())
	}
}

func TestMemoryWriteFailureIncrementsAndRecovers(t *testing.T) {
	m := NewMachine()
	mustAccept(t, m, EventPlanRequested)
	mustAccept(t, m, EventPlanApproved)
	mustAccept(t, m, EventExecutionComplete)
	mustAccept(t, m, EventWriteMemory)
	mustAccept(t, m, EventMemoryWriteFailed)

	if m.State() != StateError {
		t.Errorf("expected error state, got %s", m.State())
	}
	if m.ConsecutiveErrors() != 1 {
		t.Errorf("expected tally 1, got %d", m.ConsecutiveErrors())
	}
	mustAccept(t, m, EventRecover)
	if m.State() != StateIdle {
		t.Errorf("expected idle after recover, got %s", m.State())
	}
}

func TestWriteMemoryDirectlyFromExecuting(t *testing.T) {
	// The direct-loop path skips the explicit verifying hop.
	m := NewMachine()
	mustAccept(t, m, EventPlanRequested)
	mustAccept(t, m, EventPlanApproved)
	mustAccept(t, m, EventWriteMemory)
	if m.State() != StateWritingMemory {
		t.Errorf("expected writing_memory, got %s", m.State())
	}
}

func TestSafeModeEscalation(t *testing.T) {
	m := NewMachine()
	mustAccept(t, m, EventPlanRequested)

	res := m.Transition(EventEscalateSafeMode)
	if !res.Accepted {
		t.Fatalf("escalation must be accepted from any state")
	}
	if m.State() != StateSafeMode {
		t.Fatalf("expected safe_mode, got %s", m.State())
	}
	if !m.InSafeMode() {
		t.Errorf("InSafeMode should report true")
	}

	// Nothing but the operator reset leaves safe_mode.
	for _, event := range []Event{EventPlanRequested, EventRecover, EventAuditRequested} {
		if res := m.Transition(event); res.Accepted {
			t.Errorf("event %s must be rejected in safe_mode", event)
		}
	}

	m.Reset()
	if m.State() != StateIdle {
		t.Errorf("expected idle after operator reset, got %s", m.State())
	}
	if m.ConsecutiveErrors() != 0 {
		t.Errorf("operator reset clears the tally")
	}
}
