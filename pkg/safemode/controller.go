// SPDX-License-Identifier: Apache-2.0

// Package safemode implements the escalation policy that moves the
// orchestrator into its restrictive safe_mode state after sustained failure.
//
// The controller only decides whether to escalate; the phase state machine
// enforces the resulting restriction.
package safemode

import (
	"sync"
	"time"
)

// DefaultErrorThreshold is the consecutive-error count that triggers
// escalation when no threshold is configured.
const DefaultErrorThreshold = 5

// Controller is the safe-mode trigger/escalation policy.
type Controller struct {
	mu        sync.Mutex
	threshold int
	active    bool
	reason    string
	enteredAt time.Time
}

// NewController creates a controller with the given error threshold.
// Non-positive thresholds fall back to the default.
func NewController(threshold int) *Controller {
	if threshold < 1 {
		threshold = DefaultErrorThreshold
	}
	return &Controller{threshold: threshold}
}

// ShouldTrigger reports whether the given consecutive-error count warrants
// escalation.
func (c *Controller) ShouldTrigger(consecutiveErrors int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return consecutiveErrors >= c.threshold
}

// Enter records the escalation reason and flips the controller active.
func (c *Controller) Enter(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = true
	c.reason = reason
	c.enteredAt = time.Now().UTC()
}

// Active reports whether the controller has escalated.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Reason returns the recorded escalation reason, if any.
func (c *Controller) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// EnteredAt returns when the controller escalated.
func (c *Controller) EnteredAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enteredAt
}

// Reset clears the controller state. It is the operator-side counterpart of
// the state machine's reset and exists for external recovery tooling.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	c.reason = ""
	c.enteredAt = time.Time{}
}
