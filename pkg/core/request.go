package core

import (
	"context"
	"strings"

	"github.com/telos-ai/telos/pkg/errors"
)

// SourceKind tags where an orchestrated request originated.
type SourceKind string

const (
	SourceOperator  SourceKind = "operator"
	SourceAgent     SourceKind = "agent"
	SourceScheduler SourceKind = "scheduler"
	SourcePlugin    SourceKind = "plugin"
)

// AllSourceKinds returns every known source kind. The default authorization
// gate allows all of them.
func AllSourceKinds() []SourceKind {
	return []SourceKind{SourceOperator, SourceAgent, SourceScheduler, SourcePlugin}
}

// ActionHandler is the capability through which an executor performs the
// actual tool call. The kernel never invokes it directly; it is threaded
// through to the executor role.
type ActionHandler func(ctx context.Context, tool string, params map[string]any) (any, error)

// IdentityConfig carries the agent identity context consumed by the auditor.
type IdentityConfig struct {
	Name         string         `json:"name,omitempty"`
	Persona      string         `json:"persona,omitempty"`
	CoreValues   []string       `json:"core_values,omitempty"`
	Instructions map[string]any `json:"instructions,omitempty"`
}

// OrchestratedRequest describes one autonomous task submitted to the
// orchestrator. Validated once at entry and never mutated afterwards.
type OrchestratedRequest struct {
	Task          string
	Constraints   []string
	Source        SourceKind
	SourceTrust   float64
	AgentID       string
	ActionHandler ActionHandler
	Identity      *IdentityConfig
	RecentOutputs []string
}

// Validate checks the request invariants the kernel relies on.
func (r *OrchestratedRequest) Validate() error {
	if strings.TrimSpace(r.Task) == "" {
		return errors.New(errors.CodeInvalidInput, "task description is required", nil).
			WithRecoverable(false)
	}
	if r.SourceTrust < 0 || r.SourceTrust > 1 {
		return errors.New(errors.CodeInvalidInput, "source trust must be in [0,1]", nil).
			WithContext("source_trust", r.SourceTrust).
			WithRecoverable(false)
	}
	if strings.TrimSpace(r.AgentID) == "" {
		return errors.New(errors.CodeInvalidInput, "agent id is required", nil).
			WithRecoverable(false)
	}
	return nil
}

// AuthContext is the slice of a request the authorization gate inspects.
type AuthContext struct {
	Source      SourceKind
	SourceTrust float64
}

// Auth extracts the authorization context for role calls made on behalf of
// this request.
func (r *OrchestratedRequest) Auth() AuthContext {
	return AuthContext{Source: r.Source, SourceTrust: r.SourceTrust}
}
