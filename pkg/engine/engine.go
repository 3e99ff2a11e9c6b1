// SPDX-License-Identifier: Apache-2.0

// Package engine abstracts how a plan's steps become actual execution:
// either an in-process sequential run or a handoff to an external durable
// workflow system.
package engine

import (
	"context"
	"fmt"
	"sync"
)

// Context carries the execution input handed to a workflow run.
type Context map[string]any

// StepFunc is one callable unit of a workflow definition.
type StepFunc func(ctx context.Context, wctx Context) (any, error)

// TemporalDescriptor identifies an out-of-process durable workflow. Only
// the descriptor contract is defined here; the executing system is an
// external collaborator.
type TemporalDescriptor struct {
	WorkflowType string
	WorkflowID   string
}

// Definition describes a registered workflow. In-process definitions carry
// Steps; external definitions omit them and carry a Temporal descriptor.
type Definition struct {
	ID       string
	Name     string
	Steps    []StepFunc
	Temporal *TemporalDescriptor
}

// Result is the outcome contract of a workflow execution.
type Result struct {
	Success bool
	Output  any
	Error   string
}

// Engine registers and executes workflow definitions.
type Engine interface {
	Register(def Definition) error
	Execute(ctx context.Context, id string, wctx Context) (Result, error)
}

// registry is the shared definition store used by both engine variants.
type registry struct {
	mu   sync.Mutex
	defs map[string]Definition
}

func newRegistry() *registry {
	return &registry{defs: make(map[string]Definition)}
}

func (r *registry) put(def Definition) error {
	if def.ID == "" {
		return fmt.Errorf("workflow definition id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.ID] = def
	return nil
}

func (r *registry) get(id string) (Definition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[id]
	return def, ok
}
