// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
)

// InProcessEngine runs workflow steps sequentially in the calling process.
type InProcessEngine struct {
	registry *registry
}

// NewInProcessEngine creates an empty in-process engine.
func NewInProcessEngine() *InProcessEngine {
	return &InProcessEngine{registry: newRegistry()}
}

// Register stores a definition. In-process definitions need at least one
// step.
func (e *InProcessEngine) Register(def Definition) error {
	if len(def.Steps) == 0 {
		return fmt.Errorf("in-process workflow %q has no steps", def.ID)
	}
	return e.registry.put(def)
}

// Execute runs the definition's steps in order. The last step's output is
// the workflow output. A failing step stops the run and yields a
// non-success result rather than an error: step failure is a workflow
// outcome, not an engine fault.
func (e *InProcessEngine) Execute(ctx context.Context, id string, wctx Context) (Result, error) {
	def, ok := e.registry.get(id)
	if !ok {
		return Result{}, fmt.Errorf("workflow %q not registered", id)
	}

	var output any
	for i, step := range def.Steps {
		value, err := step(ctx, wctx)
		if err != nil {
			return Result{
				Success: false,
				Error:   fmt.Sprintf("step %d of workflow %q failed: %v", i, id, err),
			}, nil
		}
		output = value
	}
	return Result{Success: true, Output: output}, nil
}
