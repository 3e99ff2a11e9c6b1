// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
)

// TemporalClient is the narrow contract to an external durable workflow
// system. Implementations live outside the kernel.
type TemporalClient interface {
	ExecuteWorkflow(ctx context.Context, workflowType, workflowID string, input Context) (any, error)
}

// TemporalEngine hands workflow execution to an external durable system
// identified by each definition's Temporal descriptor.
type TemporalEngine struct {
	client   TemporalClient
	registry *registry
}

// NewTemporalEngine creates an engine over the given client.
func NewTemporalEngine(client TemporalClient) (*TemporalEngine, error) {
	if client == nil {
		return nil, fmt.Errorf("temporal client is required")
	}
	return &TemporalEngine{client: client, registry: newRegistry()}, nil
}

// Register stores a definition. External definitions must carry a Temporal
// descriptor; in-process steps are dropped, they never ship out of process.
func (e *TemporalEngine) Register(def Definition) error {
	if def.Temporal == nil {
		return fmt.Errorf("workflow %q missing temporal descriptor", def.ID)
	}
	if def.Temporal.WorkflowType == "" || def.Temporal.WorkflowID == "" {
		return fmt.Errorf("workflow %q temporal descriptor incomplete", def.ID)
	}
	def.Steps = nil
	return e.registry.put(def)
}

// Execute delegates the run to the external system and maps its outcome
// onto the Result contract.
func (e *TemporalEngine) Execute(ctx context.Context, id string, wctx Context) (Result, error) {
	def, ok := e.registry.get(id)
	if !ok {
		return Result{}, fmt.Errorf("workflow %q not registered", id)
	}

	output, err := e.client.ExecuteWorkflow(ctx, def.Temporal.WorkflowType, def.Temporal.WorkflowID, wctx)
	if err != nil {
		return Result{
			Success: false,
			Error:   fmt.Sprintf("external workflow %q failed: %v", id, err),
		}, nil
	}
	return Result{Success: true, Output: output}, nil
}
