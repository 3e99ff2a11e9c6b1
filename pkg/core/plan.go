package core

import (
	"time"

	"github.com/google/uuid"
)

// PlanStatus describes the lifecycle state of an execution plan.
type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "draft"
	PlanStatusApproved  PlanStatus = "approved"
	PlanStatusRejected  PlanStatus = "rejected"
	PlanStatusExecuting PlanStatus = "executing"
	PlanStatusComplete  PlanStatus = "complete"
)

// PlanStep is a single tool invocation within an execution plan.
type PlanStep struct {
	ID     string         `json:"id" yaml:"id"`
	Tool   string         `json:"tool" yaml:"tool"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// ExecutionPlan is the planning artifact driving one orchestration run.
// It is owned by exactly one run and mutated only by the orchestrator;
// once Status is complete or rejected it must not change again.
type ExecutionPlan struct {
	ID        string     `json:"id" yaml:"id"`
	Goals     []string   `json:"goals" yaml:"goals"`
	Steps     []PlanStep `json:"steps" yaml:"steps"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	Status    PlanStatus `json:"status" yaml:"status"`
}

// NewExecutionPlan creates a draft plan with a generated ID.
func NewExecutionPlan(goals []string, steps []PlanStep) *ExecutionPlan {
	return &ExecutionPlan{
		ID:        uuid.NewString(),
		Goals:     append([]string(nil), goals...),
		Steps:     append([]PlanStep(nil), steps...),
		CreatedAt: time.Now().UTC(),
		Status:    PlanStatusDraft,
	}
}

// RejectedPlaceholderPlan builds the minimal rejected plan attached to a
// best-effort result when orchestration fails before planning completed.
func RejectedPlaceholderPlan(goal string) *ExecutionPlan {
	return &ExecutionPlan{
		ID:        uuid.NewString(),
		Goals:     []string{goal},
		CreatedAt: time.Now().UTC(),
		Status:    PlanStatusRejected,
	}
}

// StepRequestID builds the correlation id tying a pipeline result back to
// its originating plan step.
func StepRequestID(planID, stepID string) string {
	return planID + "-" + stepID
}
