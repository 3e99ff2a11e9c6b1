package core

import "context"

// Role names used for circuit-breaker scoping and metrics attribution.
const (
	RolePlanner      = "planner"
	RoleExecutor     = "executor"
	RoleVerifier     = "verifier"
	RoleMemoryWriter = "memory-writer"
	RoleAuditor      = "auditor"
	RoleOrchestrator = "orchestrator"
)

// PlanValidation is the planner's verdict on a draft plan.
type PlanValidation struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// ProposedCall is one step handed to the executor.
type ProposedCall struct {
	RequestID string
	Tool      string
	Params    map[string]any
}

// Planner produces and validates execution plans.
type Planner interface {
	CreatePlan(ctx context.Context, req *OrchestratedRequest) (*ExecutionPlan, error)
	ValidatePlan(ctx context.Context, plan *ExecutionPlan) (PlanValidation, error)
}

// Executor performs one proposed tool call through the request's action
// handler and reports the outcome.
type Executor interface {
	Execute(ctx context.Context, call ProposedCall, handler ActionHandler) (PipelineResult, error)
}

// Verifier judges one execution outcome.
type Verifier interface {
	Verify(ctx context.Context, result PipelineResult) (VerificationReport, error)
}

// MemoryWriter persists a batch of memory items derived from successful
// executions.
type MemoryWriter interface {
	WriteBatch(ctx context.Context, batch []MemoryWriteRequest) (*MemoryReport, error)
}

// Auditor measures behavioral drift over a completed run.
type Auditor interface {
	Audit(ctx context.Context, req AuditRequest) (*AuditReport, error)
}

// RoleOutcome labels a role execution for metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsSink receives fire-and-forget role execution metrics. Sinks must
// never block or fail the caller.
type MetricsSink interface {
	RecordRoleExecution(roleName, outcome string)
	RecordRoleLatencyMs(roleName string, durationMs float64)
}

// NoopMetrics discards all metrics.
type NoopMetrics struct{}

func (NoopMetrics) RecordRoleExecution(string, string)  {}
func (NoopMetrics) RecordRoleLatencyMs(string, float64) {}

// Validator sanity-checks a role-call payload. It is an opaque
// validate-or-fail gate; the kernel does not care how the check is done.
type Validator[T any] func(value T) error
