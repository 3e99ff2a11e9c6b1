// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/telos-ai/telos/pkg/core"
	"github.com/telos-ai/telos/pkg/engine"
	"github.com/telos-ai/telos/pkg/errors"
	"github.com/telos-ai/telos/pkg/phase"
	"github.com/telos-ai/telos/pkg/resilience"
)

// runState accumulates everything one orchestration produces. A failed run
// keeps its partial state for the best-effort result.
type runState struct {
	plan          *core.ExecutionPlan
	executions    []core.PipelineResult
	verifications []core.VerificationReport
	memoryReport  *core.MemoryReport
	auditReport   *core.AuditReport
	escalate      bool
}

// run sequences the four phases. Any returned error aborts the run; the
// caller applies the recovery path and builds the best-effort result.
func (o *Orchestrator) run(ctx context.Context, req *core.OrchestratedRequest, state *runState, runID string, log *slog.Logger) error {
	if err := o.runPlanning(ctx, req, state, runID, log); err != nil {
		return err
	}
	if err := o.runExecution(ctx, req, state, runID, log); err != nil {
		return err
	}
	o.runMemoryWrite(ctx, req, state, runID, log)
	o.runAudit(ctx, req, state, runID, log)
	return nil
}

// runPlanning implements phase 1: create and validate the plan.
func (o *Orchestrator) runPlanning(ctx context.Context, req *core.OrchestratedRequest, state *runState, runID string, log *slog.Logger) error {
	if res := o.machine.Transition(phase.EventPlanRequested); !res.Accepted {
		return errors.New(errors.CodeInternal, "plan request refused: "+res.Reason, nil).
			WithContext("state", string(o.machine.State())).
			WithRecoverable(false)
	}

	ctx, span := o.tracer.Start(ctx, "Orchestrator.Planning")
	defer span.End()
	auth := req.Auth()

	plan, err := resilience.Call(ctx, o.boundary, core.RolePlanner, "createPlan", auth,
		func(ctx context.Context) (*core.ExecutionPlan, error) {
			plan, err := o.planner.CreatePlan(ctx, req)
			if err != nil {
				return nil, err
			}
			if plan == nil {
				return nil, fmt.Errorf("planner returned no plan")
			}
			if o.validatePlan != nil {
				if err := o.validatePlan(plan); err != nil {
					return nil, err
				}
			}
			return plan, nil
		})
	if err != nil {
		return err
	}
	state.plan = plan

	validation, err := resilience.Call(ctx, o.boundary, core.RolePlanner, "validatePlan", auth,
		func(ctx context.Context) (core.PlanValidation, error) {
			return o.planner.ValidatePlan(ctx, plan)
		})
	if err != nil {
		return err
	}
	if !validation.Valid {
		plan.Status = core.PlanStatusRejected
		o.machine.Transition(phase.EventPlanRejected)
		o.machine.Transition(phase.EventRecover)
		return errors.New(errors.CodePlanRejected,
			"plan validation failed: "+strings.Join(validation.Issues, "; "), nil).
			WithContext("plan_id", plan.ID).
			WithContext("issues", len(validation.Issues)).
			WithRecoverable(false)
	}

	plan.Status = core.PlanStatusApproved
	o.machine.Transition(phase.EventPlanApproved)
	log.Info("orchestrator.plan.approved",
		slog.String("run_id", runID),
		slog.String("plan_id", plan.ID),
		slog.Int("steps", len(plan.Steps)),
	)
	o.emit(ctx, core.EventPhaseCompleted, runID, plan.ID, map[string]any{"phase": "planning"})
	return nil
}

// runExecution implements phase 2: execute every step, then verify every
// result. A failed step does not abort the loop; all steps still run.
func (o *Orchestrator) runExecution(ctx context.Context, req *core.OrchestratedRequest, state *runState, runID string, log *slog.Logger) error {
	plan := state.plan
	plan.Status = core.PlanStatusExecuting

	ctx, span := o.tracer.Start(ctx, "Orchestrator.Execution")
	defer span.End()

	if o.workflow != nil {
		executions, err := o.runWorkflow(ctx, req, state, runID, log)
		if err != nil {
			return err
		}
		state.executions = executions
	} else {
		state.executions = o.runSteps(ctx, req, state, runID, log)
	}
	o.machine.Transition(phase.EventExecutionComplete)

	auth := req.Auth()
	for _, exec := range state.executions {
		exec := exec
		report, err := resilience.Call(ctx, o.boundary, core.RoleVerifier, "verify", auth,
			func(ctx context.Context) (core.VerificationReport, error) {
				report, err := o.verifier.Verify(ctx, exec)
				if err != nil {
					return report, err
				}
				if report.RequestID == "" {
					report.RequestID = exec.RequestID
				}
				if o.validateVerification != nil {
					if err := o.validateVerification(report); err != nil {
						return report, err
					}
				}
				return report, nil
			})
		if err != nil {
			return err
		}
		state.verifications = append(state.verifications, report)
	}

	plan.Status = core.PlanStatusComplete
	o.emit(ctx, core.EventPhaseCompleted, runID, plan.ID, map[string]any{
		"phase":      "execution",
		"executions": len(state.executions),
	})
	return nil
}

// runSteps is the direct-loop execution path, also reused as the aggregated
// workflow step for the in-process engine.
func (o *Orchestrator) runSteps(ctx context.Context, req *core.OrchestratedRequest, state *runState, runID string, log *slog.Logger) []core.PipelineResult {
	plan := state.plan
	auth := req.Auth()
	results := make([]core.PipelineResult, 0, len(plan.Steps))

	for _, step := range plan.Steps {
		call := core.ProposedCall{
			RequestID: core.StepRequestID(plan.ID, step.ID),
			Tool:      step.Tool,
			Params:    step.Params,
		}
		start := time.Now()
		result, err := resilience.Call(ctx, o.boundary, core.RoleExecutor, "execute", auth,
			func(ctx context.Context) (core.PipelineResult, error) {
				result, err := o.executor.Execute(ctx, call, req.ActionHandler)
				if err != nil {
					return result, err
				}
				if o.validateExecution != nil {
					if err := o.validateExecution(result); err != nil {
						return result, err
					}
				}
				return result, nil
			})
		if err != nil {
			result = core.PipelineResult{
				Tool:       step.Tool,
				RequestID:  call.RequestID,
				Success:    false,
				Error:      err.Error(),
				DurationMs: time.Since(start).Milliseconds(),
			}
		} else if result.RequestID == "" {
			result.RequestID = call.RequestID
		}
		results = append(results, result)

		if !result.Success {
			log.Warn("orchestrator.step.failed",
				slog.String("run_id", runID),
				slog.String("request_id", result.RequestID),
				slog.String("tool", result.Tool),
				slog.String("error", result.Error),
			)
			if o.safety.ShouldTrigger(o.machine.ConsecutiveErrors()) {
				state.escalate = true
			}
		}
	}
	return results
}

// runWorkflow hands the execution phase to the configured workflow engine
// and expects a []core.PipelineResult back.
func (o *Orchestrator) runWorkflow(ctx context.Context, req *core.OrchestratedRequest, state *runState, runID string, log *slog.Logger) ([]core.PipelineResult, error) {
	plan := state.plan
	def := engine.Definition{
		ID:   plan.ID,
		Name: "orchestration " + plan.ID,
		Steps: []engine.StepFunc{
			func(ctx context.Context, _ engine.Context) (any, error) {
				return o.runSteps(ctx, req, state, runID, log), nil
			},
		},
		Temporal: &engine.TemporalDescriptor{
			WorkflowType: "role-orchestration",
			WorkflowID:   plan.ID,
		},
	}
	if err := o.workflow.Register(def); err != nil {
		return nil, errors.New(errors.CodeWorkflowFailed, "workflow registration failed", err).
			WithContext("plan_id", plan.ID).
			WithRecoverable(false)
	}

	result, err := o.workflow.Execute(ctx, def.ID, engine.Context{
		"run_id":  runID,
		"plan_id": plan.ID,
		"task":    req.Task,
	})
	if err != nil {
		return nil, errors.New(errors.CodeWorkflowFailed, "workflow engine error", err).
			WithContext("plan_id", plan.ID).
			WithRecoverable(false)
	}
	if !result.Success {
		return nil, errors.New(errors.CodeWorkflowFailed, "workflow execution failed: "+result.Error, nil).
			WithContext("plan_id", plan.ID).
			WithRecoverable(false)
	}
	executions, ok := result.Output.([]core.PipelineResult)
	if !ok {
		return nil, errors.New(errors.CodeWorkflowFailed, "workflow returned unexpected output", nil).
			WithContext("plan_id", plan.ID).
			WithContext("output_type", fmt.Sprintf("%T", result.Output)).
			WithRecoverable(false)
	}
	return executions, nil
}

// runMemoryWrite implements phase 3. Failures here are recovered locally:
// the run continues without a memory report.
func (o *Orchestrator) runMemoryWrite(ctx context.Context, req *core.OrchestratedRequest, state *runState, runID string, log *slog.Logger) {
	if res := o.machine.Transition(phase.EventWriteMemory); !res.Accepted {
		return
	}

	batch := buildMemoryBatch(req, state.executions)
	if o.memory == nil || len(batch) == 0 {
		o.machine.Transition(phase.EventMemoryWritten)
		return
	}

	ctx, span := o.tracer.Start(ctx, "Orchestrator.MemoryWrite")
	defer span.End()

	report, err := resilience.Call(ctx, o.boundary, core.RoleMemoryWriter, "writeBatch", req.Auth(),
		func(ctx context.Context) (*core.MemoryReport, error) {
			return o.memory.WriteBatch(ctx, batch)
		})
	if err != nil {
		o.machine.Transition(phase.EventMemoryWriteFailed)
		o.machine.Transition(phase.EventRecover)
		log.Warn("orchestrator.memory.write_failed",
			slog.String("run_id", runID),
			slog.String("plan_id", state.plan.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	o.machine.Transition(phase.EventMemoryWritten)
	state.memoryReport = report
	o.emit(ctx, core.EventPhaseCompleted, runID, state.plan.ID, map[string]any{
		"phase": "memory",
		"items": len(batch),
	})
}

// runAudit implements phase 4. Failures here are recovered locally: the
// caller substitutes the neutral default report.
func (o *Orchestrator) runAudit(ctx context.Context, req *core.OrchestratedRequest, state *runState, runID string, log *slog.Logger) {
	if o.auditor == nil {
		return
	}
	if res := o.machine.Transition(phase.EventAuditRequested); !res.Accepted {
		return
	}

	ctx, span := o.tracer.Start(ctx, "Orchestrator.Audit")
	defer span.End()

	report, err := resilience.Call(ctx, o.boundary, core.RoleAuditor, "audit", req.Auth(),
		func(ctx context.Context) (*core.AuditReport, error) {
			report, err := o.auditor.Audit(ctx, core.AuditRequest{
				Plan:          state.plan,
				AgentID:       req.AgentID,
				Identity:      req.Identity,
				RecentOutputs: req.RecentOutputs,
			})
			if err != nil {
				return nil, err
			}
			if report == nil {
				return nil, fmt.Errorf("auditor returned no report")
			}
			if o.validateAudit != nil {
				if err := o.validateAudit(report); err != nil {
					return nil, err
				}
			}
			return report, nil
		})
	if err != nil {
		o.machine.Transition(phase.EventAuditFailed)
		o.machine.Transition(phase.EventRecover)
		log.Warn("orchestrator.audit.failed",
			slog.String("run_id", runID),
			slog.String("plan_id", state.plan.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	o.machine.Transition(phase.EventAuditComplete)
	state.auditReport = report
	o.emit(ctx, core.EventPhaseCompleted, runID, state.plan.ID, map[string]any{"phase": "audit"})
}

// buildResult assembles the terminal aggregate, best-effort on failure.
func (o *Orchestrator) buildResult(req *core.OrchestratedRequest, state *runState, runErr error, elapsed time.Duration) *core.OrchestratedResult {
	plan := state.plan
	if plan == nil {
		plan = core.RejectedPlaceholderPlan(req.Task)
	}

	var auditReport core.AuditReport
	switch {
	case runErr != nil:
		auditReport = core.NeutralAuditReport()
		auditReport.Anomalies = []string{runErr.Error()}
	case state.auditReport != nil:
		auditReport = *state.auditReport
	default:
		auditReport = core.NeutralAuditReport()
	}

	return &core.OrchestratedResult{
		Plan:                plan,
		Executions:          state.executions,
		VerificationReports: state.verifications,
		MemoryReport:        state.memoryReport,
		AuditReport:         auditReport,
		DurationMs:          elapsed.Milliseconds(),
		Success:             runErr == nil && core.OverallSuccess(state.executions, state.verifications),
	}
}

// buildMemoryBatch derives memory writes from successful executions with
// non-nil results. Non-text results are serialized to JSON.
func buildMemoryBatch(req *core.OrchestratedRequest, executions []core.PipelineResult) []core.MemoryWriteRequest {
	var batch []core.MemoryWriteRequest
	for _, exec := range executions {
		if !exec.Success || exec.Result == nil {
			continue
		}
		batch = append(batch, core.MemoryWriteRequest{
			Content:     serializeResult(exec.Result),
			Source:      req.AgentID,
			Reliability: req.SourceTrust,
		})
	}
	return batch
}

func serializeResult(value any) string {
	if text, ok := value.(string); ok {
		return text
	}
	if raw, err := json.Marshal(value); err == nil {
		return string(raw)
	}
	return fmt.Sprint(value)
}
