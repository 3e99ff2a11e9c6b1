// SPDX-License-Identifier: Apache-2.0

// Package roletest provides scripted role implementations for exercising
// the orchestrator without real planners, executors or verifiers. Each
// double queues responses, replays them in order, and captures the calls
// it received.
package roletest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telos-ai/telos/pkg/core"
)

// ScriptPlanner replays queued plans and validations.
type ScriptPlanner struct {
	mu          sync.Mutex
	plans       []plannedResponse
	planIndex   int
	validations []validationResponse
	validIndex  int
	requests    []*core.OrchestratedRequest
}

type plannedResponse struct {
	plan *core.ExecutionPlan
	err  error
}

type validationResponse struct {
	validation core.PlanValidation
	err        error
}

// NewScriptPlanner creates an empty planner script. With nothing queued it
// approves a plan with one step per request constraint plus the task.
func NewScriptPlanner() *ScriptPlanner {
	return &ScriptPlanner{}
}

// AddPlan queues a plan made of the given tool names, one step each.
func (p *ScriptPlanner) AddPlan(tools ...string) *ScriptPlanner {
	steps := make([]core.PlanStep, 0, len(tools))
	for i, tool := range tools {
		steps = append(steps, core.PlanStep{
			ID:     fmt.Sprintf("step-%d", i+1),
			Tool:   tool,
			Params: map[string]any{},
		})
	}
	return p.AddPlanResponse(&core.ExecutionPlan{
		ID:        uuid.NewString(),
		Steps:     steps,
		CreatedAt: time.Now().UTC(),
		Status:    core.PlanStatusDraft,
	}, nil)
}

// AddPlanResponse queues an explicit plan or error.
func (p *ScriptPlanner) AddPlanResponse(plan *core.ExecutionPlan, err error) *ScriptPlanner {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plans = append(p.plans, plannedResponse{plan: plan, err: err})
	return p
}

// AddValidation queues a validation verdict. With nothing queued every plan
// is considered valid.
func (p *ScriptPlanner) AddValidation(valid bool, issues ...string) *ScriptPlanner {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validations = append(p.validations, validationResponse{
		validation: core.PlanValidation{Valid: valid, Issues: issues},
	})
	return p
}

// AddValidationError queues a validation call failure.
func (p *ScriptPlanner) AddValidationError(err error) *ScriptPlanner {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validations = append(p.validations, validationResponse{err: err})
	return p
}

// Requests returns the captured plan requests.
func (p *ScriptPlanner) Requests() []*core.OrchestratedRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*core.OrchestratedRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

func (p *ScriptPlanner) CreatePlan(_ context.Context, req *core.OrchestratedRequest) (*core.ExecutionPlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.planIndex < len(p.plans) {
		resp := p.plans[p.planIndex]
		p.planIndex++
		return resp.plan, resp.err
	}
	return core.NewExecutionPlan([]string{req.Task}, nil), nil
}

func (p *ScriptPlanner) ValidatePlan(_ context.Context, _ *core.ExecutionPlan) (core.PlanValidation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.validIndex < len(p.validations) {
		resp := p.validations[p.validIndex]
		p.validIndex++
		return resp.validation, resp.err
	}
	return core.PlanValidation{Valid: true}, nil
}

// ScriptExecutor replays queued results keyed by call order. With nothing
// queued it invokes the request's action handler and reports success.
type ScriptExecutor struct {
	mu      sync.Mutex
	results []executionResponse
	index   int
	calls   []core.ProposedCall
}

type executionResponse struct {
	result core.PipelineResult
	err    error
}

// NewScriptExecutor creates an empty executor script.
func NewScriptExecutor() *ScriptExecutor {
	return &ScriptExecutor{}
}

// AddSuccess queues a successful result carrying the given output.
func (e *ScriptExecutor) AddSuccess(output any) *ScriptExecutor {
	return e.AddResult(core.PipelineResult{Success: true, Result: output}, nil)
}

// AddFailure queues a non-error failed result.
func (e *ScriptExecutor) AddFailure(message string) *ScriptExecutor {
	return e.AddResult(core.PipelineResult{Success: false, Error: message}, nil)
}

// AddError queues an execution call failure.
func (e *ScriptExecutor) AddError(err error) *ScriptExecutor {
	return e.AddResult(core.PipelineResult{}, err)
}

// AddResult queues an explicit result and error pair.
func (e *ScriptExecutor) AddResult(result core.PipelineResult, err error) *ScriptExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = append(e.results, executionResponse{result: result, err: err})
	return e
}

// Calls returns the captured proposed calls in order.
func (e *ScriptExecutor) Calls() []core.ProposedCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.ProposedCall, len(e.calls))
	copy(out, e.calls)
	return out
}

func (e *ScriptExecutor) Execute(ctx context.Context, call core.ProposedCall, handler core.ActionHandler) (core.PipelineResult, error) {
	e.mu.Lock()
	e.calls = append(e.calls, call)
	scripted := e.index < len(e.results)
	var resp executionResponse
	if scripted {
		resp = e.results[e.index]
		e.index++
	}
	e.mu.Unlock()

	if scripted {
		result := resp.result
		if result.Tool == "" {
			result.Tool = call.Tool
		}
		if result.RequestID == "" {
			result.RequestID = call.RequestID
		}
		return result, resp.err
	}

	result := core.PipelineResult{Tool: call.Tool, RequestID: call.RequestID, Success: true}
	if handler != nil {
		output, err := handler(ctx, call.Tool, call.Params)
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			return result, nil
		}
		result.Result = output
	}
	return result, nil
}

// ScriptVerifier replays queued reports. With nothing queued it passes
// successful results and fails unsuccessful ones.
type ScriptVerifier struct {
	mu      sync.Mutex
	reports []verificationResponse
	index   int
	checked []core.PipelineResult
}

type verificationResponse struct {
	report core.VerificationReport
	err    error
}

// NewScriptVerifier creates an empty verifier script.
func NewScriptVerifier() *ScriptVerifier {
	return &ScriptVerifier{}
}

// AddReport queues a verdict with optional issues.
func (v *ScriptVerifier) AddReport(passed bool, issues ...string) *ScriptVerifier {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reports = append(v.reports, verificationResponse{
		report: core.VerificationReport{OverallPassed: passed, Issues: issues},
	})
	return v
}

// AddError queues a verification call failure.
func (v *ScriptVerifier) AddError(err error) *ScriptVerifier {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reports = append(v.reports, verificationResponse{err: err})
	return v
}

// Checked returns the results the verifier was asked to judge.
func (v *ScriptVerifier) Checked() []core.PipelineResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]core.PipelineResult, len(v.checked))
	copy(out, v.checked)
	return out
}

func (v *ScriptVerifier) Verify(_ context.Context, result core.PipelineResult) (core.VerificationReport, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checked = append(v.checked, result)
	if v.index < len(v.reports) {
		resp := v.reports[v.index]
		v.index++
		resp.report.RequestID = result.RequestID
		return resp.report, resp.err
	}
	report := core.VerificationReport{RequestID: result.RequestID, OverallPassed: result.Success}
	if !result.Success {
		report.Issues = []string{"execution reported failure"}
	}
	return report, nil
}

// ScriptMemoryWriter records batches and optionally fails.
type ScriptMemoryWriter struct {
	mu      sync.Mutex
	err     error
	batches [][]core.MemoryWriteRequest
}

// NewScriptMemoryWriter creates a memory writer that accepts every batch.
func NewScriptMemoryWriter() *ScriptMemoryWriter {
	return &ScriptMemoryWriter{}
}

// FailWith makes every write return the given error.
func (w *ScriptMemoryWriter) FailWith(err error) *ScriptMemoryWriter {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
	return w
}

// Batches returns every batch received.
func (w *ScriptMemoryWriter) Batches() [][]core.MemoryWriteRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]core.MemoryWriteRequest, len(w.batches))
	copy(out, w.batches)
	return out
}

func (w *ScriptMemoryWriter) WriteBatch(_ context.Context, batch []core.MemoryWriteRequest) (*core.MemoryReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	w.batches = append(w.batches, batch)
	return &core.MemoryReport{BatchID: uuid.NewString(), ItemsWritten: len(batch)}, nil
}

// ScriptAuditor records audit requests and replies with a fixed report.
type ScriptAuditor struct {
	mu       sync.Mutex
	report   *core.AuditReport
	err      error
	requests []core.AuditRequest
}

// NewScriptAuditor creates an auditor that answers with the neutral report.
func NewScriptAuditor() *ScriptAuditor {
	return &ScriptAuditor{}
}

// Reply sets the report returned on every audit.
func (a *ScriptAuditor) Reply(report *core.AuditReport) *ScriptAuditor {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report = report
	return a
}

// FailWith makes every audit return the given error.
func (a *ScriptAuditor) FailWith(err error) *ScriptAuditor {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
	return a
}

// Requests returns the captured audit requests.
func (a *ScriptAuditor) Requests() []core.AuditRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.AuditRequest, len(a.requests))
	copy(out, a.requests)
	return out
}

func (a *ScriptAuditor) Audit(_ context.Context, req core.AuditRequest) (*core.AuditReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.err != nil {
		return nil, a.err
	}
	if a.report != nil {
		report := *a.report
		return &report, nil
	}
	report := core.NeutralAuditReport()
	return &report, nil
}
