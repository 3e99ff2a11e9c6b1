// SPDX-License-Identifier: Apache-2.0

// Package orchestrator drives an autonomous task through the fixed
// lifecycle plan -> execute -> verify -> persist -> audit. Runs are strictly
// serialized, every role call passes the resilient call boundary, and
// sustained failure escalates to the restrictive safe_mode state.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telos-ai/telos/pkg/audit"
	"github.com/telos-ai/telos/pkg/core"
	"github.com/telos-ai/telos/pkg/engine"
	"github.com/telos-ai/telos/pkg/errors"
	"github.com/telos-ai/telos/pkg/phase"
	"github.com/telos-ai/telos/pkg/resilience"
	"github.com/telos-ai/telos/pkg/safemode"
)

// Orchestrator coordinates the lifecycle phases for one process. It owns
// the phase state machine and the serialization queue; the circuit store is
// shared state injected through the boundary.
type Orchestrator struct {
	machine  *phase.Machine
	boundary *resilience.Boundary
	safety   *safemode.Controller
	queue    *runQueue

	planner  core.Planner
	executor core.Executor
	verifier core.Verifier
	memory   core.MemoryWriter
	auditor  core.Auditor
	workflow engine.Engine

	metrics core.MetricsSink
	emitter core.EventEmitter
	trail   audit.TrailStore

	validatePlan         core.Validator[*core.ExecutionPlan]
	validateExecution    core.Validator[core.PipelineResult]
	validateVerification core.Validator[core.VerificationReport]
	validateAudit        core.Validator[*core.AuditReport]

	tracer trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// New creates an orchestrator over the three mandatory roles. Memory
// writer, auditor and workflow engine are optional collaborators.
func New(planner core.Planner, executor core.Executor, verifier core.Verifier, opts ...Option) (*Orchestrator, error) {
	if planner == nil {
		return nil, errors.New(errors.CodeInvalidInput, "planner role is required", nil)
	}
	if executor == nil {
		return nil, errors.New(errors.CodeInvalidInput, "executor role is required", nil)
	}
	if verifier == nil {
		return nil, errors.New(errors.CodeInvalidInput, "verifier role is required", nil)
	}

	o := &Orchestrator{
		machine:  phase.NewMachine(),
		safety:   safemode.NewController(safemode.DefaultErrorThreshold),
		queue:    newRunQueue(),
		planner:  planner,
		executor: executor,
		verifier: verifier,
		metrics:  core.NoopMetrics{},
		emitter:  core.NoopEventEmitter{},
		tracer:   otel.Tracer("telos/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.boundary == nil {
		o.boundary = resilience.NewBoundary(resilience.DefaultConfig(), resilience.NewCircuitStore(), o.metrics)
	}
	return o, nil
}

// WithBoundary injects a configured call boundary. Sharing one boundary
// between orchestrators shares its circuit store.
func WithBoundary(b *resilience.Boundary) Option {
	return func(o *Orchestrator) { o.boundary = b }
}

// WithSafeModeThreshold sets the consecutive-error count that escalates to
// safe mode.
func WithSafeModeThreshold(threshold int) Option {
	return func(o *Orchestrator) { o.safety = safemode.NewController(threshold) }
}

// WithMemoryWriter attaches the memory-writer role.
func WithMemoryWriter(writer core.MemoryWriter) Option {
	return func(o *Orchestrator) { o.memory = writer }
}

// WithAuditor attaches the auditor role.
func WithAuditor(auditor core.Auditor) Option {
	return func(o *Orchestrator) { o.auditor = auditor }
}

// WithWorkflowEngine routes the execution phase through a workflow engine
// instead of the direct step loop.
func WithWorkflowEngine(eng engine.Engine) Option {
	return func(o *Orchestrator) { o.workflow = eng }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(sink core.MetricsSink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.metrics = sink
		}
	}
}

// WithEventEmitter attaches a semantic event emitter.
func WithEventEmitter(emitter core.EventEmitter) Option {
	return func(o *Orchestrator) {
		if emitter != nil {
			o.emitter = emitter
		}
	}
}

// WithTrailStore records every run outcome in the given trail store.
func WithTrailStore(store audit.TrailStore) Option {
	return func(o *Orchestrator) { o.trail = store }
}

// WithPlanValidator gates the planner's createPlan output.
func WithPlanValidator(v core.Validator[*core.ExecutionPlan]) Option {
	return func(o *Orchestrator) { o.validatePlan = v }
}

// WithExecutionValidator gates each executor result.
func WithExecutionValidator(v core.Validator[core.PipelineResult]) Option {
	return func(o *Orchestrator) { o.validateExecution = v }
}

// WithVerificationValidator gates each verifier report.
func WithVerificationValidator(v core.Validator[core.VerificationReport]) Option {
	return func(o *Orchestrator) { o.validateVerification = v }
}

// WithAuditValidator gates the auditor's report.
func WithAuditValidator(v core.Validator[*core.AuditReport]) Option {
	return func(o *Orchestrator) { o.validateAudit = v }
}

// Machine exposes the phase state machine for observation and operator
// recovery.
func (o *Orchestrator) Machine() *phase.Machine {
	return o.machine
}

// SafeMode exposes the safe-mode controller.
func (o *Orchestrator) SafeMode() *safemode.Controller {
	return o.safety
}

// InSafeMode reports whether the state machine sits in safe_mode. The
// controller only decides escalation; the machine is the authority.
func (o *Orchestrator) InSafeMode() bool {
	return o.machine.InSafeMode()
}

// Execute runs one orchestration. Callers always receive a structured
// result: run failures surface as Success=false on the result, never as a
// returned error. The error return covers only invalid requests and
// cancellation while waiting in the queue.
func (o *Orchestrator) Execute(ctx context.Context, req *core.OrchestratedRequest) (*core.OrchestratedResult, error) {
	if req == nil {
		return nil, errors.New(errors.CodeInvalidInput, "request is required", nil).WithRecoverable(false)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := o.queue.acquire(ctx); err != nil {
		return nil, err
	}
	defer o.queue.release()

	ctx, runID := core.EnsureRunID(ctx)
	log := slog.Default()
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Execute", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("request.source", string(req.Source)),
	))
	defer span.End()

	start := time.Now()
	log.Info("orchestrator.run.start",
		slog.String("run_id", runID),
		slog.String("task", req.Task),
		slog.String("source", string(req.Source)),
	)
	o.emit(ctx, core.EventRunStarted, runID, "", map[string]any{"task": req.Task})

	state := &runState{}
	runErr := o.run(ctx, req, state, runID, log)
	if runErr != nil {
		o.recoverMachine()
	}
	o.checkEscalation(ctx, state, runID, log)

	result := o.buildResult(req, state, runErr, time.Since(start))

	outcome := core.OutcomeSuccess
	if !result.Success {
		outcome = core.OutcomeFailure
	}
	o.metrics.RecordRoleExecution(core.RoleOrchestrator, outcome)
	o.metrics.RecordRoleLatencyMs(core.RoleOrchestrator, float64(result.DurationMs))
	o.recordTrail(ctx, runID, result, runErr, log)

	if runErr != nil {
		span.SetAttributes(attribute.String("run.error", runErr.Error()))
		log.Error("orchestrator.run.failed",
			slog.String("run_id", runID),
			slog.String("plan_id", result.Plan.ID),
			slog.String("error", runErr.Error()),
		)
		o.emit(ctx, core.EventRunFailed, runID, result.Plan.ID, map[string]any{"error": runErr.Error()})
	} else {
		log.Info("orchestrator.run.complete",
			slog.String("run_id", runID),
			slog.String("plan_id", result.Plan.ID),
			slog.Bool("success", result.Success),
			slog.Int64("duration_ms", result.DurationMs),
		)
		o.emit(ctx, core.EventRunCompleted, runID, result.Plan.ID, map[string]any{"success": result.Success})
	}
	return result, nil
}

// recoverMachine returns the state machine to idle after a failed run. The
// consecutive-error tally survives so sustained failure can escalate.
func (o *Orchestrator) recoverMachine() {
	switch o.machine.State() {
	case phase.StateIdle, phase.StateSafeMode:
		// Nothing to do.
	case phase.StateError:
		o.machine.Transition(phase.EventRecover)
	default:
		o.machine.Transition(phase.EventFatalError)
		o.machine.Transition(phase.EventRecover)
	}
}

// checkEscalation enters safe mode when a mid-run trigger fired or the
// accumulated error tally crossed the threshold.
func (o *Orchestrator) checkEscalation(ctx context.Context, state *runState, runID string, log *slog.Logger) {
	if o.machine.InSafeMode() {
		return
	}
	tally := o.machine.ConsecutiveErrors()
	if !state.escalate && !o.safety.ShouldTrigger(tally) {
		return
	}
	reason := "consecutive error threshold reached"
	o.safety.Enter(reason)
	o.machine.Transition(phase.EventEscalateSafeMode)
	if sink, ok := o.metrics.(interface{ RecordSafeMode(active bool) }); ok {
		sink.RecordSafeMode(true)
	}
	log.Error("orchestrator.safemode.entered",
		slog.String("run_id", runID),
		slog.Int("consecutive_errors", tally),
	)
	o.emit(ctx, core.EventSafeModeEntered, runID, "", map[string]any{"consecutive_errors": tally})
}

func (o *Orchestrator) emit(ctx context.Context, eventType core.EventType, runID, planID string, payload map[string]any) {
	o.emitter.Emit(ctx, core.NewEvent(eventType, runID, planID, payload))
}

// recordTrail best-effort persists the run outcome. Trail failures are
// logged, never propagated.
func (o *Orchestrator) recordTrail(ctx context.Context, runID string, result *core.OrchestratedResult, runErr error, log *slog.Logger) {
	if o.trail == nil {
		return
	}
	entry := audit.Entry{
		RunID:         runID,
		PlanID:        result.Plan.ID,
		Success:       result.Success,
		Steps:         len(result.Executions),
		Verifications: len(result.VerificationReports),
		DurationMs:    result.DurationMs,
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	if err := o.trail.Record(ctx, entry); err != nil {
		log.Warn("orchestrator.trail.record_failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
	}
}
