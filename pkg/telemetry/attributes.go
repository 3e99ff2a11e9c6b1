// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for orchestration telemetry. These follow
// OpenTelemetry naming conventions where applicable.
const (
	// Run attributes
	AttrRunID       = "telos.run.id"
	AttrRunSource   = "telos.run.source"
	AttrRunTrust    = "telos.run.source_trust"
	AttrRunAgentID  = "telos.run.agent_id"
	AttrRunSuccess  = "telos.run.success"
	AttrRunDuration = "telos.run.duration_ms"

	// Phase and state machine attributes
	AttrPhase        = "telos.phase"
	AttrMachineState = "telos.machine.state"
	AttrMachineEvent = "telos.machine.event"

	// Plan attributes
	AttrPlanID     = "telos.plan.id"
	AttrPlanGoal   = "telos.plan.goal"
	AttrPlanStatus = "telos.plan.status"
	AttrPlanSteps  = "telos.plan.steps"

	// Step attributes
	AttrStepRequestID  = "telos.step.request_id"
	AttrStepTool       = "telos.step.tool"
	AttrStepSuccess    = "telos.step.success"
	AttrStepDurationMs = "telos.step.duration_ms"

	// Role call attributes
	AttrRole        = "telos.role"
	AttrRoleOutcome = "telos.role.outcome"
	AttrRoleAttempt = "telos.role.attempt"

	// Circuit breaker attributes
	AttrCircuitFailures  = "telos.circuit.failures"
	AttrCircuitOpenUntil = "telos.circuit.open_until"

	// Memory attributes
	AttrMemoryItems   = "telos.memory.items"
	AttrMemoryBatchID = "telos.memory.batch_id"

	// Audit attributes
	AttrAuditDriftScore    = "telos.audit.drift_score"
	AttrAuditDriftSeverity = "telos.audit.drift_severity"
	AttrAuditAnomalies     = "telos.audit.anomalies"
)

// RunAttributes returns common attributes for a run span.
func RunAttributes(runID, source, agentID string, trust float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRunID, runID),
		attribute.Float64(AttrRunTrust, trust),
	}
	if source != "" {
		attrs = append(attrs, attribute.String(AttrRunSource, source))
	}
	if agentID != "" {
		attrs = append(attrs, attribute.String(AttrRunAgentID, agentID))
	}
	return attrs
}

// PlanAttributes returns attributes for planning spans. Long goals are
// truncated.
func PlanAttributes(planID, goal, status string, steps int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrPlanID, planID),
		attribute.Int(AttrPlanSteps, steps),
	}
	if goal != "" {
		if len(goal) > 200 {
			goal = goal[:200] + "..."
		}
		attrs = append(attrs, attribute.String(AttrPlanGoal, goal))
	}
	if status != "" {
		attrs = append(attrs, attribute.String(AttrPlanStatus, status))
	}
	return attrs
}

// StepAttributes returns attributes for one step execution span.
func StepAttributes(requestID, tool string, durationMs int64, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrStepRequestID, requestID),
		attribute.String(AttrStepTool, tool),
		attribute.Int64(AttrStepDurationMs, durationMs),
		attribute.Bool(AttrStepSuccess, success),
	}
}

// RoleCallAttributes returns attributes for a resilient role call span.
func RoleCallAttributes(role, outcome string, attempt int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRole, role),
	}
	if outcome != "" {
		attrs = append(attrs, attribute.String(AttrRoleOutcome, outcome))
	}
	if attempt > 0 {
		attrs = append(attrs, attribute.Int(AttrRoleAttempt, attempt))
	}
	return attrs
}

// TransitionAttributes returns attributes for a state machine transition.
func TransitionAttributes(state, event string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMachineState, state),
		attribute.String(AttrMachineEvent, event),
	}
}

// AuditAttributes returns attributes for the audit phase span.
func AuditAttributes(driftScore float64, severity string, anomalies int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Float64(AttrAuditDriftScore, driftScore),
	}
	if severity != "" {
		attrs = append(attrs, attribute.String(AttrAuditDriftSeverity, severity))
	}
	if anomalies > 0 {
		attrs = append(attrs, attribute.Int(AttrAuditAnomalies, anomalies))
	}
	return attrs
}

// MemoryAttributes returns attributes for the memory write span.
func MemoryAttributes(batchID string, items int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrMemoryItems, items),
	}
	if batchID != "" {
		attrs = append(attrs, attribute.String(AttrMemoryBatchID, batchID))
	}
	return attrs
}
