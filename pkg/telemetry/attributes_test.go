// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestRunAttributes(t *testing.T) {
	attrs := RunAttributes("run-123", "operator", "agent-1", 0.8)

	expected := map[string]any{
		AttrRunID:      "run-123",
		AttrRunSource:  "operator",
		AttrRunAgentID: "agent-1",
		AttrRunTrust:   0.8,
	}

	assertAttributes(t, attrs, expected)
}

func TestRunAttributesOmitsEmptyFields(t *testing.T) {
	attrs := RunAttributes("run-123", "", "", 0)
	for _, attr := range attrs {
		if string(attr.Key) == AttrRunSource || string(attr.Key) == AttrRunAgentID {
			t.Errorf("unexpected attribute %s", attr.Key)
		}
	}
}

func TestPlanAttributes(t *testing.T) {
	attrs := PlanAttributes("plan-1", "Summarize document", "approved", 3)

	expected := map[string]any{
		AttrPlanID:     "plan-1",
		AttrPlanGoal:   "Summarize document",
		AttrPlanStatus: "approved",
		AttrPlanSteps:  3,
	}

	assertAttributes(t, attrs, expected)
}

func TestPlanAttributesGoalTruncation(t *testing.T) {
	longGoal := strings.Repeat("g", 300)
	attrs := PlanAttributes("plan-1", longGoal, "draft", 0)

	for _, attr := range attrs {
		if string(attr.Key) == AttrPlanGoal {
			val := attr.Value.AsString()
			if len(val) > 204 { // 200 + "..."
				t.Errorf("goal not truncated: len=%d", len(val))
			}
		}
	}
}

func TestStepAttributes(t *testing.T) {
	attrs := StepAttributes("plan-1-step-1", "fetch", 42, true)

	expected := map[string]any{
		AttrStepRequestID:  "plan-1-step-1",
		AttrStepTool:       "fetch",
		AttrStepDurationMs: 42,
		AttrStepSuccess:    true,
	}

	assertAttributes(t, attrs, expected)
}

func TestRoleCallAttributes(t *testing.T) {
	attrs := RoleCallAttributes("executor", "failure", 2)

	expected := map[string]any{
		AttrRole:        "executor",
		AttrRoleOutcome: "failure",
		AttrRoleAttempt: 2,
	}

	assertAttributes(t, attrs, expected)
}

func TestTransitionAttributes(t *testing.T) {
	attrs := TransitionAttributes("planning", "plan_approved")

	expected := map[string]any{
		AttrMachineState: "planning",
		AttrMachineEvent: "plan_approved",
	}

	assertAttributes(t, attrs, expected)
}

func TestAuditAttributes(t *testing.T) {
	attrs := AuditAttributes(0.3, "low", 2)

	expected := map[string]any{
		AttrAuditDriftScore:    0.3,
		AttrAuditDriftSeverity: "low",
		AttrAuditAnomalies:     2,
	}

	assertAttributes(t, attrs, expected)
}

func TestMemoryAttributes(t *testing.T) {
	attrs := MemoryAttributes("batch-7", 4)

	expected := map[string]any{
		AttrMemoryBatchID: "batch-7",
		AttrMemoryItems:   4,
	}

	assertAttributes(t, attrs, expected)
}

// assertAttributes checks that expected key-value pairs exist in attrs
func assertAttributes(t *testing.T, attrs []attribute.KeyValue, expected map[string]any) {
	t.Helper()

	found := make(map[string]attribute.KeyValue)
	for _, attr := range attrs {
		found[string(attr.Key)] = attr
	}

	for key, expectedVal := range expected {
		attr, ok := found[key]
		if !ok {
			t.Errorf("missing attribute %s", key)
			continue
		}

		var actualVal any
		switch attr.Value.Type() {
		case attribute.STRING:
			actualVal = attr.Value.AsString()
		case attribute.INT64:
			actualVal = int(attr.Value.AsInt64())
		case attribute.FLOAT64:
			actualVal = attr.Value.AsFloat64()
		case attribute.BOOL:
			actualVal = attr.Value.AsBool()
		}

		if actualVal != expectedVal {
			t.Errorf("attribute %s: got %v, want %v", key, actualVal, expectedVal)
		}
	}
}
