// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/telos-ai/telos/pkg/core"
)

func TestBuildPlannerFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	content := `goals:
  - "collect weather data"
steps:
  - id: lookup
    tool: weather.lookup
    params:
      city: Oslo
  - tool: echo
    params:
      message: done
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	planner, err := buildPlanner(path)
	if err != nil {
		t.Fatalf("buildPlanner error: %v", err)
	}

	plan, err := planner.CreatePlan(context.Background(), &core.OrchestratedRequest{Task: "ignored"})
	if err != nil {
		t.Fatalf("CreatePlan error: %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(plan.Steps))
	}
	if plan.Steps[0].ID != "lookup" || plan.Steps[0].Tool != "weather.lookup" {
		t.Errorf("first step wrong: %+v", plan.Steps[0])
	}
	if plan.Steps[0].Params["city"] != "Oslo" {
		t.Errorf("params not carried: %v", plan.Steps[0].Params)
	}
	if plan.Steps[1].ID != "step-2" {
		t.Errorf("missing step id not defaulted: %q", plan.Steps[1].ID)
	}
	if plan.Goals[0] != "collect weather data" {
		t.Errorf("goals not carried: %v", plan.Goals)
	}

	validation, err := planner.ValidatePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("ValidatePlan error: %v", err)
	}
	if !validation.Valid {
		t.Errorf("expected valid plan, issues: %v", validation.Issues)
	}
}

func TestBuildPlannerRejectsEmptyPlanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte("goals: [a]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := buildPlanner(path); err == nil {
		t.Fatal("expected error for plan file without steps")
	}
}

func TestTaskPlannerBuildsEchoStep(t *testing.T) {
	planner, err := buildPlanner("")
	if err != nil {
		t.Fatalf("buildPlanner error: %v", err)
	}
	plan, err := planner.CreatePlan(context.Background(), &core.OrchestratedRequest{Task: "say hello"})
	if err != nil {
		t.Fatalf("CreatePlan error: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Tool != "echo" {
		t.Fatalf("unexpected plan: %+v", plan.Steps)
	}
	if plan.Steps[0].Params["message"] != "say hello" {
		t.Errorf("task not threaded into params: %v", plan.Steps[0].Params)
	}
}

func TestValidatePlanShapeFlagsBadSteps(t *testing.T) {
	plan := core.NewExecutionPlan([]string{"goal"}, []core.PlanStep{
		{ID: "a", Tool: "echo"},
		{ID: "a", Tool: ""},
	})
	validation := validatePlanShape(plan)
	if validation.Valid {
		t.Fatal("expected invalid plan")
	}
	if len(validation.Issues) != 2 {
		t.Errorf("expected 2 issues, got %v", validation.Issues)
	}
}

func TestOutputVerifier(t *testing.T) {
	verifier := newOutputVerifier()

	tests := []struct {
		name   string
		result core.PipelineResult
		passed bool
	}{
		{"success with output", core.PipelineResult{RequestID: "r1", Success: true, Result: "out"}, true},
		{"failed execution", core.PipelineResult{RequestID: "r2", Success: false, Error: "boom"}, false},
		{"success without output", core.PipelineResult{RequestID: "r3", Success: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := verifier.Verify(context.Background(), tt.result)
			if err != nil {
				t.Fatalf("Verify error: %v", err)
			}
			if report.OverallPassed != tt.passed {
				t.Errorf("passed = %v, want %v (issues %v)", report.OverallPassed, tt.passed, report.Issues)
			}
			if report.RequestID != tt.result.RequestID {
				t.Errorf("report not correlated: %q", report.RequestID)
			}
		})
	}
}

func TestParseGlobalFlags(t *testing.T) {
	flags, rest, err := parseGlobalFlags([]string{"--json", "--config", "telos.yaml", "run", "--task", "x"})
	if err != nil {
		t.Fatalf("parseGlobalFlags error: %v", err)
	}
	if !flags.JSON {
		t.Error("json flag not set")
	}
	if len(flags.ConfigArgs) != 2 || flags.ConfigArgs[1] != "telos.yaml" {
		t.Errorf("config args wrong: %v", flags.ConfigArgs)
	}
	if len(rest) != 3 || rest[0] != "run" {
		t.Errorf("remaining args wrong: %v", rest)
	}
}

func TestDemoHandler(t *testing.T) {
	out, err := demoHandler(context.Background(), "echo", map[string]any{"message": "hi"})
	if err != nil || out != "hi" {
		t.Fatalf("echo: out=%v err=%v", out, err)
	}
	out, err = demoHandler(context.Background(), "deploy", nil)
	if err != nil || out != "deploy completed" {
		t.Fatalf("default: out=%v err=%v", out, err)
	}
}
