// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/telos-ai/telos/pkg/core"
)

// planFile is the YAML shape accepted by `telos run --plan`.
type planFile struct {
	Goals []string `yaml:"goals"`
	Steps []struct {
		ID     string         `yaml:"id"`
		Tool   string         `yaml:"tool"`
		Params map[string]any `yaml:"params"`
	} `yaml:"steps"`
}

func buildPlanner(planPath string) (core.Planner, error) {
	if planPath == "" {
		return &taskPlanner{}, nil
	}
	data, err := os.ReadFile(planPath)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	var file planFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse plan file %s: %w", planPath, err)
	}
	if len(file.Steps) == 0 {
		return nil, fmt.Errorf("plan file %s has no steps", planPath)
	}
	return &filePlanner{file: file}, nil
}

// taskPlanner turns a bare task description into a single echo step.
type taskPlanner struct{}

func (p *taskPlanner) CreatePlan(_ context.Context, req *core.OrchestratedRequest) (*core.ExecutionPlan, error) {
	steps := []core.PlanStep{{
		ID:     "step-1",
		Tool:   "echo",
		Params: map[string]any{"message": req.Task},
	}}
	return core.NewExecutionPlan([]string{req.Task}, steps), nil
}

func (p *taskPlanner) ValidatePlan(_ context.Context, plan *core.ExecutionPlan) (core.PlanValidation, error) {
	return validatePlanShape(plan), nil
}

// filePlanner produces a fresh plan from a YAML plan file on every run.
type filePlanner struct {
	file planFile
}

func (p *filePlanner) CreatePlan(_ context.Context, req *core.OrchestratedRequest) (*core.ExecutionPlan, error) {
	goals := p.file.Goals
	if len(goals) == 0 {
		goals = []string{req.Task}
	}
	steps := make([]core.PlanStep, len(p.file.Steps))
	for i, step := range p.file.Steps {
		id := step.ID
		if id == "" {
			id = fmt.Sprintf("step-%d", i+1)
		}
		steps[i] = core.PlanStep{ID: id, Tool: step.Tool, Params: step.Params}
	}
	return core.NewExecutionPlan(goals, steps), nil
}

func (p *filePlanner) ValidatePlan(_ context.Context, plan *core.ExecutionPlan) (core.PlanValidation, error) {
	return validatePlanShape(plan), nil
}

func validatePlanShape(plan *core.ExecutionPlan) core.PlanValidation {
	var issues []string
	seen := make(map[string]bool, len(plan.Steps))
	for i, step := range plan.Steps {
		if strings.TrimSpace(step.Tool) == "" {
			issues = append(issues, fmt.Sprintf("step %d has no tool", i+1))
		}
		if seen[step.ID] {
			issues = append(issues, "duplicate step id "+step.ID)
		}
		seen[step.ID] = true
	}
	return core.PlanValidation{Valid: len(issues) == 0, Issues: issues}
}

// outputVerifier passes an execution when it succeeded and produced output.
type outputVerifier struct{}

func newOutputVerifier() *outputVerifier {
	return &outputVerifier{}
}

func (v *outputVerifier) Verify(_ context.Context, result core.PipelineResult) (core.VerificationReport, error) {
	report := core.VerificationReport{RequestID: result.RequestID, OverallPassed: true}
	if !result.Success {
		report.OverallPassed = false
		report.Issues = append(report.Issues, "execution failed: "+result.Error)
	} else if result.Result == nil {
		report.OverallPassed = false
		report.Issues = append(report.Issues, "execution produced no output")
	}
	return report, nil
}
