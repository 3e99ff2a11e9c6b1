// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/telos-ai/telos/pkg/audit"
	"github.com/telos-ai/telos/pkg/config"
	"github.com/telos-ai/telos/pkg/core"
	"github.com/telos-ai/telos/pkg/engine"
	"github.com/telos-ai/telos/pkg/memory"
	"github.com/telos-ai/telos/pkg/memory/ollama"
	"github.com/telos-ai/telos/pkg/memory/qdrant"
	"github.com/telos-ai/telos/pkg/orchestrator"
	"github.com/telos-ai/telos/pkg/resilience"
	"github.com/telos-ai/telos/pkg/telemetry"
	"github.com/telos-ai/telos/pkg/toolexec"
)

func runRun(ctx context.Context, flags globalFlags, args []string) {
	cmd := flag.NewFlagSet("run", flag.ExitOnError)
	task := cmd.String("task", "", "Task description (required unless --plan is given)")
	planPath := cmd.String("plan", "", "Path to a YAML plan file")
	agentID := cmd.String("agent", "telos-agent", "Agent ID")
	source := cmd.String("source", string(core.SourceOperator), "Request source: operator|agent|scheduler|plugin")
	trust := cmd.Float64("trust", 1.0, "Source trust in [0,1]")
	noTelemetry := cmd.Bool("no-telemetry", false, "Disable telemetry output")
	watch := cmd.Bool("watch", false, "Reload config on change (adjusts log level live)")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	if *task == "" && *planPath == "" {
		fatal(fmt.Errorf("either --task or --plan is required"))
	}

	cfg, err := config.LoadWithCLI(flags.ConfigArgs)
	if err != nil {
		fatal(fmt.Errorf("load config: %w", err))
	}

	level := new(slog.LevelVar)
	level.Set(telemetry.LogLevel(cfg.Log.Level))
	log := telemetry.ConfigureSlogLeveled(os.Stderr, level, cfg.Log.Format)

	if *watch {
		watcher, err := config.WatchWithCLI(flags.ConfigArgs,
			config.WithWatchInterval(time.Second),
			config.WithWatchLogger(log))
		if err != nil {
			fatal(fmt.Errorf("watch config: %w", err))
		}
		watcher.OnChange(func(next *config.Config) {
			level.Set(telemetry.LogLevel(next.Log.Level))
			log.Info("config.reloaded.applied", "log_level", next.Log.Level)
		})
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	exporter := cfg.Telemetry.Exporter
	if *noTelemetry {
		exporter = "none"
	}
	shutdown, err := telemetry.InitWithConfig("telos", version, telemetry.Config{
		Exporter:     exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		fatal(fmt.Errorf("init telemetry: %w", err))
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("telemetry.shutdown.failed", "error", err)
		}
	}()

	orch, cleanup, err := buildOrchestrator(cfg, *planPath)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	req := &core.OrchestratedRequest{
		Task:          *task,
		Source:        core.SourceKind(*source),
		SourceTrust:   *trust,
		AgentID:       *agentID,
		ActionHandler: demoHandler,
	}
	if *task == "" {
		req.Task = "execute plan " + *planPath
	}

	result, err := orch.Execute(ctx, req)
	if err != nil {
		fatal(err)
	}
	printResult(result, flags.JSON)
	if !result.Success {
		os.Exit(1)
	}
}

// buildOrchestrator wires the kernel from config: resilience boundary,
// optional trail store, memory writer, workflow engine and MCP executor.
func buildOrchestrator(cfg *config.Config, planPath string) (*orchestrator.Orchestrator, func(), error) {
	metrics, err := telemetry.NewRoleMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("init metrics: %w", err)
	}

	boundary := resilience.NewBoundary(resilience.Config{
		CallTimeout:      cfg.Boundary.CallTimeout(),
		MaxRetries:       cfg.Boundary.MaxRetries,
		BackoffBase:      cfg.Boundary.BackoffBase(),
		FailureThreshold: cfg.Boundary.FailureThreshold,
		ResetWindow:      cfg.Boundary.ResetWindow(),
		MinSourceTrust:   cfg.Boundary.MinSourceTrust,
	}, resilience.NewCircuitStore(), metrics)

	opts := []orchestrator.Option{
		orchestrator.WithBoundary(boundary),
		orchestrator.WithSafeModeThreshold(cfg.SafeMode.ErrorThreshold),
		orchestrator.WithMetrics(metrics),
	}
	var closers []func()
	cleanup := func() {
		for _, fn := range closers {
			fn()
		}
	}

	if cfg.Trail.Enabled {
		store, closeStore, err := openTrailStore(cfg.Trail)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if closeStore != nil {
			closers = append(closers, closeStore)
		}
		opts = append(opts, orchestrator.WithTrailStore(store))
	}

	if cfg.Memory.Enabled {
		store, err := qdrant.New(cfg.Memory.QdrantAddr)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect qdrant: %w", err)
		}
		closers = append(closers, func() { store.Close() })
		embedder := ollama.NewEmbedder(cfg.Memory.OllamaURL, cfg.Memory.EmbedModel)
		writer, err := memory.NewWriter(store, embedder, cfg.Memory.Collection)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opts = append(opts, orchestrator.WithMemoryWriter(writer))
	}

	eng, err := buildWorkflowEngine(cfg.Workflow)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if eng != nil {
		opts = append(opts, orchestrator.WithWorkflowEngine(eng))
	}

	executor, closeExec, err := buildExecutor(cfg.Tools)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if closeExec != nil {
		closers = append(closers, closeExec)
	}

	planner, err := buildPlanner(planPath)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	orch, err := orchestrator.New(planner, executor, newOutputVerifier(), opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return orch, cleanup, nil
}

// buildWorkflowEngine maps the configured engine name onto an engine
// implementation. A nil engine means direct queue execution.
func buildWorkflowEngine(cfg config.WorkflowConfig) (engine.Engine, error) {
	switch cfg.Engine {
	case "", "none":
		return nil, nil
	case "inprocess":
		return engine.NewInProcessEngine(), nil
	case "temporal":
		return nil, fmt.Errorf("workflow engine %q requires an external client; set workflow.engine to inprocess or none", cfg.Engine)
	default:
		return nil, fmt.Errorf("unknown workflow engine %q (want inprocess or none)", cfg.Engine)
	}
}

func openTrailStore(cfg config.TrailConfig) (audit.TrailStore, func(), error) {
	switch cfg.Driver {
	case "memory":
		return audit.NewMemoryTrailStore(), nil, nil
	case "sqlite", "":
		db, err := sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open trail db: %w", err)
		}
		store, err := audit.NewSQLiteTrailStore(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown trail driver %q", cfg.Driver)
	}
}

func buildExecutor(cfg config.ToolsConfig) (core.Executor, func(), error) {
	if cfg.MCPEndpoint == "" {
		return toolexec.NewHandlerExecutor(), nil, nil
	}
	client, err := toolexec.NewClientWithStreamableHTTP(cfg.MCPEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mcp server %s: %w", cfg.MCPEndpoint, err)
	}
	executor, err := toolexec.NewMCPExecutor(client)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return executor, func() { client.Close() }, nil
}

func printResult(result *core.OrchestratedResult, asJSON bool) {
	if asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(out))
		return
	}

	status := "FAILED"
	if result.Success {
		status = "OK"
	}
	fmt.Printf("Run %s  plan=%s  steps=%d\n", status, result.Plan.ID, len(result.Executions))
	for i, exec := range result.Executions {
		mark := "✔"
		if !exec.Success {
			mark = "✘"
		}
		fmt.Printf("  %s %s (%s, %dms)", mark, exec.Tool, exec.RequestID, exec.DurationMs)
		if exec.Error != "" {
			fmt.Printf(" error: %s", exec.Error)
		}
		if i < len(result.VerificationReports) && !result.VerificationReports[i].OverallPassed {
			fmt.Printf(" verification failed: %v", result.VerificationReports[i].Issues)
		}
		fmt.Println()
	}
	if result.MemoryReport != nil {
		fmt.Printf("  memory: %d item(s) written (batch %s)\n",
			result.MemoryReport.ItemsWritten, result.MemoryReport.BatchID)
	}
	fmt.Printf("  drift: score=%.2f severity=%s\n",
		result.AuditReport.Drift.Score, result.AuditReport.Drift.Severity)
}

func demoHandler(_ context.Context, tool string, params map[string]any) (any, error) {
	switch tool {
	case "echo":
		if msg, ok := params["message"]; ok {
			return msg, nil
		}
		return "", nil
	case "time.now":
		return time.Now().UTC().Format(time.RFC3339), nil
	default:
		return fmt.Sprintf("%s completed", tool), nil
	}
}
