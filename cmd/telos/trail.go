// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/telos-ai/telos/pkg/audit"
	"github.com/telos-ai/telos/pkg/config"
)

func runTrail(ctx context.Context, flags globalFlags, args []string) {
	cmd := flag.NewFlagSet("trail", flag.ExitOnError)
	planID := cmd.String("plan", "", "Filter by plan ID")
	failed := cmd.Bool("failed", false, "Show only failed runs")
	limit := cmd.Int("limit", 20, "Maximum entries to show")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}

	cfg, err := config.LoadWithCLI(flags.ConfigArgs)
	if err != nil {
		fatal(fmt.Errorf("load config: %w", err))
	}
	if cfg.Trail.Driver == "memory" {
		fatal(fmt.Errorf("trail listing requires the sqlite driver"))
	}

	store, closeStore, err := openTrailStore(cfg.Trail)
	if err != nil {
		fatal(err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	filter := audit.Filter{PlanID: *planID, Limit: *limit}
	if *failed {
		success := false
		filter.Success = &success
	}

	entries, err := store.List(ctx, filter)
	if err != nil {
		fatal(fmt.Errorf("list trail: %w", err))
	}

	if flags.JSON {
		out, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(out))
		return
	}

	if len(entries) == 0 {
		fmt.Println("no runs recorded")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tRUN\tPLAN\tSTATUS\tSTEPS\tDURATION\tERROR")
	for _, entry := range entries {
		status := "ok"
		if !entry.Success {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%dms\t%s\n",
			entry.CreatedAt.Local().Format(time.RFC3339),
			entry.RunID, entry.PlanID, status, entry.Steps,
			entry.DurationMs, entry.Error)
	}
	w.Flush()
}
