// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/talentflowhq/talentflow/pkg/ux"
	"github.com/talentflowhq/talentflow/services/ashby"
	"github.com/talentflowhq/talentflow/services/notify"
)

var checkStaleDays int

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a one-shot pipeline health check in the terminal",
	Run:   runCheck,
}

func init() {
	checkCmd.Flags().IntVar(&checkStaleDays, "stale-days", 0, "days-in-stage threshold (default from config)")
}

func runCheck(cmd *cobra.Command, args []string) {
	closer := setupLogging("talentflow-check")
	defer closer()

	cfg, _, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	staleDays := cfg.Notify.StaleDays
	if checkStaleDays > 0 {
		staleDays = checkStaleDays
	}

	ats, err := ashby.NewClient(reveal(mustSecret("ASHBY_API_KEY")))
	if err != nil {
		log.Fatalf("Failed to create the Ashby client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ux.Title("Pipeline overview")
	summary, err := ats.PipelineSummary(ctx)
	if err != nil {
		log.Fatalf("Pipeline summary failed: %v", err)
	}
	ux.Info("%d active applications across %d open jobs", summary.TotalActive, summary.OpenJobs)

	stages := make([]string, 0, len(summary.ByStage))
	for s := range summary.ByStage {
		stages = append(stages, s)
	}
	sort.Strings(stages)
	for _, s := range stages {
		ux.Info("%-30s %d", s, summary.ByStage[s])
	}

	ux.Title("Alerts (stale > %d days)", staleDays)
	alerts, err := notify.NewPipelineChecker(ats, staleDays).Check(ctx)
	if err != nil {
		log.Fatalf("Pipeline check failed: %v", err)
	}
	if len(alerts) == 0 {
		ux.Success("Pipeline is healthy, nothing stuck")
		return
	}
	for _, a := range alerts {
		switch a.Severity {
		case notify.SeverityCritical:
			ux.Fail("%s", a.Message)
		case notify.SeverityWarning:
			ux.Warn("%s", a.Message)
		default:
			ux.Info("%s", a.Message)
		}
	}
}
