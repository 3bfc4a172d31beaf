// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/talentflowhq/talentflow/cmd/talentflow/config"
	"github.com/talentflowhq/talentflow/pkg/ux"
	"github.com/talentflowhq/talentflow/services/ashby"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively configure TalentFlow",
	Run:   runSetup,
}

func runSetup(cmd *cobra.Command, args []string) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			log.Fatalf("Could not resolve the config path: %v", err)
		}
	}

	cfg := config.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		existing, err := config.Load(path)
		if err == nil {
			cfg = existing
			ux.Info("Editing existing config at %s", path)
		}
	}

	mode := cfg.Safety.Mode
	batchLimit := strconv.Itoa(cfg.Safety.BatchLimit)
	alertChannel := cfg.Slack.AlertChannel
	staleDays := strconv.Itoa(cfg.Notify.StaleDays)
	notifyEnabled := cfg.Notify.Enabled
	model := cfg.LLM.Model

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Safety mode").
				Description("CONFIRM_ALL asks a human before every write; BATCH_LIMIT only before destructive ones.").
				Options(
					huh.NewOption("Confirm every write (recommended)", "CONFIRM_ALL"),
					huh.NewOption("Confirm destructive writes only", "BATCH_LIMIT"),
				).
				Value(&mode),
			huh.NewInput().
				Title("Batch limit").
				Description("Most records a single operation may touch (1-10).").
				Value(&batchLimit).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 || n > 10 {
						return fmt.Errorf("enter a number between 1 and 10")
					}
					return nil
				}),
			huh.NewInput().
				Title("LLM model").
				Value(&model),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable scheduled pipeline alerts?").
				Value(&notifyEnabled),
			huh.NewInput().
				Title("Alert channel id").
				Description("Slack channel for digests, e.g. C0123456789. Leave empty to skip.").
				Value(&alertChannel),
			huh.NewInput().
				Title("Stale threshold (days)").
				Value(&staleDays).
				Validate(func(s string) error {
					if n, err := strconv.Atoi(s); err != nil || n < 1 {
						return fmt.Errorf("enter a positive number of days")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		log.Fatalf("Setup aborted: %v", err)
	}

	cfg.Safety.Mode = mode
	cfg.Safety.BatchLimit, _ = strconv.Atoi(batchLimit)
	cfg.LLM.Model = model
	cfg.Notify.Enabled = notifyEnabled
	cfg.Notify.StaleDays, _ = strconv.Atoi(staleDays)
	cfg.Slack.AlertChannel = alertChannel

	if err := config.Save(path, cfg); err != nil {
		log.Fatalf("Failed to save the config: %v", err)
	}
	ux.Success("Config written to %s", path)

	verifyAshby()
}

// verifyAshby does a connectivity check when a key is available, so setup
// surfaces credential problems before the first serve.
func verifyAshby() {
	if os.Getenv("ASHBY_API_KEY") == "" {
		ux.Warn("ASHBY_API_KEY is not set; skipping the connectivity check")
		return
	}
	ats, err := ashby.NewClient(os.Getenv("ASHBY_API_KEY"))
	if err != nil {
		ux.Fail("Ashby client: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stages, err := ats.InterviewStages(ctx)
	if err != nil {
		ux.Fail("Could not reach Ashby: %v", err)
		return
	}
	ux.Success("Connected to Ashby, %d interview stages visible", len(stages))
	for _, s := range stages {
		ux.Info("  %s", s.Title)
	}
}
