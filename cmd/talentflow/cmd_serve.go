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
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/talentflowhq/talentflow/cmd/talentflow/config"
	"github.com/talentflowhq/talentflow/services/agent"
	"github.com/talentflowhq/talentflow/services/ashby"
	"github.com/talentflowhq/talentflow/services/notify"
	"github.com/talentflowhq/talentflow/services/safety"
	"github.com/talentflowhq/talentflow/services/server"
	"github.com/talentflowhq/talentflow/services/slack"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Slack bot, alert scheduler, and ops server",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	closer := setupLogging("talentflow")
	defer closer()

	cfg, cfgPath, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := server.InitTracer(ctx, cfg.Server.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to set up the OTLP tracer: %v", err)
	}
	defer shutdownTracer(context.Background())

	// Secrets come from the environment only; the enclave keeps them out
	// of accidental dumps until each client needs its copy.
	ashbyKey := mustSecret("ASHBY_API_KEY")
	botToken := mustSecret("SLACK_BOT_TOKEN")
	appToken := mustSecret("SLACK_APP_TOKEN")
	openaiKey := mustSecret("OPENAI_API_KEY")

	ats, err := ashby.NewClient(reveal(ashbyKey))
	if err != nil {
		log.Fatalf("Failed to create the Ashby client: %v", err)
	}

	guard, err := safety.NewPolicyGuard(safety.GuardConfig{
		Mode:       safety.Mode(cfg.Safety.Mode),
		BatchLimit: cfg.Safety.BatchLimit,
	}, ashby.NewHiredLookup(ats))
	if err != nil {
		log.Fatalf("Failed to create the policy guard: %v", err)
	}

	ledger := safety.NewConfirmationLedger(safety.LedgerConfig{
		Timeout:       cfg.Safety.ConfirmTimeout,
		SweepInterval: cfg.Safety.SweepInterval,
	})

	llmCfg := openai.DefaultConfig(reveal(openaiKey))
	if cfg.LLM.BaseURL != "" {
		llmCfg.BaseURL = cfg.LLM.BaseURL
	}

	bot, err := agent.New(agent.Config{
		LLM:   openai.NewClientWithConfig(llmCfg),
		Model: cfg.LLM.Model,
		Ashby: ats,
		Guard: guard,
	})
	if err != nil {
		log.Fatalf("Failed to create the agent: %v", err)
	}

	slackClient, err := slack.NewClient(reveal(botToken), reveal(appToken))
	if err != nil {
		log.Fatalf("Failed to create the Slack client: %v", err)
	}
	handler := slack.NewHandler(slackClient, bot, bot.Executor(), ledger, cfg.Slack.BotUserID)
	listener := slack.NewListener(slackClient, handler)

	ops := server.New(cfg.Server.Addr, server.Deps{Guard: guard, Ledger: ledger})

	// Hot reload only touches the guard; everything else needs a restart.
	if err := config.Watch(ctx, cfgPath, func(next config.Config) {
		if err := guard.UpdateConfig(safety.GuardConfig{
			Mode:       safety.Mode(next.Safety.Mode),
			BatchLimit: next.Safety.BatchLimit,
		}); err != nil {
			slog.Warn("Rejected reloaded safety config", "error", err)
		}
	}); err != nil {
		log.Fatalf("Failed to watch the config file: %v", err)
	}

	if err := ledger.Start(ctx); err != nil {
		log.Fatalf("Failed to start the confirmation sweep: %v", err)
	}
	defer ledger.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ops.Run(ctx) })
	g.Go(func() error { return listener.Run(ctx) })

	if cfg.Notify.Enabled {
		minSev, err := notify.ParseSeverity(cfg.Notify.MinSeverity)
		if err != nil {
			log.Fatalf("Invalid notify.min_severity: %v", err)
		}
		scheduler := notify.NewScheduler(notify.SchedulerConfig{
			Interval:    cfg.Notify.Interval,
			ChannelID:   cfg.Slack.AlertChannel,
			MinSeverity: minSev,
		},
			notify.NewPipelineChecker(ats, cfg.Notify.StaleDays),
			slackClient,
			safety.NewCooldownTracker(cfg.Notify.Cooldown))
		if err := scheduler.Start(ctx); err != nil {
			log.Fatalf("Failed to start the alert scheduler: %v", err)
		}
		defer scheduler.Stop()
	}

	slog.Info("TalentFlow is up",
		"safety_mode", cfg.Safety.Mode,
		"batch_limit", cfg.Safety.BatchLimit,
		"ops_addr", cfg.Server.Addr)

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("Service exited: %v", err)
	}
	slog.Info("Shutting down")
}

func mustSecret(key string) config.Secret {
	s, err := config.SecretFromEnv(key)
	if err != nil {
		log.Fatalf("Missing credential: %v", err)
	}
	return s
}

func reveal(s config.Secret) string {
	v, err := s.Reveal()
	if err != nil {
		log.Fatalf("Failed to read credential: %v", err)
	}
	return v
}
