// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/talentflowhq/talentflow/cmd/talentflow/config"
	"github.com/talentflowhq/talentflow/pkg/logging"
)

var version = "0.3.0"

var (
	configPath string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "talentflow",
		Short: "A Slack recruiting agent for the Ashby ATS",
		Long: `TalentFlow is a chat agent that answers pipeline questions and
performs hiring-system changes behind a human confirmation step.`,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("talentflow", version)
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.talentflow/talentflow.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.AddCommand(serveCmd, checkCmd, setupCmd, versionCmd)
}

// loadConfig resolves the config path and loads it.
func loadConfig() (config.Config, string, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, "", err
		}
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

// setupLogging installs the default logger for a command run.
func setupLogging(service string) func() {
	_, closer, err := logging.Setup(logging.Config{
		Level:   logLevel,
		Service: service,
		LogDir:  os.Getenv("TALENTFLOW_LOG_DIR"),
	})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	return closer
}
