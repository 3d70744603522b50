// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command betaorbit computes beta expansion orbits of algebraic
// numbers and detects their eventual periodicity, persisting digits
// and orbit iterates in a disk-backed register so long calculations
// survive restarts.
package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/automorphis/beta-numbers/pkg/logging"
	"github.com/automorphis/beta-numbers/pkg/register"
)

var (
	config     Config
	configPath string
	logger     *logging.Logger
)

func init() {
	config = DefaultCLIConfig()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "betaorbit.yaml", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&config.DBPath, "db", config.DBPath, "Register database directory")
	rootCmd.PersistentFlags().BoolVar(&config.InMemory, "in-memory", config.InMemory, "Use a throwaway in-memory register")
	rootCmd.PersistentFlags().StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&config.LogDir, "log-dir", config.LogDir, "Directory for JSON log files")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		fileCfg := DefaultCLIConfig()
		if err := fileCfg.Load(configPath); err != nil {
			return err
		}
		// Flags set on the command line win over the file.
		flags := rootCmd.PersistentFlags()
		if flags.Changed("db") {
			fileCfg.DBPath = config.DBPath
		}
		if flags.Changed("in-memory") {
			fileCfg.InMemory = config.InMemory
		}
		if flags.Changed("log-level") {
			fileCfg.LogLevel = config.LogLevel
		}
		if flags.Changed("log-dir") {
			fileCfg.LogDir = config.LogDir
		}
		config = fileCfg
		if err := config.Validate(); err != nil {
			return err
		}

		logger = logging.New(logging.Config{
			Level:   parseLevel(config.LogLevel),
			LogDir:  config.LogDir,
			Service: "betaorbit",
		})
		return nil
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(rangesCmd)
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// openRegister opens the register named by the configuration.
func openRegister() (*register.Register, error) {
	if config.InMemory {
		cfg := register.InMemoryConfig()
		cfg.Logger = logger.Slog()
		return register.Open(cfg)
	}
	path := config.DBPath
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, path[1:])
	}
	cfg := register.DefaultConfig()
	cfg.Path = path
	cfg.Logger = logger.Slog()
	return register.Open(cfg)
}

func main() {
	defer func() {
		if logger != nil {
			logger.Close()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("betaorbit: %v", err)
	}
}
