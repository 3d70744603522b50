// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/automorphis/beta-numbers/pkg/algebraic"
	"github.com/automorphis/beta-numbers/pkg/calc"
)

// Config is the CLI configuration, loadable from a YAML file and
// overridable by flags.
type Config struct {
	// DBPath is the register database directory.
	DBPath string `yaml:"db_path" json:"db_path"`

	// InMemory runs against a throwaway in-memory register.
	InMemory bool `yaml:"in_memory" json:"in_memory"`

	// LogDir enables JSON file logging.
	LogDir string `yaml:"log_dir" json:"log_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// Prec is the starting root precision in bits.
	Prec uint `yaml:"prec" json:"prec" validate:"gte=16"`

	// MaxN is the step budget per number.
	MaxN int `yaml:"max_n" json:"max_n" validate:"gt=0"`

	// MaxRestarts bounds precision-doubling restarts.
	MaxRestarts int `yaml:"max_restarts" json:"max_restarts" validate:"gte=0"`

	// SavePeriod is the flush interval in positions.
	SavePeriod int `yaml:"save_period" json:"save_period" validate:"gte=0"`

	// MemoryCheckPeriod is the memory sampling interval in steps.
	MemoryCheckPeriod int `yaml:"memory_check_period" json:"memory_check_period" validate:"gte=0"`

	// MinFreeMB is the free-memory floor in MiB.
	MinFreeMB uint64 `yaml:"min_free_mb" json:"min_free_mb"`
}

// DefaultCLIConfig returns the defaults used when no config file or
// flag overrides a field.
func DefaultCLIConfig() Config {
	runCfg := calc.DefaultConfig()
	return Config{
		DBPath:            "~/.betaorbit/db",
		LogLevel:          "info",
		Prec:              330,
		MaxN:              1 << 20,
		MaxRestarts:       runCfg.MaxRestarts,
		SavePeriod:        runCfg.SavePeriod,
		MemoryCheckPeriod: runCfg.MemoryCheckPeriod,
		MinFreeMB:         runCfg.MinFreeBytes >> 20,
	}
}

// Load merges a YAML config file, if present, over the defaults.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !c.InMemory && c.DBPath == "" {
		return fmt.Errorf("db_path is required unless in_memory is set")
	}
	return nil
}

// calcConfig converts the CLI configuration to a run configuration.
func (c *Config) calcConfig() calc.Config {
	return calc.Config{
		MaxN:              c.MaxN,
		MaxRestarts:       c.MaxRestarts,
		SavePeriod:        c.SavePeriod,
		MemoryCheckPeriod: c.MemoryCheckPeriod,
		MinFreeBytes:      c.MinFreeMB << 20,
	}
}

// parsePoly parses a comma-separated coefficient list, constant term
// first, into a polynomial, e.g. "-1,-1,1" for x^2 - x - 1.
func parsePoly(s string) (algebraic.Polynomial, error) {
	parts := strings.Split(s, ",")
	coeffs := make([]*big.Int, 0, len(parts))
	for _, part := range parts {
		c, ok := new(big.Int).SetString(strings.TrimSpace(part), 10)
		if !ok {
			return algebraic.Polynomial{}, fmt.Errorf("bad coefficient %q in %q", part, s)
		}
		coeffs = append(coeffs, c)
	}
	return algebraic.NewPolynomialBig(coeffs), nil
}
