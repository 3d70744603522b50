// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package calc drives a full periodicity calculation: it runs the
// expansion iterator, buffers and flushes orbit data through a
// register, watches memory, detects periodicity, and restarts at
// doubled precision when a digit proves indeterminate.
package calc

import (
	"errors"
)

// Config configures one calculation run.
type Config struct {
	// MaxN is the number of expansion steps to attempt before giving
	// up with OutcomeExhausted. Required, > 0.
	MaxN int `yaml:"max_n" json:"max_n"`

	// MaxRestarts is how many precision-doubling restarts are allowed
	// after accuracy failures before the run ends with
	// OutcomePrecisionFailed. Default: 1.
	MaxRestarts int `yaml:"max_restarts" json:"max_restarts"`

	// SavePeriod is how many produced positions accumulate before the
	// unflushed tail is written to the register. Set to 0 to flush only
	// at the end of the run. Default: 10000.
	SavePeriod int `yaml:"save_period" json:"save_period"`

	// MemoryCheckPeriod is how many steps pass between memory samples
	// while the full iterate history is resident. Set to 0 to disable
	// sampling (the run then stays resident). Default: 100000.
	MemoryCheckPeriod int `yaml:"memory_check_period" json:"memory_check_period"`

	// MinFreeBytes is the free-memory floor. When sampling predicts the
	// floor will be crossed, detection switches to register-backed mode
	// and the resident history is released. Default: 512 MiB.
	MinFreeBytes uint64 `yaml:"min_free_bytes" json:"min_free_bytes"`

	// StoredDetection forces register-backed detection from the first
	// step instead of waiting for memory pressure.
	StoredDetection bool `yaml:"stored_detection" json:"stored_detection"`
}

// DefaultConfig returns sensible defaults for unattended runs.
func DefaultConfig() Config {
	return Config{
		MaxRestarts:       1,
		SavePeriod:        10000,
		MemoryCheckPeriod: 100000,
		MinFreeBytes:      512 << 20,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxN <= 0 {
		return errors.New("max_n must be positive")
	}
	if c.MaxRestarts < 0 {
		return errors.New("max_restarts must be non-negative")
	}
	if c.SavePeriod < 0 {
		return errors.New("save_period must be non-negative")
	}
	if c.MemoryCheckPeriod < 0 {
		return errors.New("memory_check_period must be non-negative")
	}
	return nil
}
