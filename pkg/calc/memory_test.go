// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package calc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMedianDecline verifies the projection statistic.
func TestMedianDecline(t *testing.T) {
	m := newMemoryMonitor(0)
	assert.Equal(t, int64(0), m.medianDecline(), "no samples")

	m.samples = []int64{100, 90}
	assert.Equal(t, int64(0), m.medianDecline(), "too few samples")

	m.samples = []int64{100, 90, 85}
	// Declines 10, 5; upper median is 10.
	assert.Equal(t, int64(10), m.medianDecline())

	// A single release spike does not dominate the median.
	m.samples = []int64{100, 92, 84, 200, 192}
	assert.Equal(t, int64(8), m.medianDecline())

	// Growing availability yields a non-positive median.
	m.samples = []int64{100, 110, 120, 130}
	assert.LessOrEqual(t, m.medianDecline(), int64(0))
}

// TestMedianDeclineWindow verifies the sliding window stays bounded.
func TestMedianDeclineWindow(t *testing.T) {
	m := newMemoryMonitor(0)
	for i := 0; i < 3*maxSamples; i++ {
		m.samples = append(m.samples, int64(i))
		if len(m.samples) > maxSamples {
			m.samples = m.samples[1:]
		}
	}
	assert.Len(t, m.samples, maxSamples)
}

// TestShouldSwitch verifies the floor check against real system
// readings.
func TestShouldSwitch(t *testing.T) {
	t.Run("no pressure with zero floor", func(t *testing.T) {
		m := newMemoryMonitor(0)
		sw, err := m.shouldSwitch()
		require.NoError(t, err)
		assert.False(t, sw)
	})

	t.Run("impossible floor forces the switch", func(t *testing.T) {
		m := newMemoryMonitor(math.MaxUint64)
		sw, err := m.shouldSwitch()
		require.NoError(t, err)
		assert.True(t, sw)
	})
}
