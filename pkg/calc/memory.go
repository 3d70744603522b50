// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package calc

import (
	"sort"

	"github.com/shirou/gopsutil/v4/mem"
)

// memoryMonitor samples system memory and decides when the resident
// iterate history has to go.
//
// The decision is predictive: besides the hard floor check it keeps the
// recent declines in available memory and projects two sampling periods
// ahead using their median, so the switch happens before the floor is
// actually hit. The median makes one noisy sample (another process
// releasing memory) harmless.
type memoryMonitor struct {
	minFree uint64
	samples []int64
}

// maxSamples bounds the sliding window of availability samples.
const maxSamples = 16

func newMemoryMonitor(minFree uint64) *memoryMonitor {
	return &memoryMonitor{minFree: minFree}
}

// shouldSwitch samples available memory and reports whether
// register-backed detection should take over.
func (m *memoryMonitor) shouldSwitch() (bool, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return false, err
	}
	avail := int64(v.Available)
	m.samples = append(m.samples, avail)
	if len(m.samples) > maxSamples {
		m.samples = m.samples[1:]
	}

	if uint64(avail) < m.minFree {
		return true, nil
	}

	decline := m.medianDecline()
	if decline <= 0 {
		return false, nil
	}
	projected := avail - 2*decline
	return projected < int64(m.minFree), nil
}

// medianDecline returns the median per-period drop in availability over
// the window, or 0 with fewer than three samples.
func (m *memoryMonitor) medianDecline() int64 {
	if len(m.samples) < 3 {
		return 0
	}
	declines := make([]int64, 0, len(m.samples)-1)
	for i := 1; i < len(m.samples); i++ {
		declines = append(declines, m.samples[i-1]-m.samples[i])
	}
	sort.Slice(declines, func(i, j int) bool { return declines[i] < declines[j] })
	return declines[len(declines)/2]
}
