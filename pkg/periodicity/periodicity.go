// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package periodicity detects eventual periodicity in a sequence of
// reduced polynomials.
//
// A sequence it[0], it[1], ... is eventually periodic with period p and
// preperiod m when m is the smallest index with it[m] == it[m+p] and p
// is minimal for that property. Detection uses the doubling trick: once
// 2k elements exist, it[2k-1] == it[k-1] certifies that a full period
// fits inside the first half, and the true (p, m) is recovered by
// checking the divisors of k at the midpoint and then scanning forward
// for the onset.
//
// Two detectors are provided: one over an in-memory slice, and one that
// reads history through a register so the resident working set stays
// bounded by half the sequence.
package periodicity

import (
	"context"

	"github.com/automorphis/beta-numbers/pkg/algebraic"
	"github.com/automorphis/beta-numbers/pkg/register"
)

// Result is a detected period and preperiod.
type Result struct {
	// P is the minimal period, >= 1.
	P int

	// M is the preperiod: the number of leading elements before the
	// first recurrence, >= 0.
	M int
}

// Divisors returns the positive divisors of k in ascending order.
// Divisors(0) is empty.
func Divisors(k int) []int {
	if k <= 0 {
		return nil
	}
	var ds []int
	for d := 1; d <= k/2; d++ {
		if k%d == 0 {
			ds = append(ds, d)
		}
	}
	return append(ds, k)
}

// PeriodicIndex folds an index into the canonical prefix of an
// eventually periodic sequence: indices below m+p map to themselves,
// later indices to m + (n-m) mod p.
func PeriodicIndex(n, p, m int) int {
	if n < m+p {
		return n
	}
	return m + (n-m)%p
}

// DetectSlice runs one detection attempt over a fully resident
// sequence.
//
// Description:
//
//	Cheap when it fails: odd lengths and failed midpoint checks return
//	immediately. On success the returned period is minimal and the
//	preperiod is the exact onset.
//
// Inputs:
//   - its: The sequence of reduced polynomials produced so far.
//
// Outputs:
//   - Result: The period and preperiod, valid only when ok.
//   - ok: Whether a recurrence was certified at this length.
func DetectSlice(its []algebraic.Polynomial) (Result, bool) {
	n := len(its)
	if n < 2 || n%2 != 0 {
		return Result{}, false
	}
	k := n / 2
	if !its[n-1].Equal(its[k-1]) {
		return Result{}, false
	}
	for _, d := range Divisors(k) {
		if !its[k-1].Equal(its[k-1+d]) {
			continue
		}
		m := 0
		for !its[m].Equal(its[m+d]) {
			m++
		}
		return Result{P: d, M: m}, true
	}
	// Unreachable: d = k always matches by the midpoint check.
	return Result{}, false
}

// DetectStored runs one detection attempt reading history through a
// register.
//
// Description:
//
//	The caller maintains a halfway cursor: a second iterator trailing at
//	half the main position. Only the two current polynomials are passed
//	in; everything else is read back from the register, which serves
//	unflushed data from its attached in-memory segments.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - reg: Register holding positions 0 through n-1 of the iterate data.
//   - num: The number the data belongs to.
//   - n: The current sequence length. Detection fires only on even n.
//   - half: its[n/2 - 1], tracked by the halfway cursor.
//   - last: its[n-1], the element just produced.
//
// Outputs:
//   - Result: The period and preperiod, valid only when ok.
//   - ok: Whether a recurrence was certified at this length.
//   - error: Non-nil if a register read fails.
func DetectStored(ctx context.Context, reg *register.Register, num *algebraic.Number, n int, half, last algebraic.Polynomial) (Result, bool, error) {
	if n < 2 || n%2 != 0 {
		return Result{}, false, nil
	}
	k := n / 2
	if !last.Equal(half) {
		return Result{}, false, nil
	}
	for _, d := range Divisors(k) {
		var cand algebraic.Polynomial
		if d == k {
			cand = last
		} else {
			var err error
			cand, err = reg.GetIterate(ctx, num, k-1+d)
			if err != nil {
				return Result{}, false, err
			}
		}
		if !half.Equal(cand) {
			continue
		}
		m, err := onset(ctx, reg, num, k, d)
		if err != nil {
			return Result{}, false, err
		}
		return Result{P: d, M: m}, true, nil
	}
	return Result{}, false, nil
}

// onset scans for the smallest m with its[m] == its[m+p], reading both
// strands range-wise to keep register round trips down.
func onset(ctx context.Context, reg *register.Register, num *algebraic.Number, k, p int) (int, error) {
	const chunk = 1024
	for lo := 0; lo < k; lo += chunk {
		hi := lo + chunk
		if hi > k {
			hi = k
		}
		a, err := reg.RangeIterates(ctx, num, lo, hi)
		if err != nil {
			return 0, err
		}
		b, err := reg.RangeIterates(ctx, num, lo+p, hi+p)
		if err != nil {
			return 0, err
		}
		for i := range a {
			if a[i].Equal(b[i]) {
				return lo + i, nil
			}
		}
	}
	// Unreachable: m <= k-1 whenever its[k-1] == its[k-1+p].
	return k - 1, nil
}
