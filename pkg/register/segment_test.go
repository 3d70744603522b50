// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package register

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automorphis/beta-numbers/pkg/algebraic"
)

func testNumber(t *testing.T, coeffs ...int64) *algebraic.Number {
	t.Helper()
	if len(coeffs) == 0 {
		coeffs = []int64{-1, -1, 1}
	}
	num, err := algebraic.NewNumber(algebraic.NewPolynomial(coeffs...), 53)
	require.NoError(t, err)
	return num
}

func digits(vs ...int64) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = big.NewInt(v)
	}
	return out
}

// TestSegmentConstructors verifies argument checks and input copying.
func TestSegmentConstructors(t *testing.T) {
	num := testNumber(t)

	_, err := NewDigitSegment(nil, 0, nil)
	assert.Error(t, err)
	_, err = NewIterateSegment(num, -1, nil)
	assert.Error(t, err)

	src := digits(1, 0)
	seg, err := NewDigitSegment(num, 3, src)
	require.NoError(t, err)
	assert.Equal(t, KindDigit, seg.Kind())
	assert.Equal(t, 3, seg.Start())
	assert.Equal(t, 2, seg.Len())
	assert.Equal(t, 5, seg.End())

	// The segment owns copies of the input digits.
	src[0].SetInt64(99)
	d, err := seg.DigitAt(3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.Int64())
}

// TestSegmentAccess verifies positional access and kind checks.
func TestSegmentAccess(t *testing.T) {
	num := testNumber(t)
	seg, err := NewDigitSegment(num, 10, digits(1, 1, 0))
	require.NoError(t, err)

	assert.True(t, seg.Contains(10))
	assert.True(t, seg.Contains(12))
	assert.False(t, seg.Contains(9))
	assert.False(t, seg.Contains(13))

	_, err = seg.DigitAt(13)
	assert.Error(t, err)
	_, err = seg.IterateAt(10)
	assert.Error(t, err, "digit segment holds no iterates")
	assert.Error(t, seg.AppendIterate(algebraic.NewPolynomial(-1, 1)))

	// Returned digits are copies.
	d, err := seg.DigitAt(11)
	require.NoError(t, err)
	d.SetInt64(42)
	d2, err := seg.DigitAt(11)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d2.Int64())
}

// TestSegmentAppend verifies buffer growth.
func TestSegmentAppend(t *testing.T) {
	num := testNumber(t)
	seg, err := NewIterateSegment(num, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, seg.Len())

	require.NoError(t, seg.AppendIterate(algebraic.NewPolynomial(-1, 1)))
	require.NoError(t, seg.AppendIterate(algebraic.Polynomial{}))
	assert.Equal(t, 2, seg.Len())

	b, err := seg.IterateAt(1)
	require.NoError(t, err)
	assert.True(t, b.IsZero())

	assert.Error(t, seg.AppendDigit(big.NewInt(1)))
}

// TestSegmentSlice verifies range copies carry completion stamps.
func TestSegmentSlice(t *testing.T) {
	num := testNumber(t)
	seg, err := NewDigitSegment(num, 0, digits(1, 1, 0, 0, 1))
	require.NoError(t, err)
	require.NoError(t, seg.markComplete(3, 0))

	sub, err := seg.Slice(1, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Start())
	assert.Equal(t, 3, sub.Len())
	p, m, ok := sub.Complete()
	assert.True(t, ok)
	assert.Equal(t, 3, p)
	assert.Equal(t, 0, m)

	d, err := sub.DigitAt(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.Int64())

	_, err = seg.Slice(3, 6)
	assert.Error(t, err)
	_, err = seg.Slice(4, 2)
	assert.Error(t, err)

	empty, err := seg.Slice(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

// TestSegmentTrimFront verifies releasing a flushed prefix.
func TestSegmentTrimFront(t *testing.T) {
	num := testNumber(t)
	seg, err := NewDigitSegment(num, 0, digits(1, 1, 0, 0))
	require.NoError(t, err)

	seg.TrimFront(0)
	assert.Equal(t, 0, seg.Start())

	seg.TrimFront(2)
	assert.Equal(t, 2, seg.Start())
	assert.Equal(t, 2, seg.Len())
	d, err := seg.DigitAt(2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), d.Int64())
	assert.False(t, seg.Contains(1))

	// Trimming past the end leaves an empty buffer positioned at n.
	seg.TrimFront(10)
	assert.Equal(t, 10, seg.Start())
	assert.Equal(t, 0, seg.Len())
}

// TestSegmentMarkComplete verifies stamp idempotence and conflicts.
func TestSegmentMarkComplete(t *testing.T) {
	num := testNumber(t)
	seg, err := NewDigitSegment(num, 0, digits(1, 1))
	require.NoError(t, err)

	_, _, ok := seg.Complete()
	assert.False(t, ok)

	require.NoError(t, seg.markComplete(3, 1))
	require.NoError(t, seg.markComplete(3, 1), "restamping with the same values is a no-op")
	assert.ErrorIs(t, seg.markComplete(4, 1), ErrCompletionConflict)
	assert.ErrorIs(t, seg.markComplete(3, 2), ErrCompletionConflict)

	p, m, ok := seg.Complete()
	assert.True(t, ok)
	assert.Equal(t, 3, p)
	assert.Equal(t, 1, m)
}

// TestSegmentTrimRedundant verifies truncation at the canonical prefix.
func TestSegmentTrimRedundant(t *testing.T) {
	num := testNumber(t)

	t.Run("incomplete is untouched", func(t *testing.T) {
		seg, err := NewDigitSegment(num, 0, digits(1, 1, 0, 0))
		require.NoError(t, err)
		assert.False(t, seg.trimRedundant())
		assert.Equal(t, 4, seg.Len())
	})

	t.Run("straddling the limit", func(t *testing.T) {
		seg, err := NewDigitSegment(num, 0, digits(1, 1, 0, 0, 1, 0))
		require.NoError(t, err)
		require.NoError(t, seg.markComplete(3, 1))
		assert.False(t, seg.trimRedundant())
		assert.Equal(t, 4, seg.Len(), "canonical prefix is m+p positions")
	})

	t.Run("entirely past the limit", func(t *testing.T) {
		seg, err := NewDigitSegment(num, 4, digits(1, 0))
		require.NoError(t, err)
		require.NoError(t, seg.markComplete(3, 1))
		assert.True(t, seg.trimRedundant())
		assert.Equal(t, 0, seg.Len())
	})

	t.Run("entirely inside the limit", func(t *testing.T) {
		seg, err := NewDigitSegment(num, 0, digits(1, 1, 0))
		require.NoError(t, err)
		require.NoError(t, seg.markComplete(3, 1))
		assert.False(t, seg.trimRedundant())
		assert.Equal(t, 3, seg.Len())
	})
}
