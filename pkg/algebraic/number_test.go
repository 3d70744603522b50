// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package algebraic

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewNumberValidation verifies constructor argument checks.
func TestNewNumberValidation(t *testing.T) {
	t.Run("not monic", func(t *testing.T) {
		_, err := NewNumber(NewPolynomial(-1, 2), 53)
		assert.ErrorIs(t, err, ErrNotMonic)
	})

	t.Run("constant polynomial", func(t *testing.T) {
		_, err := NewNumber(NewPolynomial(1), 53)
		assert.ErrorIs(t, err, ErrDegreeTooSmall)
	})

	t.Run("zero polynomial", func(t *testing.T) {
		_, err := NewNumber(Polynomial{}, 53)
		assert.ErrorIs(t, err, ErrDegreeTooSmall)
	})

	t.Run("precision too small", func(t *testing.T) {
		_, err := NewNumber(NewPolynomial(-1, -1, 1), MinPrec-1)
		assert.ErrorIs(t, err, ErrPrecTooSmall)
	})

	t.Run("valid", func(t *testing.T) {
		n, err := NewNumber(NewPolynomial(-1, -1, 1), 53)
		require.NoError(t, err)
		assert.Equal(t, 2, n.Degree())
		assert.Equal(t, uint(53), n.Prec())
	})
}

// TestNewNumberWithRoot verifies the root cache can be primed from a
// previously computed approximation.
func TestNewNumberWithRoot(t *testing.T) {
	poly := NewPolynomial(-1, -1, 1)
	base, err := NewNumber(poly, 64)
	require.NoError(t, err)
	root, err := base.Root()
	require.NoError(t, err)

	num, err := NewNumberWithRoot(poly, 64, root)
	require.NoError(t, err)
	got, err := num.Root()
	require.NoError(t, err)
	assert.Zero(t, root.Cmp(got))

	_, err = NewNumberWithRoot(poly, 64, nil)
	assert.Error(t, err)
	_, err = NewNumberWithRoot(poly, 64, big.NewFloat(1))
	assert.Error(t, err, "root must exceed 1")
	_, err = NewNumberWithRoot(NewPolynomial(1), 64, root)
	assert.ErrorIs(t, err, ErrDegreeTooSmall)
}

// TestNumberKey verifies the storage identifier format.
func TestNumberKey(t *testing.T) {
	n, err := NewNumber(NewPolynomial(-1, -1, 1), 53)
	require.NoError(t, err)
	assert.Equal(t, "-1,-1,1@53", n.Key())

	m, err := n.WithPrec(106)
	require.NoError(t, err)
	assert.Equal(t, "-1,-1,1@106", m.Key())
}

// rootDelta computes |root - expected| as a float64, where expected is
// a decimal literal.
func rootDelta(t *testing.T, n *Number, expected string) float64 {
	t.Helper()
	root, err := n.Root()
	require.NoError(t, err)
	want, _, err := big.ParseFloat(expected, 10, root.Prec(), big.ToNearestEven)
	require.NoError(t, err)
	diff, _ := new(big.Float).Sub(root, want).Float64()
	if diff < 0 {
		diff = -diff
	}
	return diff
}

// TestNumberRoot verifies the dominant root against known values.
func TestNumberRoot(t *testing.T) {
	cases := []struct {
		name   string
		coeffs []int64
		root   string
	}{
		{"golden ratio", []int64{-1, -1, 1}, "1.61803398874989484820458683436563811772"},
		{"smallest pisot cubic family", []int64{-1, 0, -1, 1}, "1.46557123187676802665673122521993910803"},
		{"quartic salem", []int64{1, -1, -1, -1, 1}, "1.72208380573904224502706921215383146207"},
		{"large sextic", []int64{1, -10, -40, -59, -40, -10, 1}, "13.345638433018788049366776249371"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := NewNumber(NewPolynomial(tc.coeffs...), 64)
			require.NoError(t, err)
			assert.Less(t, rootDelta(t, n, tc.root), 1e-15)
		})
	}
}

// TestNumberRootMissing verifies polynomials without a root beyond 1
// are rejected.
func TestNumberRootMissing(t *testing.T) {
	for _, coeffs := range [][]int64{
		{1, 1},    // x + 1, root -1
		{1, 0, 1}, // x^2 + 1, no real roots
	} {
		n, err := NewNumber(NewPolynomial(coeffs...), 53)
		require.NoError(t, err)
		_, err = n.Root()
		assert.ErrorIs(t, err, ErrNoDominantRoot)
	}
}

// TestNumberRootCached verifies the root is computed once and callers
// get independent copies.
func TestNumberRootCached(t *testing.T) {
	n, err := NewNumber(NewPolynomial(-1, -1, 1), 53)
	require.NoError(t, err)

	a, err := n.Root()
	require.NoError(t, err)
	b, err := n.Root()
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 0, a.Cmp(b))

	// Mutating a copy must not poison the cache.
	a.SetInt64(0)
	c, err := n.Root()
	require.NoError(t, err)
	assert.Equal(t, 0, b.Cmp(c))
}

// TestNumberWithPrec verifies precision doubling keeps the root stable.
func TestNumberWithPrec(t *testing.T) {
	n, err := NewNumber(NewPolynomial(1, -1, -1, -1, 1), 53)
	require.NoError(t, err)
	m, err := n.WithPrec(106)
	require.NoError(t, err)

	coarse, err := n.Root()
	require.NoError(t, err)
	fine, err := m.Root()
	require.NoError(t, err)

	diff, _ := new(big.Float).Sub(coarse, fine).Float64()
	assert.InDelta(t, 0, diff, 1e-14)
	assert.Equal(t, uint(106), fine.Prec())
}
