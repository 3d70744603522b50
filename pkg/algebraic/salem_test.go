// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package algebraic

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNumber(t *testing.T, coeffs ...int64) *Number {
	t.Helper()
	n, err := NewNumber(NewPolynomial(coeffs...), 53)
	require.NoError(t, err)
	return n
}

// TestConjugates verifies the root solver against the quadratic case.
func TestConjugates(t *testing.T) {
	n := mustNumber(t, -1, -1, 1)
	roots, err := n.Conjugates()
	require.NoError(t, err)
	require.Len(t, roots, 2)

	found := 0
	for _, z := range roots {
		assert.Less(t, math.Abs(imag(z)), conjTolerance)
		if math.Abs(real(z)-1.6180339887498949) < 1e-9 {
			found++
		}
		if math.Abs(real(z)+0.6180339887498949) < 1e-9 {
			found++
		}
	}
	assert.Equal(t, 2, found)
}

// TestIsSalem verifies classification against known numbers.
func TestIsSalem(t *testing.T) {
	cases := []struct {
		name   string
		coeffs []int64
		want   bool
	}{
		{"quartic salem", []int64{1, -1, -1, -1, 1}, true},
		{"sextic salem", []int64{1, -1, -1, -1, -1, -1, 1}, true},
		{"sextic salem with preperiod", []int64{1, -1, -1, -3, -1, -1, 1}, true},
		{"golden ratio too small degree", []int64{-1, -1, 1}, false},
		{"odd degree pisot", []int64{-1, 0, -1, 1}, false},
		{"fourth root of two", []int64{-2, 0, 0, 0, 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := mustNumber(t, tc.coeffs...).IsSalem()
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

// TestIsPerron verifies the dominant root check.
func TestIsPerron(t *testing.T) {
	cases := []struct {
		name   string
		coeffs []int64
		want   bool
	}{
		{"golden ratio", []int64{-1, -1, 1}, true},
		{"pisot cubic", []int64{-1, 0, -1, 1}, true},
		{"quartic salem", []int64{1, -1, -1, -1, 1}, true},
		{"square root of two", []int64{-2, 0, 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := mustNumber(t, tc.coeffs...).IsPerron()
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

// TestSexticScreen verifies the exact resolvent screen on hand-checked
// coefficient triples.
func TestSexticScreen(t *testing.T) {
	assert.True(t, sexticScreen(-1, -1, -1))
	assert.True(t, sexticScreen(-1, -1, -3))
	assert.True(t, sexticScreen(-1, -4, -6))
	assert.False(t, sexticScreen(0, 0, 0), "x^6 + 1 is cyclotomic")
	assert.False(t, sexticScreen(-5, 10, -13), "resolvent has the integer root 1")
}

// TestSexticSalems verifies the enumeration produces exactly Salem
// minimal polynomials.
func TestSexticSalems(t *testing.T) {
	_, err := SexticSalems(-1)
	assert.Error(t, err)

	polys, err := SexticSalems(1)
	require.NoError(t, err)
	require.NotEmpty(t, polys)

	contains := func(want Polynomial) bool {
		for _, p := range polys {
			if p.Equal(want) {
				return true
			}
		}
		return false
	}
	assert.True(t, contains(NewPolynomial(1, -1, -1, -1, -1, -1, 1)))
	assert.True(t, contains(NewPolynomial(1, -1, -1, -3, -1, -1, 1)))

	for _, p := range polys {
		require.Equal(t, 6, p.Degree())
		// Reciprocal: coefficients read the same from both ends.
		for i := 0; i <= 3; i++ {
			require.Equal(t, 0, p.Coeff(i).Cmp(p.Coeff(6-i)), "%s is not reciprocal", p)
		}
		n, err := NewNumber(p, 53)
		require.NoError(t, err)
		ok, err := n.IsSalem()
		require.NoError(t, err)
		assert.True(t, ok, "%s failed numerical verification", p)
	}
}

// TestDurandKernerResidual verifies every returned root is actually a
// root.
func TestDurandKernerResidual(t *testing.T) {
	n := mustNumber(t, 1, -1, -1, -3, -1, -1, 1)
	roots, err := n.Conjugates()
	require.NoError(t, err)
	require.Len(t, roots, 6)

	eval := func(z complex128) complex128 {
		acc := complex(0, 0)
		for i := 6; i >= 0; i-- {
			f, _ := n.MinPoly().Coeff(i).Float64()
			acc = acc*z + complex(f, 0)
		}
		return acc
	}
	for _, z := range roots {
		assert.Less(t, cmplx.Abs(eval(z)), 1e-8)
	}
}
