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

// TestNewPolynomialTrimsTrailingZeros verifies canonical form.
func TestNewPolynomialTrimsTrailingZeros(t *testing.T) {
	p := NewPolynomial(-1, -1, 1, 0, 0)
	assert.Equal(t, 2, p.Degree())
	assert.True(t, p.Equal(NewPolynomial(-1, -1, 1)))

	assert.True(t, NewPolynomial().IsZero())
	assert.True(t, NewPolynomial(0, 0).IsZero())
	assert.Equal(t, -1, NewPolynomial(0).Degree())
}

// TestPolynomialAccessors verifies coefficient access and copying.
func TestPolynomialAccessors(t *testing.T) {
	p := NewPolynomial(-1, -1, 1)

	assert.Equal(t, int64(-1), p.Coeff(0).Int64())
	assert.Equal(t, int64(1), p.Coeff(2).Int64())
	assert.Equal(t, int64(0), p.Coeff(5).Int64(), "past-degree coefficient is zero")
	assert.Equal(t, int64(0), p.Coeff(-1).Int64())
	assert.Equal(t, int64(1), p.LeadingCoeff().Int64())

	// Mutating a returned coefficient must not touch the polynomial.
	c := p.Coeff(0)
	c.SetInt64(99)
	assert.Equal(t, int64(-1), p.Coeff(0).Int64())

	cs := p.Coeffs()
	require.Len(t, cs, 3)
	cs[1].SetInt64(99)
	assert.Equal(t, int64(-1), p.Coeff(1).Int64())
}

// TestPolynomialMulX verifies multiplication by X.
func TestPolynomialMulX(t *testing.T) {
	p := NewPolynomial(-1, 1) // x - 1
	assert.True(t, p.MulX().Equal(NewPolynomial(0, -1, 1)))
	assert.True(t, Polynomial{}.MulX().IsZero())
}

// TestPolynomialSub verifies subtraction of polynomials and constants.
func TestPolynomialSub(t *testing.T) {
	p := NewPolynomial(0, -1, 1) // x^2 - x
	q := NewPolynomial(1, -1)    // 1 - x

	assert.True(t, p.Sub(q).Equal(NewPolynomial(-1, 0, 1)))
	assert.True(t, p.Sub(p).IsZero())

	assert.True(t, p.SubInt(big.NewInt(1)).Equal(NewPolynomial(-1, -1, 1)))
	assert.True(t, p.SubInt(big.NewInt(0)).Equal(p))
	assert.True(t, Polynomial{}.SubInt(big.NewInt(2)).Equal(NewPolynomial(-2)))
}

// TestPolynomialReduceMod verifies exact reduction by a monic modulus.
func TestPolynomialReduceMod(t *testing.T) {
	t.Run("golden ratio relation", func(t *testing.T) {
		// x^3 mod (x^2 - x - 1) = 2x + 1.
		m := NewPolynomial(-1, -1, 1)
		r, err := NewPolynomial(0, 0, 0, 1).ReduceMod(m)
		require.NoError(t, err)
		assert.True(t, r.Equal(NewPolynomial(1, 2)))
	})

	t.Run("quartic orbit step", func(t *testing.T) {
		// x^4 - x^3 - x^2 mod (x^4 - x^3 - x^2 - x + 1) = x - 1.
		m := NewPolynomial(1, -1, -1, -1, 1)
		r, err := NewPolynomial(0, 0, -1, -1, 1).ReduceMod(m)
		require.NoError(t, err)
		assert.True(t, r.Equal(NewPolynomial(-1, 1)))
	})

	t.Run("already reduced", func(t *testing.T) {
		m := NewPolynomial(-1, -1, 1)
		p := NewPolynomial(3, -2)
		r, err := p.ReduceMod(m)
		require.NoError(t, err)
		assert.True(t, r.Equal(p))
	})

	t.Run("exact multiple reduces to zero", func(t *testing.T) {
		m := NewPolynomial(-1, -1, 1)
		r, err := m.MulX().ReduceMod(m)
		require.NoError(t, err)
		assert.True(t, r.IsZero())
	})

	t.Run("non-monic modulus rejected", func(t *testing.T) {
		_, err := NewPolynomial(0, 0, 1).ReduceMod(NewPolynomial(-1, 2))
		assert.Error(t, err)
	})

	t.Run("constant modulus rejected", func(t *testing.T) {
		_, err := NewPolynomial(0, 1).ReduceMod(NewPolynomial(1))
		assert.Error(t, err)
	})
}

// TestPolynomialDerivative verifies the formal derivative.
func TestPolynomialDerivative(t *testing.T) {
	p := NewPolynomial(1, -1, -1, -1, 1) // x^4 - x^3 - x^2 - x + 1
	assert.True(t, p.Derivative().Equal(NewPolynomial(-1, -2, -3, 4)))
	assert.True(t, NewPolynomial(7).Derivative().IsZero())
	assert.True(t, Polynomial{}.Derivative().IsZero())
}

// TestPolynomialEval verifies Horner evaluation at the point's precision.
func TestPolynomialEval(t *testing.T) {
	p := NewPolynomial(-1, -1, 1) // x^2 - x - 1
	x := new(big.Float).SetPrec(64).SetInt64(2)
	v, _ := p.Eval(x).Float64()
	assert.InDelta(t, 1.0, v, 1e-15)

	zero := Polynomial{}.Eval(x)
	assert.Equal(t, 0, zero.Sign())
	assert.Equal(t, uint(64), zero.Prec())
}

// TestPolynomialString verifies conventional rendering.
func TestPolynomialString(t *testing.T) {
	assert.Equal(t, "x^2 - x - 1", NewPolynomial(-1, -1, 1).String())
	assert.Equal(t, "2x + 1", NewPolynomial(1, 2).String())
	assert.Equal(t, "x^6 - x^5 - 4x^4 - 6x^3 - 4x^2 - x + 1", NewPolynomial(1, -1, -4, -6, -4, -1, 1).String())
	assert.Equal(t, "0", Polynomial{}.String())
	assert.Equal(t, "-x^3 + x", NewPolynomial(0, 1, 0, -1).String())
}

// TestPolynomialCompactString verifies the storage key rendering.
func TestPolynomialCompactString(t *testing.T) {
	assert.Equal(t, "-1,-1,1", NewPolynomial(-1, -1, 1).CompactString())
	assert.Equal(t, "", Polynomial{}.CompactString())
}

// TestPolynomialGobRoundTrip verifies gob encoding survives zero and
// non-zero values.
func TestPolynomialGobRoundTrip(t *testing.T) {
	for _, p := range []Polynomial{
		NewPolynomial(1, -1, -1, -3, -1, -1, 1),
		NewPolynomial(-1, 1),
		{},
	} {
		data, err := p.GobEncode()
		require.NoError(t, err)
		var q Polynomial
		require.NoError(t, q.GobDecode(data))
		assert.True(t, p.Equal(q), "round trip of %s", p)
	}
}
