// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package algebraic provides exact integer polynomial arithmetic and
// algebraic numbers given by their minimal polynomials.
//
// Polynomials carry arbitrary-precision integer coefficients and are the
// exact half of the engine: reduced polynomials computed here are never
// subject to rounding. Floating-point evaluation happens only when a
// polynomial is evaluated at an approximate root, and the caller controls
// the precision of that evaluation through big.Float.
package algebraic

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/big"
	"strings"
)

// Polynomial is an integer polynomial with coefficients stored from the
// constant term upward. The zero polynomial has no coefficients and
// degree -1.
//
// Polynomial values are immutable: every operation returns a new value
// and never mutates its receiver or arguments.
//
// Thread Safety: Safe for concurrent reads. Do not mutate the slices
// returned by Coeffs while sharing a value across goroutines.
type Polynomial struct {
	// coeffs[i] is the coefficient of X^i. Invariant: the last entry,
	// if any, is non-zero.
	coeffs []*big.Int
}

// NewPolynomial builds a polynomial from int64 coefficients, constant
// term first. Trailing zeros are trimmed, so NewPolynomial(0) and
// NewPolynomial() both yield the zero polynomial.
func NewPolynomial(coeffs ...int64) Polynomial {
	cs := make([]*big.Int, len(coeffs))
	for i, c := range coeffs {
		cs[i] = big.NewInt(c)
	}
	return newFromOwned(cs)
}

// NewPolynomialBig builds a polynomial from big.Int coefficients,
// constant term first. The coefficients are copied.
func NewPolynomialBig(coeffs []*big.Int) Polynomial {
	cs := make([]*big.Int, len(coeffs))
	for i, c := range coeffs {
		cs[i] = new(big.Int).Set(c)
	}
	return newFromOwned(cs)
}

// newFromOwned wraps a coefficient slice the caller relinquishes.
func newFromOwned(cs []*big.Int) Polynomial {
	for len(cs) > 0 && cs[len(cs)-1].Sign() == 0 {
		cs = cs[:len(cs)-1]
	}
	return Polynomial{coeffs: cs}
}

// Degree returns the degree of the polynomial, or -1 for the zero
// polynomial.
func (p Polynomial) Degree() int {
	return len(p.coeffs) - 1
}

// IsZero reports whether p is the zero polynomial.
func (p Polynomial) IsZero() bool {
	return len(p.coeffs) == 0
}

// Coeff returns a copy of the coefficient of X^i. Indices beyond the
// degree yield zero.
func (p Polynomial) Coeff(i int) *big.Int {
	if i < 0 || i >= len(p.coeffs) {
		return new(big.Int)
	}
	return new(big.Int).Set(p.coeffs[i])
}

// LeadingCoeff returns a copy of the leading coefficient, or zero for
// the zero polynomial.
func (p Polynomial) LeadingCoeff() *big.Int {
	return p.Coeff(p.Degree())
}

// Coeffs returns a copy of the coefficient slice, constant term first.
// The zero polynomial yields an empty slice.
func (p Polynomial) Coeffs() []*big.Int {
	cs := make([]*big.Int, len(p.coeffs))
	for i, c := range p.coeffs {
		cs[i] = new(big.Int).Set(c)
	}
	return cs
}

// Equal reports whether p and q have identical coefficients.
func (p Polynomial) Equal(q Polynomial) bool {
	if len(p.coeffs) != len(q.coeffs) {
		return false
	}
	for i := range p.coeffs {
		if p.coeffs[i].Cmp(q.coeffs[i]) != 0 {
			return false
		}
	}
	return true
}

// MulX returns X * p.
func (p Polynomial) MulX() Polynomial {
	if p.IsZero() {
		return Polynomial{}
	}
	cs := make([]*big.Int, len(p.coeffs)+1)
	cs[0] = new(big.Int)
	for i, c := range p.coeffs {
		cs[i+1] = new(big.Int).Set(c)
	}
	return Polynomial{coeffs: cs}
}

// SubInt returns p - c for an integer constant c.
func (p Polynomial) SubInt(c *big.Int) Polynomial {
	if c.Sign() == 0 {
		return p
	}
	cs := p.Coeffs()
	if len(cs) == 0 {
		cs = []*big.Int{new(big.Int)}
	}
	cs[0].Sub(cs[0], c)
	return newFromOwned(cs)
}

// Sub returns p - q.
func (p Polynomial) Sub(q Polynomial) Polynomial {
	n := len(p.coeffs)
	if len(q.coeffs) > n {
		n = len(q.coeffs)
	}
	cs := make([]*big.Int, n)
	for i := range cs {
		cs[i] = new(big.Int)
		if i < len(p.coeffs) {
			cs[i].Set(p.coeffs[i])
		}
		if i < len(q.coeffs) {
			cs[i].Sub(cs[i], q.coeffs[i])
		}
	}
	return newFromOwned(cs)
}

// ReduceMod returns the remainder of p modulo a monic polynomial m.
//
// Description:
//
//	Repeatedly cancels the leading term of p against m until the degree
//	drops below deg(m). Because m is monic this is exact integer
//	arithmetic with no division.
//
// Inputs:
//   - m: The monic modulus. Must have degree >= 1 and leading
//     coefficient 1.
//
// Outputs:
//   - Polynomial: p mod m, with degree < deg(m).
//   - error: Non-nil if m is not monic of positive degree.
func (p Polynomial) ReduceMod(m Polynomial) (Polynomial, error) {
	if m.Degree() < 1 || m.LeadingCoeff().Cmp(bigOne) != 0 {
		return Polynomial{}, fmt.Errorf("modulus %v is not monic of positive degree", m)
	}
	r := p.Coeffs()
	for len(r)-1 >= m.Degree() {
		lead := r[len(r)-1]
		shift := len(r) - 1 - m.Degree()
		if lead.Sign() != 0 {
			for i, mc := range m.coeffs {
				tmp := new(big.Int).Mul(lead, mc)
				r[shift+i].Sub(r[shift+i], tmp)
			}
		}
		r = r[:len(r)-1]
	}
	return newFromOwned(r), nil
}

// Derivative returns the formal derivative of p.
func (p Polynomial) Derivative() Polynomial {
	if p.Degree() < 1 {
		return Polynomial{}
	}
	cs := make([]*big.Int, p.Degree())
	for i := 1; i < len(p.coeffs); i++ {
		cs[i-1] = new(big.Int).Mul(p.coeffs[i], big.NewInt(int64(i)))
	}
	return newFromOwned(cs)
}

// Eval evaluates p at x using Horner's rule.
//
// Description:
//
//	The result carries the precision of x. Coefficients are converted to
//	big.Float at that precision, so the rounding error is the usual
//	Horner bound at x's precision.
//
// Inputs:
//   - x: The evaluation point. Must not be nil.
//
// Outputs:
//   - *big.Float: p(x) at x's precision.
func (p Polynomial) Eval(x *big.Float) *big.Float {
	prec := x.Prec()
	acc := new(big.Float).SetPrec(prec)
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		acc.Mul(acc, x)
		c := new(big.Float).SetPrec(prec).SetInt(p.coeffs[i])
		acc.Add(acc, c)
	}
	return acc
}

// String renders the polynomial in conventional form, highest power
// first, e.g. "x^2 - x - 1". The zero polynomial renders as "0".
func (p Polynomial) String() string {
	if p.IsZero() {
		return "0"
	}
	var sb strings.Builder
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		c := p.coeffs[i]
		if c.Sign() == 0 {
			continue
		}
		abs := new(big.Int).Abs(c)
		if sb.Len() == 0 {
			if c.Sign() < 0 {
				sb.WriteString("-")
			}
		} else if c.Sign() < 0 {
			sb.WriteString(" - ")
		} else {
			sb.WriteString(" + ")
		}
		switch {
		case i == 0:
			sb.WriteString(abs.String())
		case abs.Cmp(bigOne) == 0:
			// coefficient 1 is implicit
		default:
			sb.WriteString(abs.String())
		}
		if i > 0 {
			sb.WriteString("x")
			if i > 1 {
				fmt.Fprintf(&sb, "^%d", i)
			}
		}
	}
	return sb.String()
}

// CompactString returns a canonical comma-separated coefficient list,
// constant term first, suitable for use in storage keys.
func (p Polynomial) CompactString() string {
	parts := make([]string, len(p.coeffs))
	for i, c := range p.coeffs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// GobEncode implements gob.GobEncoder.
func (p Polynomial) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p.coeffs); err != nil {
		return nil, fmt.Errorf("gob encode polynomial: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (p *Polynomial) GobDecode(data []byte) error {
	var cs []*big.Int
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&cs); err != nil {
		return fmt.Errorf("gob decode polynomial: %w", err)
	}
	*p = newFromOwned(cs)
	return nil
}

var bigOne = big.NewInt(1)
