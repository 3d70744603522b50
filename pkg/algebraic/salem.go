// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package algebraic

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"math/cmplx"
)

// -----------------------------------------------------------------------------
// Conjugate Roots
// -----------------------------------------------------------------------------

// conjTolerance is the modulus tolerance used when classifying
// conjugate roots. Root finding here runs at float64, so anything
// tighter is noise.
const conjTolerance = 1e-9

// ErrRootsNotConverged is returned when the conjugate root solver fails
// to converge.
var ErrRootsNotConverged = errors.New("conjugate root iteration did not converge")

// Conjugates returns all complex roots of the minimal polynomial at
// float64 precision, sorted by descending real part among the real
// roots first, then the non-real roots.
//
// Description:
//
//	Roots are found by Durand-Kerner iteration. float64 precision is
//	enough for classification (Salem / Pisot screening); it is never
//	used for orbit arithmetic.
//
// Outputs:
//   - []complex128: deg(minPoly) roots, unordered beyond the note above.
//   - error: ErrRootsNotConverged if iteration stalls.
func (n *Number) Conjugates() ([]complex128, error) {
	deg := n.minPoly.Degree()
	cs := make([]complex128, deg+1)
	for i := 0; i <= deg; i++ {
		f, _ := new(big.Float).SetInt(n.minPoly.Coeff(i)).Float64()
		cs[i] = complex(f, 0)
	}
	return durandKerner(cs)
}

// durandKerner finds all roots of the polynomial with the given
// coefficients (constant term first, monic leading coefficient).
func durandKerner(coeffs []complex128) ([]complex128, error) {
	deg := len(coeffs) - 1
	eval := func(z complex128) complex128 {
		acc := complex(0, 0)
		for i := deg; i >= 0; i-- {
			acc = acc*z + coeffs[i]
		}
		return acc
	}

	// Standard starting points: powers of a non-real seed.
	roots := make([]complex128, deg)
	seed := complex(0.4, 0.9)
	roots[0] = seed
	for i := 1; i < deg; i++ {
		roots[i] = roots[i-1] * seed
	}

	const maxIter = 500
	for iter := 0; iter < maxIter; iter++ {
		delta := 0.0
		for i := 0; i < deg; i++ {
			num := eval(roots[i])
			den := complex(1, 0)
			for j := 0; j < deg; j++ {
				if j != i {
					den *= roots[i] - roots[j]
				}
			}
			if den == 0 {
				den = complex(1e-30, 0)
			}
			step := num / den
			roots[i] -= step
			if d := cmplx.Abs(step); d > delta {
				delta = d
			}
		}
		if delta < 1e-13 {
			return roots, nil
		}
	}
	return nil, ErrRootsNotConverged
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsSalem reports whether the number is a Salem number: a real
// algebraic integer beta > 1 whose conjugates all have modulus at most
// 1, with at least one conjugate of modulus exactly 1.
//
// Description:
//
//	Equivalently the minimal polynomial is reciprocal of even degree
//	with exactly two real roots beta and 1/beta, all remaining roots on
//	the unit circle. The check is numerical at float64 with a small
//	modulus tolerance.
func (n *Number) IsSalem() (bool, error) {
	deg := n.minPoly.Degree()
	if deg < 4 || deg%2 != 0 {
		return false, nil
	}
	roots, err := n.Conjugates()
	if err != nil {
		return false, err
	}
	var beta, betaRecip float64
	onCircle := 0
	for _, z := range roots {
		if math.Abs(imag(z)) < conjTolerance {
			r := real(z)
			if r > 1+conjTolerance {
				if beta != 0 {
					return false, nil // two roots beyond the unit interval
				}
				beta = r
			} else if r > conjTolerance && r < 1-conjTolerance {
				if betaRecip != 0 {
					return false, nil
				}
				betaRecip = r
			} else {
				return false, nil // real root on or outside the wrong region
			}
			continue
		}
		if math.Abs(cmplx.Abs(z)-1) > conjTolerance {
			return false, nil
		}
		onCircle++
	}
	return beta != 0 && betaRecip != 0 && onCircle == deg-2, nil
}

// IsPerron reports whether the dominant real root strictly exceeds the
// modulus of every other conjugate. Perron numbers are exactly the
// numbers this engine can expand.
func (n *Number) IsPerron() (bool, error) {
	roots, err := n.Conjugates()
	if err != nil {
		return false, err
	}
	beta := math.Inf(-1)
	for _, z := range roots {
		if math.Abs(imag(z)) < conjTolerance && real(z) > beta {
			beta = real(z)
		}
	}
	if beta <= 1 {
		return false, nil
	}
	for _, z := range roots {
		if math.Abs(imag(z)) < conjTolerance && real(z) == beta {
			continue
		}
		if cmplx.Abs(z) >= beta-conjTolerance {
			return false, nil
		}
	}
	return true, nil
}

// -----------------------------------------------------------------------------
// Degree-Six Salem Search
// -----------------------------------------------------------------------------

// sexticScreen decides whether X^6 + aX^5 + bX^4 + cX^3 + bX^2 + aX + 1
// is the minimal polynomial of a Salem number, using the cubic
// resolvent U(z) = z^3 + a z^2 + (b-3) z + (c-2a).
//
// The sextic is Salem iff U has two roots in (-2, 2) and one root
// greater than 2, and U has no integer root (an integer root would
// make the sextic reducible).
func sexticScreen(a, b, c int64) bool {
	u := func(z int64) int64 {
		return z*z*z + a*z*z + (b-3)*z + (c - 2*a)
	}
	if u(2) >= 0 || u(-2) >= 0 {
		return false
	}
	bound := abs64(a)
	if v := abs64(b - 3); v > bound {
		bound = v
	}
	if v := abs64(c - 2*a); v > bound {
		bound = v
	}
	for z := int64(-1); z < bound; z++ {
		if u(z) == 0 {
			return false
		}
	}
	return u(-1) > 0 || u(0) > 0 || u(1) > 0
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// SexticSalems enumerates the minimal polynomials of all degree-six
// Salem numbers with trace at most maxTrace, in ascending trace order.
//
// Description:
//
//	For each trace t = -a the coefficient ranges |b| <= 7 + (5-a)*4 and
//	|c| <= 8 + (5-a)*6 cover every reciprocal sextic with that trace
//	that can pass the screen. Candidates are screened exactly on the
//	cubic resolvent; no floating point is involved, so the enumeration
//	is reproducible.
//
// Inputs:
//   - maxTrace: Largest trace to enumerate. Must be >= 0.
//
// Outputs:
//   - []Polynomial: Minimal polynomials, constant term first.
//   - error: Non-nil if maxTrace is negative.
func SexticSalems(maxTrace int64) ([]Polynomial, error) {
	if maxTrace < 0 {
		return nil, fmt.Errorf("max trace must be non-negative, got %d", maxTrace)
	}
	var out []Polynomial
	for a := int64(0); a >= -maxTrace; a-- {
		bMax := 7 + (5-a)*4
		cMax := 8 + (5-a)*6
		for b := -bMax; b <= bMax; b++ {
			for c := -cMax; c <= cMax; c++ {
				if sexticScreen(a, b, c) {
					out = append(out, NewPolynomial(1, a, b, c, b, a, 1))
				}
			}
		}
	}
	return out, nil
}
