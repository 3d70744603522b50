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
	"math/big"
	"sync"
)

// -----------------------------------------------------------------------------
// Number Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotMonic is returned when a minimal polynomial is not monic.
	ErrNotMonic = errors.New("minimal polynomial must be monic")

	// ErrDegreeTooSmall is returned when a minimal polynomial is constant.
	ErrDegreeTooSmall = errors.New("minimal polynomial must have degree >= 1")

	// ErrPrecTooSmall is returned when the requested precision is below MinPrec.
	ErrPrecTooSmall = errors.New("precision below minimum")

	// ErrNoDominantRoot is returned when no real root greater than 1 is found.
	ErrNoDominantRoot = errors.New("no real root greater than 1")
)

// MinPrec is the smallest mantissa precision, in bits, accepted for a
// Number. Below this the root approximation is too coarse for any
// digit of the expansion to be trusted.
const MinPrec = 16

// -----------------------------------------------------------------------------
// Number
// -----------------------------------------------------------------------------

// Number is an algebraic number given by its monic minimal polynomial,
// paired with a mantissa precision for its dominant real root.
//
// Description:
//
//	Two Numbers are the same for storage purposes exactly when both the
//	minimal polynomial and the precision agree; Key reflects that. The
//	root approximation itself is derived data and is computed lazily on
//	first use.
//
// Thread Safety: Safe for concurrent use.
type Number struct {
	minPoly Polynomial
	prec    uint

	rootOnce sync.Once
	root     *big.Float
	rootErr  error
}

// NewNumber creates a Number from a monic minimal polynomial and a root
// precision in bits.
//
// Inputs:
//   - minPoly: Monic integer polynomial of degree >= 1.
//   - prec: Mantissa precision for the root, >= MinPrec.
//
// Outputs:
//   - *Number: The number. Its root is not yet computed.
//   - error: Non-nil if the polynomial is not monic of positive degree
//     or the precision is too small.
func NewNumber(minPoly Polynomial, prec uint) (*Number, error) {
	if minPoly.Degree() < 1 {
		return nil, ErrDegreeTooSmall
	}
	if minPoly.LeadingCoeff().Cmp(bigOne) != 0 {
		return nil, ErrNotMonic
	}
	if prec < MinPrec {
		return nil, fmt.Errorf("%w: %d < %d", ErrPrecTooSmall, prec, MinPrec)
	}
	return &Number{minPoly: minPoly, prec: prec}, nil
}

// NewNumberWithRoot creates a Number whose dominant root is already
// known, priming the cache so Root never runs refinement.
//
// Inputs:
//   - minPoly: Monic integer polynomial of degree >= 1.
//   - prec: Mantissa precision for the root, >= MinPrec.
//   - root: Previously computed dominant root, > 1. Typically recorded
//     alongside stored orbit data for this polynomial and precision.
//
// Outputs:
//   - *Number: The number with its root cache primed.
//   - error: Non-nil on an invalid polynomial, precision, or root.
func NewNumberWithRoot(minPoly Polynomial, prec uint, root *big.Float) (*Number, error) {
	n, err := NewNumber(minPoly, prec)
	if err != nil {
		return nil, err
	}
	if root == nil || root.Cmp(newFloat(prec, 1)) <= 0 {
		return nil, errors.New("cached root must be greater than 1")
	}
	cached := new(big.Float).Copy(root)
	cached.SetPrec(prec)
	n.rootOnce.Do(func() { n.root = cached })
	return n, nil
}

// MinPoly returns the minimal polynomial.
func (n *Number) MinPoly() Polynomial {
	return n.minPoly
}

// Degree returns the degree of the minimal polynomial.
func (n *Number) Degree() int {
	return n.minPoly.Degree()
}

// Prec returns the root precision in bits.
func (n *Number) Prec() uint {
	return n.prec
}

// Key returns a stable identifier combining the minimal polynomial and
// the precision, e.g. "-1,-1,1@330". Two Numbers with equal keys are
// interchangeable as far as stored orbit data is concerned.
func (n *Number) Key() string {
	return fmt.Sprintf("%s@%d", n.minPoly.CompactString(), n.prec)
}

// String renders the number as its minimal polynomial and precision.
func (n *Number) String() string {
	return fmt.Sprintf("root of %s (prec %d)", n.minPoly, n.prec)
}

// WithPrec returns a Number for the same minimal polynomial at a new
// precision. The root is recomputed lazily.
func (n *Number) WithPrec(prec uint) (*Number, error) {
	return NewNumber(n.minPoly, prec)
}

// Root returns the dominant real root beta > 1, correct to the Number's
// precision.
//
// Description:
//
//	The root is located by bracketing the largest real root in
//	(1, 1+maxCoeff] and bisecting at a working precision a few words
//	above the target, then rounding to the target precision. The result
//	is cached; subsequent calls are cheap.
//
// Outputs:
//   - *big.Float: A copy of the root approximation at Prec() bits.
//   - error: ErrNoDominantRoot if the polynomial has no real root
//     greater than 1.
func (n *Number) Root() (*big.Float, error) {
	n.rootOnce.Do(func() {
		n.root, n.rootErr = n.refineRoot()
	})
	if n.rootErr != nil {
		return nil, n.rootErr
	}
	return new(big.Float).Copy(n.root), nil
}

// refineRoot brackets and bisects the dominant real root.
func (n *Number) refineRoot() (*big.Float, error) {
	workPrec := n.prec + 64

	// Cauchy bound: every root has modulus <= 1 + max |coeff|.
	maxCoeff := new(big.Int)
	for i := 0; i <= n.minPoly.Degree(); i++ {
		abs := new(big.Int).Abs(n.minPoly.Coeff(i))
		if abs.Cmp(maxCoeff) > 0 {
			maxCoeff = abs
		}
	}
	hi := new(big.Float).SetPrec(workPrec).SetInt(maxCoeff)
	hi.Add(hi, newFloat(workPrec, 1))

	lo := newFloat(workPrec, 1)
	fLo := n.minPoly.Eval(lo)

	if fLo.Sign() >= 0 {
		// p(1) >= 0: scan for the rightmost sign change in (1, hi).
		var lastNeg *big.Float
		const steps = 4096
		step := new(big.Float).SetPrec(workPrec).Sub(hi, lo)
		step.Quo(step, newFloat(workPrec, steps))
		x := new(big.Float).Copy(lo)
		for i := 0; i < steps; i++ {
			x = new(big.Float).SetPrec(workPrec).Add(x, step)
			if n.minPoly.Eval(x).Sign() < 0 {
				lastNeg = x
			}
		}
		if lastNeg == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoDominantRoot, n.minPoly)
		}
		lo = lastNeg
	}

	// Bisect [lo, hi]: p(lo) < 0 <= p(hi) since the polynomial is monic
	// and hi exceeds the Cauchy bound.
	tol := new(big.Float).SetPrec(workPrec).SetMantExp(newFloat(workPrec, 1), -int(n.prec)-16)
	diff := new(big.Float).SetPrec(workPrec)
	half := newFloat(workPrec, 0.5)
	for diff.Sub(hi, lo); diff.Cmp(tol) > 0; diff.Sub(hi, lo) {
		mid := new(big.Float).SetPrec(workPrec).Add(lo, hi)
		mid.Mul(mid, half)
		if n.minPoly.Eval(mid).Sign() < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}

	root := new(big.Float).SetPrec(workPrec).Add(lo, hi)
	root.Mul(root, half)
	if root.Cmp(newFloat(workPrec, 1)) <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDominantRoot, n.minPoly)
	}
	return root.SetPrec(n.prec), nil
}

func newFloat(prec uint, v float64) *big.Float {
	return new(big.Float).SetPrec(prec).SetFloat64(v)
}
