// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orbit produces the beta expansion of 1 for an algebraic
// number as a stream of digits and exact reduced polynomials.
//
// The n-th step evaluates xi = (X*B_n)(beta) at the number's precision,
// takes the digit c_n = floor(xi), and carries B_{n+1} = X*B_n - c_n
// reduced modulo the minimal polynomial. The polynomials are exact; the
// only approximation is the evaluation of xi, and every step verifies
// that the approximation was sharp enough to pin the digit down before
// the digit is emitted.
package orbit

import (
	"fmt"
	"math/big"

	"github.com/automorphis/beta-numbers/pkg/algebraic"
)

// GuardBits is the number of bits by which the accuracy guard backs off
// from the root precision. The evaluation error of xi is bounded by
// eps = 2^(GuardBits - prec) times the orbit sensitivity, so a fractional
// part closer than that to an integer cannot be trusted.
const GuardBits = 5

// AccuracyError reports that the fractional part of xi at some step was
// too close to an integer to determine the digit at the current
// precision. The caller is expected to restart at a higher precision.
type AccuracyError struct {
	// Prec is the root precision at which the step failed.
	Prec uint

	// N is the 0-based position of the step that failed.
	N int
}

func (e *AccuracyError) Error() string {
	return fmt.Sprintf("digit at position %d indeterminate at precision %d", e.N, e.Prec)
}

// Step is one produced element of the expansion.
type Step struct {
	// N is the 0-based position of this step.
	N int

	// Digit is c_N, the integer part of xi.
	Digit *big.Int

	// B is the reduced polynomial B_{N+1} carried out of this step.
	// Equality of two B values at different positions is what
	// periodicity detection compares.
	B algebraic.Polynomial
}

// Iterator generates expansion steps in order.
//
// Description:
//
//	An Iterator holds only the current reduced polynomial and position,
//	so a run can be resumed from stored data via Seed without replaying
//	the prefix.
//
// Thread Safety: Not safe for concurrent use.
type Iterator struct {
	num     *algebraic.Number
	minPoly algebraic.Polynomial
	beta    *big.Float
	betaEps *big.Float
	eps     *big.Float
	one     *big.Float

	b algebraic.Polynomial
	n int
}

// New creates an iterator at the start of the expansion, with B_0 = 1.
//
// Inputs:
//   - num: The number to expand. Its dominant root must exceed 1.
//
// Outputs:
//   - *Iterator: Positioned to produce the step at position 0.
//   - error: Non-nil if the root cannot be computed.
func New(num *algebraic.Number) (*Iterator, error) {
	beta, err := num.Root()
	if err != nil {
		return nil, fmt.Errorf("compute root: %w", err)
	}
	prec := num.Prec()
	eps := new(big.Float).SetPrec(prec).SetMantExp(big.NewFloat(1), GuardBits-int(prec))
	return &Iterator{
		num:     num,
		minPoly: num.MinPoly(),
		beta:    beta,
		betaEps: new(big.Float).SetPrec(prec).Add(beta, eps),
		eps:     eps,
		one:     new(big.Float).SetPrec(prec).SetInt64(1),
		b:       algebraic.NewPolynomial(1),
		n:       0,
	}, nil
}

// Seed repositions the iterator mid-expansion.
//
// Inputs:
//   - b: The reduced polynomial carried out of position next-1 (B_next).
//     Must have degree strictly below the minimal polynomial's.
//   - next: The position the next call to Next will produce. Must be >= 0.
//
// Outputs:
//   - error: Non-nil if the arguments are inconsistent.
func (it *Iterator) Seed(b algebraic.Polynomial, next int) error {
	if next < 0 {
		return fmt.Errorf("next position must be non-negative, got %d", next)
	}
	if b.Degree() >= it.minPoly.Degree() {
		return fmt.Errorf("seed polynomial degree %d not below minimal polynomial degree %d",
			b.Degree(), it.minPoly.Degree())
	}
	it.b = b
	it.n = next
	return nil
}

// Pos returns the position the next call to Next will produce.
func (it *Iterator) Pos() int {
	return it.n
}

// Next produces one step of the expansion.
//
// Description:
//
//	Evaluates xi = (X*B)(beta), guards the fractional part against the
//	propagated evaluation error, and carries the reduced polynomial
//	forward. When xi sits within the guard of an integer the step first
//	tries an exact hit: if X*B minus the nearest integer reduces to the
//	zero polynomial the orbit has landed exactly on an integer and the
//	expansion is finite from here on. Otherwise the digit is genuinely
//	indeterminate and an AccuracyError is returned.
//
// Outputs:
//   - Step: The position, digit, and carried polynomial.
//   - error: *AccuracyError if the digit cannot be pinned down.
func (it *Iterator) Next() (Step, error) {
	xb := it.b.MulX()
	xi := xb.Eval(it.beta)

	floor, _ := xi.Int(nil) // xi >= 0, truncation is floor
	frac := new(big.Float).SetPrec(it.num.Prec()).Sub(xi, new(big.Float).SetPrec(it.num.Prec()).SetInt(floor))

	eta := it.sensitivity(xb)
	oneMinusEta := new(big.Float).SetPrec(it.num.Prec()).Sub(it.one, eta)

	if frac.Cmp(eta) <= 0 || frac.Cmp(oneMinusEta) >= 0 {
		// Near an integer: exact only if X*B - round(xi) vanishes mod
		// the minimal polynomial. Minimality forces the reduction of a
		// true integer hit to be identically zero.
		round := nearestInt(xi)
		cand, err := xb.SubInt(round).ReduceMod(it.minPoly)
		if err != nil {
			return Step{}, err
		}
		if cand.IsZero() {
			step := Step{N: it.n, Digit: round, B: cand}
			it.b = cand
			it.n++
			return step, nil
		}
		return Step{}, &AccuracyError{Prec: it.num.Prec(), N: it.n}
	}

	next, err := xb.SubInt(floor).ReduceMod(it.minPoly)
	if err != nil {
		return Step{}, err
	}
	step := Step{N: it.n, Digit: floor, B: next}
	it.b = next
	it.n++
	return step, nil
}

// sensitivity bounds how far xi can move if beta moves by eps:
// eps * |(X*B)'(beta + eps)|. The derivative of the orbit polynomial is
// monotone on the short interval around beta at these precisions, so
// evaluating at beta + eps gives a one-sided bound.
func (it *Iterator) sensitivity(xb algebraic.Polynomial) *big.Float {
	d := xb.Derivative().Eval(it.betaEps)
	d.Abs(d)
	return d.Mul(d, it.eps)
}

// nearestInt rounds a non-negative float to the nearest integer.
func nearestInt(x *big.Float) *big.Int {
	half := new(big.Float).SetPrec(x.Prec()).SetFloat64(0.5)
	shifted := new(big.Float).SetPrec(x.Prec()).Add(x, half)
	n, _ := shifted.Int(nil)
	return n
}
