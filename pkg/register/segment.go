// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package register

import (
	"fmt"
	"math/big"

	"github.com/automorphis/beta-numbers/pkg/algebraic"
)

// Segment is a contiguous run of orbit data of one kind for one number.
//
// Description:
//
//	Exactly one of the digit and iterate payloads is populated,
//	according to Kind. A Segment doubles as the register's in-memory
//	buffer type: the calculation appends to an attached Segment, and
//	flushed copies of it become immutable stored segments.
//
// Thread Safety: Not safe for concurrent use. The register serializes
// access to attached segments under its own lock.
type Segment struct {
	kind  Kind
	num   *algebraic.Number
	start int

	digits   []*big.Int
	iterates []algebraic.Polynomial

	complete bool
	p, m     int
}

// NewDigitSegment creates a digit segment starting at the given
// position. The data slice may be empty for use as a growing buffer.
func NewDigitSegment(num *algebraic.Number, start int, digits []*big.Int) (*Segment, error) {
	if err := checkSegmentArgs(num, start); err != nil {
		return nil, err
	}
	s := &Segment{kind: KindDigit, num: num, start: start}
	for _, d := range digits {
		s.digits = append(s.digits, new(big.Int).Set(d))
	}
	return s, nil
}

// NewIterateSegment creates an iterate segment starting at the given
// position. The data slice may be empty for use as a growing buffer.
func NewIterateSegment(num *algebraic.Number, start int, iterates []algebraic.Polynomial) (*Segment, error) {
	if err := checkSegmentArgs(num, start); err != nil {
		return nil, err
	}
	return &Segment{
		kind:     KindIterate,
		num:      num,
		start:    start,
		iterates: append([]algebraic.Polynomial(nil), iterates...),
	}, nil
}

func checkSegmentArgs(num *algebraic.Number, start int) error {
	if num == nil {
		return fmt.Errorf("number must not be nil")
	}
	if start < 0 {
		return fmt.Errorf("start must be non-negative, got %d", start)
	}
	return nil
}

// Kind returns the segment's data kind.
func (s *Segment) Kind() Kind { return s.kind }

// Number returns the number the segment belongs to.
func (s *Segment) Number() *algebraic.Number { return s.num }

// Start returns the position of the segment's first element.
func (s *Segment) Start() int { return s.start }

// Len returns the number of elements in the segment.
func (s *Segment) Len() int {
	if s.kind == KindDigit {
		return len(s.digits)
	}
	return len(s.iterates)
}

// End returns the position one past the segment's last element.
func (s *Segment) End() int { return s.start + s.Len() }

// Contains reports whether position n falls inside the segment.
func (s *Segment) Contains(n int) bool {
	return n >= s.start && n < s.End()
}

// Complete reports whether the segment is stamped with a detected
// period, and returns (p, m) when it is.
func (s *Segment) Complete() (p, m int, ok bool) {
	return s.p, s.m, s.complete
}

// DigitAt returns a copy of the digit at position n.
func (s *Segment) DigitAt(n int) (*big.Int, error) {
	if s.kind != KindDigit {
		return nil, fmt.Errorf("segment holds %s data, not digits", s.kind)
	}
	if !s.Contains(n) {
		return nil, fmt.Errorf("position %d outside segment [%d, %d)", n, s.start, s.End())
	}
	return new(big.Int).Set(s.digits[n-s.start]), nil
}

// IterateAt returns the reduced polynomial at position n.
func (s *Segment) IterateAt(n int) (algebraic.Polynomial, error) {
	if s.kind != KindIterate {
		return algebraic.Polynomial{}, fmt.Errorf("segment holds %s data, not iterates", s.kind)
	}
	if !s.Contains(n) {
		return algebraic.Polynomial{}, fmt.Errorf("position %d outside segment [%d, %d)", n, s.start, s.End())
	}
	return s.iterates[n-s.start], nil
}

// AppendDigit grows the segment by one digit.
func (s *Segment) AppendDigit(d *big.Int) error {
	if s.kind != KindDigit {
		return fmt.Errorf("cannot append digit to %s segment", s.kind)
	}
	s.digits = append(s.digits, new(big.Int).Set(d))
	return nil
}

// AppendIterate grows the segment by one reduced polynomial.
func (s *Segment) AppendIterate(b algebraic.Polynomial) error {
	if s.kind != KindIterate {
		return fmt.Errorf("cannot append iterate to %s segment", s.kind)
	}
	s.iterates = append(s.iterates, b)
	return nil
}

// Slice returns a copy of the segment restricted to positions [lo, hi).
// Completion stamps carry over.
func (s *Segment) Slice(lo, hi int) (*Segment, error) {
	if lo < s.start || hi > s.End() || lo > hi {
		return nil, fmt.Errorf("slice [%d, %d) outside segment [%d, %d)", lo, hi, s.start, s.End())
	}
	out := &Segment{
		kind:     s.kind,
		num:      s.num,
		start:    lo,
		complete: s.complete,
		p:        s.p,
		m:        s.m,
	}
	if s.kind == KindDigit {
		for _, d := range s.digits[lo-s.start : hi-s.start] {
			out.digits = append(out.digits, new(big.Int).Set(d))
		}
	} else {
		out.iterates = append(out.iterates, s.iterates[lo-s.start:hi-s.start]...)
	}
	return out, nil
}

// TrimFront drops all elements before position n. Used by the
// calculation to release flushed data from an attached buffer. A no-op
// when n is at or before the segment start.
func (s *Segment) TrimFront(n int) {
	if n <= s.start {
		return
	}
	if n >= s.End() {
		s.digits = nil
		s.iterates = nil
		s.start = n
		return
	}
	off := n - s.start
	if s.kind == KindDigit {
		s.digits = append([]*big.Int(nil), s.digits[off:]...)
	} else {
		s.iterates = append([]algebraic.Polynomial(nil), s.iterates[off:]...)
	}
	s.start = n
}

// markComplete stamps the segment with a detected period. Returns
// ErrCompletionConflict on disagreement with an existing stamp.
func (s *Segment) markComplete(p, m int) error {
	if s.complete {
		if s.p != p || s.m != m {
			return fmt.Errorf("%w: have (p=%d, m=%d), got (p=%d, m=%d)",
				ErrCompletionConflict, s.p, s.m, p, m)
		}
		return nil
	}
	s.complete = true
	s.p = p
	s.m = m
	return nil
}

// trimRedundant truncates data at or past the end of the canonical
// prefix m+p. Only meaningful on a completed segment. Returns whether
// the segment became empty.
func (s *Segment) trimRedundant() bool {
	if !s.complete {
		return false
	}
	limit := s.p + s.m
	if s.start >= limit {
		s.digits = nil
		s.iterates = nil
		return true
	}
	if s.End() <= limit {
		return s.Len() == 0
	}
	keep := limit - s.start
	if s.kind == KindDigit {
		s.digits = s.digits[:keep]
	} else {
		s.iterates = s.iterates[:keep]
	}
	return s.Len() == 0
}
