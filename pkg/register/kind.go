// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package register stores orbit data - digit sequences and reduced
// polynomial sequences - in contiguous segments, tiered across
// in-memory buffers, an embedded BadgerDB store, and optional nested
// child registers.
//
// A segment is a run of consecutive positions of one data kind for one
// number. Reads resolve in-memory segments first, then the local store,
// then children. Once a number's expansion is known to be eventually
// periodic the register can answer reads past the stored prefix by
// folding the index back into the periodic part.
package register

// Kind is the data kind stored in a segment. The set is closed: orbit
// data is either the digit sequence or the reduced polynomial sequence,
// and a segment carries exactly one of the two payloads.
type Kind uint8

const (
	// KindDigit segments hold expansion digits.
	KindDigit Kind = iota + 1

	// KindIterate segments hold reduced polynomials. These are the
	// values periodicity detection compares, so they are the kind that
	// can be folded once a period is known.
	KindIterate
)

// String returns the kind's storage-key token.
func (k Kind) String() string {
	switch k {
	case KindDigit:
		return "digit"
	case KindIterate:
		return "iterate"
	default:
		return "unknown"
	}
}

// valid reports whether k is a defined kind.
func (k Kind) valid() bool {
	return k == KindDigit || k == KindIterate
}
