// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package register

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Register Errors
// -----------------------------------------------------------------------------

var (
	// ErrRegisterClosed is returned when operations are called on a closed register.
	ErrRegisterClosed = errors.New("register is closed")

	// ErrSegmentExists is returned when flushing a segment whose range is
	// already covered by a stored segment of the same kind and number.
	ErrSegmentExists = errors.New("segment with this range already stored")

	// ErrRecordCorrupted is returned when stored data fails its integrity check.
	ErrRecordCorrupted = errors.New("stored record corrupted (CRC mismatch)")

	// ErrUnknownRecordVersion is returned when a stored record carries a
	// format version this build does not understand.
	ErrUnknownRecordVersion = errors.New("unknown record format version")

	// ErrNotComplete is returned when an operation requires a completed
	// calculation and none is recorded.
	ErrNotComplete = errors.New("calculation not marked complete")

	// ErrCompletionConflict is returned when marking complete with a
	// period disagreeing with one already recorded.
	ErrCompletionConflict = errors.New("conflicting completion already recorded")
)

// Availability says whether absent data could still arrive.
type Availability int

const (
	// NotYetAvailable means the position has not been computed or
	// flushed yet; a longer run may produce it.
	NotYetAvailable Availability = iota + 1

	// PermanentlyAbsent means no run will ever produce the position:
	// it is negative, or lies beyond the canonical prefix of a
	// completed calculation whose tail was trimmed.
	PermanentlyAbsent
)

// String returns a short description of the availability.
func (a Availability) String() string {
	switch a {
	case NotYetAvailable:
		return "not yet available"
	case PermanentlyAbsent:
		return "permanently absent"
	default:
		return "unknown"
	}
}

// DataNotFoundError reports a missed read, distinguishing positions
// that may appear later from positions that never will.
type DataNotFoundError struct {
	// Kind is the data kind of the read.
	Kind Kind

	// NumberKey identifies the number the read was for.
	NumberKey string

	// Pos is the requested position.
	Pos int

	// Availability classifies the miss.
	Availability Availability
}

func (e *DataNotFoundError) Error() string {
	return fmt.Sprintf("%s data at position %d for %s: %s",
		e.Kind, e.Pos, e.NumberKey, e.Availability)
}

// IsNotYetAvailable reports whether err is a miss on data that a longer
// run may still produce.
func IsNotYetAvailable(err error) bool {
	var nf *DataNotFoundError
	return errors.As(err, &nf) && nf.Availability == NotYetAvailable
}

// IsPermanentlyAbsent reports whether err is a miss on data that no run
// will ever produce.
func IsPermanentlyAbsent(err error) bool {
	var nf *DataNotFoundError
	return errors.As(err, &nf) && nf.Availability == PermanentlyAbsent
}
