// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package register

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"math/big"

	"github.com/automorphis/beta-numbers/pkg/algebraic"
)

// recordVersion is the current on-disk record format.
//
// Record format: [1-byte version][4-byte CRC32 (big endian)][gob data].
// The CRC covers only the gob data. Gob decodes records missing newer
// optional fields as zero values; bump the version only on an
// incompatible change to the structs below.
const recordVersion byte = 1

// metaRecord is the stored description of a segment. The number is
// embedded as raw minimal-polynomial coefficients plus precision so a
// register can be reopened and enumerated without external context.
// Root carries the refined dominant root in big.Float 'p' notation so
// reopening skips root refinement; empty in records written before the
// field existed.
type metaRecord struct {
	Kind     uint8
	Coeffs   []*big.Int
	Prec     uint64
	Root     string
	Start    int64
	Length   int64
	Complete bool
	P        int64
	M        int64
}

// payloadRecord is the stored data of a segment. Exactly one field is
// populated, matching the meta record's kind.
type payloadRecord struct {
	Digits   []*big.Int
	Iterates []algebraic.Polynomial
}

// encodeRecord gob-encodes v and frames it with the version byte and a
// CRC32 checksum.
func encodeRecord(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("gob encode record: %w", err)
	}

	crc := crc32.ChecksumIEEE(buf.Bytes())

	out := make([]byte, 5+buf.Len())
	out[0] = recordVersion
	binary.BigEndian.PutUint32(out[1:5], crc)
	copy(out[5:], buf.Bytes())
	return out, nil
}

// decodeRecord verifies framing and checksum, then gob-decodes into v.
func decodeRecord(data []byte, v any) error {
	if len(data) < 6 {
		return fmt.Errorf("%w: record too short (%d bytes)", ErrRecordCorrupted, len(data))
	}
	if data[0] != recordVersion {
		return fmt.Errorf("%w: %d", ErrUnknownRecordVersion, data[0])
	}

	stored := binary.BigEndian.Uint32(data[1:5])
	gobData := data[5:]
	computed := crc32.ChecksumIEEE(gobData)
	if stored != computed {
		return fmt.Errorf("%w: stored=%08x computed=%08x", ErrRecordCorrupted, stored, computed)
	}

	if err := gob.NewDecoder(bytes.NewReader(gobData)).Decode(v); err != nil {
		return fmt.Errorf("gob decode record: %w", err)
	}
	return nil
}

// metaFromSegment builds the stored description of a segment.
func metaFromSegment(s *Segment) metaRecord {
	p, m, complete := s.Complete()
	return metaRecord{
		Kind:     uint8(s.Kind()),
		Coeffs:   s.Number().MinPoly().Coeffs(),
		Prec:     uint64(s.Number().Prec()),
		Root:     rootText(s.Number()),
		Start:    int64(s.Start()),
		Length:   int64(s.Len()),
		Complete: complete,
		P:        int64(p),
		M:        int64(m),
	}
}

// rootText renders a number's dominant root exactly, or "" when the
// number has none.
func rootText(num *algebraic.Number) string {
	root, err := num.Root()
	if err != nil {
		return ""
	}
	return root.Text('p', 0)
}

// numberFromMeta reconstructs the Number a stored segment belongs to.
// A recorded root primes the Number's root cache; a missing or
// unparsable one is recomputed on first use.
func numberFromMeta(rec metaRecord) (*algebraic.Number, error) {
	poly := algebraic.NewPolynomialBig(rec.Coeffs)
	if rec.Root != "" {
		root, _, err := big.ParseFloat(rec.Root, 0, uint(rec.Prec), big.ToNearestEven)
		if err == nil {
			if num, err := algebraic.NewNumberWithRoot(poly, uint(rec.Prec), root); err == nil {
				return num, nil
			}
		}
	}
	return algebraic.NewNumber(poly, uint(rec.Prec))
}

// payloadFromSegment builds the stored data of a segment.
func payloadFromSegment(s *Segment) payloadRecord {
	var rec payloadRecord
	if s.Kind() == KindDigit {
		for i := s.Start(); i < s.End(); i++ {
			d, _ := s.DigitAt(i)
			rec.Digits = append(rec.Digits, d)
		}
	} else {
		for i := s.Start(); i < s.End(); i++ {
			b, _ := s.IterateAt(i)
			rec.Iterates = append(rec.Iterates, b)
		}
	}
	return rec
}
