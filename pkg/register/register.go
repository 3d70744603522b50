// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package register

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/automorphis/beta-numbers/pkg/algebraic"
	"github.com/automorphis/beta-numbers/pkg/storage/badger"
)

// Config configures a register.
type Config struct {
	// Path is the directory for the backing BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory keeps the backing store in memory. Data does not survive
	// Close. Intended for tests and throwaway runs.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for persistent registers.
	SyncWrites bool

	// Logger for register operations. Default: slog.Default().
	Logger *slog.Logger
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return errors.New("path is required for persistent register")
	}
	return nil
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{SyncWrites: true, Logger: slog.Default()}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{InMemory: true, Logger: slog.Default()}
}

// entry is the in-memory index record of one stored segment.
type entry struct {
	id       string
	start    int
	length   int
	complete bool
	p, m     int
}

// IndexRange is a half-open position range [Start, End).
type IndexRange struct {
	Start int
	End   int
}

// Completion is the recorded outcome of a finished calculation.
type Completion struct {
	// Found is true when some segment carries a completion stamp.
	Found bool

	// P is the minimal period.
	P int

	// M is the preperiod.
	M int
}

// Register stores orbit segments across three tiers: attached in-memory
// buffers, a local BadgerDB store, and nested child registers.
//
// Description:
//
//	Key format: "meta:{kind}:{numberKey}:{uuid}" for segment metadata
//	and "seg:{kind}:{numberKey}:{uuid}" for payloads. Both keys of a
//	segment are written in a single transaction, so a segment is either
//	fully visible or absent. Opening a register rescans the metadata
//	prefix, which is what makes runs resumable.
//
// Thread Safety: Safe for concurrent use.
type Register struct {
	db     *badger.DB
	logger *slog.Logger

	mu       sync.RWMutex
	index    map[string][]*entry
	nums     map[string]*algebraic.Number
	buffers  map[string][]*Segment
	children []*Register
	closed   bool

	// One-record payload cache; sequential reads hit the same segment.
	cacheID      string
	cachePayload *payloadRecord
}

// Open opens (or creates) a register and rebuilds its segment index
// from the store.
//
// Inputs:
//   - cfg: Register configuration. Must pass Validate().
//
// Outputs:
//   - *Register: Ready for use. Call Close when done.
//   - error: Non-nil if the store cannot be opened or the index scan
//     hits a corrupted metadata record.
func Open(cfg Config) (*Register, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	dbCfg := badger.DefaultConfig()
	dbCfg.Path = cfg.Path
	dbCfg.InMemory = cfg.InMemory
	dbCfg.SyncWrites = cfg.SyncWrites
	dbCfg.Logger = cfg.Logger

	db, err := badger.OpenDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	r := &Register{
		db:      db,
		logger:  cfg.Logger.With(slog.String("component", "register")),
		index:   make(map[string][]*entry),
		nums:    make(map[string]*algebraic.Number),
		buffers: make(map[string][]*Segment),
	}

	if err := r.loadIndex(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load segment index: %w", err)
	}

	r.logger.Info("register opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.InMemory),
		slog.Int("pairs", len(r.index)))

	return r, nil
}

// loadIndex rescans segment metadata from the store.
func (r *Register) loadIndex() error {
	prefix := []byte("meta:")
	return r.db.WithReadTxn(context.Background(), func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())

			var rec metaRecord
			err := item.Value(func(val []byte) error {
				return decodeRecord(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}

			num, err := numberFromMeta(rec)
			if err != nil {
				return fmt.Errorf("reconstruct number from %s: %w", key, err)
			}

			pair := pairKey(Kind(rec.Kind), num)
			id := key[len("meta:")+len(pair)+1:]
			r.index[pair] = append(r.index[pair], &entry{
				id:       id,
				start:    int(rec.Start),
				length:   int(rec.Length),
				complete: rec.Complete,
				p:        int(rec.P),
				m:        int(rec.M),
			})
			r.nums[num.Key()] = num
		}
		return nil
	})
}

// Close syncs and closes the backing store. Attached buffers and
// children are left alone; closing a parent does not close its
// children.
func (r *Register) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.logger.Info("closing register")
	if err := r.db.Sync(); err != nil {
		r.logger.Warn("sync before close failed", slog.String("error", err.Error()))
	}
	return r.db.Close()
}

// Attach adds a nested child register. Reads that miss this register's
// buffers and store fall through to children in attachment order.
func (r *Register) Attach(child *Register) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.children = append(r.children, child)
}

// AttachBuffer attaches an in-memory segment. Reads see attached
// buffers before stored segments, so a calculation's unflushed tail is
// immediately visible.
func (r *Register) AttachBuffer(seg *Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pair := pairKey(seg.Kind(), seg.Number())
	r.buffers[pair] = append(r.buffers[pair], seg)
	r.nums[seg.Number().Key()] = seg.Number()
}

// DetachBuffer removes a previously attached in-memory segment.
func (r *Register) DetachBuffer(seg *Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pair := pairKey(seg.Kind(), seg.Number())
	bufs := r.buffers[pair]
	for i, s := range bufs {
		if s == seg {
			r.buffers[pair] = append(bufs[:i], bufs[i+1:]...)
			return
		}
	}
}

func pairKey(kind Kind, num *algebraic.Number) string {
	return fmt.Sprintf("%s:%s", kind, num.Key())
}

func metaKey(pair, id string) []byte {
	return []byte(fmt.Sprintf("meta:%s:%s", pair, id))
}

func segKey(pair, id string) []byte {
	return []byte(fmt.Sprintf("seg:%s:%s", pair, id))
}

// -----------------------------------------------------------------------------
// Writes
// -----------------------------------------------------------------------------

// Flush stores a segment durably.
//
// Description:
//
//	The segment's metadata and payload are written in one transaction,
//	so no reader can observe a half-written segment. A segment whose
//	exact range (same kind, number, start, and length) is already
//	stored is rejected with ErrSegmentExists; re-running a calculation
//	over data it already flushed is a bug, not a merge.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - seg: Segment with at least one element.
//
// Outputs:
//   - error: ErrSegmentExists on a duplicate range, ErrRegisterClosed
//     after Close, or a storage error.
func (r *Register) Flush(ctx context.Context, seg *Segment) error {
	if ctx == nil {
		return errors.New("context must not be nil")
	}
	if seg == nil || seg.Len() == 0 {
		return errors.New("segment must have at least one element")
	}

	ctx, span := otel.Tracer("register").Start(ctx, "register.Flush",
		trace.WithAttributes(
			attribute.String("kind", seg.Kind().String()),
			attribute.String("number", seg.Number().Key()),
			attribute.Int("start", seg.Start()),
			attribute.Int("length", seg.Len()),
		),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegisterClosed
	}

	w, err := r.stageWrite(seg)
	if err != nil {
		span.SetStatus(codes.Error, "stage segment")
		return err
	}

	err = r.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		if err := txn.Set(metaKey(w.pair, w.id), w.meta); err != nil {
			return err
		}
		return txn.Set(segKey(w.pair, w.id), w.payload)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("write segment: %w", err)
	}

	r.commitWrite(w)

	r.logger.Debug("segment flushed",
		slog.String("pair", w.pair),
		slog.Int("start", seg.Start()),
		slog.Int("length", seg.Len()),
		slog.Int("bytes", len(w.payload)))

	return nil
}

// FlushPair stores a digit segment and its matching iterate segment in
// one transaction.
//
// Description:
//
//	A calculation flushes both kinds at every save boundary. Writing
//	the pair in a single transaction means a crash leaves both
//	segments durable or neither, so the contiguous prefixes of the two
//	kinds never disagree and a resumed run cannot collide with a
//	surviving half. The segments must belong to the same number and
//	cover the same range.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - dseg: Digit segment with at least one element.
//   - iseg: Iterate segment over the same number and range.
//
// Outputs:
//   - error: ErrSegmentExists if either range is already stored, in
//     which case nothing is written. ErrRegisterClosed after Close, or
//     a storage error.
func (r *Register) FlushPair(ctx context.Context, dseg, iseg *Segment) error {
	if ctx == nil {
		return errors.New("context must not be nil")
	}
	if dseg == nil || dseg.Len() == 0 || iseg == nil || iseg.Len() == 0 {
		return errors.New("both segments must have at least one element")
	}
	if dseg.Kind() != KindDigit || iseg.Kind() != KindIterate {
		return fmt.Errorf("segment kinds must be %s and %s, got %s and %s",
			KindDigit, KindIterate, dseg.Kind(), iseg.Kind())
	}
	if dseg.Number().Key() != iseg.Number().Key() {
		return errors.New("segments must belong to the same number")
	}
	if dseg.Start() != iseg.Start() || dseg.Len() != iseg.Len() {
		return fmt.Errorf("segment ranges must match, got [%d, %d) and [%d, %d)",
			dseg.Start(), dseg.End(), iseg.Start(), iseg.End())
	}

	ctx, span := otel.Tracer("register").Start(ctx, "register.FlushPair",
		trace.WithAttributes(
			attribute.String("number", dseg.Number().Key()),
			attribute.Int("start", dseg.Start()),
			attribute.Int("length", dseg.Len()),
		),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegisterClosed
	}

	dw, err := r.stageWrite(dseg)
	if err != nil {
		span.SetStatus(codes.Error, "stage digit segment")
		return err
	}
	iw, err := r.stageWrite(iseg)
	if err != nil {
		span.SetStatus(codes.Error, "stage iterate segment")
		return err
	}

	err = r.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		for _, w := range []*segmentWrite{dw, iw} {
			if err := txn.Set(metaKey(w.pair, w.id), w.meta); err != nil {
				return err
			}
			if err := txn.Set(segKey(w.pair, w.id), w.payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("write segment pair: %w", err)
	}

	r.commitWrite(dw)
	r.commitWrite(iw)

	r.logger.Debug("segment pair flushed",
		slog.String("number", dseg.Number().Key()),
		slog.Int("start", dseg.Start()),
		slog.Int("length", dseg.Len()))

	return nil
}

// segmentWrite is an encoded segment staged for a transaction.
type segmentWrite struct {
	pair    string
	id      string
	meta    []byte
	payload []byte
	seg     *Segment
}

// stageWrite dup-checks and encodes a segment for storage. Caller
// holds r.mu.
func (r *Register) stageWrite(seg *Segment) (*segmentWrite, error) {
	pair := pairKey(seg.Kind(), seg.Number())
	for _, e := range r.index[pair] {
		if e.start == seg.Start() && e.length == seg.Len() {
			return nil, fmt.Errorf("%w: %s [%d, %d)", ErrSegmentExists, pair, seg.Start(), seg.End())
		}
	}
	metaBytes, err := encodeRecord(metaFromSegment(seg))
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	payloadBytes, err := encodeRecord(payloadFromSegment(seg))
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return &segmentWrite{
		pair:    pair,
		id:      uuid.NewString(),
		meta:    metaBytes,
		payload: payloadBytes,
		seg:     seg,
	}, nil
}

// commitWrite records a just-written segment in the index. Caller
// holds r.mu.
func (r *Register) commitWrite(w *segmentWrite) {
	p, m, complete := w.seg.Complete()
	r.index[w.pair] = append(r.index[w.pair], &entry{
		id:       w.id,
		start:    w.seg.Start(),
		length:   w.seg.Len(),
		complete: complete,
		p:        p,
		m:        m,
	})
	r.nums[w.seg.Number().Key()] = w.seg.Number()
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// GetDigit returns the expansion digit at position n.
//
// Description:
//
//	Resolution order: attached buffers, stored segments, children. A
//	miss yields a DataNotFoundError whose Availability distinguishes
//	data a longer run could still produce from data that is gone for
//	good. Digits past the canonical prefix of a completed calculation
//	are permanently absent: the digit preperiod can exceed the iterate
//	preperiod by one, so folding digit reads would be wrong.
func (r *Register) GetDigit(ctx context.Context, num *algebraic.Number, n int) (*big.Int, error) {
	if n < 0 {
		return nil, &DataNotFoundError{Kind: KindDigit, NumberKey: num.Key(), Pos: n, Availability: PermanentlyAbsent}
	}
	r.mu.Lock()
	d, found, err := r.lookupDigit(ctx, num, n)
	comp := r.completionLocked(num)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if found {
		return d, nil
	}
	for _, child := range r.childrenSnapshot() {
		d, err := child.GetDigit(ctx, num, n)
		if err == nil {
			return d, nil
		}
		if !IsNotYetAvailable(err) && !IsPermanentlyAbsent(err) {
			return nil, err
		}
	}
	avail := NotYetAvailable
	if comp.Found && n >= comp.M+comp.P {
		avail = PermanentlyAbsent
	}
	return nil, &DataNotFoundError{Kind: KindDigit, NumberKey: num.Key(), Pos: n, Availability: avail}
}

// GetIterate returns the reduced polynomial at position n.
//
// Description:
//
//	Same resolution order as GetDigit. Once the calculation is complete
//	a read past the stored prefix folds back into the periodic part:
//	position n maps to m + (n-m) mod p, which is exact for iterate data.
func (r *Register) GetIterate(ctx context.Context, num *algebraic.Number, n int) (algebraic.Polynomial, error) {
	if n < 0 {
		return algebraic.Polynomial{}, &DataNotFoundError{Kind: KindIterate, NumberKey: num.Key(), Pos: n, Availability: PermanentlyAbsent}
	}
	r.mu.Lock()
	comp := r.completionLocked(num)
	pos := n
	if comp.Found && n >= comp.M+comp.P {
		pos = comp.M + (n-comp.M)%comp.P
	}
	b, found, err := r.lookupIterate(ctx, num, pos)
	r.mu.Unlock()
	if err != nil {
		return algebraic.Polynomial{}, err
	}
	if found {
		return b, nil
	}
	for _, child := range r.childrenSnapshot() {
		b, err := child.GetIterate(ctx, num, n)
		if err == nil {
			return b, nil
		}
		if !IsNotYetAvailable(err) && !IsPermanentlyAbsent(err) {
			return algebraic.Polynomial{}, err
		}
	}
	return algebraic.Polynomial{}, &DataNotFoundError{Kind: KindIterate, NumberKey: num.Key(), Pos: n, Availability: NotYetAvailable}
}

// RangeDigits returns the digits at positions [lo, hi). The first
// missing position aborts the read with its DataNotFoundError.
func (r *Register) RangeDigits(ctx context.Context, num *algebraic.Number, lo, hi int) ([]*big.Int, error) {
	out := make([]*big.Int, 0, hi-lo)
	for n := lo; n < hi; n++ {
		d, err := r.GetDigit(ctx, num, n)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// RangeIterates returns the reduced polynomials at positions [lo, hi).
// The first missing position aborts the read with its
// DataNotFoundError.
func (r *Register) RangeIterates(ctx context.Context, num *algebraic.Number, lo, hi int) ([]algebraic.Polynomial, error) {
	out := make([]algebraic.Polynomial, 0, hi-lo)
	for n := lo; n < hi; n++ {
		b, err := r.GetIterate(ctx, num, n)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// lookupDigit resolves a digit from buffers then stored segments.
// Caller holds r.mu.
func (r *Register) lookupDigit(ctx context.Context, num *algebraic.Number, n int) (*big.Int, bool, error) {
	pair := pairKey(KindDigit, num)
	for _, seg := range r.buffers[pair] {
		if seg.Contains(n) {
			d, err := seg.DigitAt(n)
			return d, err == nil, err
		}
	}
	for _, e := range r.index[pair] {
		if n >= e.start && n < e.start+e.length {
			payload, err := r.loadPayload(ctx, pair, e.id)
			if err != nil {
				return nil, false, err
			}
			return new(big.Int).Set(payload.Digits[n-e.start]), true, nil
		}
	}
	return nil, false, nil
}

// lookupIterate resolves a reduced polynomial from buffers then stored
// segments. Caller holds r.mu.
func (r *Register) lookupIterate(ctx context.Context, num *algebraic.Number, n int) (algebraic.Polynomial, bool, error) {
	pair := pairKey(KindIterate, num)
	for _, seg := range r.buffers[pair] {
		if seg.Contains(n) {
			b, err := seg.IterateAt(n)
			return b, err == nil, err
		}
	}
	for _, e := range r.index[pair] {
		if n >= e.start && n < e.start+e.length {
			payload, err := r.loadPayload(ctx, pair, e.id)
			if err != nil {
				return algebraic.Polynomial{}, false, err
			}
			return payload.Iterates[n-e.start], true, nil
		}
	}
	return algebraic.Polynomial{}, false, nil
}

// loadPayload reads and decodes a stored payload. Caller holds r.mu.
func (r *Register) loadPayload(ctx context.Context, pair, id string) (*payloadRecord, error) {
	cacheKey := pair + ":" + id
	if r.cachePayload != nil && r.cacheID == cacheKey {
		return r.cachePayload, nil
	}
	var rec payloadRecord
	err := r.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(segKey(pair, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return decodeRecord(val, &rec)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load payload %s: %w", cacheKey, err)
	}
	r.cacheID = cacheKey
	r.cachePayload = &rec
	return &rec, nil
}

func (r *Register) childrenSnapshot() []*Register {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Register(nil), r.children...)
}

// -----------------------------------------------------------------------------
// Completion
// -----------------------------------------------------------------------------

// MarkComplete stamps every stored and attached segment of the number,
// both kinds, with the detected period and preperiod.
//
// Description:
//
//	Idempotent: restamping with the same (p, m) is a no-op. Stamping
//	with a different (p, m) returns ErrCompletionConflict, since two
//	runs of the same number at the same precision cannot legitimately
//	disagree. Children are stamped recursively.
func (r *Register) MarkComplete(ctx context.Context, num *algebraic.Number, p, m int) error {
	if p < 1 || m < 0 {
		return fmt.Errorf("invalid period (p=%d, m=%d)", p, m)
	}

	ctx, span := otel.Tracer("register").Start(ctx, "register.MarkComplete",
		trace.WithAttributes(
			attribute.String("number", num.Key()),
			attribute.Int("p", p),
			attribute.Int("m", m),
		),
	)
	defer span.End()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegisterClosed
	}

	for _, kind := range []Kind{KindDigit, KindIterate} {
		pair := pairKey(kind, num)
		for _, seg := range r.buffers[pair] {
			if err := seg.markComplete(p, m); err != nil {
				r.mu.Unlock()
				span.RecordError(err)
				return err
			}
		}
		for _, e := range r.index[pair] {
			if e.complete {
				if e.p != p || e.m != m {
					r.mu.Unlock()
					span.SetStatus(codes.Error, "completion conflict")
					return fmt.Errorf("%w: have (p=%d, m=%d), got (p=%d, m=%d)",
						ErrCompletionConflict, e.p, e.m, p, m)
				}
				continue
			}
			rec := metaRecord{
				Kind:     uint8(kind),
				Coeffs:   num.MinPoly().Coeffs(),
				Prec:     uint64(num.Prec()),
				Root:     rootText(num),
				Start:    int64(e.start),
				Length:   int64(e.length),
				Complete: true,
				P:        int64(p),
				M:        int64(m),
			}
			metaBytes, err := encodeRecord(rec)
			if err != nil {
				r.mu.Unlock()
				span.RecordError(err)
				return fmt.Errorf("encode metadata: %w", err)
			}
			err = r.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
				return txn.Set(metaKey(pair, e.id), metaBytes)
			})
			if err != nil {
				r.mu.Unlock()
				span.RecordError(err)
				return fmt.Errorf("rewrite metadata: %w", err)
			}
			e.complete = true
			e.p = p
			e.m = m
		}
	}
	r.mu.Unlock()

	for _, child := range r.childrenSnapshot() {
		if err := child.MarkComplete(ctx, num, p, m); err != nil {
			span.RecordError(err)
			return err
		}
	}

	r.logger.Info("calculation marked complete",
		slog.String("number", num.Key()),
		slog.Int("p", p),
		slog.Int("m", m))

	return nil
}

// Completion reports the recorded outcome for a number, searching
// buffers, stored segments, and children.
func (r *Register) Completion(ctx context.Context, num *algebraic.Number) (Completion, error) {
	r.mu.RLock()
	comp := r.completionLocked(num)
	r.mu.RUnlock()
	if comp.Found {
		return comp, nil
	}
	for _, child := range r.childrenSnapshot() {
		comp, err := child.Completion(ctx, num)
		if err != nil {
			return Completion{}, err
		}
		if comp.Found {
			return comp, nil
		}
	}
	return Completion{}, nil
}

// completionLocked scans local buffers and entries. Caller holds r.mu.
func (r *Register) completionLocked(num *algebraic.Number) Completion {
	for _, kind := range []Kind{KindIterate, KindDigit} {
		pair := pairKey(kind, num)
		for _, seg := range r.buffers[pair] {
			if p, m, ok := seg.Complete(); ok {
				return Completion{Found: true, P: p, M: m}
			}
		}
		for _, e := range r.index[pair] {
			if e.complete {
				return Completion{Found: true, P: e.p, M: e.m}
			}
		}
	}
	return Completion{}
}

// -----------------------------------------------------------------------------
// Maintenance
// -----------------------------------------------------------------------------

// CleanupRedundancies drops stored data at or past the end of the
// canonical prefix m+p of a completed calculation.
//
// Description:
//
//	Segments entirely past the prefix are deleted; a segment straddling
//	the boundary is truncated in place. Idempotent: a second call finds
//	nothing to do. Requires a recorded completion.
func (r *Register) CleanupRedundancies(ctx context.Context, num *algebraic.Number) error {
	comp, err := r.Completion(ctx, num)
	if err != nil {
		return err
	}
	if !comp.Found {
		return fmt.Errorf("%w: %s", ErrNotComplete, num.Key())
	}
	limit := comp.M + comp.P

	ctx, span := otel.Tracer("register").Start(ctx, "register.CleanupRedundancies",
		trace.WithAttributes(
			attribute.String("number", num.Key()),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegisterClosed
	}

	deleted, truncated := 0, 0
	for _, kind := range []Kind{KindDigit, KindIterate} {
		pair := pairKey(kind, num)

		kept := r.buffers[pair][:0]
		for _, seg := range r.buffers[pair] {
			_ = seg.markComplete(comp.P, comp.M) // comp came from this register, no conflict
			if empty := seg.trimRedundant(); !empty {
				kept = append(kept, seg)
			}
		}
		r.buffers[pair] = kept

		remaining := r.index[pair][:0]
		for _, e := range r.index[pair] {
			switch {
			case e.start >= limit:
				err := r.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
					if err := txn.Delete(metaKey(pair, e.id)); err != nil {
						return err
					}
					return txn.Delete(segKey(pair, e.id))
				})
				if err != nil {
					r.mu.Unlock()
					span.RecordError(err)
					return fmt.Errorf("delete segment: %w", err)
				}
				r.invalidateCache(pair, e.id)
				deleted++
			case e.start+e.length > limit:
				if err := r.truncateStored(ctx, pair, num, kind, e, limit); err != nil {
					r.mu.Unlock()
					span.RecordError(err)
					return err
				}
				remaining = append(remaining, e)
				truncated++
			default:
				remaining = append(remaining, e)
			}
		}
		r.index[pair] = remaining
	}
	r.mu.Unlock()

	for _, child := range r.childrenSnapshot() {
		if err := child.CleanupRedundancies(ctx, num); err != nil {
			return err
		}
	}

	span.SetAttributes(
		attribute.Int("deleted", deleted),
		attribute.Int("truncated", truncated),
	)
	r.logger.Debug("redundant data cleaned up",
		slog.String("number", num.Key()),
		slog.Int("deleted", deleted),
		slog.Int("truncated", truncated))

	return nil
}

// truncateStored rewrites a stored segment cut down to end at limit.
// Caller holds r.mu.
func (r *Register) truncateStored(ctx context.Context, pair string, num *algebraic.Number, kind Kind, e *entry, limit int) error {
	payload, err := r.loadPayload(ctx, pair, e.id)
	if err != nil {
		return err
	}
	keep := limit - e.start

	trimmed := payloadRecord{}
	if kind == KindDigit {
		trimmed.Digits = payload.Digits[:keep]
	} else {
		trimmed.Iterates = payload.Iterates[:keep]
	}
	payloadBytes, err := encodeRecord(trimmed)
	if err != nil {
		return fmt.Errorf("encode truncated payload: %w", err)
	}
	rec := metaRecord{
		Kind:     uint8(kind),
		Coeffs:   num.MinPoly().Coeffs(),
		Prec:     uint64(num.Prec()),
		Root:     rootText(num),
		Start:    int64(e.start),
		Length:   int64(keep),
		Complete: e.complete,
		P:        int64(e.p),
		M:        int64(e.m),
	}
	metaBytes, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode truncated metadata: %w", err)
	}
	err = r.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		if err := txn.Set(metaKey(pair, e.id), metaBytes); err != nil {
			return err
		}
		return txn.Set(segKey(pair, e.id), payloadBytes)
	})
	if err != nil {
		return fmt.Errorf("rewrite truncated segment: %w", err)
	}
	r.invalidateCache(pair, e.id)
	e.length = keep
	return nil
}

// TruncateTo drops stored data of one kind at or past position limit
// for a number.
//
// Description:
//
//	Segments entirely at or past the limit are deleted and a segment
//	straddling it is rewritten in place, leaving [0, limit) intact.
//	Attached buffers and children are not touched. Idempotent; a store
//	with nothing past the limit is left alone. Used to reconcile a
//	store whose two kinds disagree about their contiguous prefix, such
//	as one written by an unpaired flush.
func (r *Register) TruncateTo(ctx context.Context, kind Kind, num *algebraic.Number, limit int) error {
	if !kind.valid() {
		return fmt.Errorf("invalid kind %d", kind)
	}
	if limit < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", limit)
	}

	ctx, span := otel.Tracer("register").Start(ctx, "register.TruncateTo",
		trace.WithAttributes(
			attribute.String("kind", kind.String()),
			attribute.String("number", num.Key()),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegisterClosed
	}

	pair := pairKey(kind, num)
	deleted, truncated := 0, 0
	remaining := r.index[pair][:0]
	for _, e := range r.index[pair] {
		switch {
		case e.start >= limit:
			err := r.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
				if err := txn.Delete(metaKey(pair, e.id)); err != nil {
					return err
				}
				return txn.Delete(segKey(pair, e.id))
			})
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("delete segment: %w", err)
			}
			r.invalidateCache(pair, e.id)
			deleted++
		case e.start+e.length > limit:
			if err := r.truncateStored(ctx, pair, num, kind, e, limit); err != nil {
				span.RecordError(err)
				return err
			}
			remaining = append(remaining, e)
			truncated++
		default:
			remaining = append(remaining, e)
		}
	}
	r.index[pair] = remaining

	if deleted > 0 || truncated > 0 {
		r.logger.Debug("stored data truncated",
			slog.String("pair", pair),
			slog.Int("limit", limit),
			slog.Int("deleted", deleted),
			slog.Int("truncated", truncated))
	}
	return nil
}

// Clear removes every stored and attached segment of one kind for a
// number, recursively through children. Used when an accuracy failure
// invalidates an attempt's data.
func (r *Register) Clear(ctx context.Context, kind Kind, num *algebraic.Number) error {
	if !kind.valid() {
		return fmt.Errorf("invalid kind %d", kind)
	}

	ctx, span := otel.Tracer("register").Start(ctx, "register.Clear",
		trace.WithAttributes(
			attribute.String("kind", kind.String()),
			attribute.String("number", num.Key()),
		),
	)
	defer span.End()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegisterClosed
	}

	pair := pairKey(kind, num)
	for _, e := range r.index[pair] {
		err := r.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
			if err := txn.Delete(metaKey(pair, e.id)); err != nil {
				return err
			}
			return txn.Delete(segKey(pair, e.id))
		})
		if err != nil {
			r.mu.Unlock()
			span.RecordError(err)
			return fmt.Errorf("delete segment: %w", err)
		}
		r.invalidateCache(pair, e.id)
	}
	removed := len(r.index[pair]) + len(r.buffers[pair])
	delete(r.index, pair)
	delete(r.buffers, pair)
	r.mu.Unlock()

	for _, child := range r.childrenSnapshot() {
		if err := child.Clear(ctx, kind, num); err != nil {
			return err
		}
	}

	r.logger.Debug("cleared segments",
		slog.String("pair", pair),
		slog.Int("removed", removed))

	return nil
}

func (r *Register) invalidateCache(pair, id string) {
	if r.cacheID == pair+":"+id {
		r.cacheID = ""
		r.cachePayload = nil
	}
}

// -----------------------------------------------------------------------------
// Introspection
// -----------------------------------------------------------------------------

// KnownRanges returns the merged position ranges of one kind held for a
// number across buffers, stored segments, and children, sorted by
// start.
func (r *Register) KnownRanges(ctx context.Context, kind Kind, num *algebraic.Number) ([]IndexRange, error) {
	var raw []IndexRange

	r.mu.RLock()
	pair := pairKey(kind, num)
	for _, seg := range r.buffers[pair] {
		if seg.Len() > 0 {
			raw = append(raw, IndexRange{Start: seg.Start(), End: seg.End()})
		}
	}
	for _, e := range r.index[pair] {
		raw = append(raw, IndexRange{Start: e.start, End: e.start + e.length})
	}
	r.mu.RUnlock()

	for _, child := range r.childrenSnapshot() {
		rs, err := child.KnownRanges(ctx, kind, num)
		if err != nil {
			return nil, err
		}
		raw = append(raw, rs...)
	}

	return mergeRanges(raw), nil
}

// Numbers returns the distinct numbers with data in this register or
// its children.
func (r *Register) Numbers(ctx context.Context) ([]*algebraic.Number, error) {
	seen := make(map[string]*algebraic.Number)

	r.mu.RLock()
	for key, num := range r.nums {
		seen[key] = num
	}
	r.mu.RUnlock()

	for _, child := range r.childrenSnapshot() {
		nums, err := child.Numbers(ctx)
		if err != nil {
			return nil, err
		}
		for _, num := range nums {
			seen[num.Key()] = num
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]*algebraic.Number, 0, len(keys))
	for _, key := range keys {
		out = append(out, seen[key])
	}
	return out, nil
}

// mergeRanges sorts and coalesces overlapping or adjacent ranges.
func mergeRanges(raw []IndexRange) []IndexRange {
	if len(raw) == 0 {
		return nil
	}
	sort.Slice(raw, func(i, j int) bool {
		if raw[i].Start != raw[j].Start {
			return raw[i].Start < raw[j].Start
		}
		return raw[i].End < raw[j].End
	})
	out := []IndexRange{raw[0]}
	for _, r := range raw[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
