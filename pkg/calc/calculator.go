// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package calc

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/automorphis/beta-numbers/pkg/algebraic"
	"github.com/automorphis/beta-numbers/pkg/logging"
	"github.com/automorphis/beta-numbers/pkg/orbit"
	"github.com/automorphis/beta-numbers/pkg/periodicity"
	"github.com/automorphis/beta-numbers/pkg/register"
)

// Outcome is how a calculation run ended.
type Outcome int

const (
	// OutcomeFound means eventual periodicity was detected and recorded.
	OutcomeFound Outcome = iota + 1

	// OutcomeExhausted means MaxN steps passed without a detection.
	// All produced data is flushed, so a later run resumes where this
	// one stopped.
	OutcomeExhausted

	// OutcomePrecisionFailed means the digit stream stayed
	// indeterminate through every allowed precision restart.
	OutcomePrecisionFailed
)

// String returns a short name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomePrecisionFailed:
		return "precision failed"
	default:
		return "unknown"
	}
}

// Result summarizes a finished run.
type Result struct {
	// Outcome is how the run ended.
	Outcome Outcome

	// P and M are the detected period and preperiod, valid when the
	// outcome is OutcomeFound.
	P int
	M int

	// Prec is the root precision of the final attempt.
	Prec uint

	// Restarts is how many precision-doubling restarts happened.
	Restarts int

	// LastN is the sequence length when the run ended.
	LastN int
}

// Calculator runs periodicity calculations against a register.
//
// Thread Safety: Safe for concurrent use for distinct numbers. Two
// concurrent runs of the same number race on register contents.
type Calculator struct {
	reg    *register.Register
	logger *logging.Logger

	// switchCheck, when set, replaces the memory monitor's verdict on
	// whether detection should downgrade to register-backed mode.
	switchCheck func() (bool, error)
}

// New creates a Calculator.
//
// Inputs:
//   - reg: Register for orbit data. Must not be nil.
//   - logger: Optional; defaults to logging.Default().
func New(reg *register.Register, logger *logging.Logger) (*Calculator, error) {
	if reg == nil {
		return nil, errors.New("register must not be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Calculator{reg: reg, logger: logger}, nil
}

// Run calculates the eventual period of the expansion of 1 for num.
//
// Description:
//
//	The run resumes from whatever contiguous prefix the register
//	already holds. Each attempt advances the expansion step by step,
//	buffering digits and reduced polynomials in attached register
//	segments and flushing every SavePeriod positions. Detection starts
//	over the resident history and downgrades to register-backed mode
//	under memory pressure. An indeterminate digit aborts the attempt,
//	drops its data, and restarts at doubled precision, up to
//	MaxRestarts times.
//
// Inputs:
//   - ctx: Context for cancellation. Pending data is flushed before a
//     cancellation is returned. Must not be nil.
//   - num: The number to expand. Its precision is the starting precision.
//   - cfg: Run configuration. Must pass Validate().
//
// Outputs:
//   - Result: The outcome; see Outcome values.
//   - error: Non-nil on storage errors or cancellation. A precision
//     failure is an Outcome, not an error.
func (c *Calculator) Run(ctx context.Context, num *algebraic.Number, cfg Config) (Result, error) {
	if ctx == nil {
		return Result{}, errors.New("context must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid config: %w", err)
	}

	ctx, span := otel.Tracer("calc").Start(ctx, "calc.Run",
		trace.WithAttributes(
			attribute.String("number", num.Key()),
			attribute.Int("max_n", cfg.MaxN),
		),
	)
	defer span.End()

	// A recorded completion answers the run outright.
	comp, err := c.reg.Completion(ctx, num)
	if err != nil {
		return Result{}, err
	}
	if comp.Found {
		span.SetAttributes(attribute.Bool("already_complete", true))
		return Result{
			Outcome: OutcomeFound,
			P:       comp.P,
			M:       comp.M,
			Prec:    num.Prec(),
			LastN:   comp.M + comp.P,
		}, nil
	}

	cur := num
	restarts := 0
	for {
		res, err := c.runAttempt(ctx, cur, cfg, restarts)
		var accErr *orbit.AccuracyError
		if err == nil {
			span.SetAttributes(
				attribute.String("outcome", res.Outcome.String()),
				attribute.Int("restarts", res.Restarts),
			)
			return res, nil
		}
		if !errors.As(err, &accErr) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "attempt failed")
			return Result{}, err
		}

		c.logger.Warn("digit indeterminate, discarding attempt",
			"number", cur.Key(),
			"prec", cur.Prec(),
			"n", accErr.N,
			"restarts", restarts)

		for _, kind := range []register.Kind{register.KindDigit, register.KindIterate} {
			if err := c.reg.Clear(ctx, kind, cur); err != nil {
				return Result{}, fmt.Errorf("clear attempt data: %w", err)
			}
		}

		restarts++
		if restarts > cfg.MaxRestarts {
			span.SetAttributes(attribute.String("outcome", OutcomePrecisionFailed.String()))
			return Result{
				Outcome:  OutcomePrecisionFailed,
				Prec:     cur.Prec(),
				Restarts: cfg.MaxRestarts,
				LastN:    accErr.N,
			}, nil
		}
		cur, err = cur.WithPrec(cur.Prec() * 2)
		if err != nil {
			return Result{}, fmt.Errorf("double precision: %w", err)
		}
		c.logger.Info("restarting at doubled precision",
			"number", num.Key(), "prec", cur.Prec(), "restart", restarts)
	}
}

// runAttempt advances the expansion until detection, exhaustion, or an
// error. An *orbit.AccuracyError return means the attempt's data is
// worthless and the caller restarts.
func (c *Calculator) runAttempt(ctx context.Context, num *algebraic.Number, cfg Config, restarts int) (Result, error) {
	log := c.logger.With("number", num.Key(), "prec", num.Prec())

	startN, err := c.resumePoint(ctx, num)
	if err != nil {
		return Result{}, err
	}
	// Flushes are paired, but a store written by an unpaired flush can
	// hold one kind ahead of the other; the surplus would collide with
	// re-produced data.
	for _, kind := range []register.Kind{register.KindDigit, register.KindIterate} {
		if err := c.reg.TruncateTo(ctx, kind, num, startN); err != nil {
			return Result{}, fmt.Errorf("trim stale data: %w", err)
		}
	}
	if startN >= cfg.MaxN {
		return Result{Outcome: OutcomeExhausted, Prec: num.Prec(), Restarts: restarts, LastN: startN}, nil
	}

	it, err := orbit.New(num)
	if err != nil {
		return Result{}, err
	}
	if startN > 0 {
		b, err := c.reg.GetIterate(ctx, num, startN-1)
		if err != nil {
			return Result{}, fmt.Errorf("read seed polynomial: %w", err)
		}
		if err := it.Seed(b, startN); err != nil {
			return Result{}, err
		}
		log.Info("resuming calculation", "start_n", startN)
	}

	digBuf, err := register.NewDigitSegment(num, startN, nil)
	if err != nil {
		return Result{}, err
	}
	itBuf, err := register.NewIterateSegment(num, startN, nil)
	if err != nil {
		return Result{}, err
	}
	c.reg.AttachBuffer(digBuf)
	c.reg.AttachBuffer(itBuf)
	defer c.reg.DetachBuffer(digBuf)
	defer c.reg.DetachBuffer(itBuf)

	stored := cfg.StoredDetection || startN > 0
	var resident []algebraic.Polynomial
	var halfIt *orbit.Iterator
	var halfB algebraic.Polynomial
	halfK := 0
	if stored {
		halfIt, halfB, halfK, err = c.seedHalfCursor(ctx, num, startN)
		if err != nil {
			return Result{}, err
		}
	}

	mon := newMemoryMonitor(cfg.MinFreeBytes)
	checkSwitch := mon.shouldSwitch
	if c.switchCheck != nil {
		checkSwitch = c.switchCheck
	}
	n := startN
	lastFlush := startN

	flush := func() error {
		if n == lastFlush {
			return nil
		}
		dseg, err := digBuf.Slice(lastFlush, n)
		if err != nil {
			return err
		}
		iseg, err := itBuf.Slice(lastFlush, n)
		if err != nil {
			return err
		}
		if err := c.reg.FlushPair(ctx, dseg, iseg); err != nil {
			return err
		}
		if stored {
			digBuf.TrimFront(n)
			itBuf.TrimFront(n)
		}
		lastFlush = n
		return nil
	}

	for n < cfg.MaxN {
		if err := ctx.Err(); err != nil {
			if ferr := flush(); ferr != nil {
				log.Error("flush on cancellation failed", "error", ferr.Error())
			}
			return Result{}, err
		}

		step, err := it.Next()
		if err != nil {
			return Result{}, err
		}
		if err := digBuf.AppendDigit(step.Digit); err != nil {
			return Result{}, err
		}
		if err := itBuf.AppendIterate(step.B); err != nil {
			return Result{}, err
		}
		n++
		if !stored {
			resident = append(resident, step.B)
		} else {
			for halfK < n/2 {
				hs, err := halfIt.Next()
				if err != nil {
					return Result{}, fmt.Errorf("halfway cursor: %w", err)
				}
				halfB = hs.B
				halfK++
			}
		}

		if n%2 == 0 {
			var res periodicity.Result
			var ok bool
			if stored {
				res, ok, err = periodicity.DetectStored(ctx, c.reg, num, n, halfB, step.B)
				if err != nil {
					return Result{}, err
				}
			} else {
				res, ok = periodicity.DetectSlice(resident)
			}
			if ok {
				if err := flush(); err != nil {
					return Result{}, err
				}
				if err := c.reg.MarkComplete(ctx, num, res.P, res.M); err != nil {
					return Result{}, err
				}
				if err := c.reg.CleanupRedundancies(ctx, num); err != nil {
					return Result{}, err
				}
				log.Info("periodicity found", "p", res.P, "m", res.M, "n", n)
				return Result{
					Outcome:  OutcomeFound,
					P:        res.P,
					M:        res.M,
					Prec:     num.Prec(),
					Restarts: restarts,
					LastN:    n,
				}, nil
			}
		}

		if cfg.SavePeriod > 0 && n-lastFlush >= cfg.SavePeriod {
			if err := flush(); err != nil {
				return Result{}, err
			}
			log.Debug("progress flushed", "n", n)
		}

		if !stored && cfg.MemoryCheckPeriod > 0 && (n-startN)%cfg.MemoryCheckPeriod == 0 {
			sw, merr := checkSwitch()
			if merr != nil {
				log.Warn("memory sample failed", "error", merr.Error())
			} else if sw {
				halfK = n / 2
				halfIt, err = orbit.New(num)
				if err != nil {
					return Result{}, err
				}
				if halfK > 0 {
					halfB = resident[halfK-1]
					if err := halfIt.Seed(halfB, halfK); err != nil {
						return Result{}, err
					}
				}
				resident = nil
				digBuf.TrimFront(lastFlush)
				itBuf.TrimFront(lastFlush)
				stored = true
				log.Info("switched to register-backed detection", "n", n)
			}
		}
	}

	if err := flush(); err != nil {
		return Result{}, err
	}
	log.Info("step budget exhausted", "n", n)
	return Result{Outcome: OutcomeExhausted, Prec: num.Prec(), Restarts: restarts, LastN: n}, nil
}

// resumePoint returns the length of the contiguous prefix from
// position 0 held by the register for both data kinds.
func (c *Calculator) resumePoint(ctx context.Context, num *algebraic.Number) (int, error) {
	lead := func(rs []register.IndexRange) int {
		if len(rs) > 0 && rs[0].Start == 0 {
			return rs[0].End
		}
		return 0
	}
	irs, err := c.reg.KnownRanges(ctx, register.KindIterate, num)
	if err != nil {
		return 0, err
	}
	drs, err := c.reg.KnownRanges(ctx, register.KindDigit, num)
	if err != nil {
		return 0, err
	}
	n := lead(irs)
	if d := lead(drs); d < n {
		n = d
	}
	return n, nil
}

// seedHalfCursor positions the trailing iterator at half the resume
// point.
func (c *Calculator) seedHalfCursor(ctx context.Context, num *algebraic.Number, startN int) (*orbit.Iterator, algebraic.Polynomial, int, error) {
	halfIt, err := orbit.New(num)
	if err != nil {
		return nil, algebraic.Polynomial{}, 0, err
	}
	halfK := startN / 2
	var halfB algebraic.Polynomial
	if halfK > 0 {
		halfB, err = c.reg.GetIterate(ctx, num, halfK-1)
		if err != nil {
			return nil, algebraic.Polynomial{}, 0, fmt.Errorf("read halfway polynomial: %w", err)
		}
		if err := halfIt.Seed(halfB, halfK); err != nil {
			return nil, algebraic.Polynomial{}, 0, err
		}
	}
	return halfIt, halfB, halfK, nil
}
