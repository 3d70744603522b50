// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/automorphis/beta-numbers/pkg/algebraic"
	"github.com/automorphis/beta-numbers/pkg/calc"
	"github.com/automorphis/beta-numbers/pkg/register"
)

var (
	runPoly     string
	runPrec     uint
	runMaxN     int
	runStored   bool
	searchTrace int64
	searchMaxN  int

	rootCmd = &cobra.Command{
		Use:   "betaorbit",
		Short: "Beta expansion orbit and periodicity calculator",
		Long: `betaorbit computes the beta expansion of 1 for algebraic numbers
given by their minimal polynomials, detects eventual periodicity of the
orbit, and stores digits and iterates in a disk-backed register.`,
	}

	runCmd = &cobra.Command{
		Use:     "run",
		Short:   "Compute the periodicity of a single number",
		Aliases: []string{"r"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if runPoly == "" {
				return fmt.Errorf("--poly is required")
			}
			poly, err := parsePoly(runPoly)
			if err != nil {
				return err
			}
			num, err := algebraic.NewNumber(poly, runPrec)
			if err != nil {
				return err
			}
			reg, err := openRegister()
			if err != nil {
				return err
			}
			defer reg.Close()

			calcCfg := config.calcConfig()
			if runMaxN > 0 {
				calcCfg.MaxN = runMaxN
			}
			calcCfg.StoredDetection = runStored

			c, err := calc.New(reg, logger)
			if err != nil {
				return err
			}
			res, err := c.Run(cmd.Context(), num, calcCfg)
			if err != nil {
				return err
			}
			printResult(num, res)
			return nil
		},
	}

	searchCmd = &cobra.Command{
		Use:     "search",
		Short:   "Enumerate sextic Salem numbers and compute each one",
		Aliases: []string{"s"},
		RunE: func(cmd *cobra.Command, args []string) error {
			polys, err := algebraic.SexticSalems(searchTrace)
			if err != nil {
				return err
			}
			logger.Info("sextic salem search", "candidates", len(polys), "max_trace", searchTrace)

			reg, err := openRegister()
			if err != nil {
				return err
			}
			defer reg.Close()

			calcCfg := config.calcConfig()
			if searchMaxN > 0 {
				calcCfg.MaxN = searchMaxN
			}
			c, err := calc.New(reg, logger)
			if err != nil {
				return err
			}
			for _, poly := range polys {
				num, err := algebraic.NewNumber(poly, config.Prec)
				if err != nil {
					return err
				}
				ok, err := num.IsSalem()
				if err != nil {
					logger.Warn("salem check failed", "poly", poly.String(), "error", err)
					continue
				}
				if !ok {
					continue
				}
				res, err := c.Run(cmd.Context(), num, calcCfg)
				if err != nil {
					return err
				}
				printResult(num, res)
			}
			return nil
		},
	}

	rangesCmd = &cobra.Command{
		Use:     "ranges",
		Short:   "Report stored data for every number in the register",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegister()
			if err != nil {
				return err
			}
			defer reg.Close()

			ctx := cmd.Context()
			nums, err := reg.Numbers(ctx)
			if err != nil {
				return err
			}
			if len(nums) == 0 {
				fmt.Println("register is empty")
				return nil
			}
			for _, num := range nums {
				fmt.Printf("%s (prec %d)\n", num.MinPoly().String(), num.Prec())
				comp, err := reg.Completion(ctx, num)
				if err != nil {
					return err
				}
				if comp.Found {
					fmt.Printf("  periodic: p=%d m=%d\n", comp.P, comp.M)
				}
				for _, kind := range []register.Kind{register.KindDigit, register.KindIterate} {
					ranges, err := reg.KnownRanges(ctx, kind, num)
					if err != nil {
						return err
					}
					fmt.Printf("  %-7s", kind.String())
					if len(ranges) == 0 {
						fmt.Print(" (none)")
					}
					for _, r := range ranges {
						fmt.Printf(" [%d, %d)", r.Start, r.End)
					}
					fmt.Println()
				}
			}
			return nil
		},
	}
)

func init() {
	runCmd.Flags().StringVar(&runPoly, "poly", "", "Minimal polynomial coefficients, constant term first (e.g. -1,-1,1)")
	runCmd.Flags().UintVar(&runPrec, "prec", DefaultCLIConfig().Prec, "Starting root precision in bits")
	runCmd.Flags().IntVar(&runMaxN, "max-n", 0, "Step budget (0 uses the config value)")
	runCmd.Flags().BoolVar(&runStored, "stored-detection", false, "Use register-backed periodicity detection from the start")

	searchCmd.Flags().Int64Var(&searchTrace, "max-trace", 5, "Largest absolute trace of enumerated sextic polynomials")
	searchCmd.Flags().IntVar(&searchMaxN, "max-n", 0, "Step budget per number (0 uses the config value)")
}

func printResult(num *algebraic.Number, res calc.Result) {
	switch res.Outcome {
	case calc.OutcomeFound:
		fmt.Printf("%s: p=%d m=%d (prec %d, restarts %d)\n",
			num.MinPoly().String(), res.P, res.M, res.Prec, res.Restarts)
	case calc.OutcomeExhausted:
		fmt.Printf("%s: no period within %d steps (prec %d)\n",
			num.MinPoly().String(), res.LastN, res.Prec)
	case calc.OutcomePrecisionFailed:
		fmt.Printf("%s: accuracy lost at step %d after %d restarts (prec %d)\n",
			num.MinPoly().String(), res.LastN, res.Restarts, res.Prec)
	}
}
