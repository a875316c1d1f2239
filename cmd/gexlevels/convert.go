package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbot-levels/internal/archive"
	"github.com/dgnsrekt/gexbot-levels/internal/gex"
	"github.com/dgnsrekt/gexbot-levels/internal/levels"
	"github.com/dgnsrekt/gexbot-levels/internal/output"
)

func convertCmd() *cobra.Command {
	var (
		ticker  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Convert a saved snapshot into levels",
		Long: `Run the level pipeline on a saved snapshot and print the CSV.

FILE is a raw JSON snapshot or an archived .json.zst copy. The index symbol
comes from --ticker, or from the snapshot itself when omitted.

Examples:
  # Print levels for an archived SPX snapshot
  gexlevels convert archive/2025-11-14/SPX/full_150000.json.zst

  # Write NQ levels from a raw payload
  gexlevels convert --ticker NDX --out nq.csv ndx.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}

			symbol := ticker
			if symbol == "" {
				symbol = snap.Ticker
			}
			if symbol == "" {
				return fmt.Errorf("snapshot has no ticker, pass --ticker")
			}

			inst, ok := cfg.Instrument(symbol)
			if !ok {
				return fmt.Errorf("%s is not a configured instrument", symbol)
			}

			pipeline, err := levels.NewPipeline(cfg.LevelParams())
			if err != nil {
				return err
			}

			lvls := pipeline.Run(snap, inst)
			logger.Info("levels generated",
				zap.String("source", inst.Source),
				zap.String("target", inst.Target),
				zap.Int("count", len(lvls)),
			)

			if outPath == "" {
				return output.WriteCSV(os.Stdout, lvls)
			}
			return output.WriteCSVFile(outPath, lvls)
		},
	}

	cmd.Flags().StringVar(&ticker, "ticker", "", "index symbol of the snapshot (e.g. SPX)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write CSV to this file instead of stdout")

	return cmd
}

func readSnapshot(path string) (*gex.Snapshot, error) {
	var (
		snap  *gex.Snapshot
		stats gex.Stats
		err   error
	)
	if archive.IsArchive(path) {
		var body []byte
		if body, err = archive.ReadFile(path); err != nil {
			return nil, fmt.Errorf("reading snapshot: %w", err)
		}
		snap, stats, err = gex.Parse(body)
	} else {
		snap, stats, err = gex.ParseFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if stats.SkippedStrikes > 0 || stats.SkippedMaxPriors > 0 {
		logger.Warn("skipped malformed records",
			zap.Int("strikes", stats.SkippedStrikes),
			zap.Int("max_priors", stats.SkippedMaxPriors),
		)
	}
	return snap, nil
}
