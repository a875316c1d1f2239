package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbot-levels/internal/config"
	"github.com/dgnsrekt/gexbot-levels/internal/update"
)

func updateCmd() *cobra.Command {
	var (
		dryRun      bool
		tickers     []string
		aggregation string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Fetch current snapshots and write level files",
		Long: `Fetch the current GEX snapshot of every configured index, convert it into
ranked futures levels and write one CSV per futures symbol, plus the
last-update timestamp file.

Exits non-zero when no instrument produced levels or a write failed.

Examples:
  # Update all configured instruments
  gexlevels update

  # Only the S&P 500
  gexlevels update --tickers SPX

  # Show what would be fetched
  gexlevels update --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			agg := cfg.API.Aggregation
			if aggregation != "" {
				if !config.ValidAggregations[aggregation] {
					return fmt.Errorf("invalid aggregation %q", aggregation)
				}
				agg = aggregation
			}

			jobs := update.Jobs(cfg.InstrumentList(), agg, tickers)
			if len(jobs) == 0 {
				return fmt.Errorf("no configured instruments match %v", tickers)
			}

			logger.Info("generated jobs", zap.Int("count", len(jobs)))

			if dryRun {
				for _, j := range jobs {
					fmt.Printf("Would update: %s -> %s\n", j, cfg.OutputFile(j.Instrument.Target))
				}
				return nil
			}

			u, err := newUpdater(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer u.Close()

			result, err := u.Run(ctx, jobs, logger)
			if err != nil {
				return err
			}

			return batchError(result)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be updated")
	cmd.Flags().StringSliceVar(&tickers, "tickers", nil, "limit to these index symbols (e.g. SPX,NDX)")
	cmd.Flags().StringVar(&aggregation, "aggregation", "", "override aggregation (full, zero, one)")

	return cmd
}
