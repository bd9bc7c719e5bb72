package main

import (
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clahage/my-clever-crm-sub012/internal/ingest"
)

var processLimit int

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process pending signals",
	Long:  "Drains the unprocessed signal queue through the ingestion pipeline. Failed records keep their error and are left for a later run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit := processLimit
		if limit <= 0 {
			limit = cfg.Ingest.BatchSize
		}

		pending, err := env.Store.ListPendingSignals(ctx, limit)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("No pending signals.")
			return nil
		}

		zap.L().Info("processing pending signals", zap.Int("count", len(pending)))

		var created, updated, skipped, failed atomic.Int64

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Ingest.Concurrency)
		for _, rec := range pending {
			g.Go(func() error {
				out, err := env.Pipeline.Process(gctx, rec.ID, rec.Signal)
				if err != nil {
					failed.Add(1)
					zap.L().Warn("signal failed",
						zap.String("record_id", rec.ID),
						zap.String("source_id", rec.Signal.SourceID),
						zap.Error(err),
					)
					return nil
				}
				switch out.Action {
				case ingest.ActionCreated:
					created.Add(1)
				case ingest.ActionUpdated:
					updated.Add(1)
				default:
					skipped.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Printf("Processed %d signals: %d created, %d updated, %d skipped, %d failed\n",
			len(pending), created.Load(), updated.Load(), skipped.Load(), failed.Load())
		return nil
	},
}

func init() {
	processCmd.Flags().IntVar(&processLimit, "limit", 0, "max signals to process (default from config)")
	rootCmd.AddCommand(processCmd)
}
