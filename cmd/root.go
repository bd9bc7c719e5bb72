package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clahage/my-clever-crm-sub012/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crmd",
	Short: "Contact identity resolution and lifecycle engine",
	Long:  "Ingests inbound signals (calls, web forms, manual entries), resolves them to canonical contacts, moves contacts through their lifecycle, and collapses duplicates.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
