package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one lifecycle sweep",
	Long:  "Evaluates every contact against the lifecycle rules once and saves any category or status transitions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		changed, err := env.Lifecycle.Sweep(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Lifecycle sweep complete: %d contacts transitioned\n", changed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
