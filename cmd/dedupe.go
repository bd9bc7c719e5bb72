package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var dedupeApply bool

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find and merge duplicate contacts",
	Long:  "Groups contacts sharing an email or phone and prints the merge plan. Merging deletes the absorbed records, so nothing is written unless --apply is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		groups, err := env.Dedupe.Plan(ctx)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No duplicate groups found.")
			return nil
		}

		fmt.Printf("Found %d duplicate groups:\n", len(groups))
		for _, g := range groups {
			fmt.Printf("  %s\n", g.String())
			for i, m := range g.Members {
				role := "duplicate"
				if i == 0 {
					role = "master"
				}
				fmt.Printf("    [%s] %s %s %s (created %s)\n",
					role, m.ID, m.FirstName, m.LastName, m.CreatedAt.Format("2006-01-02"))
			}
		}

		if !dedupeApply {
			fmt.Println("\nDry run. Re-run with --apply to merge.")
			return nil
		}

		report, err := env.Dedupe.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nMerge complete: %d groups, %d merged, %d absorbed records removed\n",
			report.Groups, report.Merged, report.Absorbed)
		return nil
	},
}

func init() {
	dedupeCmd.Flags().BoolVar(&dedupeApply, "apply", false, "perform the merges (default is a dry run)")
	rootCmd.AddCommand(dedupeCmd)
}
