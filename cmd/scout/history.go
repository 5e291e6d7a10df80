package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stackscout/scout/internal/storage/sqlite"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent pipeline runs from the local history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := viper.GetString("db")
		if dbPath == "" {
			return fmt.Errorf("history requires --db (or SCOUT_DB)")
		}
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := sqlite.New(dbPath)
		if err != nil {
			return fmt.Errorf("open history database: %w", err)
		}
		defer store.Close()

		runs, err := store.RecentRuns(context.Background(), limit)
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(runs) == 0 {
			fmt.Printf("%s\n", gray("No runs recorded yet."))
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  evaluated=%d recommended=%d errors=%d %s\n",
				r.StartedAt, r.ProjectID, r.Evaluated, r.Recommended, r.ErrorCount,
				gray(fmt.Sprintf("(%dms, trace %s)", r.TotalMs, r.TraceID)))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum runs to show")
	rootCmd.AddCommand(historyCmd)
}
