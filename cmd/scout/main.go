// Command scout runs the technology scouting pipeline: it matches a
// batch of feed items against a project profile and prints (or stores)
// the resulting recommendations.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "Stability-biased technology scouting",
	Long: `Scout decides whether externally observed technology signals warrant
a recommendation for a given project, biased toward leaving a working
stack alone. Feed items run through a prefilter, a maturity gate,
LLM enrichment, a stability gate, and a ranker.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if viper.GetBool("debug") {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "verbose per-item logging")
	rootCmd.PersistentFlags().String("db", "", "path to the local history database (optional)")

	viper.SetEnvPrefix("SCOUT")
	viper.AutomaticEnv()
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
