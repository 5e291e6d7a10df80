package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stackscout/scout/internal/config"
	"github.com/stackscout/scout/internal/enrichment"
	"github.com/stackscout/scout/internal/pipeline"
	"github.com/stackscout/scout/internal/storage/sqlite"
	"github.com/stackscout/scout/internal/types"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run the matching pipeline over a batch of feed items",
	Long: `Run the full matching pipeline for one project.

Examples:
  # Full run against the Anthropic API
  scout match --items items.yaml --profile profile.yaml

  # Deterministic offline run (no API calls)
  scout match --items items.yaml --profile profile.yaml --skip-llm

  # Cap enrichment spend and persist the run
  scout match --items items.yaml --profile profile.yaml --max-llm-items 5 --db scout.db`,
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().String("items", "", "YAML file with the feed item batch (required)")
	matchCmd.Flags().String("profile", "", "YAML file with the project profile (required)")
	matchCmd.Flags().String("config", "", "YAML pipeline config (optional, defaults apply)")
	matchCmd.Flags().Bool("skip-llm", false, "bypass enrichment; deterministic offline analysis")
	matchCmd.Flags().Int("max-llm-items", 10, "cap on enrichment calls per run (0 = unlimited)")
	matchCmd.Flags().Bool("quick-check", true, "pre-enrichment stability short-circuit")
	matchCmd.MarkFlagRequired("items")
	matchCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	itemsPath, _ := cmd.Flags().GetString("items")
	profilePath, _ := cmd.Flags().GetString("profile")
	configPath, _ := cmd.Flags().GetString("config")

	items, err := loadItems(itemsPath)
	if err != nil {
		return err
	}
	profile, err := loadProfile(profilePath)
	if err != nil {
		return err
	}

	opts := config.Default()
	if configPath != "" {
		if opts, err = config.Load(configPath); err != nil {
			return err
		}
	}
	applyMatchOverrides(cmd, &opts)
	opts.Debug = viper.GetBool("debug")

	var analyst enrichment.Analyst
	if !opts.SkipLLM {
		analyst, err = enrichment.NewAnthropicAnalyst(&enrichment.AnalystConfig{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "Set ANTHROPIC_API_KEY, or pass --skip-llm for an offline run\n")
			os.Exit(1)
		}
	}

	matcher, err := pipeline.New(analyst, opts)
	if err != nil {
		return err
	}

	result := matcher.Match(context.Background(), items, profile)
	renderResult(result)

	if dbPath := viper.GetString("db"); dbPath != "" {
		store, err := sqlite.New(dbPath)
		if err != nil {
			return fmt.Errorf("open history database: %w", err)
		}
		defer store.Close()
		if err := store.SaveRun(context.Background(), result); err != nil {
			return fmt.Errorf("persist run: %w", err)
		}
		fmt.Printf("Run %s saved to %s\n", result.TraceID, dbPath)
	}

	if len(result.Errors) > 0 {
		// Partial failure never blocks delivery of what succeeded, but
		// the exit code should still say something went wrong.
		os.Exit(2)
	}
	return nil
}

// applyMatchOverrides layers explicitly passed flags over the loaded
// config. Flags the user did not set keep the config-file values; the
// flag defaults never clobber them.
func applyMatchOverrides(cmd *cobra.Command, opts *config.Options) {
	if cmd.Flags().Changed("skip-llm") {
		opts.SkipLLM, _ = cmd.Flags().GetBool("skip-llm")
	}
	if cmd.Flags().Changed("max-llm-items") {
		opts.MaxLLMItems, _ = cmd.Flags().GetInt("max-llm-items")
	}
	if cmd.Flags().Changed("quick-check") {
		opts.UseQuickCheck, _ = cmd.Flags().GetBool("quick-check")
	}
}

func loadItems(path string) ([]types.FeedItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items file: %w", err)
	}
	var batch struct {
		Items []types.FeedItem `yaml:"items"`
	}
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parse items file %s: %w", path, err)
	}
	for i := range batch.Items {
		if err := batch.Items[i].Validate(); err != nil {
			return nil, fmt.Errorf("items file %s: %w", path, err)
		}
	}
	return batch.Items, nil
}

func loadProfile(path string) (*types.ProjectProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}
	var profile types.ProjectProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile file %s: %w", path, err)
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &profile, nil
}

func renderResult(result *types.MatchingResult) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Scouting Result ==="))
	s := result.Summary
	fmt.Printf("Evaluated %d items: %d passed prefilter, %d passed maturity, %d analyzed, %d recommended\n\n",
		s.Evaluated, s.PassedPreFilter, s.PassedMaturity, s.Analyzed, s.Recommended)

	for _, rec := range result.Recommendations {
		verdictColor := gray
		switch rec.Assessment.Verdict {
		case types.VerdictRecommend:
			verdictColor = green
		case types.VerdictMonitor:
			verdictColor = yellow
		case types.VerdictDefer:
			verdictColor = red
		}
		fmt.Printf("%s %s %s (P%d, confidence %.2f)\n",
			verdictColor(string(rec.Assessment.Verdict)),
			rec.Subject.Name,
			gray(string(rec.Classification.Action)),
			rec.Classification.Priority,
			rec.Classification.Confidence)
		if rec.Assessment.Justification != "" {
			fmt.Printf("  %s\n", rec.Assessment.Justification)
		}
	}
	if len(result.Recommendations) == 0 {
		fmt.Printf("%s\n", gray("No recommendations; the stack is fine as it is."))
	}

	fmt.Printf("\nTiming: ")
	for _, stage := range []types.Stage{types.StagePreFilter, types.StageMaturity, types.StageEnrichment, types.StageStability, types.StageRanking} {
		fmt.Printf("%s=%dms ", stage, result.TimingMs[stage])
	}
	fmt.Printf("total=%dms\n", result.TotalMs)

	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "%s %s\n", red("error:"), e)
	}
}
