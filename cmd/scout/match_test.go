package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackscout/scout/internal/config"
)

func parsedMatchCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "match"}
	cmd.Flags().Bool("skip-llm", false, "")
	cmd.Flags().Int("max-llm-items", 10, "")
	cmd.Flags().Bool("quick-check", true, "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

// Flags the user never passed must not clobber values loaded from the
// config file with the flag defaults.
func TestApplyMatchOverrides_UnsetFlagsKeepConfigValues(t *testing.T) {
	opts := config.Default()
	opts.SkipLLM = true
	opts.MaxLLMItems = 5
	opts.UseQuickCheck = false

	applyMatchOverrides(parsedMatchCmd(t), &opts)

	assert.True(t, opts.SkipLLM)
	assert.Equal(t, 5, opts.MaxLLMItems)
	assert.False(t, opts.UseQuickCheck)
}

func TestApplyMatchOverrides_ExplicitFlagsWin(t *testing.T) {
	opts := config.Default()
	opts.SkipLLM = true
	opts.MaxLLMItems = 5
	opts.UseQuickCheck = false

	cmd := parsedMatchCmd(t, "--skip-llm=false", "--max-llm-items", "7", "--quick-check")
	applyMatchOverrides(cmd, &opts)

	assert.False(t, opts.SkipLLM)
	assert.Equal(t, 7, opts.MaxLLMItems)
	assert.True(t, opts.UseQuickCheck)
}
