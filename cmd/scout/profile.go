package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Project profile utilities",
}

var profileValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a project profile file at the collaborator boundary",
	Long: `Validate a profile YAML file the same way the pipeline entry point
does. A profile that fails here would be rejected before any item is
processed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("profile")
		profile, err := loadProfile(path)
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s profile %s (%s): %d findings, %d focus areas, max %d recommendations\n",
			green("OK"), profile.ID, profile.Name, len(profile.Findings),
			len(profile.Scouting.FocusAreas), profile.Scouting.MaxRecommendations)
		return nil
	},
}

func init() {
	profileValidateCmd.Flags().String("profile", "", "YAML file with the project profile (required)")
	profileValidateCmd.MarkFlagRequired("profile")
	profileCmd.AddCommand(profileValidateCmd)
	rootCmd.AddCommand(profileCmd)
}
