package cli

import (
	"github.com/spf13/cobra"

	"github.com/agentx-labs/agentsync/internal/installer"
)

var (
	updateDryRun     bool
	updateCategories []string
	updateAgents     []string
)

func init() {
	updateCmd.Flags().BoolVar(&updateDryRun, "dry-run", false, "Show what would change without writing anything")
	updateCmd.Flags().StringSliceVar(&updateCategories, "category", nil, "Only update this category (agents, tools, prompts, skills, commands, user); repeatable")
	updateCmd.Flags().StringSliceVar(&updateAgents, "agent", nil, "Only update this installed agent; repeatable")
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Bring the installation up to date with upstream",
	Long: `Fetch the upstream kit and apply its changes to the installed files.

Unchanged files are updated automatically, local edits are kept, and files
changed on both sides are prompted for (or skipped without a terminal). A
backup is taken before anything is written; undo with 'rollback'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		opts := installer.UpdateOptions{DryRun: updateDryRun}
		if cmd.Flags().Changed("category") {
			opts.Categories = updateCategories
		}
		if cmd.Flags().Changed("agent") {
			opts.Agents = updateAgents
		}
		rep, err := s.installer.Update(cmd.Context(), opts)
		if rep != nil {
			s.printer.Sync(rep)
		}
		return err
	},
}
