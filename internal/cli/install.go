package cli

import (
	"github.com/spf13/cobra"

	apperrors "github.com/agentx-labs/agentsync/internal/errors"
	"github.com/agentx-labs/agentsync/internal/installer"
	"github.com/agentx-labs/agentsync/internal/manifest"
)

var (
	installAll    bool
	installMode   string
	installDryRun bool
)

var installCmd = &cobra.Command{
	Use:   "install [agent...]",
	Short: "Install agents plus every shared and user resource",
	Long: `Install the named agents, or every agent when none are named, together with
all tools, prompts, skills, commands and the user documents (AGENTS.md,
RULES.md). Agents installed earlier stay installed.

Files you changed locally are never overwritten silently: conflicts are
prompted for in a terminal and skipped otherwise.`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installAll, "all", false, "Install every upstream agent")
	installCmd.Flags().StringVar(&installMode, "mode", "", "Placement mode for a new installation: copy or link")
	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "Show what would change without writing anything")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	var mode manifest.Mode
	if installMode != "" {
		m, ok := manifest.ParseMode(installMode)
		if !ok {
			return apperrors.Newf(apperrors.ErrInvalidInput, "invalid mode %q (want copy or link)", installMode)
		}
		mode = m
	}
	if installAll && len(args) > 0 {
		return apperrors.New(apperrors.ErrInvalidInput, "--all cannot be combined with agent names")
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	rep, err := s.installer.Install(cmd.Context(), installer.Selector{
		Agents: args,
		All:    installAll || len(args) == 0,
		Mode:   mode,
		DryRun: installDryRun,
	})
	if rep != nil {
		s.printer.Sync(rep)
	}
	return err
}
