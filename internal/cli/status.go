package cli

import (
	"github.com/spf13/cobra"
)

var (
	statusDiff  bool
	statusFiles bool
)

func init() {
	statusCmd.Flags().BoolVar(&statusDiff, "diff", false, "Show line diffs for files that differ from upstream")
	statusCmd.Flags().BoolVar(&statusFiles, "files", false, "List every tracked file")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the installed revision and pending upstream changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		rep, err := s.installer.Status(cmd.Context())
		if err != nil {
			return err
		}
		s.printer.Status(rep, statusDiff)
		if statusFiles && rep.Manifest != nil {
			s.printer.Manifest(rep.Manifest)
		}
		return nil
	},
}
