package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rollbackCmd)
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore the files and manifest saved before the last change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		rep, err := s.installer.Rollback(cmd.Context())
		if err != nil {
			return err
		}
		s.printer.Rollback(rep)
		return nil
	},
}
