package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var (
	profileShowYAML bool
	profileShowJSON bool
)

func init() {
	profileShowCmd.Flags().BoolVar(&profileShowYAML, "yaml", false, "Output as YAML")
	profileShowCmd.Flags().BoolVar(&profileShowJSON, "json", false, "Output as JSON")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSwitchCmd)
	profileCmd.AddCommand(profileClearCmd)
	rootCmd.AddCommand(profileCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the active skill profile",
	Long: `Profiles select a subset of skills and give agents extra skills. They are
defined upstream under profiles/. Switching re-renders agent files from the
pristine upstream copies, so changing profiles never accumulates edits.`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the profiles upstream provides",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		list, err := s.installer.ListProfiles(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing profiles: %w", err)
		}
		active := ""
		if m := s.installer.Current(); m != nil {
			active = m.Profile
		}
		s.printer.Profiles(list, active)
		return nil
	},
}

type profileView struct {
	Name        string              `json:"name" yaml:"name"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Agents      []string            `json:"agents" yaml:"agents"`
	Skills      map[string][]string `json:"skills,omitempty" yaml:"skills,omitempty"`
	AllSkills   []string            `json:"all_skills" yaml:"all_skills"`
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		p, err := s.installer.ShowProfile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		view := profileView{
			Name:        p.Name,
			Description: p.Description,
			Agents:      p.Agents,
			Skills:      p.AgentSkills,
			AllSkills:   p.AllSkills,
		}

		out := cmd.OutOrStdout()
		if profileShowJSON {
			data, err := json.MarshalIndent(view, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling profile as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		if profileShowYAML {
			data, err := yaml.Marshal(view)
			if err != nil {
				return fmt.Errorf("marshaling profile as YAML: %w", err)
			}
			fmt.Fprint(out, string(data))
			return nil
		}
		s.printer.Profile(p)
		return nil
	},
}

var profileSwitchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Activate a profile and re-render the installation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return switchProfile(cmd, args[0])
	},
}

var profileClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Deactivate the current profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return switchProfile(cmd, "")
	},
}

func switchProfile(cmd *cobra.Command, name string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	rep, err := s.installer.SwitchProfile(cmd.Context(), name)
	if rep != nil {
		s.printer.Sync(rep)
	}
	return err
}
