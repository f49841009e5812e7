package cli

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/agentx-labs/agentsync/internal/branding"
	"github.com/agentx-labs/agentsync/internal/config"
	"github.com/agentx-labs/agentsync/internal/installer"
	"github.com/agentx-labs/agentsync/internal/logging"
	"github.com/agentx-labs/agentsync/internal/prompt"
	"github.com/agentx-labs/agentsync/internal/reconcile"
	"github.com/agentx-labs/agentsync/internal/report"
	"github.com/agentx-labs/agentsync/internal/source"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	flagRoot        string
	flagSource      string
	flagSourceURL   string
	flagConfig      string
	flagInteractive string
	flagVerbose     int
)

// logToFile is switched off by tests.
var logToFile = true

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` installs a shared kit of agent definitions, skills, tools, prompts
and commands into your config directory and keeps it in sync with upstream
without overwriting local changes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetupLoggerTo(cmd.ErrOrStderr(), flagVerbose, logToFile && !dryRun(cmd))
	},
}

// dryRun reports whether cmd runs with --dry-run, which must leave the
// filesystem untouched, log file included.
func dryRun(cmd *cobra.Command) bool {
	f := cmd.Flags().Lookup("dry-run")
	return f != nil && f.Value.String() == "true"
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagRoot, "root", "", "Install root (default $XDG_CONFIG_HOME/"+branding.ConfigDir()+"/kit)")
	pf.StringVar(&flagSource, "source", "", "Local checkout of the upstream kit")
	pf.StringVar(&flagSourceURL, "source-url", "", "Git URL cloned when no local source is available")
	pf.StringVar(&flagConfig, "config", "", "Config file (default "+config.FilePath()+")")
	pf.StringVar(&flagInteractive, "interactive", "", "Conflict prompts: auto, always or never")
	pf.CountVarP(&flagVerbose, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")
}

// Execute runs the root command with build info injected via ldflags. An
// interrupt cancels the running operation.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// session is everything a command needs, resolved once per invocation.
type session struct {
	installer *installer.Installer
	printer   *report.Printer
}

// newSession loads config, applies global flags and wires an installer.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}
	mode, err := prompt.ParseMode(settings.Interactive)
	if err != nil {
		return nil, err
	}

	fsys := afero.NewOsFs()
	out := cmd.OutOrStdout()
	printer := report.New(out, colorFor(out))
	printer.Fs = fsys

	in := installer.New(fsys, installer.Options{
		Root:          settings.Root,
		SourceDir:     settings.Source,
		SourceURL:     settings.SourceURL,
		Mode:          settings.Mode,
		HashAlgorithm: settings.HashAlgorithm,
		BackupKeep:    settings.BackupKeep,
		Version:       buildVersion,
	}, source.NewProbe(), resolverFor(cmd, mode, printer, fsys), logging.GetLogger("installer"))

	return &session{installer: in, printer: printer}, nil
}

// loadConfig reads the config file and binds the global flags over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	bindings := map[string]string{
		config.KeyRoot:        "root",
		config.KeySource:      "source",
		config.KeySourceURL:   "source-url",
		config.KeyInteractive: "interactive",
	}
	for key, name := range bindings {
		if err := cfg.BindFlag(key, cmd.Flag(name)); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func colorFor(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && report.ColorEnabled(f)
}

func resolverFor(cmd *cobra.Command, mode prompt.Mode, printer *report.Printer, fsys afero.Fs) reconcile.Resolver {
	if f, ok := cmd.InOrStdin().(*os.File); ok {
		return prompt.Select(mode, f, cmd.OutOrStdout(), printer, fsys)
	}
	if mode == prompt.Always {
		return prompt.NewTerminal(cmd.InOrStdin(), cmd.OutOrStdout(), printer, fsys)
	}
	return reconcile.SkipAll
}
