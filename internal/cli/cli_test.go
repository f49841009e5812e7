package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/agentx-labs/agentsync/internal/errors"
	"github.com/agentx-labs/agentsync/internal/manifest"
)

// resetFlags restores every flag in the tree to its default so tests can
// share the package-level command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

type cliEnv struct {
	t      *testing.T
	src    string
	root   string
	config string
}

func newCLIEnv(t *testing.T) *cliEnv {
	base := t.TempDir()
	e := &cliEnv{
		t:      t,
		src:    filepath.Join(base, "src"),
		root:   filepath.Join(base, "home", "kit"),
		config: filepath.Join(base, "config.yaml"),
	}
	e.write(filepath.Join(e.src, "agents", "backend", "agent.md"), "---\nname: backend\nskills:\n  - go\n---\n")
	e.write(filepath.Join(e.src, "skills", "go.md"), "go v1\n")
	e.write(filepath.Join(e.src, "skills", "sql.md"), "sql v1\n")
	e.write(filepath.Join(e.src, "tools", "lint.sh"), "lint v1\n")
	e.write(filepath.Join(e.src, "AGENTS.md"), "# Agents\n")
	e.write(filepath.Join(e.src, "profiles", "api.yaml"), "name: api\ndescription: Server work\nagents:\n  - name: backend\n    skills: [go, sql]\n")
	return e
}

func (e *cliEnv) write(path, content string) {
	e.t.Helper()
	require.NoError(e.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0644))
}

func (e *cliEnv) read(path string) string {
	e.t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(e.t, err)
	return string(data)
}

// run executes the CLI against the fixture with stdin as input.
func (e *cliEnv) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	full := append([]string{"--root", e.root, "--source", e.src, "--source-url", "", "--config", e.config}, args...)
	return execute(e.t, stdin, full...)
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	logToFile = false
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	buildVersion, buildCommit, buildDate = "1.2.3", "abc", "2026-01-01"

	out, err := execute(t, "", "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", out)

	out, err = execute(t, "", "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"commit": "abc"`)

	out, err = execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "agentsync version 1.2.3 (commit: abc, built: 2026-01-01)\n", out)
}

func TestInstallUpdateRollback(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.run("", "install", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "install (dry run)")
	assert.NoDirExists(t, e.root)

	out, err = e.run("", "install")
	require.NoError(t, err)
	assert.Contains(t, out, "5 files: new 5")
	assert.Equal(t, "go v1\n", e.read(filepath.Join(e.root, "skills", "go.md")))

	e.write(filepath.Join(e.src, "skills", "go.md"), "go v2\n")
	out, err = e.run("", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Installation")
	assert.Contains(t, out, "auto-update")

	out, err = e.run("", "update")
	require.NoError(t, err)
	assert.Contains(t, out, "backup:")
	assert.Equal(t, "go v2\n", e.read(filepath.Join(e.root, "skills", "go.md")))

	out, err = e.run("", "rollback")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored backup")
	assert.Equal(t, "go v1\n", e.read(filepath.Join(e.root, "skills", "go.md")))
}

func TestInteractiveConflict(t *testing.T) {
	e := newCLIEnv(t)
	_, err := e.run("", "install")
	require.NoError(t, err)

	lint := filepath.Join(e.root, "tools", "lint.sh")
	e.write(lint, "mine\n")
	e.write(filepath.Join(e.src, "tools", "lint.sh"), "lint v2\n")

	out, err := e.run("", "update", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "conflict")
	assert.Equal(t, "mine\n", e.read(lint))

	out, err = e.run("2\n", "--interactive", "always", "update")
	require.NoError(t, err)
	assert.Contains(t, out, "changed locally and upstream")
	assert.Contains(t, out, "(took upstream)")
	assert.Equal(t, "lint v2\n", e.read(lint))
}

func TestInstallErrors(t *testing.T) {
	e := newCLIEnv(t)

	_, err := e.run("", "install", "--mode", "mirror")
	require.Error(t, err)
	assert.Equal(t, 5, apperrors.ExitCode(err))

	_, err = e.run("", "install", "--all", "backend")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrInvalidInput))

	_, err = e.run("", "update")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrInvalidInput))

	_, err = e.run("", "rollback")
	require.Error(t, err)
	assert.Equal(t, 4, apperrors.ExitCode(err))
}

func TestMissingSource(t *testing.T) {
	e := newCLIEnv(t)
	_, err := execute(t, "", "--root", e.root, "--source", filepath.Join(e.src, "nope"), "--source-url", "",
		"--config", e.config, "install")
	require.Error(t, err)
	assert.Equal(t, 3, apperrors.ExitCode(err))
}

func TestUpdateCategoryFlag(t *testing.T) {
	e := newCLIEnv(t)
	_, err := e.run("", "install")
	require.NoError(t, err)

	e.write(filepath.Join(e.src, "skills", "go.md"), "go v2\n")
	e.write(filepath.Join(e.src, "tools", "lint.sh"), "lint v2\n")

	_, err = e.run("", "update", "--category", "tools")
	require.NoError(t, err)
	assert.Equal(t, "lint v2\n", e.read(filepath.Join(e.root, "tools", "lint.sh")))
	assert.Equal(t, "go v1\n", e.read(filepath.Join(e.root, "skills", "go.md")))

	_, err = e.run("", "update", "--category", "widgets")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrInvalidInput))
}

func TestProfileCommands(t *testing.T) {
	e := newCLIEnv(t)
	_, err := e.run("", "install")
	require.NoError(t, err)

	out, err := e.run("", "profile", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "api")
	assert.Contains(t, out, "Server work")

	out, err = e.run("", "profile", "show", "api", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "api"`)
	assert.Contains(t, out, `"sql"`)

	out, err = e.run("", "profile", "switch", "api")
	require.NoError(t, err)
	assert.Contains(t, out, "profile switch")
	m, err := manifest.Load(afero.NewOsFs(), manifest.PathFor(e.root))
	require.NoError(t, err)
	assert.Equal(t, "api", m.Profile)
	assert.Contains(t, e.read(filepath.Join(e.root, "agents", "backend.md")), "  - sql")

	out, err = e.run("", "profile", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "* api")

	_, err = e.run("", "profile", "clear")
	require.NoError(t, err)
	assert.NotContains(t, e.read(filepath.Join(e.root, "agents", "backend.md")), "sql")

	_, err = e.run("", "profile", "show", "nope")
	require.Error(t, err)
	assert.Equal(t, 5, apperrors.ExitCode(err))
}

func TestConfigCommands(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.run("", "config", "set", "backup_keep", "5")
	require.NoError(t, err)
	assert.Equal(t, "Set backup_keep = 5\n", out)

	out, err = e.run("", "config", "get", "backup_keep")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)

	out, err = e.run("", "config", "get", "root")
	require.NoError(t, err)
	assert.Equal(t, e.root+"\n", out, "flags override the file")

	out, err = e.run("", "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "mode = copy\n")

	_, err = e.run("", "config", "set", "colour", "red")
	require.Error(t, err)
}

func TestDryRunDetection(t *testing.T) {
	cmd := &cobra.Command{Use: "sync"}
	cmd.Flags().Bool("dry-run", false, "")
	assert.False(t, dryRun(cmd))

	require.NoError(t, cmd.Flags().Set("dry-run", "true"))
	assert.True(t, dryRun(cmd))

	assert.False(t, dryRun(&cobra.Command{Use: "status"}), "commands without the flag are not dry runs")
}
