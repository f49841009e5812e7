//go:build integration

package integration_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// testEnv holds the isolated directories of one end-to-end run.
type testEnv struct {
	Upstream string // git repository acting as the published kit
	Home     string // parent of the install root, receives shared files
	Root     string // install root
}

// setupTestEnv creates an upstream repository with one commit and an empty
// home directory. The installer never sees a local checkout, so every run
// clones Upstream.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	home := t.TempDir()
	env := &testEnv{
		Upstream: t.TempDir(),
		Home:     home,
		Root:     filepath.Join(home, "kit"),
	}

	git(t, env.Upstream, "init", "-b", "main")
	git(t, env.Upstream, "config", "user.email", "test@test.com")
	git(t, env.Upstream, "config", "user.name", "Test")
	env.commit(t, "initial", map[string]string{
		"kit.yaml":                 "name: test-kit\nversion: 1.0.0\n",
		"agents/backend/agent.md":  "---\nname: backend\nskills:\n  - go\n---\n\n# Backend\n",
		"agents/frontend/agent.md": "# Frontend\n",
		"skills/go.md":             "go v1\n",
		"skills/react.md":          "react v1\n",
		"AGENTS.md":                "# Agents\n",
		"profiles/api.yaml":        "name: api\nagents:\n  - name: backend\n    skills: [go]\n",
	})
	return env
}

// commit writes files into the upstream repository, commits them and
// returns the new HEAD.
func (e *testEnv) commit(t *testing.T, msg string, files map[string]string) string {
	t.Helper()
	for rel, content := range files {
		writeFile(t, filepath.Join(e.Upstream, rel), content)
	}
	git(t, e.Upstream, "add", ".")
	git(t, e.Upstream, "commit", "-q", "-m", msg)
	return git(t, e.Upstream, "rev-parse", "HEAD")
}

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func assertFileContent(t *testing.T, path, want string) {
	t.Helper()
	if got := readFile(t, path); got != want {
		t.Errorf("%s = %q, want %q", path, got, want)
	}
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file %s to exist: %v", path, err)
	}
}
