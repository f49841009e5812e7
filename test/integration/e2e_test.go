//go:build integration

package integration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	apperrors "github.com/agentx-labs/agentsync/internal/errors"
	"github.com/agentx-labs/agentsync/internal/installer"
	"github.com/agentx-labs/agentsync/internal/manifest"
	"github.com/agentx-labs/agentsync/internal/reconcile"
	"github.com/agentx-labs/agentsync/internal/source"
)

func newInstaller(env *testEnv, resolver reconcile.Resolver) *installer.Installer {
	opts := installer.Options{
		Root:       env.Root,
		SourceDir:  filepath.Join(env.Home, "no-checkout"),
		SourceURL:  env.Upstream,
		BackupKeep: 5,
		Version:    "dev",
	}
	return installer.New(afero.NewOsFs(), opts, source.NewProbe(), resolver, zerolog.Nop())
}

func loadManifest(t *testing.T, env *testEnv) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Load(afero.NewOsFs(), manifest.PathFor(env.Root))
	if err != nil {
		t.Fatalf("loading manifest: %v", err)
	}
	return m
}

// TestFullFlowFromClone covers the lifecycle against a cloned upstream:
// install -> upstream commit + local edit -> update -> status -> rollback.
func TestFullFlowFromClone(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	head1 := git(t, env.Upstream, "rev-parse", "HEAD")
	in := newInstaller(env, nil)

	// Step 1: Fresh install of every agent.
	if _, err := in.Install(ctx, installer.Selector{All: true}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	assertFileContent(t, filepath.Join(env.Root, "skills", "go.md"), "go v1\n")
	assertFileExists(t, filepath.Join(env.Root, "agents", "backend.md"))
	assertFileExists(t, filepath.Join(env.Root, "agents", "frontend.md"))
	assertFileContent(t, filepath.Join(env.Home, "AGENTS.md"), "# Agents\n")

	m := loadManifest(t, env)
	if m.SourceRevision != head1 {
		t.Errorf("manifest revision = %q, want %q", m.SourceRevision, head1)
	}
	if m.SourceURL != env.Upstream {
		t.Errorf("manifest source URL = %q, want %q", m.SourceURL, env.Upstream)
	}

	// Step 2: Upstream moves on while the user edits a user-tier document.
	writeFile(t, filepath.Join(env.Home, "AGENTS.md"), "# My agents\n")
	head2 := env.commit(t, "second", map[string]string{
		"skills/go.md": "go v2\n",
		"AGENTS.md":    "# Agents v2\n",
	})

	rep, err := in.Update(ctx, installer.UpdateOptions{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rep.Backup == nil {
		t.Error("update did not take a backup")
	}
	assertFileContent(t, filepath.Join(env.Root, "skills", "go.md"), "go v2\n")
	assertFileContent(t, filepath.Join(env.Home, "AGENTS.md"), "# My agents\n")
	assertFileContent(t, filepath.Join(env.Home, "AGENTS.md"+reconcile.UpstreamSuffix), "# Agents v2\n")
	if got := loadManifest(t, env).SourceRevision; got != head2 {
		t.Errorf("manifest revision after update = %q, want %q", got, head2)
	}

	// Step 3: Status reaches the upstream and finds nothing to do.
	rep, err = in.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if rep.LatestRevision != head2 {
		t.Errorf("latest revision = %q, want %q", rep.LatestRevision, head2)
	}
	if rep.Plan.Mutating() {
		t.Errorf("status after update still has pending changes: %+v", rep.Plan.Items)
	}

	// Step 4: Rollback restores the first install.
	if _, err := in.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	assertFileContent(t, filepath.Join(env.Root, "skills", "go.md"), "go v1\n")
	if got := loadManifest(t, env).SourceRevision; got != head1 {
		t.Errorf("manifest revision after rollback = %q, want %q", got, head1)
	}
}

func TestConflictTakeUpstreamFromClone(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	take := reconcile.ResolverFunc(func(context.Context, reconcile.Item) (reconcile.Resolution, error) {
		return reconcile.TakeUpstream, nil
	})
	in := newInstaller(env, take)

	if _, err := in.Install(ctx, installer.Selector{Agents: []string{"backend"}}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	goSkill := filepath.Join(env.Root, "skills", "go.md")
	writeFile(t, goSkill, "go mine\n")
	env.commit(t, "go v2", map[string]string{"skills/go.md": "go v2\n"})

	rep, err := in.Update(ctx, installer.UpdateOptions{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n := rep.Plan.Count(reconcile.ActionConflict); n != 1 {
		t.Errorf("conflicts = %d, want 1", n)
	}
	assertFileContent(t, goSkill, "go v2\n")

	m := loadManifest(t, env)
	if len(m.InstalledAgents) != 1 || m.InstalledAgents[0] != "backend" {
		t.Errorf("installed agents = %v, want [backend]", m.InstalledAgents)
	}
}

func TestLinkModeRejectedForClone(t *testing.T) {
	env := setupTestEnv(t)
	in := newInstaller(env, nil)

	_, err := in.Install(context.Background(), installer.Selector{All: true, Mode: manifest.ModeLink})
	if !apperrors.IsErrorCode(err, apperrors.ErrInvalidInput) {
		t.Fatalf("error code = %s, want INVALID_INPUT", apperrors.GetErrorCode(err))
	}
}
