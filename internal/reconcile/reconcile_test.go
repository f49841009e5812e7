package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/agentx-labs/agentsync/internal/errors"
	"github.com/agentx-labs/agentsync/internal/hash"
	"github.com/agentx-labs/agentsync/internal/manifest"
	"github.com/agentx-labs/agentsync/internal/platform"
	"github.com/agentx-labs/agentsync/internal/registry"
)

type fixture struct {
	t      *testing.T
	fs     afero.Fs
	hasher hash.Hasher
	src    string
	root   string
}

func newFixture(t *testing.T) *fixture {
	base := t.TempDir()
	return &fixture{
		t:      t,
		fs:     afero.NewOsFs(),
		hasher: hash.New(hash.SHA256),
		src:    filepath.Join(base, "src"),
		root:   filepath.Join(base, "home", "kit"),
	}
}

func (f *fixture) write(path, content string) {
	f.t.Helper()
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0644))
}

func (f *fixture) read(path string) string {
	f.t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(f.t, err)
	return string(data)
}

func (f *fixture) catalog() []registry.Entry {
	f.t.Helper()
	entries, err := registry.Discover(f.fs, f.hasher, f.src, f.root, registry.Filter{})
	require.NoError(f.t, err)
	return entries
}

func (f *fixture) planner(renderers ...Renderer) Planner {
	return Planner{Fs: f.fs, Hasher: f.hasher, InstallRoot: f.root, Renderers: renderers}
}

func (f *fixture) applier(mode manifest.Mode, r Resolver) Applier {
	return Applier{Fs: f.fs, Mode: mode, Resolver: r, Log: zerolog.Nop()}
}

// install runs a full first install and returns the resulting manifest.
func (f *fixture) install() *manifest.Manifest {
	f.t.Helper()
	plan, err := f.planner().Build(nil, f.catalog(), Scope{})
	require.NoError(f.t, err)
	res, err := f.applier(manifest.ModeCopy, nil).Apply(context.Background(), plan)
	require.NoError(f.t, err)
	require.NoError(f.t, res.Err())
	m := manifest.New()
	for _, e := range res.Entries() {
		m.Set(e)
	}
	return m
}

func (f *fixture) itemFor(plan *Plan, path string) Item {
	f.t.Helper()
	for _, it := range plan.Items {
		if it.Path == path {
			return it
		}
	}
	f.t.Fatalf("no plan item for %s", path)
	return Item{}
}

func outcomeFor(t *testing.T, res *Result, path string) Outcome {
	t.Helper()
	for _, o := range res.Outcomes {
		if o.Path == path {
			return o
		}
	}
	t.Fatalf("no outcome for %s", path)
	return Outcome{}
}

func TestFirstInstallPlacesEverything(t *testing.T) {
	f := newFixture(t)
	f.write(filepath.Join(f.src, "skills", "go.md"), "H0")
	f.write(filepath.Join(f.src, "agents", "builder", "agent.md"), "agent")
	f.write(filepath.Join(f.src, "AGENTS.md"), "user")

	m := f.install()

	assert.Len(t, m.Entries, 3)
	assert.Equal(t, "H0", f.read(filepath.Join(f.root, "skills", "go.md")))
	assert.Equal(t, "agent", f.read(filepath.Join(f.root, "agents", "builder.md")))
	assert.Equal(t, "user", f.read(filepath.Join(filepath.Dir(f.root), "AGENTS.md")))
	for _, e := range m.Entries {
		sum, err := f.hasher.File(f.fs, e.Path)
		require.NoError(t, err)
		assert.Equal(t, sum, e.Hash, e.Path)
	}
}

// A shared file changed both upstream (H1) and locally (H2). Without an
// interactive session the local copy stays and the manifest records H2.
func TestSharedConflictNonInteractive(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(f.src, "skills", "go.md")
	dest := filepath.Join(f.root, "skills", "go.md")
	f.write(src, "H0")
	m := f.install()

	f.write(src, "H1")
	f.write(dest, "H2")

	plan, err := f.planner().Build(m, f.catalog(), Scope{})
	require.NoError(t, err)
	it := f.itemFor(plan, dest)
	assert.Equal(t, ActionConflict, it.Action)

	res, err := f.applier(manifest.ModeCopy, SkipAll).Apply(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, "H2", f.read(dest))
	o := outcomeFor(t, res, dest)
	assert.Equal(t, Skip, o.Resolution)
	assert.Equal(t, f.hasher.Bytes([]byte("H2")), o.Recorded)
}

func TestSharedConflictResolutions(t *testing.T) {
	tests := []struct {
		choice      Resolution
		wantContent string
		wantHash    string
	}{
		{TakeUpstream, "H1", "H1"},
		{KeepMine, "H2", "H1"},
		{Skip, "H2", "H2"},
	}
	for _, tt := range tests {
		t.Run(string(tt.choice), func(t *testing.T) {
			f := newFixture(t)
			src := filepath.Join(f.src, "agents", "builder", "agent.md")
			dest := filepath.Join(f.root, "agents", "builder.md")
			f.write(src, "H0")
			m := f.install()
			f.write(src, "H1")
			f.write(dest, "H2")

			plan, err := f.planner().Build(m, f.catalog(), Scope{})
			require.NoError(t, err)

			var asked []string
			resolver := ResolverFunc(func(_ context.Context, it Item) (Resolution, error) {
				asked = append(asked, it.Path)
				return tt.choice, nil
			})
			res, err := f.applier(manifest.ModeCopy, resolver).Apply(context.Background(), plan)
			require.NoError(t, err)

			assert.Equal(t, []string{dest}, asked)
			assert.Equal(t, tt.wantContent, f.read(dest))
			assert.Equal(t, f.hasher.Bytes([]byte(tt.wantHash)), outcomeFor(t, res, dest).Recorded)
		})
	}
}

func TestResolverErrorAborts(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(f.src, "skills", "go.md")
	f.write(src, "H0")
	m := f.install()
	f.write(src, "H1")
	f.write(filepath.Join(f.root, "skills", "go.md"), "H2")

	plan, err := f.planner().Build(m, f.catalog(), Scope{})
	require.NoError(t, err)
	boom := errors.New("interrupted")
	_, err = f.applier(manifest.ModeCopy, ResolverFunc(func(context.Context, Item) (Resolution, error) {
		return "", boom
	})).Apply(context.Background(), plan)
	assert.ErrorIs(t, err, boom)
}

// A user file is never overwritten on conflict; upstream goes to a sidecar.
func TestUserConflictWritesSidecar(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(f.src, "AGENTS.md")
	dest := filepath.Join(filepath.Dir(f.root), "AGENTS.md")
	f.write(src, "H0")
	m := f.install()
	f.write(src, "H1")
	f.write(dest, "H2")

	plan, err := f.planner().Build(m, f.catalog(), Scope{})
	require.NoError(t, err)
	require.Equal(t, ActionConflict, f.itemFor(plan, dest).Action)

	resolver := ResolverFunc(func(context.Context, Item) (Resolution, error) {
		t.Fatal("user conflicts must not prompt")
		return "", nil
	})
	res, err := f.applier(manifest.ModeCopy, resolver).Apply(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, "H2", f.read(dest))
	assert.Equal(t, "H1", f.read(dest+UpstreamSuffix))
	o := outcomeFor(t, res, dest)
	assert.Equal(t, dest+UpstreamSuffix, o.Sidecar)
	assert.Equal(t, f.hasher.Bytes([]byte("H1")), o.Recorded)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "diff -u "+dest+" "+dest+UpstreamSuffix)
}

func TestUntrackedUserFileIsNotOverwritten(t *testing.T) {
	f := newFixture(t)
	dest := filepath.Join(filepath.Dir(f.root), "RULES.md")
	f.write(filepath.Join(f.src, "RULES.md"), "upstream rules")
	f.write(dest, "my rules")

	plan, err := f.planner().Build(manifest.New(), f.catalog(), Scope{})
	require.NoError(t, err)
	assert.Equal(t, ActionConflict, f.itemFor(plan, dest).Action)

	_, err = f.applier(manifest.ModeCopy, nil).Apply(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, "my rules", f.read(dest))
	assert.Equal(t, "upstream rules", f.read(dest+UpstreamSuffix))
}

// An untracked agent or shared file with other content goes to the
// resolver instead of being replaced; no backup would hold it.
func TestUntrackedSharedFileIsAConflict(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(f.src, "agents", "frontend", "agent.md")
	dest := filepath.Join(f.root, "agents", "frontend.md")
	f.write(src, "# Frontend\n")
	f.write(dest, "# my own frontend agent\n")

	plan, err := f.planner().Build(manifest.New(), f.catalog(), Scope{})
	require.NoError(t, err)
	require.Equal(t, ActionConflict, f.itemFor(plan, dest).Action)

	res, err := f.applier(manifest.ModeCopy, SkipAll).Apply(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, "# my own frontend agent\n", f.read(dest))
	o := outcomeFor(t, res, dest)
	assert.Equal(t, Skip, o.Resolution)
	assert.Empty(t, o.Sidecar)
	assert.Equal(t, f.hasher.Bytes([]byte("# my own frontend agent\n")), o.Recorded)

	take := ResolverFunc(func(context.Context, Item) (Resolution, error) { return TakeUpstream, nil })
	res, err = f.applier(manifest.ModeCopy, take).Apply(context.Background(), plan)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, "# Frontend\n", f.read(dest))
}

// In link mode a file removed upstream leaves a dangling link behind. It
// hashes as missing but is still on disk, so it stays tracked and flagged.
func TestRemovedUpstreamDanglingLinkStaysTracked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := filepath.Join(f.src, "skills", "react.md")
	dest := filepath.Join(f.root, "skills", "react.md")
	f.write(src, "react v1")

	plan, err := f.planner().Build(nil, f.catalog(), Scope{})
	require.NoError(t, err)
	res, err := f.applier(manifest.ModeLink, nil).Apply(ctx, plan)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	if info, err := os.Lstat(dest); err != nil || info.Mode()&os.ModeSymlink == 0 {
		t.Skip("symlinks not supported")
	}
	m := manifest.New()
	for _, e := range res.Entries() {
		m.Set(e)
	}

	require.NoError(t, os.Remove(src))
	plan, err = f.planner().Build(m, f.catalog(), Scope{})
	require.NoError(t, err)
	it := f.itemFor(plan, dest)
	require.Equal(t, ActionRemovedUpstream, it.Action)
	require.True(t, it.Current.IsMissing())

	res, err = f.applier(manifest.ModeLink, nil).Apply(ctx, plan)
	require.NoError(t, err)
	assert.Empty(t, res.Dropped())
	assert.Equal(t, f.hasher.Bytes([]byte("react v1")), outcomeFor(t, res, dest).Recorded)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "removed upstream")
	_, err = os.Lstat(dest)
	assert.NoError(t, err, "the link must be left for the operator")
}

func TestLocallyDeletedFileIsReported(t *testing.T) {
	f := newFixture(t)
	dest := filepath.Join(f.root, "tools", "fmt")
	f.write(filepath.Join(f.src, "tools", "fmt"), "v0")
	m := f.install()
	require.NoError(t, os.Remove(dest))

	plan, err := f.planner().Build(m, f.catalog(), Scope{})
	require.NoError(t, err)
	require.Equal(t, ActionLocallyModified, f.itemFor(plan, dest).Action)

	res, err := f.applier(manifest.ModeCopy, nil).Apply(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, f.hasher.Bytes([]byte("v0")), outcomeFor(t, res, dest).Recorded)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], dest+" is missing locally")
	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "a locally deleted file is not put back")
}

func TestUpdateOutcomes(t *testing.T) {
	f := newFixture(t)
	paths := map[string]string{}
	for _, name := range []string{"same", "auto", "current", "local", "gone", "gone-deleted"} {
		src := filepath.Join(f.src, "tools", name)
		f.write(src, "v0")
		paths[name] = filepath.Join(f.root, "tools", name)
	}
	m := f.install()

	f.write(filepath.Join(f.src, "tools", "auto"), "v1")
	f.write(filepath.Join(f.src, "tools", "current"), "v1")
	f.write(paths["current"], "v1")
	f.write(paths["local"], "mine")
	require.NoError(t, os.Remove(filepath.Join(f.src, "tools", "gone")))
	require.NoError(t, os.Remove(filepath.Join(f.src, "tools", "gone-deleted")))
	require.NoError(t, os.Remove(paths["gone-deleted"]))
	f.write(filepath.Join(f.src, "tools", "fresh"), "new")
	paths["fresh"] = filepath.Join(f.root, "tools", "fresh")

	plan, err := f.planner().Build(m, f.catalog(), Scope{})
	require.NoError(t, err)

	want := map[string]Action{
		"same":         ActionUnchanged,
		"auto":         ActionAutoUpdate,
		"current":      ActionAlreadyCurrent,
		"local":        ActionLocallyModified,
		"gone":         ActionRemovedUpstream,
		"gone-deleted": ActionRemovedUpstream,
		"fresh":        ActionNew,
	}
	for name, action := range want {
		assert.Equal(t, action, f.itemFor(plan, paths[name]).Action, name)
	}
	assert.True(t, plan.Mutating())

	res, err := f.applier(manifest.ModeCopy, nil).Apply(context.Background(), plan)
	require.NoError(t, err)
	require.NoError(t, res.Err())

	v0 := f.hasher.Bytes([]byte("v0"))
	v1 := f.hasher.Bytes([]byte("v1"))
	assert.Equal(t, "v1", f.read(paths["auto"]))
	assert.Equal(t, v1, outcomeFor(t, res, paths["auto"]).Recorded)
	assert.Equal(t, v1, outcomeFor(t, res, paths["current"]).Recorded)
	assert.Equal(t, "mine", f.read(paths["local"]))
	assert.Equal(t, v0, outcomeFor(t, res, paths["local"]).Recorded)
	assert.Equal(t, "v0", f.read(paths["gone"]), "removed-upstream must not delete")
	assert.Equal(t, v0, outcomeFor(t, res, paths["gone"]).Recorded)
	assert.Equal(t, []string{paths["gone-deleted"]}, res.Dropped())
	assert.Equal(t, "new", f.read(paths["fresh"]))
	assert.Len(t, res.Warnings, 1)
}

func TestUnchangedPlanIsNotMutating(t *testing.T) {
	f := newFixture(t)
	f.write(filepath.Join(f.src, "skills", "go.md"), "v0")
	m := f.install()

	plan, err := f.planner().Build(m, f.catalog(), Scope{})
	require.NoError(t, err)
	assert.False(t, plan.Mutating())
	assert.Equal(t, 1, plan.Count(ActionUnchanged))
}

func TestScopeLeavesOtherEntriesAlone(t *testing.T) {
	f := newFixture(t)
	f.write(filepath.Join(f.src, "skills", "go.md"), "v0")
	f.write(filepath.Join(f.src, "tools", "fmt"), "v0")
	m := f.install()

	require.NoError(t, os.Remove(filepath.Join(f.src, "tools", "fmt")))
	scope := Scope{Categories: []string{registry.CategorySkills}}
	catalog, err := registry.Discover(f.fs, f.hasher, f.src, f.root, scope.Filter())
	require.NoError(t, err)

	plan, err := f.planner().Build(m, catalog, scope)
	require.NoError(t, err)
	require.Len(t, plan.Items, 1)
	assert.Equal(t, filepath.Join(f.root, "skills", "go.md"), plan.Items[0].Path)
}

func TestScopeSkills(t *testing.T) {
	root := "/kit"
	scope := Scope{Skills: []string{"go"}}
	assert.True(t, scope.Covers(root, manifest.Entry{Path: "/kit/skills/go.md", Tier: manifest.TierShared}))
	assert.False(t, scope.Covers(root, manifest.Entry{Path: "/kit/skills/sql.md", Tier: manifest.TierShared}))
	assert.True(t, scope.Covers(root, manifest.Entry{Path: "/kit/tools/sql.md", Tier: manifest.TierShared}))

	agents := Scope{Agents: []string{"builder"}}
	assert.True(t, agents.Covers(root, manifest.Entry{Path: "/kit/agents/builder.md", Tier: manifest.TierAgent}))
	assert.False(t, agents.Covers(root, manifest.Entry{Path: "/kit/agents/reviewer.md", Tier: manifest.TierAgent}))
}

type upper struct{}

func (upper) Render(e registry.Entry, data []byte) ([]byte, error) {
	if e.Category != registry.CategoryAgents {
		return data, nil
	}
	return append([]byte("rendered:"), data...), nil
}

func TestRenderedContentIsCopiedInLinkMode(t *testing.T) {
	f := newFixture(t)
	f.write(filepath.Join(f.src, "agents", "builder", "agent.md"), "agent")
	f.write(filepath.Join(f.src, "skills", "go.md"), "skill")

	plan, err := f.planner(upper{}).Build(nil, f.catalog(), Scope{})
	require.NoError(t, err)
	_, err = f.applier(manifest.ModeLink, nil).Apply(context.Background(), plan)
	require.NoError(t, err)

	agentDest := filepath.Join(f.root, "agents", "builder.md")
	skillDest := filepath.Join(f.root, "skills", "go.md")
	assert.Equal(t, "rendered:agent", f.read(agentDest))
	assert.False(t, platform.IsSymlink(f.fs, agentDest))
	assert.True(t, platform.IsSymlink(f.fs, skillDest))
	assert.Equal(t, f.hasher.Bytes([]byte("rendered:agent")), f.itemFor(plan, agentDest).Incoming)

	// Rendering is stable, so a second pass sees nothing to do.
	m := manifest.New()
	m.Set(manifest.Entry{Path: agentDest, Tier: manifest.TierAgent, Hash: f.hasher.Bytes([]byte("rendered:agent"))})
	m.Set(manifest.Entry{Path: skillDest, Tier: manifest.TierShared, Hash: f.hasher.Bytes([]byte("skill"))})
	again, err := f.planner(upper{}).Build(m, f.catalog(), Scope{})
	require.NoError(t, err)
	assert.False(t, again.Mutating())
}

type failingRenderer struct{}

func (failingRenderer) Render(registry.Entry, []byte) ([]byte, error) {
	return nil, errors.New("bad region")
}

func TestRendererErrorFailsBuild(t *testing.T) {
	f := newFixture(t)
	f.write(filepath.Join(f.src, "skills", "go.md"), "v0")
	_, err := f.planner(failingRenderer{}).Build(nil, f.catalog(), Scope{})
	assert.Error(t, err)
}

func TestPerFileFailureIsCollected(t *testing.T) {
	f := newFixture(t)
	f.write(filepath.Join(f.src, "skills", "go.md"), "v0")
	f.write(filepath.Join(f.src, "tools", "fmt"), "v0")

	plan, err := f.planner().Build(nil, f.catalog(), Scope{})
	require.NoError(t, err)

	// A directory where the tools directory should be makes that write fail.
	f.write(filepath.Join(f.root, "tools"), "not a directory")

	res, err := f.applier(manifest.ModeCopy, nil).Apply(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, res.Failures(), 1)
	assert.Equal(t, filepath.Join(f.root, "tools", "fmt"), res.Failures()[0].Path)
	assert.True(t, apperrors.IsErrorCode(res.Err(), apperrors.ErrFileOp))
	require.Len(t, res.Entries(), 1)
	assert.Equal(t, filepath.Join(f.root, "skills", "go.md"), res.Entries()[0].Path)
	assert.Equal(t, "v0", f.read(filepath.Join(f.root, "skills", "go.md")))
}
