package installer

import (
	"context"
	"sort"
	"strings"

	apperrors "github.com/agentx-labs/agentsync/internal/errors"
	"github.com/agentx-labs/agentsync/internal/hash"
	"github.com/agentx-labs/agentsync/internal/manifest"
	"github.com/agentx-labs/agentsync/internal/overlay"
	"github.com/agentx-labs/agentsync/internal/profile"
	"github.com/agentx-labs/agentsync/internal/reconcile"
	"github.com/agentx-labs/agentsync/internal/registry"
	"github.com/agentx-labs/agentsync/internal/source"
)

// Selector chooses what Install deploys.
type Selector struct {
	// Agents to add to the installed set. Ignored when All is set.
	Agents []string
	// All installs every upstream agent.
	All bool
	// Mode requests a placement mode. Empty keeps the current one.
	Mode   manifest.Mode
	DryRun bool
}

// UpdateOptions restrict Update.
type UpdateOptions struct {
	DryRun     bool
	Categories []string
	Agents     []string
}

// Install deploys the selected agents plus every shared and user resource.
func (in *Installer) Install(ctx context.Context, sel Selector) (*Report, error) {
	return in.run(ctx, runRequest{
		op:        "install",
		dryRun:    sel.DryRun,
		mode:      sel.Mode,
		agents:    sel.Agents,
		allAgents: sel.All,
	})
}

// Update brings an existing installation to the upstream revision.
func (in *Installer) Update(ctx context.Context, opts UpdateOptions) (*Report, error) {
	return in.run(ctx, runRequest{
		op:              "update",
		dryRun:          opts.DryRun,
		requireManifest: true,
		categories:      opts.Categories,
		onlyAgents:      opts.Agents,
	})
}

// SwitchProfile makes name the active profile and re-renders the
// installation. An empty name clears the active profile.
func (in *Installer) SwitchProfile(ctx context.Context, name string) (*Report, error) {
	op := "profile switch"
	if name == "" {
		op = "profile clear"
	}
	return in.run(ctx, runRequest{
		op:              op,
		requireManifest: true,
		profile:         &name,
	})
}

type runRequest struct {
	op              string
	dryRun          bool
	requireManifest bool
	mode            manifest.Mode
	agents          []string
	allAgents       bool
	onlyAgents      []string
	categories      []string
	// profile overrides the active profile when non-nil.
	profile *string
}

func (in *Installer) run(ctx context.Context, req runRequest) (*Report, error) {
	log := in.Log.With().Str("op", req.op).Logger()
	rep := &Report{Operation: req.op, DryRun: req.dryRun}

	for _, c := range req.categories {
		if !registry.IsValidCategory(c) {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "unknown category %q (want one of %s)",
				c, strings.Join(registry.ValidCategories, ", "))
		}
	}

	src, err := in.resolveSource(ctx)
	if err != nil {
		return nil, err
	}
	defer src.Cleanup()

	kit, err := registry.LoadKit(in.Fs, src.Root)
	if err != nil {
		return nil, err
	}
	if err := kit.CheckInstaller(in.Opts.Version); err != nil {
		return nil, err
	}

	existing, err := in.loadManifest(rep)
	if err != nil {
		return nil, err
	}
	algo := in.Opts.HashAlgorithm
	if existing != nil {
		algo = existing.HashAlgorithm
	}
	hasher := hash.New(algo)

	if existing == nil {
		existing, err = in.migrate(ctx, src, hasher)
		if err != nil {
			return nil, err
		}
		rep.Migrated = existing != nil
	}
	if existing == nil && req.requireManifest {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput,
			"nothing is installed in %s; run install first", in.Opts.Root)
	}
	if existing != nil {
		rep.PreviousRevision = existing.SourceRevision
	}

	mode, err := in.resolveMode(existing, rep.Migrated, req.mode)
	if err != nil {
		return nil, err
	}
	if mode == manifest.ModeLink && src.Temporary {
		return nil, apperrors.New(apperrors.ErrInvalidInput,
			"link mode needs a persistent local checkout; pass --source <dir>")
	}

	profileName := ""
	if existing != nil {
		profileName = existing.Profile
	}
	if req.profile != nil {
		profileName = *req.profile
	}
	var prof *profile.Profile
	if profileName != "" {
		prof, err = profile.Load(in.Fs, src.Root, profileName)
		if err != nil {
			return nil, err
		}
	}

	scope, err := in.scope(req, existing, prof, src, hasher)
	if err != nil {
		return nil, err
	}
	catalog, err := registry.Discover(in.Fs, hasher, src.Root, in.Opts.Root, scope.Filter())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrSourceMissing, "discovering upstream resources")
	}

	plan, err := in.planner(hasher, prof).Build(existing, catalog, scope)
	if err != nil {
		return nil, err
	}
	rep.Plan = plan
	rep.SourceRevision = src.Revision(ctx)
	rep.Deselected = in.deselected(existing, scope)

	if req.dryRun {
		rep.Manifest = existing
		log.Info().Int("items", len(plan.Items)).Msg("dry run, nothing written")
		return rep, nil
	}

	if plan.Mutating() && existing != nil {
		snap, err := in.backups().Snapshot(existing)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrFileOp, "creating backup")
		}
		rep.Backup = snap
	}

	applier := reconcile.Applier{Fs: in.Fs, Mode: mode, Resolver: in.Resolver, Log: log}
	result, err := applier.Apply(ctx, plan)
	if err != nil {
		return nil, err
	}
	rep.Result = result
	rep.Warnings = append(rep.Warnings, result.Warnings...)

	next := manifest.New()
	next.SourceRevision = rep.SourceRevision
	next.SourceURL = src.URL
	next.InstalledAt = in.Now().UTC()
	next.Mode = mode
	next.Profile = profileName
	next.HashAlgorithm = hasher.Algorithm()
	next.AddAgents(registry.Agents(catalog)...)
	for _, e := range result.Entries() {
		next.Set(e)
	}

	merged := manifest.Merge(existing, next)
	merged.Remove(result.Dropped()...)
	if err := manifest.Save(in.Fs, merged, in.manifestPath()); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrFileOp, "saving manifest")
	}
	rep.Manifest = merged

	log.Info().
		Str("revision", rep.SourceRevision).
		Int("failures", len(result.Failures())).
		Msg("sync complete")
	return rep, result.Err()
}

// planner renders the active profile into agents and local overlays
// into user files before classification.
func (in *Installer) planner(hasher hash.Hasher, prof *profile.Profile) reconcile.Planner {
	return reconcile.Planner{
		Fs:          in.Fs,
		Hasher:      hasher,
		InstallRoot: in.Opts.Root,
		Renderers: []reconcile.Renderer{
			profile.Renderer{Profile: prof},
			overlay.Renderer{Fs: in.Fs},
		},
	}
}

// migrate synthesizes a manifest from files already on disk, or returns
// nil when nothing looks installed.
func (in *Installer) migrate(ctx context.Context, src *source.Source, hasher hash.Hasher) (*manifest.Manifest, error) {
	all, err := registry.Discover(in.Fs, hasher, src.Root, in.Opts.Root, registry.Filter{})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrSourceMissing, "discovering upstream resources")
	}
	m, err := manifest.Migrate(in.Fs, hasher, registry.Candidates(all))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrFileOp, "migrating existing installation")
	}
	if m == nil {
		return nil, nil
	}
	m.SourceURL = src.URL
	in.Log.Info().Int("files", len(m.Entries)).Msg("synthesized manifest from installed files")
	return m, nil
}

// resolveMode picks the placement mode. A recorded mode can only be
// changed by reinstalling.
func (in *Installer) resolveMode(existing *manifest.Manifest, migrated bool, requested manifest.Mode) (manifest.Mode, error) {
	if existing != nil && !migrated {
		if requested != "" && requested != existing.Mode {
			return "", apperrors.Newf(apperrors.ErrInvalidInput,
				"installation in %s uses %s mode; to switch to %s mode, remove %s and install again",
				in.Opts.Root, existing.Mode, requested, in.manifestPath())
		}
		return existing.Mode, nil
	}
	switch {
	case requested != "":
		return requested, nil
	case existing != nil:
		return existing.Mode, nil
	case in.Opts.Mode != "":
		return in.Opts.Mode, nil
	}
	return manifest.ModeCopy, nil
}

// scope works out which agents, categories and skills a run covers.
func (in *Installer) scope(req runRequest, existing *manifest.Manifest, prof *profile.Profile, src *source.Source, hasher hash.Hasher) (reconcile.Scope, error) {
	scope := reconcile.Scope{Categories: req.categories}
	if prof != nil {
		scope.Skills = prof.AllSkills
	}

	var installed []string
	if existing != nil {
		installed = existing.InstalledAgents
	}

	switch {
	case req.op == "install" && req.allAgents:
		scope.Agents = nil
	case req.op == "install":
		if err := in.checkAgents(req.agents, src, hasher); err != nil {
			return scope, err
		}
		scope.Agents = union(req.agents, installed, profileAgents(prof))
	default:
		agents := union(installed, profileAgents(prof))
		if req.onlyAgents != nil {
			for _, a := range req.onlyAgents {
				if !contains(agents, a) {
					return scope, apperrors.Newf(apperrors.ErrInvalidInput, "agent %q is not installed", a)
				}
			}
			agents = req.onlyAgents
		}
		scope.Agents = agents
	}
	return scope, nil
}

// checkAgents rejects agent names upstream does not provide.
func (in *Installer) checkAgents(names []string, src *source.Source, hasher hash.Hasher) error {
	if len(names) == 0 {
		return nil
	}
	entries, err := registry.Discover(in.Fs, hasher, src.Root, in.Opts.Root,
		registry.Filter{Categories: []string{registry.CategoryAgents}})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrSourceMissing, "discovering upstream agents")
	}
	available := registry.Agents(entries)
	var unknown []string
	for _, n := range names {
		if !contains(available, n) {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return apperrors.Newf(apperrors.ErrInvalidInput, "unknown agent(s): %s (available: %s)",
			strings.Join(unknown, ", "), strings.Join(available, ", "))
	}
	return nil
}

// deselected lists installed skills that the active profile leaves out.
func (in *Installer) deselected(existing *manifest.Manifest, scope reconcile.Scope) []string {
	if existing == nil || scope.Skills == nil {
		return nil
	}
	skillsOnly := reconcile.Scope{Skills: scope.Skills}
	var out []string
	for _, e := range existing.Entries {
		if registry.CategoryOf(in.Opts.Root, e) != registry.CategorySkills {
			continue
		}
		if !skillsOnly.Covers(in.Opts.Root, e) {
			out = append(out, e.Path)
		}
	}
	sort.Strings(out)
	return out
}

func profileAgents(p *profile.Profile) []string {
	if p == nil {
		return nil
	}
	return p.Agents
}

// union returns the sorted, de-duplicated union of lists. The result is
// never nil, so an empty union still restricts.
func union(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, l := range lists {
		for _, s := range l {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
