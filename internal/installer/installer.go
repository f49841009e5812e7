package installer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/agentx-labs/agentsync/internal/backup"
	apperrors "github.com/agentx-labs/agentsync/internal/errors"
	"github.com/agentx-labs/agentsync/internal/hash"
	"github.com/agentx-labs/agentsync/internal/manifest"
	"github.com/agentx-labs/agentsync/internal/profile"
	"github.com/agentx-labs/agentsync/internal/reconcile"
	"github.com/agentx-labs/agentsync/internal/source"
)

// Options configure an Installer.
type Options struct {
	// Root is the install root, e.g. ~/.config/agentsync/kit.
	Root string
	// SourceDir is a local upstream checkout. Optional.
	SourceDir string
	// SourceURL is cloned when SourceDir is empty or missing.
	SourceURL string
	// Mode is the default placement mode for first installs.
	Mode manifest.Mode
	// HashAlgorithm is used for new manifests.
	HashAlgorithm hash.Algorithm
	// BackupKeep is how many snapshots to keep.
	BackupKeep int
	// Version is the installer version checked against kit.yaml.
	Version string
}

// Installer runs sync operations against one install root.
type Installer struct {
	Fs       afero.Fs
	Opts     Options
	Probe    *source.Probe
	Resolver reconcile.Resolver
	Log      zerolog.Logger
	Now      func() time.Time
}

// New returns an Installer on fsys. A nil resolver skips every conflict.
func New(fsys afero.Fs, opts Options, probe *source.Probe, resolver reconcile.Resolver, log zerolog.Logger) *Installer {
	if probe == nil {
		probe = source.NewProbe()
	}
	if resolver == nil {
		resolver = reconcile.SkipAll
	}
	return &Installer{
		Fs:       fsys,
		Opts:     opts,
		Probe:    probe,
		Resolver: resolver,
		Log:      log,
		Now:      time.Now,
	}
}

// Report describes what an operation did, or would do in a dry run.
type Report struct {
	Operation string
	DryRun    bool
	// Migrated is set when the manifest was synthesized from disk.
	Migrated bool

	Plan   *reconcile.Plan
	Result *reconcile.Result
	Backup *backup.Snapshot

	// Manifest is the manifest after the operation (or the current one for
	// status and dry runs). Nil when nothing is installed.
	Manifest *manifest.Manifest

	PreviousRevision string
	SourceRevision   string
	// LatestRevision is the upstream HEAD; status only, "" if unknown.
	LatestRevision string

	// Deselected lists installed skills outside the active profile.
	Deselected []string
	// Backups lists the available snapshots; status only.
	Backups []backup.Snapshot
	// Warnings collects non-fatal problems.
	Warnings []string
}

func (in *Installer) manifestPath() string {
	return manifest.PathFor(in.Opts.Root)
}

func (in *Installer) backups() *backup.Manager {
	return &backup.Manager{
		Fs:   in.Fs,
		Root: in.Opts.Root,
		Keep: in.Opts.BackupKeep,
		Log:  in.Log,
		Now:  in.Now,
	}
}

// loadManifest returns the active manifest, nil when none exists. A
// corrupt manifest is reported as a warning and treated as absent so the
// run falls back to migration.
func (in *Installer) loadManifest(rep *Report) (*manifest.Manifest, error) {
	m, err := manifest.Load(in.Fs, in.manifestPath())
	switch {
	case err == nil:
		return m, nil
	case errors.Is(err, manifest.ErrNotFound):
		return nil, nil
	case errors.Is(err, manifest.ErrCorrupt):
		in.Log.Warn().Err(err).Msg("manifest is corrupt, rebuilding from installed files")
		rep.Warnings = append(rep.Warnings, "manifest was corrupt and has been rebuilt from installed files")
		return nil, nil
	default:
		return nil, apperrors.Wrap(err, apperrors.ErrFileOp, "loading manifest")
	}
}

// resolveSource returns the upstream tree for this run.
func (in *Installer) resolveSource(ctx context.Context) (*source.Source, error) {
	return source.Resolve(ctx, in.Probe, in.Opts.SourceDir, in.Opts.SourceURL, in.Log)
}

// Rollback restores the newest backup.
func (in *Installer) Rollback(ctx context.Context) (*Report, error) {
	rep := &Report{Operation: "rollback"}
	if prev, err := manifest.Load(in.Fs, in.manifestPath()); err == nil {
		rep.PreviousRevision = prev.SourceRevision
	}
	snap, m, err := in.backups().Rollback()
	if err != nil {
		return nil, err
	}
	rep.Backup = snap
	rep.Manifest = m
	rep.SourceRevision = m.SourceRevision
	return rep, nil
}

// ListProfiles returns the profiles the upstream source offers.
func (in *Installer) ListProfiles(ctx context.Context) ([]profile.Summary, error) {
	src, err := in.resolveSource(ctx)
	if err != nil {
		return nil, err
	}
	defer src.Cleanup()
	return profile.List(in.Fs, src.Root)
}

// ShowProfile loads one profile from the upstream source.
func (in *Installer) ShowProfile(ctx context.Context, name string) (*profile.Profile, error) {
	src, err := in.resolveSource(ctx)
	if err != nil {
		return nil, err
	}
	defer src.Cleanup()
	return profile.Load(in.Fs, src.Root, name)
}

// Current returns the active manifest, or nil when nothing is installed or
// the manifest cannot be read.
func (in *Installer) Current() *manifest.Manifest {
	m, err := manifest.Load(in.Fs, in.manifestPath())
	if err != nil {
		return nil
	}
	return m
}
