package installer

import (
	"context"
	"fmt"

	apperrors "github.com/agentx-labs/agentsync/internal/errors"
	"github.com/agentx-labs/agentsync/internal/hash"
	"github.com/agentx-labs/agentsync/internal/manifest"
	"github.com/agentx-labs/agentsync/internal/profile"
	"github.com/agentx-labs/agentsync/internal/reconcile"
	"github.com/agentx-labs/agentsync/internal/registry"
)

// Status reports the installed revision, the upstream revision and what an
// update would do. It never modifies installed files; the only write is
// the manifest synthesized for an installation that predates manifests.
//
// An unreachable upstream is a warning, not an error, as long as a
// manifest exists.
func (in *Installer) Status(ctx context.Context) (*Report, error) {
	rep := &Report{Operation: "status", DryRun: true}

	existing, err := in.loadManifest(rep)
	if err != nil {
		return nil, err
	}

	src, srcErr := in.resolveSource(ctx)
	if srcErr == nil {
		defer src.Cleanup()
	}

	if existing == nil {
		if srcErr != nil {
			return nil, srcErr
		}
		existing, err = in.migrate(ctx, src, hash.New(in.Opts.HashAlgorithm))
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return rep, nil
		}
		existing.InstalledAt = in.Now().UTC()
		if err := manifest.Save(in.Fs, existing, in.manifestPath()); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrFileOp, "saving migrated manifest")
		}
		rep.Migrated = true
	}
	rep.Manifest = existing
	rep.PreviousRevision = existing.SourceRevision

	backups, err := in.backups().List()
	if err != nil {
		in.Log.Debug().Err(err).Msg("listing backups")
	}
	rep.Backups = backups

	if srcErr != nil {
		in.Log.Debug().Err(srcErr).Msg("upstream unavailable")
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("upstream unavailable: %v", srcErr))
		return rep, nil
	}

	rep.SourceRevision = src.Revision(ctx)
	if latest, err := src.LatestRevision(ctx); err == nil {
		rep.LatestRevision = latest
	} else {
		in.Log.Debug().Err(err).Msg("could not query upstream HEAD")
	}

	var prof *profile.Profile
	if existing.Profile != "" {
		prof, err = profile.Load(in.Fs, src.Root, existing.Profile)
		if err != nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("active profile %q: %v", existing.Profile, err))
			return rep, nil
		}
	}

	hasher := hash.New(existing.HashAlgorithm)
	scope := reconcile.Scope{Agents: union(existing.InstalledAgents, profileAgents(prof))}
	if prof != nil {
		scope.Skills = prof.AllSkills
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
	rep.Deselected = in.deselected(existing, scope)
	return rep, nil
}
