package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	apperrors "github.com/agentx-labs/agentsync/internal/errors"
	"github.com/agentx-labs/agentsync/internal/hash"
	"github.com/agentx-labs/agentsync/internal/manifest"
	"github.com/agentx-labs/agentsync/internal/platform"
)

// Resolution is the operator's answer to an agent or shared conflict.
type Resolution string

const (
	// KeepMine leaves the local file and accepts upstream as seen.
	KeepMine Resolution = "keep"
	// TakeUpstream overwrites the local file.
	TakeUpstream Resolution = "take"
	// Skip leaves the file and defers the decision.
	Skip Resolution = "skip"
)

// Resolver decides agent and shared conflicts.
type Resolver interface {
	Resolve(ctx context.Context, it Item) (Resolution, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, it Item) (Resolution, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, it Item) (Resolution, error) {
	return f(ctx, it)
}

// SkipAll resolves every conflict with Skip.
var SkipAll Resolver = ResolverFunc(func(context.Context, Item) (Resolution, error) {
	return Skip, nil
})

// UpstreamSuffix is appended to a user file's path for its sidecar.
const UpstreamSuffix = ".upstream"

// Outcome is what happened to one item.
type Outcome struct {
	Item
	// Resolution is set for agent and shared conflicts.
	Resolution Resolution
	// Recorded is the hash written to the manifest.
	Recorded hash.Sum
	// Sidecar is the path of a written upstream sidecar.
	Sidecar string
	// Drop is set when the path leaves the manifest.
	Drop bool
	// Err is a per-file failure. The path is left out of the manifest.
	Err error
}

// Result is the outcome of applying a plan.
type Result struct {
	Outcomes []Outcome
	Warnings []string
}

// Failures returns the outcomes that failed.
func (r *Result) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Entries returns the manifest entries of successful outcomes.
func (r *Result) Entries() []manifest.Entry {
	var out []manifest.Entry
	for _, o := range r.Outcomes {
		if o.Err != nil || o.Drop {
			continue
		}
		out = append(out, manifest.Entry{Path: o.Path, Tier: o.Tier, Hash: o.Recorded})
	}
	return out
}

// Dropped returns the paths to remove from the manifest.
func (r *Result) Dropped() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Drop {
			out = append(out, o.Path)
		}
	}
	return out
}

// Err summarizes per-file failures as a FILE_OP error, or nil.
func (r *Result) Err() error {
	failures := r.Failures()
	if len(failures) == 0 {
		return nil
	}
	return apperrors.Newf(apperrors.ErrFileOp, "%d file(s) could not be updated", len(failures)).
		WithDetail("first", failures[0].Err.Error())
}

// Applier executes plans.
type Applier struct {
	Fs       afero.Fs
	Mode     manifest.Mode
	Resolver Resolver
	Log      zerolog.Logger
}

// Apply carries out every item of plan in order. Per-file failures are
// recorded in the result and do not stop the run. Only a resolver error
// (for example an interrupted prompt) aborts.
func (a Applier) Apply(ctx context.Context, plan *Plan) (*Result, error) {
	res := &Result{}
	resolver := a.Resolver
	if resolver == nil {
		resolver = SkipAll
	}

	for _, it := range plan.Items {
		o := Outcome{Item: it}
		log := a.Log.With().Str("path", it.Path).Str("action", string(it.Action)).Logger()

		switch it.Action {
		case ActionNew, ActionAutoUpdate:
			o.Recorded = it.Incoming
			o.Err = a.place(it)

		case ActionUnchanged, ActionAlreadyCurrent:
			o.Recorded = it.Current

		case ActionLocallyModified:
			o.Recorded = it.Installed
			if it.Current.IsMissing() {
				res.Warnings = append(res.Warnings, missingLocally(it.Path))
			}

		case ActionRemovedUpstream:
			// A dangling link hashes as missing but is still on disk.
			if it.Current.IsMissing() && !platform.Exists(a.Fs, it.Path) {
				o.Drop = true
			} else {
				o.Recorded = it.Installed
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("%s was removed upstream; delete it manually if no longer needed", it.Path))
			}

		case ActionConflict:
			if it.Tier == manifest.TierUser {
				o.Sidecar = it.Path + UpstreamSuffix
				o.Recorded = it.Incoming
				if err := platform.WriteAtomic(a.Fs, o.Sidecar, it.Content, platform.FilePerm); err != nil {
					o.Err = fmt.Errorf("writing %s: %w", o.Sidecar, err)
				} else {
					res.Warnings = append(res.Warnings, fmt.Sprintf(
						"%s has local changes; upstream version saved, compare with: diff -u %s %s",
						it.Path, it.Path, o.Sidecar))
				}
				break
			}

			choice, err := resolver.Resolve(ctx, it)
			if err != nil {
				return res, fmt.Errorf("resolving conflict for %s: %w", it.Path, err)
			}
			o.Resolution = choice
			switch choice {
			case TakeUpstream:
				o.Recorded = it.Incoming
				o.Err = a.place(it)
			case KeepMine:
				o.Recorded = it.Incoming
			default:
				o.Resolution = Skip
				o.Recorded = it.Current
			}
			if o.Resolution != TakeUpstream && it.Current.IsMissing() {
				res.Warnings = append(res.Warnings, missingLocally(it.Path))
			}
		}

		if o.Err != nil {
			log.Error().Err(o.Err).Msg("file operation failed")
		} else {
			log.Debug().Str("recorded", o.Recorded.Short()).Msg("applied")
		}
		res.Outcomes = append(res.Outcomes, o)
	}
	return res, nil
}

func missingLocally(path string) string {
	return fmt.Sprintf("%s is missing locally and is not restored automatically; copy it from upstream if you still need it", path)
}

// place writes the item's incoming content to its path: a symlink to the
// upstream file in link mode, a copy otherwise or when the content was
// rendered.
func (a Applier) place(it Item) error {
	if it.Entry == nil {
		return fmt.Errorf("no upstream content for %s", it.Path)
	}
	if a.Mode == manifest.ModeLink && !it.Rendered {
		if err := platform.CreateSymlink(a.Fs, it.Entry.Source, it.Path); err != nil {
			return apperrors.Wrapf(err, apperrors.ErrFileOp, "linking %s", it.Path)
		}
		return nil
	}
	perm := platform.FilePerm
	if info, err := a.Fs.Stat(it.Entry.Source); err == nil {
		perm = info.Mode().Perm()
	}
	if err := platform.WriteAtomic(a.Fs, it.Path, it.Content, perm); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrFileOp, "writing %s", it.Path)
	}
	return nil
}
