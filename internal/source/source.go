package source

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/agentx-labs/agentsync/internal/errors"
)

// UnknownRevision is reported when the revision cannot be determined.
const UnknownRevision = "unknown"

// Source is a resolved upstream tree.
type Source struct {
	// Root is the local directory holding the tree.
	Root string
	// URL is the upstream location, when known.
	URL string
	// Temporary is set when Root is a throwaway clone. Link mode is not
	// allowed against it, since the links would dangle after Cleanup.
	Temporary bool

	probe *Probe
	log   zerolog.Logger
}

// Resolve returns the upstream tree for a run. A localPath that exists is
// used directly, recording its origin remote (or url) as the source URL.
// Otherwise url is cloned with --depth=1 into a temporary
// directory. Failure to produce a tree is SOURCE_MISSING; a missing git
// binary when a clone is needed is ENVIRONMENT.
func Resolve(ctx context.Context, probe *Probe, localPath, url string, log zerolog.Logger) (*Source, error) {
	if localPath != "" {
		abs, err := filepath.Abs(localPath)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrInvalidInput, "resolving source path %s", localPath)
		}
		info, err := os.Stat(abs)
		switch {
		case err == nil && info.IsDir():
			s := &Source{Root: abs, probe: probe, log: log}
			if s.URL = s.RemoteURL(ctx); s.URL == "" {
				s.URL = url
			}
			log.Debug().Str("root", abs).Msg("using local source")
			return s, nil
		case err == nil:
			return nil, apperrors.Newf(apperrors.ErrSourceMissing, "source %s is not a directory", abs)
		case url == "":
			return nil, apperrors.Wrapf(err, apperrors.ErrSourceMissing, "source %s not found", abs)
		}
		log.Debug().Str("path", abs).Msg("local source missing, falling back to clone")
	}

	if url == "" {
		return nil, apperrors.New(apperrors.ErrSourceMissing, "no source directory or source URL configured")
	}
	return clone(ctx, probe, url, log)
}

// clone fetches url into a fresh temporary directory.
func clone(ctx context.Context, probe *Probe, url string, log zerolog.Logger) (*Source, error) {
	git, err := probe.Git()
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "agentsync-source-")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrEnvironment, "creating temporary directory")
	}
	target := filepath.Join(tmpDir, "kit")

	log.Info().Str("url", url).Msg("fetching upstream")
	cmd := exec.CommandContext(ctx, git, "clone", "--depth=1", "--quiet", url, target)
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.RemoveAll(tmpDir)
		return nil, apperrors.Wrapf(
			fmt.Errorf("%w\n%s", err, strings.TrimSpace(string(output))),
			apperrors.ErrSourceMissing, "cloning %s", url)
	}

	return &Source{Root: target, URL: url, Temporary: true, probe: probe, log: log}, nil
}

// Cleanup removes a temporary clone. It is a no-op for local sources.
func (s *Source) Cleanup() {
	if s == nil || !s.Temporary {
		return
	}
	if err := os.RemoveAll(filepath.Dir(s.Root)); err != nil {
		s.log.Warn().Err(err).Str("path", s.Root).Msg("failed to remove temporary source")
	}
}

// Revision returns the commit checked out at the source root, or
// UnknownRevision when git is missing or the tree is not a repository.
func (s *Source) Revision(ctx context.Context) string {
	out, err := s.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		s.log.Debug().Err(err).Msg("source revision unavailable")
		return UnknownRevision
	}
	return out
}

// RemoteURL returns the origin URL of the source checkout, or "".
func (s *Source) RemoteURL(ctx context.Context) string {
	out, err := s.git(ctx, "config", "--get", "remote.origin.url")
	if err != nil {
		return ""
	}
	return out
}

// LatestRevision asks the upstream URL for its current HEAD commit. It
// needs the network; callers treat an error as "unknown" and carry on.
func (s *Source) LatestRevision(ctx context.Context) (string, error) {
	if s.URL == "" {
		return "", fmt.Errorf("no upstream URL")
	}
	git, err := s.probe.Git()
	if err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, git, "ls-remote", s.URL, "HEAD")
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git ls-remote %s: %w", s.URL, err)
	}
	fields := strings.Fields(string(output))
	if len(fields) == 0 {
		return "", fmt.Errorf("git ls-remote %s: empty response", s.URL)
	}
	return fields[0], nil
}

func (s *Source) git(ctx context.Context, args ...string) (string, error) {
	git, err := s.probe.Git()
	if err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, git, append([]string{"-C", s.Root}, args...)...)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(output)), nil
}
