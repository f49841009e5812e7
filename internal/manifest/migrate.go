package manifest

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/agentx-labs/agentsync/internal/hash"
)

// Candidate is a file a previous installation could have deployed.
type Candidate struct {
	Path string
	Tier Tier
	// Agent is the agent name when the candidate is an agent definition.
	Agent string
}

// Migrate synthesizes a manifest for an installation that predates
// manifests. Every candidate present on disk is hashed as-is and recorded;
// candidates not on disk are skipped. It returns nil and no error when no
// candidate exists, meaning nothing looks installed.
//
// Installed agents are those whose agent file is present. The mode is
// ModeLink when any discovered file is a symlink.
func Migrate(fsys afero.Fs, h hash.Hasher, candidates []Candidate) (*Manifest, error) {
	m := New()
	m.SourceRevision = MigratedRevision
	m.HashAlgorithm = h.Algorithm()

	for _, c := range candidates {
		sum, err := h.File(fsys, c.Path)
		if err != nil {
			return nil, fmt.Errorf("hashing %s during migration: %w", c.Path, err)
		}
		if sum == hash.Missing {
			continue
		}
		m.Set(Entry{Path: c.Path, Tier: c.Tier, Hash: sum})
		if c.Agent != "" {
			m.AddAgents(c.Agent)
		}
		if isSymlink(fsys, c.Path) {
			m.Mode = ModeLink
		}
	}

	if len(m.Entries) == 0 {
		return nil, nil
	}
	return m, nil
}

func isSymlink(fsys afero.Fs, path string) bool {
	lst, ok := fsys.(afero.Lstater)
	if !ok {
		return false
	}
	info, lstatCalled, err := lst.LstatIfPossible(path)
	if err != nil || !lstatCalled {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}
