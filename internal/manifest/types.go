package manifest

import (
	"sort"
	"time"

	"github.com/agentx-labs/agentsync/internal/hash"
)

// Tier decides how an installed file is treated when both the local copy
// and the upstream copy have changed.
type Tier string

const (
	// TierUser files are user-owned and never overwritten on conflict.
	TierUser Tier = "user"
	// TierAgent files are agent definitions.
	TierAgent Tier = "agent"
	// TierShared files are tools, prompts, skills and commands.
	TierShared Tier = "shared"
)

// ValidTiers contains all valid tier values.
var ValidTiers = []Tier{TierUser, TierAgent, TierShared}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	for _, v := range ValidTiers {
		if t == v {
			return true
		}
	}
	return false
}

// Mode is how upstream content is placed on disk.
type Mode string

const (
	ModeCopy Mode = "copy"
	ModeLink Mode = "link"
)

// ParseMode validates a mode name. Empty means ModeCopy.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeCopy:
		return ModeCopy, true
	case ModeLink:
		return ModeLink, true
	}
	return "", false
}

// MigratedRevision is the source revision of a manifest synthesized from
// files found on disk.
const MigratedRevision = "unknown (migrated)"

// Entry is one deployed file.
type Entry struct {
	Path string
	Tier Tier
	Hash hash.Sum
}

// Manifest is the record of one installation. Entries are keyed by
// absolute destination path, so a path appears at most once.
type Manifest struct {
	SourceRevision  string
	SourceURL       string
	InstalledAt     time.Time
	InstalledAgents []string
	Mode            Mode
	Profile         string
	HashAlgorithm   hash.Algorithm
	Entries         map[string]Entry
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{
		Mode:          ModeCopy,
		HashAlgorithm: hash.Default,
		Entries:       make(map[string]Entry),
	}
}

// Set records e, replacing any entry for the same path.
func (m *Manifest) Set(e Entry) {
	if m.Entries == nil {
		m.Entries = make(map[string]Entry)
	}
	m.Entries[e.Path] = e
}

// Get returns the entry for path.
func (m *Manifest) Get(path string) (Entry, bool) {
	e, ok := m.Entries[path]
	return e, ok
}

// Remove drops the entries for paths. Unknown paths are ignored.
func (m *Manifest) Remove(paths ...string) {
	for _, p := range paths {
		delete(m.Entries, p)
	}
}

// Sorted returns the entries ordered by tier, then path.
func (m *Manifest) Sorted() []Entry {
	out := make([]Entry, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// AddAgents adds names to the installed agent set, keeping it sorted and
// free of duplicates.
func (m *Manifest) AddAgents(names ...string) {
	m.InstalledAgents = unionSorted(m.InstalledAgents, names)
}

// HasAgent reports whether name is in the installed agent set.
func (m *Manifest) HasAgent(name string) bool {
	i := sort.SearchStrings(m.InstalledAgents, name)
	return i < len(m.InstalledAgents) && m.InstalledAgents[i] == name
}

// Clone returns a deep copy of m.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.InstalledAgents = append([]string(nil), m.InstalledAgents...)
	c.Entries = make(map[string]Entry, len(m.Entries))
	for k, v := range m.Entries {
		c.Entries[k] = v
	}
	return &c
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
