package reconcile

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/agentx-labs/agentsync/internal/hash"
	"github.com/agentx-labs/agentsync/internal/manifest"
	"github.com/agentx-labs/agentsync/internal/registry"
)

// Renderer transforms pristine upstream content before it is compared and
// written. Renderers must be deterministic and idempotent.
type Renderer interface {
	Render(e registry.Entry, upstream []byte) ([]byte, error)
}

// Scope restricts a run. Nil slices mean no restriction. Paths outside the
// scope are neither classified nor touched.
type Scope struct {
	Categories []string
	Agents     []string
	Skills     []string
}

// Covers reports whether a manifest entry under installRoot is in scope.
func (s Scope) Covers(installRoot string, e manifest.Entry) bool {
	if s.Categories != nil && !contains(s.Categories, registry.CategoryOf(installRoot, e)) {
		return false
	}
	if s.Agents != nil {
		if name, ok := registry.AgentOf(installRoot, e.Path); ok && !contains(s.Agents, name) {
			return false
		}
	}
	if s.Skills != nil && registry.CategoryOf(installRoot, e) == registry.CategorySkills {
		if !contains(s.Skills, registry.SkillName(filepath.Base(e.Path))) {
			return false
		}
	}
	return true
}

// Filter returns the discovery filter matching the scope.
func (s Scope) Filter() registry.Filter {
	return registry.Filter{Categories: s.Categories, Agents: s.Agents, Skills: s.Skills}
}

// Item is the plan for one path.
type Item struct {
	Path     string
	Tier     manifest.Tier
	Category string
	Action   Action

	Installed hash.Sum
	Current   hash.Sum
	Incoming  hash.Sum

	// Entry is the upstream resource; nil for ActionRemovedUpstream.
	Entry *registry.Entry
	// Content is the rendered upstream content.
	Content []byte
	// Rendered is set when Content differs from the upstream file, which
	// forces a copy even in link mode.
	Rendered bool
}

// Plan is the classified set of paths for one run, sorted by path.
type Plan struct {
	Items []Item
}

// Mutating reports whether applying the plan would write to disk.
func (p *Plan) Mutating() bool {
	for _, it := range p.Items {
		if it.Action.Mutating() {
			return true
		}
	}
	return false
}

// Count returns the number of items with action a.
func (p *Plan) Count(a Action) int {
	n := 0
	for _, it := range p.Items {
		if it.Action == a {
			n++
		}
	}
	return n
}

// Planner builds plans.
type Planner struct {
	Fs          afero.Fs
	Hasher      hash.Hasher
	InstallRoot string
	Renderers   []Renderer
}

// Build classifies every path known to the in-scope part of m or present
// in catalog. m may be nil for a first install. The catalog is expected to
// be discovered with the same scope.
func (pl Planner) Build(m *manifest.Manifest, catalog []registry.Entry, scope Scope) (*Plan, error) {
	items := make(map[string]*Item)

	for i := range catalog {
		e := catalog[i]
		upstream, err := afero.ReadFile(pl.Fs, e.Source)
		if err != nil {
			return nil, fmt.Errorf("reading upstream %s: %w", e.Source, err)
		}
		content := upstream
		for _, r := range pl.Renderers {
			content, err = r.Render(e, content)
			if err != nil {
				return nil, err
			}
		}
		current, err := pl.Hasher.File(pl.Fs, e.Dest)
		if err != nil {
			return nil, err
		}
		items[e.Dest] = &Item{
			Path:      e.Dest,
			Tier:      e.Tier,
			Category:  e.Category,
			Installed: hash.Missing,
			Current:   current,
			Incoming:  pl.Hasher.Bytes(content),
			Entry:     &e,
			Content:   content,
			Rendered:  !bytes.Equal(content, upstream),
		}
	}

	if m != nil {
		for _, me := range m.Entries {
			if !scope.Covers(pl.InstallRoot, me) {
				continue
			}
			if it, ok := items[me.Path]; ok {
				it.Installed = me.Hash
				continue
			}
			current, err := pl.Hasher.File(pl.Fs, me.Path)
			if err != nil {
				return nil, err
			}
			items[me.Path] = &Item{
				Path:      me.Path,
				Tier:      me.Tier,
				Category:  registry.CategoryOf(pl.InstallRoot, me),
				Installed: me.Hash,
				Current:   current,
				Incoming:  hash.Missing,
			}
		}
	}

	plan := &Plan{Items: make([]Item, 0, len(items))}
	for _, it := range items {
		it.Action = Classify(it.Installed, it.Current, it.Incoming)
		plan.Items = append(plan.Items, *it)
	}
	sort.Slice(plan.Items, func(i, j int) bool { return plan.Items[i].Path < plan.Items[j].Path })
	return plan, nil
}

func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
