package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/agentx-labs/agentsync/internal/hash"
	"github.com/agentx-labs/agentsync/internal/manifest"
)

// Discover walks sourceRoot and returns every resource allowed by f, with
// destinations under installRoot, sorted by destination. A category whose
// directory is missing contributes no entries.
func Discover(fsys afero.Fs, h hash.Hasher, sourceRoot, installRoot string, f Filter) ([]Entry, error) {
	var result []Entry

	if f.allowsCategory(CategoryAgents) {
		agents, err := discoverAgents(fsys, sourceRoot, installRoot, f)
		if err != nil {
			return nil, err
		}
		result = append(result, agents...)
	}

	for _, cat := range flatCategories {
		if !f.allowsCategory(cat) {
			continue
		}
		entries, err := discoverFlat(fsys, sourceRoot, installRoot, cat, f)
		if err != nil {
			return nil, err
		}
		result = append(result, entries...)
	}

	if f.allowsCategory(CategoryUser) {
		users, err := discoverUserFiles(fsys, sourceRoot, installRoot)
		if err != nil {
			return nil, err
		}
		result = append(result, users...)
	}

	for i := range result {
		sum, err := h.File(fsys, result[i].Source)
		if err != nil {
			return nil, fmt.Errorf("hashing upstream %s: %w", result[i].Source, err)
		}
		result[i].Hash = sum
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Dest < result[j].Dest })
	return result, nil
}

// discoverAgents finds agents/<name>/agent.md definitions.
func discoverAgents(fsys afero.Fs, sourceRoot, installRoot string, f Filter) ([]Entry, error) {
	dir := filepath.Join(sourceRoot, CategoryAgents)
	infos, err := readDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var result []Entry
	for _, info := range infos {
		name := info.Name()
		if !info.IsDir() || isHidden(name) || !f.allowsAgent(name) {
			continue
		}
		src := filepath.Join(dir, name, agentFile)
		if !isRegular(fsys, src) {
			continue
		}
		result = append(result, Entry{
			Dest:     filepath.Join(installRoot, CategoryAgents, name+".md"),
			Source:   src,
			Tier:     manifest.TierAgent,
			Category: CategoryAgents,
			Name:     name,
		})
	}
	return result, nil
}

// discoverFlat finds the regular, non-hidden files directly inside a
// category directory.
func discoverFlat(fsys afero.Fs, sourceRoot, installRoot, category string, f Filter) ([]Entry, error) {
	dir := filepath.Join(sourceRoot, category)
	infos, err := readDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var result []Entry
	for _, info := range infos {
		name := info.Name()
		if isHidden(name) || !info.Mode().IsRegular() {
			continue
		}
		if category == CategorySkills && !f.allowsSkill(SkillName(name)) {
			continue
		}
		result = append(result, Entry{
			Dest:     filepath.Join(installRoot, category, name),
			Source:   filepath.Join(dir, name),
			Tier:     manifest.TierShared,
			Category: category,
			Name:     name,
		})
	}
	return result, nil
}

// discoverUserFiles finds the root-level user documents. They install into
// the parent of the install root.
func discoverUserFiles(fsys afero.Fs, sourceRoot, installRoot string) ([]Entry, error) {
	var result []Entry
	for _, name := range UserFiles {
		src := filepath.Join(sourceRoot, name)
		if !isRegular(fsys, src) {
			continue
		}
		result = append(result, Entry{
			Dest:     filepath.Join(filepath.Dir(installRoot), name),
			Source:   src,
			Tier:     manifest.TierUser,
			Category: CategoryUser,
			Name:     name,
		})
	}
	return result, nil
}

// SkillName is a skill's file name without its extension.
func SkillName(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}

// CategoryOf returns the category of an installed path.
func CategoryOf(installRoot string, e manifest.Entry) string {
	if e.Tier == manifest.TierUser {
		return CategoryUser
	}
	rel, err := filepath.Rel(installRoot, e.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	if IsValidCategory(first) {
		return first
	}
	return ""
}

// AgentOf returns the agent name for an installed agent definition path.
func AgentOf(installRoot, path string) (string, bool) {
	if filepath.Dir(path) != filepath.Join(installRoot, CategoryAgents) {
		return "", false
	}
	base := filepath.Base(path)
	if filepath.Ext(base) != ".md" {
		return "", false
	}
	return strings.TrimSuffix(base, ".md"), true
}

// Candidates converts discovered entries into migration candidates.
func Candidates(entries []Entry) []manifest.Candidate {
	out := make([]manifest.Candidate, 0, len(entries))
	for _, e := range entries {
		c := manifest.Candidate{Path: e.Dest, Tier: e.Tier}
		if e.Category == CategoryAgents {
			c.Agent = e.Name
		}
		out = append(out, c)
	}
	return out
}

// Agents returns the agent names among entries.
func Agents(entries []Entry) []string {
	var names []string
	for _, e := range entries {
		if e.Category == CategoryAgents {
			names = append(names, e.Name)
		}
	}
	return names
}

// readDir lists dir sorted by name. A missing directory yields no entries.
func readDir(fsys afero.Fs, dir string) ([]os.FileInfo, error) {
	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	return infos, nil
}

func isRegular(fsys afero.Fs, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
