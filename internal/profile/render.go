package profile

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/agentx-labs/agentsync/internal/platform"
	"github.com/agentx-labs/agentsync/internal/region"
	"github.com/agentx-labs/agentsync/internal/registry"
)

// regionPrefix prefixes every profile region name.
const regionPrefix = "profile:"

// RegionName returns the marker name used for profile name.
func RegionName(name string) string {
	return regionPrefix + name
}

func isProfileRegion(name string) bool {
	return strings.HasPrefix(name, regionPrefix)
}

// Renderer injects the active profile into agent definitions. A nil
// Profile renders every agent pristine.
type Renderer struct {
	Profile *Profile
}

// Render returns upstream with profile regions for e's agent. Entries other
// than agent definitions are returned unchanged.
func (r Renderer) Render(e registry.Entry, upstream []byte) ([]byte, error) {
	if e.Category != registry.CategoryAgents {
		return upstream, nil
	}
	out, err := Apply(upstream, r.Profile, e.Name)
	if err != nil {
		return nil, fmt.Errorf("rendering profile into %s: %w", e.Dest, err)
	}
	return out, nil
}

// Apply strips every profile region from data and, when p gives agent
// skills it does not already declare, inserts them:
//
//   - as list items after the frontmatter "skills:" line, inside a
//     "# BEGIN profile:<name>" region (the key itself goes inside the region
//     when the frontmatter has none);
//   - as an appended section inside "<!-- BEGIN profile:<name> -->".
//
// Apply(Apply(x)) == Apply(x) for any profile, and applying a different
// profile leaves no trace of the previous one.
func Apply(data []byte, p *Profile, agent string) ([]byte, error) {
	stripped, err := region.StripFunc(data, isProfileRegion)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return stripped, nil
	}

	lines := splitLines(stripped)
	fm := scanFrontmatter(lines)

	var extras []string
	for _, s := range p.SkillsFor(agent) {
		if !containsString(fm.skills, s) {
			extras = append(extras, s)
		}
	}
	if len(extras) == 0 {
		return stripped, nil
	}

	name := RegionName(p.Name)
	out := stripped

	switch {
	case fm.close < 0 || fm.inline:
		// No frontmatter, or a flow-style list that cannot take items.
	case fm.skillsLine >= 0:
		items := make([]string, len(extras))
		for i, s := range extras {
			items[i] = fm.indent + "- " + s
		}
		at := fm.skillsLine + 1
		out = region.Add(out, name, items, func([]string) int { return at }, region.Hash)
	default:
		body := []string{"skills:"}
		for _, s := range extras {
			body = append(body, "  - "+s)
		}
		at := fm.close
		out = region.Add(out, name, body, func([]string) int { return at }, region.Hash)
	}

	section := []string{
		"",
		"## Profile: " + p.Name,
		"",
		"Additional skills enabled by this profile:",
		"",
	}
	for _, s := range extras {
		section = append(section, "- "+s)
	}
	out = region.Add(out, name, section, region.AtEnd, region.HTML)
	return out, nil
}

// ApplyFile applies p to the installed file at path in place.
func ApplyFile(fsys afero.Fs, path string, p *Profile, agent string) error {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	out, err := Apply(data, p, agent)
	if err != nil {
		return fmt.Errorf("applying profile to %s: %w", path, err)
	}
	info, err := fsys.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return platform.WriteAtomic(fsys, path, out, info.Mode().Perm())
}

// frontmatter is a line-oriented view of a leading "---" block.
type frontmatter struct {
	close      int      // index of the closing "---", or -1
	skillsLine int      // index of a top-level "skills:" line, or -1
	inline     bool     // skills has a value on the key line
	skills     []string // declared skills
	indent     string   // indentation of declared items
}

func scanFrontmatter(lines []string) frontmatter {
	fm := frontmatter{close: -1, skillsLine: -1, indent: "  "}
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return fm
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			fm.close = i
			break
		}
	}
	if fm.close < 0 {
		return fm
	}

	for i := 1; i < fm.close; i++ {
		line := lines[i]
		if !strings.HasPrefix(line, "skills:") {
			continue
		}
		fm.skillsLine = i
		value := strings.TrimSpace(strings.TrimPrefix(line, "skills:"))
		if value != "" {
			fm.inline = true
			fm.skills = parseFlowList(value)
			return fm
		}
		first := true
		for j := i + 1; j < fm.close; j++ {
			item := lines[j]
			trimmed := strings.TrimSpace(item)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			if !strings.HasPrefix(trimmed, "- ") && trimmed != "-" {
				break
			}
			if first {
				fm.indent = item[:len(item)-len(strings.TrimLeft(item, " \t"))]
				first = false
			}
			fm.skills = append(fm.skills, unquote(strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))))
		}
		return fm
	}
	return fm
}

// parseFlowList reads "[a, b]" style values.
func parseFlowList(v string) []string {
	v = strings.TrimSuffix(strings.TrimPrefix(v, "["), "]")
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := unquote(strings.TrimSpace(part)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func splitLines(data []byte) []string {
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
