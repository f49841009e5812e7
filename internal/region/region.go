// Package region edits sentinel-delimited regions of text files.
//
// A region is a run of lines opened by a "BEGIN <name>" marker line and
// closed by the matching "END <name>" marker line. Markers may be wrapped
// in any comment syntax the host file uses ("#", "//", "<!-- -->"), so the
// same primitive serves YAML frontmatter and markdown bodies. Every edit
// strips the named region before inserting it again, which makes repeated
// application idempotent.
package region

import (
	"bytes"
	"fmt"
	"strings"
)

// Style is the comment syntax used when writing markers.
type Style int

const (
	// Hash writes "# BEGIN name".
	Hash Style = iota
	// Slash writes "// BEGIN name".
	Slash
	// HTML writes "<!-- BEGIN name -->".
	HTML
)

// Begin returns the opening marker line for name.
func (s Style) Begin(name string) string { return s.wrap("BEGIN " + name) }

// End returns the closing marker line for name.
func (s Style) End(name string) string { return s.wrap("END " + name) }

func (s Style) wrap(text string) string {
	switch s {
	case Slash:
		return "// " + text
	case HTML:
		return "<!-- " + text + " -->"
	default:
		return "# " + text
	}
}

// Anchor decides where Insert places a region. It receives the lines of the
// document with the region already stripped and returns the index before
// which the region is inserted. Returning len(lines) appends.
type Anchor func(lines []string) int

// AtEnd appends the region to the document.
func AtEnd(lines []string) int { return len(lines) }

// After places the region directly after the first line for which match
// returns true, or at the end when no line matches.
func After(match func(line string) bool) Anchor {
	return func(lines []string) int {
		for i, l := range lines {
			if match(l) {
				return i + 1
			}
		}
		return len(lines)
	}
}

// UnterminatedError reports a BEGIN marker without a matching END.
type UnterminatedError struct {
	Name string
	Line int
}

func (e *UnterminatedError) Error() string {
	return fmt.Sprintf("region %q opened on line %d is never closed", e.Name, e.Line)
}

// marker parses a marker line and returns its kind ("BEGIN" or "END") and
// region name.
func marker(line string) (kind, name string, ok bool) {
	s := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(s, "<!--"):
		s = strings.TrimSuffix(strings.TrimPrefix(s, "<!--"), "-->")
	case strings.HasPrefix(s, "//"):
		s = strings.TrimPrefix(s, "//")
	case strings.HasPrefix(s, "#"):
		s = strings.TrimPrefix(s, "#")
	default:
		return "", "", false
	}
	s = strings.TrimSpace(s)
	kind, name, found := strings.Cut(s, " ")
	if !found || (kind != "BEGIN" && kind != "END") {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", "", false
	}
	return kind, name, true
}

// Strip removes every region called name, markers included.
func Strip(data []byte, name string) ([]byte, error) {
	return StripFunc(data, func(n string) bool { return n == name })
}

// StripFunc removes every region whose name satisfies match.
func StripFunc(data []byte, match func(name string) bool) ([]byte, error) {
	lines, trailing := split(data)
	out, err := stripLines(lines, match)
	if err != nil {
		return nil, err
	}
	return join(out, trailing), nil
}

func stripLines(lines []string, match func(string) bool) ([]string, error) {
	out := make([]string, 0, len(lines))
	open := ""
	openLine := 0
	for i, l := range lines {
		kind, name, ok := marker(l)
		if open != "" {
			if ok && kind == "END" && name == open {
				open = ""
			}
			continue
		}
		if ok && kind == "BEGIN" && match(name) {
			open = name
			openLine = i + 1
			continue
		}
		out = append(out, l)
	}
	if open != "" {
		return nil, &UnterminatedError{Name: open, Line: openLine}
	}
	return out, nil
}

// Insert strips any existing region called name and inserts a fresh one
// holding body at the position chosen by anchor. A nil anchor appends.
func Insert(data []byte, name string, body []string, anchor Anchor, style Style) ([]byte, error) {
	lines, trailing := split(data)
	lines, err := stripLines(lines, func(n string) bool { return n == name })
	if err != nil {
		return nil, err
	}
	return place(lines, trailing, name, body, anchor, style), nil
}

// Add inserts a region without stripping existing ones. Callers that place
// several regions of the same name strip them once with StripFunc and then
// Add each one.
func Add(data []byte, name string, body []string, anchor Anchor, style Style) []byte {
	lines, trailing := split(data)
	return place(lines, trailing, name, body, anchor, style)
}

func place(lines []string, trailing bool, name string, body []string, anchor Anchor, style Style) []byte {
	if anchor == nil {
		anchor = AtEnd
	}
	at := anchor(lines)
	if at < 0 || at > len(lines) {
		at = len(lines)
	}

	block := make([]string, 0, len(body)+2)
	block = append(block, style.Begin(name))
	block = append(block, body...)
	block = append(block, style.End(name))

	out := make([]string, 0, len(lines)+len(block))
	out = append(out, lines[:at]...)
	out = append(out, block...)
	out = append(out, lines[at:]...)
	if at == len(lines) {
		trailing = true
	}
	return join(out, trailing)
}

// Names returns the names of every region in data, in order of appearance.
func Names(data []byte) []string {
	lines, _ := split(data)
	var names []string
	for _, l := range lines {
		if kind, name, ok := marker(l); ok && kind == "BEGIN" {
			names = append(names, name)
		}
	}
	return names
}

func split(data []byte) ([]string, bool) {
	if len(data) == 0 {
		return nil, false
	}
	s := string(bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n")))
	trailing := strings.HasSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n"), trailing
}

func join(lines []string, trailing bool) []byte {
	if len(lines) == 0 {
		return nil
	}
	s := strings.Join(lines, "\n")
	if trailing {
		s += "\n"
	}
	return []byte(s)
}
