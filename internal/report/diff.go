package report

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is the kind of a diff line.
type Op int

const (
	OpEqual Op = iota
	OpDelete
	OpInsert
	// OpSkip stands in for unchanged lines left out of the output.
	OpSkip
)

// Line is one line of a line diff, without its newline.
type Line struct {
	Op   Op
	Text string
}

// Diff compares two texts line by line. Runs of unchanged lines longer
// than 2*context are cut down to context lines on each side of a change;
// a negative context keeps every line.
func Diff(oldText, newText []byte, context int) []Line {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(oldText), string(newText))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []Line
	for _, d := range diffs {
		op := OpEqual
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		}
		for _, text := range splitLines(d.Text) {
			out = append(out, Line{Op: op, Text: text})
		}
	}
	if context < 0 {
		return out
	}
	return trimContext(out, context)
}

// Changed reports whether a diff has any insertions or deletions.
func Changed(lines []Line) bool {
	for _, l := range lines {
		if l.Op == OpDelete || l.Op == OpInsert {
			return true
		}
	}
	return false
}

func trimContext(lines []Line, context int) []Line {
	var out []Line
	i := 0
	for i < len(lines) {
		if lines[i].Op != OpEqual {
			out = append(out, lines[i])
			i++
			continue
		}
		j := i
		for j < len(lines) && lines[j].Op == OpEqual {
			j++
		}
		run := lines[i:j]
		head, tail := context, context
		if i == 0 {
			head = 0
		}
		if j == len(lines) {
			tail = 0
		}
		if len(run) <= head+tail {
			out = append(out, run...)
		} else {
			out = append(out, run[:head]...)
			out = append(out, Line{Op: OpSkip})
			out = append(out, run[len(run)-tail:]...)
		}
		i = j
	}
	return out
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{""}
	}
	return strings.Split(s, "\n")
}
