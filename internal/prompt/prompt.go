// Package prompt asks the operator how to resolve conflicts. Without a
// terminal every conflict is skipped.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/term"

	apperrors "github.com/agentx-labs/agentsync/internal/errors"
	"github.com/agentx-labs/agentsync/internal/reconcile"
	"github.com/agentx-labs/agentsync/internal/report"
)

// Mode controls when prompts are shown.
type Mode string

const (
	// Auto prompts when stdin is a terminal.
	Auto Mode = "auto"
	// Always prompts even when stdin is not a terminal.
	Always Mode = "always"
	// Never skips every conflict.
	Never Mode = "never"
)

// ParseMode validates an --interactive value. "" is Auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Auto:
		return Auto, nil
	case Always:
		return Always, nil
	case Never:
		return Never, nil
	}
	return "", apperrors.Newf(apperrors.ErrInvalidInput, "invalid interactive mode %q (want auto, always or never)", s)
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Select returns the resolver for mode: a Terminal reading in, or
// reconcile.SkipAll when no prompt should be shown.
func Select(mode Mode, in *os.File, out io.Writer, printer *report.Printer, fsys afero.Fs) reconcile.Resolver {
	if mode == Never || (mode == Auto && !IsTerminal(in)) {
		return reconcile.SkipAll
	}
	return NewTerminal(in, out, printer, fsys)
}

type choice struct {
	key   string
	label string
	res   reconcile.Resolution
}

var choices = []choice{
	{"k", "keep mine", reconcile.KeepMine},
	{"t", "take upstream", reconcile.TakeUpstream},
	{"s", "skip for now", reconcile.Skip},
	{"d", "show diff", ""},
}

// Terminal resolves conflicts with a numbered menu.
type Terminal struct {
	reader  *bufio.Reader
	out     io.Writer
	printer *report.Printer
	fs      afero.Fs
}

// NewTerminal returns a Terminal reading answers from r. printer renders
// diffs of the local file, read from fsys, against upstream.
func NewTerminal(r io.Reader, w io.Writer, printer *report.Printer, fsys afero.Fs) *Terminal {
	if printer == nil {
		printer = report.New(w, false)
	}
	return &Terminal{reader: bufio.NewReader(r), out: w, printer: printer, fs: fsys}
}

// Resolve asks until it gets a valid answer. End of input means skip.
func (t *Terminal) Resolve(ctx context.Context, it reconcile.Item) (reconcile.Resolution, error) {
	fmt.Fprintf(t.out, "\n%s changed locally and upstream (%s tier).\n", it.Path, it.Tier)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		c, err := t.ask()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(t.out, "\nno answer, skipping")
			return reconcile.Skip, nil
		}
		if err != nil {
			fmt.Fprintf(t.out, "%v\n", err)
			continue
		}
		if c.res == "" {
			t.showDiff(it)
			continue
		}
		return c.res, nil
	}
}

// ask presents the menu and reads one answer, by number or by key.
func (t *Terminal) ask() (choice, error) {
	for i, c := range choices {
		fmt.Fprintf(t.out, "  %d) %s [%s]\n", i+1, c.label, c.key)
	}
	fmt.Fprintf(t.out, "Choose [1-%d]: ", len(choices))

	line, err := t.reader.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	if err != nil && (answer == "" || !errors.Is(err, io.EOF)) {
		return choice{}, fmt.Errorf("reading answer: %w", err)
	}

	if num, convErr := strconv.Atoi(answer); convErr == nil && num >= 1 && num <= len(choices) {
		return choices[num-1], nil
	}
	for _, c := range choices {
		if answer == c.key || answer == c.label {
			return c, nil
		}
	}
	return choice{}, fmt.Errorf("invalid answer %q: choose 1-%d", answer, len(choices))
}

func (t *Terminal) showDiff(it reconcile.Item) {
	var local []byte
	if t.fs != nil {
		data, err := afero.ReadFile(t.fs, it.Path)
		if err != nil {
			fmt.Fprintf(t.out, "cannot read %s: %v\n", it.Path, err)
			return
		}
		local = data
	}
	t.printer.WriteDiff(it.Path+" (local)", it.Path+" (upstream)", report.Diff(local, it.Content, report.DiffContext))
}
