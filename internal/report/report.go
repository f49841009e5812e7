package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/agentx-labs/agentsync/internal/installer"
	"github.com/agentx-labs/agentsync/internal/manifest"
	"github.com/agentx-labs/agentsync/internal/profile"
	"github.com/agentx-labs/agentsync/internal/reconcile"
)

const (
	msgFiles   = "%d file(s)"
	msgBackups = "%d backup(s)"
)

func init() {
	_ = message.Set(language.English, msgFiles,
		plural.Selectf(1, "%d", plural.One, "%d file", plural.Other, "%d files"))
	_ = message.Set(language.English, msgBackups,
		plural.Selectf(1, "%d", plural.One, "%d backup", plural.Other, "%d backups"))
}

// DiffContext is the number of unchanged lines kept around each change.
const DiffContext = 3

// Printer writes reports to one writer.
type Printer struct {
	w     io.Writer
	color bool
	st    styles
	msg   *message.Printer

	// Fs is read for the local side of diffs. Diffs are skipped when nil.
	Fs afero.Fs
}

// New returns a Printer on w. Pass ColorEnabled(os.Stdout) for color.
func New(w io.Writer, color bool) *Printer {
	return &Printer{
		w:     w,
		color: color,
		st:    newStyles(w, color),
		msg:   message.NewPrinter(language.English),
	}
}

func (p *Printer) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *Printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format, args...)
}

// Sync reports an install, update or profile run.
func (p *Printer) Sync(rep *installer.Report) {
	title := rep.Operation
	if rep.DryRun {
		title += " (dry run)"
	}
	p.printf("%s\n", p.paint(p.st.heading, title))
	if rep.Migrated {
		p.printf("  %s\n", p.paint(p.st.warn, "no manifest found; adopted the files already installed"))
	}
	if rep.PreviousRevision != "" && rep.PreviousRevision != rep.SourceRevision {
		p.printf("  revision: %s -> %s\n", shortRev(rep.PreviousRevision), shortRev(rep.SourceRevision))
	} else if rep.SourceRevision != "" {
		p.printf("  revision: %s\n", shortRev(rep.SourceRevision))
	}
	if rep.Backup != nil {
		p.printf("  backup:   %s\n", rep.Backup.Name)
	}

	if rep.Plan != nil {
		p.plan(rep.Plan, rep.Result)
	}
	p.deselected(rep.Deselected)
	p.warnings(rep.Warnings)
	p.failures(rep.Result)
}

// plan lists every path whose action needs attention and summarizes the
// rest as counts.
func (p *Printer) plan(plan *reconcile.Plan, res *reconcile.Result) {
	outcomes := make(map[string]reconcile.Outcome)
	if res != nil {
		for _, o := range res.Outcomes {
			outcomes[o.Path] = o
		}
	}

	for _, it := range plan.Items {
		if quiet(it.Action) {
			continue
		}
		label := fmt.Sprintf("%-16s", it.Action)
		line := "  " + p.paint(p.st.actions[it.Action], label) + " " + it.Path
		if o, ok := outcomes[it.Path]; ok {
			if note := outcomeNote(o); note != "" {
				line += " " + p.paint(p.st.faint, "("+note+")")
			}
		}
		p.printf("%s\n", line)
	}

	var parts []string
	for _, a := range reconcile.Actions {
		if n := plan.Count(a); n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", a, n))
		}
	}
	if len(parts) == 0 {
		p.printf("  nothing to do\n")
		return
	}
	p.printf("  %s: %s\n", p.msg.Sprintf(msgFiles, len(plan.Items)), strings.Join(parts, ", "))
}

func quiet(a reconcile.Action) bool {
	return a == reconcile.ActionUnchanged || a == reconcile.ActionAlreadyCurrent
}

func outcomeNote(o reconcile.Outcome) string {
	switch {
	case o.Err != nil:
		return "failed"
	case o.Sidecar != "":
		return "upstream saved to " + o.Sidecar
	case o.Resolution == reconcile.KeepMine:
		return "kept mine"
	case o.Resolution == reconcile.TakeUpstream:
		return "took upstream"
	case o.Resolution == reconcile.Skip:
		return "skipped"
	}
	return ""
}

func (p *Printer) deselected(paths []string) {
	if len(paths) == 0 {
		return
	}
	p.printf("%s\n", p.paint(p.st.heading, "Skills outside the active profile (left installed)"))
	for _, path := range paths {
		p.printf("  %s\n", path)
	}
}

func (p *Printer) warnings(ws []string) {
	for _, w := range ws {
		p.printf("%s %s\n", p.paint(p.st.warn, "warning:"), w)
	}
}

func (p *Printer) failures(res *reconcile.Result) {
	if res == nil {
		return
	}
	for _, o := range res.Failures() {
		p.printf("%s %s: %v\n", p.paint(p.st.bad, "failed:"), o.Path, o.Err)
	}
}

// Status reports the installation state. With diffs set, every path whose
// local copy differs from upstream is shown as a line diff.
func (p *Printer) Status(rep *installer.Report, diffs bool) {
	m := rep.Manifest
	if m == nil {
		p.printf("Nothing installed.\n")
		p.warnings(rep.Warnings)
		return
	}

	p.printf("%s\n", p.paint(p.st.heading, "Installation"))
	if rep.Migrated {
		p.printf("  %s\n", p.paint(p.st.warn, "no manifest found; adopted the files already installed"))
	}
	p.printf("  installed:  %s", shortRev(m.SourceRevision))
	if !m.InstalledAt.IsZero() {
		p.printf(" at %s", m.InstalledAt.Format("2006-01-02 15:04:05 MST"))
	}
	p.printf("\n")
	if rep.SourceRevision != "" {
		p.printf("  source:     %s\n", shortRev(rep.SourceRevision))
	}
	if rep.LatestRevision != "" {
		p.printf("  upstream:   %s", shortRev(rep.LatestRevision))
		if rep.LatestRevision != m.SourceRevision {
			p.printf(" %s", p.paint(p.st.warn, "(update available)"))
		}
		p.printf("\n")
	}
	if m.SourceURL != "" {
		p.printf("  url:        %s\n", m.SourceURL)
	}
	p.printf("  mode:       %s\n", m.Mode)
	profileName := m.Profile
	if profileName == "" {
		profileName = "(none)"
	}
	p.printf("  profile:    %s\n", profileName)
	agents := strings.Join(m.InstalledAgents, ", ")
	if agents == "" {
		agents = "(none)"
	}
	p.printf("  agents:     %s\n", agents)
	p.printf("  tracked:    %s\n", p.msg.Sprintf(msgFiles, len(m.Entries)))

	if rep.Plan != nil {
		p.printf("%s\n", p.paint(p.st.heading, "Pending changes"))
		p.plan(rep.Plan, nil)
		if diffs {
			p.planDiffs(rep.Plan)
		}
	}
	p.deselected(rep.Deselected)
	p.backupList(rep)
	p.warnings(rep.Warnings)
}

func (p *Printer) backupList(rep *installer.Report) {
	if len(rep.Backups) == 0 {
		p.printf("%s none\n", p.paint(p.st.heading, "Backups:"))
		return
	}
	p.printf("%s %s\n", p.paint(p.st.heading, "Backups:"), p.msg.Sprintf(msgBackups, len(rep.Backups)))
	for _, b := range rep.Backups {
		p.printf("  %s\n", b.Name)
	}
}

func (p *Printer) planDiffs(plan *reconcile.Plan) {
	if p.Fs == nil {
		return
	}
	for _, it := range plan.Items {
		if it.Entry == nil || it.Current.IsMissing() || it.Current == it.Incoming {
			continue
		}
		local, err := afero.ReadFile(p.Fs, it.Path)
		if err != nil {
			continue
		}
		p.WriteDiff(it.Path+" (local)", it.Path+" (upstream)", Diff(local, it.Content, DiffContext))
	}
}

// WriteDiff prints a line diff under a two-line header.
func (p *Printer) WriteDiff(oldName, newName string, lines []Line) {
	p.printf("%s\n%s\n", p.paint(p.st.removed, "--- "+oldName), p.paint(p.st.added, "+++ "+newName))
	for _, l := range lines {
		switch l.Op {
		case OpDelete:
			p.printf("%s\n", p.paint(p.st.removed, "-"+l.Text))
		case OpInsert:
			p.printf("%s\n", p.paint(p.st.added, "+"+l.Text))
		case OpSkip:
			p.printf("%s\n", p.paint(p.st.faint, "@@ ... @@"))
		default:
			p.printf(" %s\n", l.Text)
		}
	}
}

// Rollback reports a restored snapshot.
func (p *Printer) Rollback(rep *installer.Report) {
	p.printf("%s %s\n", p.paint(p.st.ok, "Restored backup"), rep.Backup.Name)
	if rep.PreviousRevision != "" && rep.PreviousRevision != rep.SourceRevision {
		p.printf("  revision: %s -> %s\n", shortRev(rep.PreviousRevision), shortRev(rep.SourceRevision))
	} else {
		p.printf("  revision: %s\n", shortRev(rep.SourceRevision))
	}
	if rep.Manifest != nil {
		p.printf("  tracked:  %s\n", p.msg.Sprintf(msgFiles, len(rep.Manifest.Entries)))
	}
}

// Profiles lists the available profiles, marking the active one.
func (p *Printer) Profiles(list []profile.Summary, active string) {
	if len(list) == 0 {
		p.printf("No profiles available.\n")
		return
	}
	for _, s := range list {
		marker := "  "
		if s.Name == active {
			marker = p.paint(p.st.ok, "* ")
		}
		switch {
		case s.Err != nil:
			p.printf("%s%s %s\n", marker, s.Name, p.paint(p.st.bad, "(invalid: "+s.Err.Error()+")"))
		case s.Description != "":
			p.printf("%s%-20s %s\n", marker, s.Name, p.paint(p.st.faint, s.Description))
		default:
			p.printf("%s%s\n", marker, s.Name)
		}
	}
}

// Profile describes one profile.
func (p *Printer) Profile(prof *profile.Profile) {
	p.printf("%s\n", p.paint(p.st.heading, prof.Name))
	if prof.Description != "" {
		p.printf("  %s\n", prof.Description)
	}
	agents := append([]string(nil), prof.Agents...)
	sort.Strings(agents)
	for _, a := range agents {
		skills := prof.SkillsFor(a)
		if len(skills) == 0 {
			p.printf("  %s\n", a)
			continue
		}
		p.printf("  %s: %s\n", a, strings.Join(skills, ", "))
	}
}

// Manifest prints the tracked entries, grouped by tier.
func (p *Printer) Manifest(m *manifest.Manifest) {
	var tier manifest.Tier
	for _, e := range m.Sorted() {
		if e.Tier != tier {
			tier = e.Tier
			p.printf("%s\n", p.paint(p.st.heading, "["+string(tier)+"]"))
		}
		p.printf("  %s %s\n", p.paint(p.st.faint, e.Hash.Short()), e.Path)
	}
}

// shortRev abbreviates full commit ids.
func shortRev(rev string) string {
	if len(rev) >= 40 && !strings.ContainsAny(rev, " ()") {
		return rev[:12]
	}
	return rev
}
