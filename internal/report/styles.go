package report

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/agentx-labs/agentsync/internal/reconcile"
)

// ColorEnabled reports whether f should receive coloured output: it must be
// a terminal, NO_COLOR must be unset and the terminal must support colour.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	return termenv.NewOutput(f).ColorProfile() != termenv.Ascii
}

type styles struct {
	heading lipgloss.Style
	faint   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
	actions map[reconcile.Action]lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	green := lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	yellow := lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	red := lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	blue := lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#58A6FF"}
	purple := lipgloss.AdaptiveColor{Light: "#8250DF", Dark: "#BC8CFF"}

	s := styles{
		heading: r.NewStyle().Bold(true),
		faint:   r.NewStyle().Faint(true),
		ok:      r.NewStyle().Foreground(green),
		warn:    r.NewStyle().Foreground(yellow),
		bad:     r.NewStyle().Foreground(red).Bold(true),
		added:   r.NewStyle().Foreground(green),
		removed: r.NewStyle().Foreground(red),
	}
	s.actions = map[reconcile.Action]lipgloss.Style{
		reconcile.ActionNew:             s.ok,
		reconcile.ActionAutoUpdate:      r.NewStyle().Foreground(blue),
		reconcile.ActionConflict:        s.bad,
		reconcile.ActionLocallyModified: r.NewStyle().Foreground(purple),
		reconcile.ActionAlreadyCurrent:  s.faint,
		reconcile.ActionUnchanged:       s.faint,
		reconcile.ActionRemovedUpstream: s.warn,
	}
	return s
}
