package reconcile

import "github.com/agentx-labs/agentsync/internal/hash"

// Action is the classification of one path.
type Action string

const (
	// ActionNew means upstream has a file that is neither tracked nor on disk.
	ActionNew Action = "new"
	// ActionRemovedUpstream means the manifest knows a file upstream dropped.
	ActionRemovedUpstream Action = "removed-upstream"
	// ActionUnchanged means installed, current and incoming all agree.
	ActionUnchanged Action = "unchanged"
	// ActionAutoUpdate means only upstream changed.
	ActionAutoUpdate Action = "auto-update"
	// ActionAlreadyCurrent means the local copy already matches upstream.
	ActionAlreadyCurrent Action = "already-current"
	// ActionConflict means local and upstream changed differently, or an
	// untracked file on disk differs from upstream.
	ActionConflict Action = "conflict"
	// ActionLocallyModified means only the local copy changed.
	ActionLocallyModified Action = "locally-modified"
)

// Actions lists every action in report order.
var Actions = []Action{
	ActionNew,
	ActionAutoUpdate,
	ActionConflict,
	ActionLocallyModified,
	ActionAlreadyCurrent,
	ActionUnchanged,
	ActionRemovedUpstream,
}

// Mutating reports whether the action writes to disk when applied.
func (a Action) Mutating() bool {
	return a == ActionNew || a == ActionAutoUpdate || a == ActionConflict
}

// Classify compares the recorded, on-disk and upstream hashes of a path.
// installed is hash.Missing for paths the manifest does not know; incoming
// is hash.Missing for paths upstream no longer has. An untracked path that
// already exists is never treated as new: equal content is already-current,
// anything else is a conflict.
func Classify(installed, current, incoming hash.Sum) Action {
	switch {
	case incoming.IsMissing():
		return ActionRemovedUpstream
	case installed.IsMissing() && current.IsMissing():
		return ActionNew
	case installed.IsMissing() && current == incoming:
		return ActionAlreadyCurrent
	case installed.IsMissing():
		return ActionConflict
	case current == installed && installed == incoming:
		return ActionUnchanged
	case current == installed:
		return ActionAutoUpdate
	case current == incoming:
		return ActionAlreadyCurrent
	case installed == incoming:
		return ActionLocallyModified
	default:
		return ActionConflict
	}
}
