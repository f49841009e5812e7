// Package report renders installer results for people: sync plans and
// outcomes, status, rollback, profiles and line diffs. Colour is used only
// when the output is a terminal that supports it.
package report
