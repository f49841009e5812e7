// Package installer is the invocation surface of the sync engine: install,
// status, update, rollback and profile operations. Each call resolves the
// upstream source, loads (or migrates) the manifest, plans, backs up,
// applies and saves, in that order. Fatal errors happen before the first
// write.
package installer
