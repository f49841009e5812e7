// Package source locates the upstream tree an installation syncs from. A
// local checkout is used as-is; otherwise the upstream URL is cloned once,
// shallowly, into a temporary directory that is removed after the run.
// Revision queries shell out to git and degrade to "unknown" instead of
// failing the run.
package source
