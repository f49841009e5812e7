// Package cli defines the Cobra command tree for the agentsync CLI. Each file
// in this package registers one top-level command (install, status, update,
// etc.) with the root command. Commands resolve settings, build an
// installer session and hand the result to the report printer; the sync
// logic itself lives in internal/installer.
package cli
