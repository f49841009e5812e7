// Package config manages user-level settings stored at
// $XDG_CONFIG_HOME/agentsync/config.yaml. Values come from, in increasing
// precedence, built-in defaults, the config file, AGENTSYNC_* environment
// variables and command-line flags.
package config
