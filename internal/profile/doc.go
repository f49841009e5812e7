// Package profile loads named resource selections from the upstream source
// and renders them into installed agent definitions.
//
// A profile lists agents and, per agent, extra skills the agent may use.
// Applying it scopes skill installation to the union of those skills and
// injects the extra skills into each agent's definition inside
// "profile:<name>" regions. Rendering always strips every profile region
// first, so switching profiles never accumulates stale entries.
package profile
