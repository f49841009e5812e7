package manifest

// Merge combines an existing manifest with the manifest produced by a run.
// Header fields come from incoming. Installed agents are the union of both
// sets. For a path present in both, the incoming entry wins; entries only
// in existing are kept, so a scoped run never forgets files outside its
// scope. Merge does not modify its arguments.
func Merge(existing, incoming *Manifest) *Manifest {
	out := incoming.Clone()
	if existing == nil {
		return out
	}
	out.AddAgents(existing.InstalledAgents...)
	for path, e := range existing.Entries {
		if _, ok := out.Entries[path]; !ok {
			out.Entries[path] = e
		}
	}
	return out
}
