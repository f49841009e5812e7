// Package platform provides the filesystem primitives the installer mutates
// disk with: atomic writes, copies and symlinks. Everything goes through an
// afero.Fs. Where the filesystem cannot create symlinks (Windows without
// developer mode, in-memory filesystems) a link falls back to a copy plus a
// ".target" sidecar recording the intended target.
package platform
