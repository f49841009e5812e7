// Package overlay keeps hand-written additions to managed user files. A
// sidecar named "<file>.local.md" next to an installed user-tier file is
// appended to it, between "local" region markers, every time the file is
// rendered.
package overlay

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/agentx-labs/agentsync/internal/manifest"
	"github.com/agentx-labs/agentsync/internal/region"
	"github.com/agentx-labs/agentsync/internal/registry"
)

// RegionName is the marker name of the appended section.
const RegionName = "local"

// SidecarSuffix is appended to a user file's path to locate its overlay.
const SidecarSuffix = ".local.md"

// SidecarPath returns the overlay path for an installed file.
func SidecarPath(dest string) string {
	return dest + SidecarSuffix
}

// Renderer appends local overlays to user-tier files. It reads sidecars
// from the install filesystem.
type Renderer struct {
	Fs afero.Fs
}

// Render returns upstream with the entry's overlay appended. Entries that
// are not user-tier, or have no sidecar, are returned unchanged.
func (r Renderer) Render(e registry.Entry, upstream []byte) ([]byte, error) {
	if e.Tier != manifest.TierUser {
		return upstream, nil
	}
	local, err := afero.ReadFile(r.Fs, SidecarPath(e.Dest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return upstream, nil
		}
		return nil, fmt.Errorf("reading overlay for %s: %w", e.Dest, err)
	}
	return Apply(upstream, local)
}

// Apply appends local to data inside the local region, replacing any
// previous overlay.
func Apply(data, local []byte) ([]byte, error) {
	body := strings.Split(strings.TrimRight(strings.ReplaceAll(string(local), "\r\n", "\n"), "\n"), "\n")
	if len(body) == 1 && body[0] == "" {
		return region.Strip(data, RegionName)
	}
	out, err := region.Insert(data, RegionName, body, region.AtEnd, region.HTML)
	if err != nil {
		return nil, fmt.Errorf("applying local overlay: %w", err)
	}
	return out, nil
}
