package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/agentx-labs/agentsync/internal/platform"
)

// FileName is the manifest's name inside the install root.
const FileName = ".manifest.lock"

// PathFor returns the manifest location for an install root.
func PathFor(root string) string {
	return filepath.Join(root, FileName)
}

// Load reads and parses the manifest at path. It returns ErrNotFound when
// the file does not exist and an error wrapping ErrCorrupt when it cannot
// be parsed.
func Load(fsys afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return m, nil
}

// Save writes m to path atomically: the content goes to a temporary file
// in the same directory which is then renamed over path. A reader never
// observes a partially written manifest.
func Save(fsys afero.Fs, m *Manifest, path string) error {
	return platform.WriteAtomic(fsys, path, Format(m), platform.FilePerm)
}
