// Package backup snapshots every manifest-tracked file before a mutating
// run and restores the newest snapshot on rollback.
//
// A snapshot is an immutable directory <root>/.backup/<UTC timestamp>/
// holding the manifest as manifest.lock and each tracked file under
// files/<absolute path>. Symlinks are stored as symlinks. Only the newest
// few snapshots are kept.
package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	apperrors "github.com/agentx-labs/agentsync/internal/errors"
	"github.com/agentx-labs/agentsync/internal/manifest"
	"github.com/agentx-labs/agentsync/internal/platform"
)

const (
	// DirName is the backup directory inside the install root.
	DirName = ".backup"
	// DefaultKeep is how many snapshots survive pruning.
	DefaultKeep = 3

	manifestName = "manifest.lock"
	filesDir     = "files"
	timeLayout   = "20060102T150405.000000000Z"
)

// Snapshot is one backup directory.
type Snapshot struct {
	Name string
	Dir  string
	Time time.Time
}

// Manager creates, lists and restores snapshots for one install root.
type Manager struct {
	Fs   afero.Fs
	Root string
	Keep int
	Log  zerolog.Logger
	// Now returns the snapshot time; time.Now when nil.
	Now func() time.Time
}

// Dir returns the directory holding all snapshots.
func (m *Manager) Dir() string {
	return filepath.Join(m.Root, DirName)
}

// Snapshot copies every file tracked by man, and man itself, into a new
// snapshot, then prunes old snapshots. Tracked files missing from disk are
// skipped.
func (m *Manager) Snapshot(man *manifest.Manifest) (*Snapshot, error) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	t := now().UTC()
	name := t.Format(timeLayout)
	dir := filepath.Join(m.Dir(), name)
	if _, err := m.Fs.Stat(dir); err == nil {
		return nil, fmt.Errorf("backup %s already exists", dir)
	}
	if err := m.Fs.MkdirAll(filepath.Join(dir, filesDir), platform.DirPerm); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	for _, e := range man.Sorted() {
		if err := m.saveFile(e.Path, m.storedPath(dir, e.Path)); err != nil {
			return nil, fmt.Errorf("backing up %s: %w", e.Path, err)
		}
	}
	if err := manifest.Save(m.Fs, man, filepath.Join(dir, manifestName)); err != nil {
		return nil, fmt.Errorf("backing up manifest: %w", err)
	}

	m.Log.Info().Str("backup", dir).Int("files", len(man.Entries)).Msg("created backup")
	if err := m.prune(); err != nil {
		m.Log.Warn().Err(err).Msg("pruning old backups failed")
	}
	return &Snapshot{Name: name, Dir: dir, Time: t}, nil
}

// List returns the snapshots, newest first.
func (m *Manager) List() ([]Snapshot, error) {
	infos, err := afero.ReadDir(m.Fs, m.Dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", m.Dir(), err)
	}
	var out []Snapshot
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		t, err := time.Parse(timeLayout, info.Name())
		if err != nil {
			continue
		}
		out = append(out, Snapshot{Name: info.Name(), Dir: filepath.Join(m.Dir(), info.Name()), Time: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out, nil
}

// Latest returns the newest snapshot, or NO_BACKUP.
func (m *Manager) Latest() (*Snapshot, error) {
	list, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperrors.Newf(apperrors.ErrNoBackup, "no backups in %s", m.Dir())
	}
	return &list[0], nil
}

// Rollback restores the newest snapshot: every file it holds goes back to
// its recorded destination and its manifest becomes the active manifest.
// Files created after the snapshot are left in place. The snapshot itself
// is kept, so rolling back twice is harmless.
func (m *Manager) Rollback() (*Snapshot, *manifest.Manifest, error) {
	snap, err := m.Latest()
	if err != nil {
		return nil, nil, err
	}
	man, err := manifest.Load(m.Fs, filepath.Join(snap.Dir, manifestName))
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, apperrors.ErrManifestCorrupt, "reading backup %s", snap.Name)
	}

	for _, e := range man.Sorted() {
		stored := m.storedPath(snap.Dir, e.Path)
		if _, err := m.lstat(stored); err != nil {
			// Not on disk when the snapshot was taken.
			continue
		}
		if err := m.restoreFile(stored, e.Path); err != nil {
			return nil, nil, apperrors.Wrapf(err, apperrors.ErrFileOp, "restoring %s", e.Path)
		}
	}
	if err := manifest.Save(m.Fs, man, manifest.PathFor(m.Root)); err != nil {
		return nil, nil, fmt.Errorf("restoring manifest: %w", err)
	}
	m.Log.Info().Str("backup", snap.Dir).Msg("rolled back")
	return snap, man, nil
}

// storedPath maps a tracked absolute path into a snapshot.
func (m *Manager) storedPath(dir, path string) string {
	return filepath.Join(dir, filesDir, filepath.VolumeName(path), path[len(filepath.VolumeName(path)):])
}

func (m *Manager) saveFile(src, dst string) error {
	if _, err := m.lstat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if platform.IsSymlink(m.Fs, src) {
		target, err := platform.ReadSymlinkTarget(m.Fs, src)
		if err != nil {
			return err
		}
		return platform.CreateSymlink(m.Fs, target, dst)
	}
	return platform.CopyFile(m.Fs, src, dst)
}

func (m *Manager) restoreFile(stored, dest string) error {
	if platform.IsSymlink(m.Fs, stored) {
		target, err := platform.ReadSymlinkTarget(m.Fs, stored)
		if err != nil {
			return err
		}
		return platform.CreateSymlink(m.Fs, target, dest)
	}
	return platform.CopyFile(m.Fs, stored, dest)
}

func (m *Manager) lstat(path string) (os.FileInfo, error) {
	if lst, ok := m.Fs.(afero.Lstater); ok {
		info, _, err := lst.LstatIfPossible(path)
		return info, err
	}
	return m.Fs.Stat(path)
}

// prune removes all but the newest Keep snapshots.
func (m *Manager) prune() error {
	keep := m.Keep
	if keep <= 0 {
		keep = DefaultKeep
	}
	list, err := m.List()
	if err != nil {
		return err
	}
	for _, s := range list[min(keep, len(list)):] {
		if err := m.Fs.RemoveAll(s.Dir); err != nil {
			return fmt.Errorf("removing %s: %w", s.Dir, err)
		}
		m.Log.Debug().Str("backup", s.Dir).Msg("pruned backup")
	}
	return nil
}
