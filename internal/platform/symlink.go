package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"
)

// targetSuffix names the sidecar that records a fallback link's target.
const targetSuffix = ".target"

// CreateSymlink makes link point to target, replacing whatever is at link.
// The link is created under a temporary name and renamed into place. When
// the filesystem cannot create symlinks, the target's content is copied to
// link and the target path is written to a ".target" sidecar.
func CreateSymlink(fsys afero.Fs, target, link string) error {
	if err := fsys.MkdirAll(filepath.Dir(link), DirPerm); err != nil {
		return fmt.Errorf("creating directory for %s: %w", link, err)
	}

	if linker, ok := fsys.(afero.Linker); ok {
		tmp := link + ".tmp-link"
		_ = fsys.Remove(tmp)
		err := linker.SymlinkIfPossible(target, tmp)
		if err == nil {
			if err := fsys.Rename(tmp, link); err != nil {
				_ = fsys.Remove(tmp)
				return fmt.Errorf("renaming link into place at %s: %w", link, err)
			}
			_ = fsys.Remove(link + targetSuffix)
			return nil
		}
		_ = fsys.Remove(tmp)
		if runtime.GOOS != "windows" && !errors.Is(err, afero.ErrNoSymlink) {
			return fmt.Errorf("creating symlink %s -> %s: %w", link, target, err)
		}
	}

	// Fallback: copy the target and record it in a sidecar.
	if err := copyForSymlink(fsys, target, link); err != nil {
		return fmt.Errorf("symlink fallback (copy) failed: %w", err)
	}
	if err := afero.WriteFile(fsys, link+targetSuffix, []byte(target), FilePerm); err != nil {
		// Non-fatal: the copy succeeded.
		return nil
	}
	return nil
}

// ReadSymlinkTarget returns the target of a symlink, or of a fallback copy
// through its ".target" sidecar.
func ReadSymlinkTarget(fsys afero.Fs, path string) (string, error) {
	var linkErr error = afero.ErrNoReadlink
	if reader, ok := fsys.(afero.LinkReader); ok {
		target, err := reader.ReadlinkIfPossible(path)
		if err == nil {
			return target, nil
		}
		linkErr = err
	}

	data, err := afero.ReadFile(fsys, path+targetSuffix)
	if err != nil {
		return "", fmt.Errorf("readlink failed and no .target sidecar found: %w", linkErr)
	}
	return strings.TrimSpace(string(data)), nil
}

// IsSymlink reports whether path is a symlink or a fallback copy standing
// in for one.
func IsSymlink(fsys afero.Fs, path string) bool {
	if lst, ok := fsys.(afero.Lstater); ok {
		info, lstatCalled, err := lst.LstatIfPossible(path)
		if err == nil && lstatCalled && info.Mode()&os.ModeSymlink != 0 {
			return true
		}
	}
	_, err := fsys.Stat(path + targetSuffix)
	return err == nil
}

// Exists reports whether anything is at path. A dangling symlink exists.
func Exists(fsys afero.Fs, path string) bool {
	if lst, ok := fsys.(afero.Lstater); ok {
		_, _, err := lst.LstatIfPossible(path)
		return err == nil
	}
	_, err := fsys.Stat(path)
	return err == nil
}

// PointsTo reports whether link is a symlink (or fallback) to target.
func PointsTo(fsys afero.Fs, link, target string) bool {
	if !IsSymlink(fsys, link) {
		return false
	}
	got, err := ReadSymlinkTarget(fsys, link)
	return err == nil && got == target
}

// copyForSymlink copies src to dst. A relative src resolves against the
// directory containing dst.
func copyForSymlink(fsys afero.Fs, src, dst string) error {
	resolved := src
	if !filepath.IsAbs(src) {
		resolved = filepath.Join(filepath.Dir(dst), src)
	}
	data, err := afero.ReadFile(fsys, resolved)
	if err != nil {
		return err
	}
	// WriteAtomic drops any stale sidecar; the caller writes a fresh one.
	return WriteAtomic(fsys, dst, data, FilePerm)
}
