package platform

import (
	"os"
	"runtime"

	"github.com/spf13/afero"
)

const (
	// DirPerm is used for every directory the installer creates.
	DirPerm os.FileMode = 0755
	// FilePerm is the default mode of written files.
	FilePerm os.FileMode = 0644
)

// Chmod sets file permissions. On Windows this is a no-op because Windows
// does not support Unix-style permission bits.
func Chmod(fsys afero.Fs, path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return fsys.Chmod(path, mode)
}
