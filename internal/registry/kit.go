package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"

	apperrors "github.com/agentx-labs/agentsync/internal/errors"
)

// KitFile is the optional descriptor at the root of a source tree.
const KitFile = "kit.yaml"

// Kit describes an upstream source tree.
type Kit struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// Requires is a semver constraint on the installer version,
	// e.g. ">= 0.4.0".
	Requires string `yaml:"requires,omitempty"`
}

// LoadKit reads kit.yaml from sourceRoot. It returns nil and no error when
// the file is absent.
func LoadKit(fsys afero.Fs, sourceRoot string) (*Kit, error) {
	path := filepath.Join(sourceRoot, KitFile)
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var k Kit
	if err := yaml.Unmarshal(data, &k); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrInvalidInput, "parsing %s", path)
	}
	return &k, nil
}

// CheckInstaller verifies that installerVersion satisfies the kit's
// Requires constraint. Development builds, whose version is not valid
// semver, are always accepted.
func (k *Kit) CheckInstaller(installerVersion string) error {
	if k == nil || k.Requires == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(k.Requires)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrInvalidInput, "invalid requires constraint %q in %s", k.Requires, KitFile)
	}
	v, err := semver.NewVersion(installerVersion)
	if err != nil {
		return nil
	}
	if !constraint.Check(v) {
		return apperrors.Newf(apperrors.ErrEnvironment,
			"source %s requires installer %s, this is %s", k.displayName(), k.Requires, v)
	}
	return nil
}

func (k *Kit) displayName() string {
	if k.Name == "" {
		return KitFile
	}
	if k.Version == "" {
		return k.Name
	}
	return k.Name + "@" + k.Version
}
