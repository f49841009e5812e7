package source

import (
	"fmt"
	"os/exec"

	apperrors "github.com/agentx-labs/agentsync/internal/errors"
)

// Probe memoizes environment checks for one run. It is created once per
// command and passed down explicitly.
type Probe struct {
	// LookPath resolves executables; exec.LookPath when nil.
	LookPath func(file string) (string, error)

	gitChecked bool
	gitPath    string
	gitErr     error
}

// NewProbe returns a Probe backed by exec.LookPath.
func NewProbe() *Probe {
	return &Probe{LookPath: exec.LookPath}
}

// Git returns the path of the git executable, checking PATH only once.
func (p *Probe) Git() (string, error) {
	if p.gitChecked {
		return p.gitPath, p.gitErr
	}
	p.gitChecked = true
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath("git")
	if err != nil {
		p.gitErr = apperrors.Wrap(fmt.Errorf("git is required but not found in PATH: %w", err),
			apperrors.ErrEnvironment, "checking environment")
		return "", p.gitErr
	}
	p.gitPath = path
	return path, nil
}

// HasGit reports whether git is available.
func (p *Probe) HasGit() bool {
	_, err := p.Git()
	return err == nil
}
