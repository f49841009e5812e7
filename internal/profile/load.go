package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"

	apperrors "github.com/agentx-labs/agentsync/internal/errors"
)

// Dir is the profiles directory inside a source tree.
const Dir = "profiles"

// extensions are tried in order when resolving a profile name.
var extensions = []string{".yaml", ".yml", ".toml"}

// Load reads and validates the profile called name from sourceRoot.
func Load(fsys afero.Fs, sourceRoot, name string) (*Profile, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "invalid profile name %q", name)
	}
	for _, ext := range extensions {
		path := filepath.Join(sourceRoot, Dir, name+ext)
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading profile %s: %w", path, err)
		}
		p, err := Parse(data, ext)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrProfileInvalid, "profile %s", path)
		}
		if p.Name != name {
			return nil, apperrors.Newf(apperrors.ErrProfileInvalid,
				"profile %s declares name %q, expected %q", path, p.Name, name)
		}
		return p, nil
	}
	return nil, apperrors.Newf(apperrors.ErrProfileNotFound,
		"profile %q not found in %s", name, filepath.Join(sourceRoot, Dir)).
		WithDetail("profile", name)
}

// Parse decodes and validates a profile document. ext selects the format:
// ".toml" for TOML, anything else for YAML.
func Parse(data []byte, ext string) (*Profile, error) {
	var raw interface{}
	var doc document
	if ext == ".toml" {
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing TOML: %w", err)
		}
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing TOML: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	}
	if raw == nil {
		return nil, fmt.Errorf("empty profile document")
	}

	issues, err := validate(raw)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		msgs := make([]string, len(issues))
		for i, is := range issues {
			msgs[i] = is.String()
		}
		return nil, &InvalidError{Issues: issues, msg: strings.Join(msgs, "; ")}
	}
	return doc.profile(), nil
}

// InvalidError lists the schema violations of a profile document.
type InvalidError struct {
	Issues []ValidationIssue
	msg    string
}

func (e *InvalidError) Error() string {
	return "invalid profile: " + e.msg
}

// Summary is a profile listing entry. Err is set when the document could
// not be loaded; listing continues past broken documents.
type Summary struct {
	Name        string
	Description string
	Path        string
	Err         error
}

// List returns every profile document in sourceRoot sorted by name. A
// missing profiles directory yields an empty list.
func List(fsys afero.Fs, sourceRoot string) ([]Summary, error) {
	dir := filepath.Join(sourceRoot, Dir)
	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	seen := make(map[string]bool)
	var out []Summary
	for _, info := range infos {
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			continue
		}
		ext := filepath.Ext(info.Name())
		if !containsString(extensions, ext) {
			continue
		}
		name := strings.TrimSuffix(info.Name(), ext)
		if seen[name] {
			continue
		}
		seen[name] = true

		s := Summary{Name: name, Path: filepath.Join(dir, info.Name())}
		if p, err := Load(fsys, sourceRoot, name); err != nil {
			s.Err = err
		} else {
			s.Description = p.Description
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
