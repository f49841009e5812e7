package manifest

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentx-labs/agentsync/internal/hash"
)

var (
	// ErrNotFound is returned by Load when no manifest exists.
	ErrNotFound = errors.New("manifest not found")
	// ErrCorrupt is returned by Load and Parse when the manifest cannot be
	// parsed.
	ErrCorrupt = errors.New("manifest corrupt")
)

const hashField = " hash="

// Header keys.
const (
	keySourceRevision  = "source_revision"
	keySourceURL       = "source_url"
	keyInstalledAt     = "installed_at"
	keyInstalledAgents = "installed_agents"
	keyMode            = "mode"
	keyProfile         = "profile"
	keyHashAlgorithm   = "hash_algorithm"
)

// Parse decodes the line-oriented manifest format. Unknown header keys are
// ignored so older installers can read newer manifests.
func Parse(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrCorrupt)
	}

	m := New()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	inHeader := true
	lineNo := 0
	sawRevision := false

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		if inHeader {
			if strings.TrimSpace(line) == "" {
				inHeader = false
				continue
			}
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				return nil, fmt.Errorf("%w: line %d: header line without '='", ErrCorrupt, lineNo)
			}
			if err := m.setHeader(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, lineNo, err)
			}
			if key == keySourceRevision {
				sawRevision = true
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := parseEntry(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, lineNo, err)
		}
		if _, dup := m.Entries[e.Path]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate entry for %s", ErrCorrupt, lineNo, e.Path)
		}
		m.Set(e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !sawRevision {
		return nil, fmt.Errorf("%w: missing %s", ErrCorrupt, keySourceRevision)
	}
	return m, nil
}

func (m *Manifest) setHeader(key, value string) error {
	switch key {
	case keySourceRevision:
		m.SourceRevision = value
	case keySourceURL:
		m.SourceURL = value
	case keyInstalledAt:
		if value == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("bad %s: %v", key, err)
		}
		m.InstalledAt = t.UTC()
	case keyInstalledAgents:
		var names []string
		for _, n := range strings.Split(value, ",") {
			names = append(names, strings.TrimSpace(n))
		}
		m.AddAgents(names...)
	case keyMode:
		mode, ok := ParseMode(value)
		if !ok {
			return fmt.Errorf("unknown mode %q", value)
		}
		m.Mode = mode
	case keyProfile:
		m.Profile = value
	case keyHashAlgorithm:
		algo, err := hash.ParseAlgorithm(value)
		if err != nil {
			return err
		}
		m.HashAlgorithm = algo
	}
	return nil
}

// parseEntry decodes "[tier] /abs/path hash=hex". The path may contain
// spaces, so the hash field is found from the right.
func parseEntry(line string) (Entry, error) {
	if !strings.HasPrefix(line, "[") {
		return Entry{}, fmt.Errorf("entry must start with [tier]")
	}
	closing := strings.Index(line, "] ")
	if closing < 0 {
		return Entry{}, fmt.Errorf("unterminated tier")
	}
	tier := Tier(line[1:closing])
	if !tier.Valid() {
		return Entry{}, fmt.Errorf("unknown tier %q", tier)
	}

	rest := line[closing+2:]
	at := strings.LastIndex(rest, hashField)
	if at <= 0 {
		return Entry{}, fmt.Errorf("entry without hash")
	}
	path := rest[:at]
	sum := hash.Sum(rest[at+len(hashField):])
	if !filepath.IsAbs(path) {
		return Entry{}, fmt.Errorf("path %q is not absolute", path)
	}
	if sum != hash.Missing {
		if _, err := hex.DecodeString(string(sum)); err != nil || sum == "" {
			return Entry{}, fmt.Errorf("bad hash %q", sum)
		}
	}
	return Entry{Path: path, Tier: tier, Hash: sum}, nil
}

// Format encodes m in the manifest file format: header lines, a blank
// line, then one entry per line sorted by tier and path.
func Format(m *Manifest) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s=%s\n", keySourceRevision, m.SourceRevision)
	fmt.Fprintf(&b, "%s=%s\n", keySourceURL, m.SourceURL)
	installedAt := ""
	if !m.InstalledAt.IsZero() {
		installedAt = m.InstalledAt.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(&b, "%s=%s\n", keyInstalledAt, installedAt)
	fmt.Fprintf(&b, "%s=%s\n", keyInstalledAgents, strings.Join(m.InstalledAgents, ","))
	mode := m.Mode
	if mode == "" {
		mode = ModeCopy
	}
	fmt.Fprintf(&b, "%s=%s\n", keyMode, mode)
	if m.Profile != "" {
		fmt.Fprintf(&b, "%s=%s\n", keyProfile, m.Profile)
	}
	algo := m.HashAlgorithm
	if algo == "" {
		algo = hash.Default
	}
	fmt.Fprintf(&b, "%s=%s\n", keyHashAlgorithm, algo)
	b.WriteString("\n")

	for _, e := range m.Sorted() {
		fmt.Fprintf(&b, "[%s] %s%s%s\n", e.Tier, e.Path, hashField, e.Hash)
	}
	return b.Bytes()
}
