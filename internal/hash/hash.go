// Package hash computes content fingerprints for installed and upstream
// files. A missing file has the sentinel fingerprint Missing, which never
// equals the digest of real content.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

// Sum is a lowercase hex digest of file content, or Missing.
type Sum string

// Missing is the fingerprint of a path that does not exist. It is not
// valid hex, so no digest can collide with it.
const Missing Sum = "absent"

// IsMissing reports whether s is the missing-file sentinel or empty.
func (s Sum) IsMissing() bool {
	return s == Missing || s == ""
}

// Short returns the first 12 characters of the digest for display.
func (s Sum) Short() string {
	if s.IsMissing() {
		return string(Missing)
	}
	if len(s) > 12 {
		return string(s[:12])
	}
	return string(s)
}

// Algorithm names a digest function.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// Default is used for installations that have not recorded an algorithm.
const Default = SHA256

// ParseAlgorithm validates an algorithm name. Empty means Default.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "":
		return Default, nil
	case SHA256, BLAKE3:
		return Algorithm(name), nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q (want %s or %s)", name, SHA256, BLAKE3)
	}
}

// Hasher fingerprints files and byte slices with one algorithm.
type Hasher struct {
	algo Algorithm
}

// New returns a Hasher for algo. An unknown algorithm falls back to Default.
func New(algo Algorithm) Hasher {
	if _, err := ParseAlgorithm(string(algo)); err != nil || algo == "" {
		algo = Default
	}
	return Hasher{algo: algo}
}

// Algorithm returns the digest function this Hasher uses.
func (h Hasher) Algorithm() Algorithm {
	return h.algo
}

// File hashes the content at path, following symlinks. A nonexistent
// path, or a symlink whose target is gone, yields Missing and no error.
func (h Hasher) File(fsys afero.Fs, path string) (Sum, error) {
	f, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return Missing, nil
		}
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("hashing %s: is a directory", path)
	}

	d := h.digest()
	if _, err := io.Copy(d, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return Sum(hex.EncodeToString(d.Sum(nil))), nil
}

// Bytes hashes an in-memory buffer.
func (h Hasher) Bytes(data []byte) Sum {
	d := h.digest()
	d.Write(data)
	return Sum(hex.EncodeToString(d.Sum(nil)))
}

func (h Hasher) digest() hash.Hash {
	if h.algo == BLAKE3 {
		return blake3.New()
	}
	return sha256.New()
}
