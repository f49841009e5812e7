package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agentx-labs/agentsync/internal/branding"
	apperrors "github.com/agentx-labs/agentsync/internal/errors"
	"github.com/agentx-labs/agentsync/internal/hash"
	"github.com/agentx-labs/agentsync/internal/manifest"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Setting keys.
const (
	KeyRoot          = "root"
	KeySource        = "source"
	KeySourceURL     = "source_url"
	KeyMode          = "mode"
	KeyHashAlgorithm = "hash_algorithm"
	KeyBackupKeep    = "backup_keep"
	KeyInteractive   = "interactive"
)

// Keys lists every known setting, sorted.
var Keys = []string{
	KeyBackupKeep,
	KeyHashAlgorithm,
	KeyInteractive,
	KeyMode,
	KeyRoot,
	KeySource,
	KeySourceURL,
}

// Dir returns the config directory ($XDG_CONFIG_HOME/agentsync).
func Dir() string {
	return filepath.Join(xdg.ConfigHome, branding.ConfigDir())
}

// FilePath returns the default config file path.
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// DefaultRoot returns the default install root.
func DefaultRoot() string {
	return filepath.Join(Dir(), "kit")
}

// Config is a loaded configuration.
type Config struct {
	v    *viper.Viper
	path string
}

// Settings are the resolved values one command runs with.
type Settings struct {
	Root          string
	Source        string
	SourceURL     string
	Mode          manifest.Mode
	HashAlgorithm hash.Algorithm
	BackupKeep    int
	Interactive   string
}

// Load reads the config file at path (FilePath() when empty) and the
// environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = FilePath()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(fileType)
	v.SetEnvPrefix(branding.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyRoot, DefaultRoot())
	v.SetDefault(KeySource, "")
	v.SetDefault(KeySourceURL, branding.SourceURL())
	v.SetDefault(KeyMode, string(manifest.ModeCopy))
	v.SetDefault(KeyHashAlgorithm, string(hash.Default))
	v.SetDefault(KeyBackupKeep, 3)
	v.SetDefault(KeyInteractive, "auto")

	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, apperrors.Wrapf(err, apperrors.ErrInvalidInput, "reading config %s", path)
	}
	return &Config{v: v, path: path}, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) || errors.As(err, &notFound)
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// BindFlag makes a changed command-line flag override key.
func (c *Config) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return nil
	}
	return c.v.BindPFlag(key, flag)
}

// Get returns a value by key. Returns empty string if not set.
func (c *Config) Get(key string) string {
	return c.v.GetString(key)
}

// All returns every known key with its effective value.
func (c *Config) All() map[string]string {
	out := make(map[string]string, len(Keys))
	for _, k := range Keys {
		out[k] = c.v.GetString(k)
	}
	return out
}

// Set validates value, stores it in the config file and applies it to c.
// Only keys already in the file, plus key, are written.
func (c *Config) Set(key, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", filepath.Dir(c.path), err)
	}

	file := viper.New()
	file.SetConfigFile(c.path)
	file.SetConfigType(fileType)
	if err := file.ReadInConfig(); err != nil && !isNotExist(err) {
		return apperrors.Wrapf(err, apperrors.ErrInvalidInput, "reading config %s", c.path)
	}
	file.Set(key, value)
	if err := file.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	c.v.Set(key, value)
	return nil
}

// Settings resolves and validates the effective values.
func (c *Config) Settings() (Settings, error) {
	for _, k := range Keys {
		if err := validate(k, c.v.GetString(k)); err != nil {
			return Settings{}, err
		}
	}
	root, err := expandPath(c.v.GetString(KeyRoot))
	if err != nil {
		return Settings{}, err
	}
	src := c.v.GetString(KeySource)
	if src != "" {
		if src, err = expandPath(src); err != nil {
			return Settings{}, err
		}
	}
	mode, _ := manifest.ParseMode(c.v.GetString(KeyMode))
	algo, _ := hash.ParseAlgorithm(c.v.GetString(KeyHashAlgorithm))
	return Settings{
		Root:          root,
		Source:        src,
		SourceURL:     c.v.GetString(KeySourceURL),
		Mode:          mode,
		HashAlgorithm: algo,
		BackupKeep:    c.v.GetInt(KeyBackupKeep),
		Interactive:   strings.ToLower(c.v.GetString(KeyInteractive)),
	}, nil
}

func validate(key, value string) error {
	switch key {
	case KeyRoot:
		if strings.TrimSpace(value) == "" {
			return apperrors.New(apperrors.ErrInvalidInput, "root must not be empty")
		}
	case KeySource, KeySourceURL:
	case KeyMode:
		if _, ok := manifest.ParseMode(value); !ok {
			return apperrors.Newf(apperrors.ErrInvalidInput, "invalid mode %q (want copy or link)", value)
		}
	case KeyHashAlgorithm:
		if _, err := hash.ParseAlgorithm(value); err != nil {
			return apperrors.Wrapf(err, apperrors.ErrInvalidInput, "invalid %s", KeyHashAlgorithm)
		}
	case KeyBackupKeep:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return apperrors.Newf(apperrors.ErrInvalidInput, "%s must be a positive integer, got %q", KeyBackupKeep, value)
		}
	case KeyInteractive:
		switch strings.ToLower(value) {
		case "", "auto", "always", "never":
		default:
			return apperrors.Newf(apperrors.ErrInvalidInput, "invalid interactive mode %q (want auto, always or never)", value)
		}
	default:
		known := append([]string(nil), Keys...)
		sort.Strings(known)
		return apperrors.Newf(apperrors.ErrInvalidInput, "unknown config key %q (known: %s)", key, strings.Join(known, ", "))
	}
	return nil
}

// expandPath resolves a leading ~ and makes path absolute.
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrEnvironment, "resolving home directory")
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrInvalidInput, "resolving %s", path)
	}
	return abs, nil
}
