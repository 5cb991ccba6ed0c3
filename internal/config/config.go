// Package config builds the immutable per-run configuration from parsed
// arguments, the global settings file and the per-project preference file.
// Components receive a Config value explicitly; there is no ambient state.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BackupDirName is the backup directory created inside the target tree.
const BackupDirName = ".datezip"

// PreferenceFileName is the per-project preference file at the tree root.
const PreferenceFileName = ".datezip.yaml"

// DefaultPrefix is the archive filename prefix.
const DefaultPrefix = "datezip"

// Scope records where backups live for a version-controlled tree: at the
// repository root or in the invocation subdirectory.
type Scope string

const (
	ScopeRoot   Scope = "root"
	ScopeSubdir Scope = "subdir"
)

// Settings is the optional global settings file (~/.datezip/config.yaml).
type Settings struct {
	Prefix    string   `yaml:"prefix"`
	Exclude   []string `yaml:"exclude"`
	Retention struct {
		KeepFull int `yaml:"keep_full"`
		KeepDays int `yaml:"keep_days"`
	} `yaml:"retention"`
}

// DefaultSettings returns the built-in defaults used when no settings file
// exists: the datezip prefix and a 10-full/14-day retention window.
func DefaultSettings() *Settings {
	s := &Settings{Prefix: DefaultPrefix}
	s.Retention.KeepFull = 10
	s.Retention.KeepDays = 14
	return s
}

// SettingsPath returns the global settings file location.
func SettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".datezip", "config.yaml")
}

// LoadSettings reads the global settings file, falling back to defaults when
// it is absent.
func LoadSettings() (*Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", SettingsPath(), err)
	}
	if s.Prefix == "" {
		s.Prefix = DefaultPrefix
	}
	return s, nil
}

// Preference is the per-project preference file, written once after the
// interactive scope prompt and read thereafter to avoid re-prompting.
type Preference struct {
	Scope Scope `yaml:"scope"`
}

// LoadPreference reads dir's preference file. A missing file returns
// (nil, nil).
func LoadPreference(dir string) (*Preference, error) {
	data, err := os.ReadFile(filepath.Join(dir, PreferenceFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var p Preference
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", PreferenceFileName, err)
	}
	if p.Scope != ScopeRoot && p.Scope != ScopeSubdir {
		return nil, fmt.Errorf("%s: invalid scope %q", PreferenceFileName, p.Scope)
	}
	return &p, nil
}

// Save writes the preference file into dir.
func (p *Preference) Save(dir string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, PreferenceFileName), data, 0644)
}

// Config is the immutable per-run configuration.
type Config struct {
	Root     string   // target tree root
	Prefix   string   // archive filename prefix
	Quiet    bool     // suppress informational output
	Exclude  []string // extra fixed exclusions from settings
	KeepFull int      // retention: FULL archives kept by count
	KeepDays int      // retention: age threshold in days
}

// BackupDir returns the backup directory for the configured root.
func (c Config) BackupDir() string {
	return filepath.Join(c.Root, BackupDirName)
}

// FixedExcludes returns the exclusion patterns that apply regardless of any
// ignore-spec content: the backup directory, the preference file, and the
// settings extras.
func (c Config) FixedExcludes() []string {
	fixed := []string{BackupDirName, PreferenceFileName}
	return append(fixed, c.Exclude...)
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
