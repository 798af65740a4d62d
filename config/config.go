// Package config implements the layered bb-cli configuration: a global
// profile file per installation plus an optional per-repository local
// override, with dotted-key access and atomic persistence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bb-cli/common"
	"bb-cli/logger"

	"gopkg.in/yaml.v3"
)

const (
	// GlobalDirName is the directory under the user config dir that
	// holds the global profile file.
	GlobalDirName = "bb-cli"
	// GlobalFileName is the global profile file name.
	GlobalFileName = "config.yml"
	// LocalFileName marks an initialized repository directory. It is
	// discovered by walking up from the working directory.
	LocalFileName = ".bb-cli.yml"

	// DefaultProfileName is used when no active profile is set.
	DefaultProfileName = "default"
	// DefaultRemoteName is the git remote consulted when none is configured.
	DefaultRemoteName = "origin"
)

// Source layers reported by List.
const (
	LayerProfile = "profile"
	LayerLocal   = "local"
)

// Profile is a named set of defaults a user can switch between.
type Profile struct {
	Workspace  string `yaml:"workspace,omitempty"`
	Repository string `yaml:"repository,omitempty"`
	Remote     string `yaml:"remote,omitempty"`
	User       string `yaml:"user,omitempty"`
	APIURL     string `yaml:"api_url,omitempty"`
}

// profileOptions are the recognized per-profile option names.
var profileOptions = []string{"workspace", "repository", "remote", "user", "api_url"}

// globalConfig is the persisted layout of the global profile file.
type globalConfig struct {
	// User names the active profile.
	User     string             `yaml:"user,omitempty"`
	Profiles map[string]Profile `yaml:"profiles,omitempty"`
}

// LocalOverride is the per-directory configuration written by
// `bb config init`. It overrides profile defaults but never explicit
// flags.
type LocalOverride struct {
	Workspace  string `yaml:"workspace,omitempty"`
	Repository string `yaml:"repository,omitempty"`
	Remote     string `yaml:"remote,omitempty"`
}

// Entry is one row of `bb config list`, labeled with the layer it came
// from so the output is non-ambiguous.
type Entry struct {
	Key   string
	Value string
	Layer string
}

// Store owns the Profile and LocalOverride records. It is the only
// writer; everything else reads through it.
type Store struct {
	globalPath string
	localPath  string // empty when no local override was found
	global     globalConfig
	local      *LocalOverride

	// profileOverride is the --profile flag value. It wins over the
	// persisted active profile for this invocation only.
	profileOverride string
}

// DefaultGlobalPath returns the location of the global profile file,
// ~/.config/bb-cli/config.yml.
func DefaultGlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", GlobalDirName, GlobalFileName), nil
}

// Open loads the global profile file at globalPath and discovers a
// local override by walking up from workDir. Missing files are normal:
// the store starts empty and materializes on first Set.
func Open(globalPath, workDir string) (*Store, error) {
	s := &Store{globalPath: globalPath}

	data, err := os.ReadFile(globalPath)
	switch {
	case os.IsNotExist(err):
		logger.Debugf("No global config at %s", globalPath)
	case err != nil:
		return nil, fmt.Errorf("reading global config %s: %w", globalPath, err)
	default:
		if err := yaml.Unmarshal(data, &s.global); err != nil {
			return nil, fmt.Errorf("parsing global config %s: %w", globalPath, err)
		}
	}

	if path := findLocalFile(workDir); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading local config %s: %w", path, err)
		}
		var local LocalOverride
		if err := yaml.Unmarshal(data, &local); err != nil {
			return nil, fmt.Errorf("parsing local config %s: %w", path, err)
		}
		s.localPath = path
		s.local = &local
		logger.Debugf("Using local config from %s", path)
	}

	return s, nil
}

// findLocalFile walks up from dir looking for the local override file.
func findLocalFile(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, LocalFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// OverrideActiveProfile switches the active profile for this
// invocation without persisting anything.
func (s *Store) OverrideActiveProfile(name string) {
	s.profileOverride = name
}

// ActiveProfileName returns the name of the active profile, falling
// back to "default" when none is set.
func (s *Store) ActiveProfileName() string {
	if s.profileOverride != "" {
		return s.profileOverride
	}
	if s.global.User != "" {
		return s.global.User
	}
	return DefaultProfileName
}

// ActiveProfile returns the active profile. The zero Profile is
// returned when it has never been configured.
func (s *Store) ActiveProfile() Profile {
	return s.global.Profiles[s.ActiveProfileName()]
}

// ProfileNamed returns the profile with the given name, if present.
func (s *Store) ProfileNamed(name string) (Profile, bool) {
	p, ok := s.global.Profiles[name]
	return p, ok
}

// Local returns the discovered local override, or nil.
func (s *Store) Local() *LocalOverride {
	return s.local
}

// Get returns the value for a dotted key from any layer, preferring
// the local override.
func (s *Store) Get(key string) (string, bool) {
	if s.local != nil {
		switch key {
		case "workspace":
			if s.local.Workspace != "" {
				return s.local.Workspace, true
			}
		case "repository":
			if s.local.Repository != "" {
				return s.local.Repository, true
			}
		case "remote":
			if s.local.Remote != "" {
				return s.local.Remote, true
			}
		}
	}

	if key == "user" {
		if s.global.User == "" {
			return "", false
		}
		return s.global.User, true
	}

	name, option, err := splitProfileKey(key)
	if err != nil {
		return "", false
	}
	p, ok := s.global.Profiles[name]
	if !ok {
		return "", false
	}
	v := profileOption(p, option)
	return v, v != ""
}

// Set writes a dotted key into the global layer and persists it
// atomically. Recognized key shapes are `user` and
// `profile.<name>.<option>`; anything else is a ValidationError.
func (s *Store) Set(key, value string) error {
	if key == "user" {
		s.global.User = value
		return s.save()
	}

	name, option, err := splitProfileKey(key)
	if err != nil {
		return err
	}

	if s.global.Profiles == nil {
		s.global.Profiles = map[string]Profile{}
	}
	p := s.global.Profiles[name]
	switch option {
	case "workspace":
		p.Workspace = value
	case "repository":
		p.Repository = value
	case "remote":
		p.Remote = value
	case "user":
		p.User = value
	case "api_url":
		p.APIURL = value
	default:
		return common.NewValidationError(option,
			fmt.Sprintf("unknown profile option, expected one of %s", strings.Join(profileOptions, ", ")))
	}
	s.global.Profiles[name] = p

	return s.save()
}

// List returns every configured value with the layer it came from.
// Global profile entries come first (active profile leading), then the
// local override entries.
func (s *Store) List() []Entry {
	var entries []Entry

	if s.global.User != "" {
		entries = append(entries, Entry{Key: "user", Value: s.global.User, Layer: LayerProfile})
	}

	names := make([]string, 0, len(s.global.Profiles))
	for name := range s.global.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	// Active profile listed before the rest.
	active := s.ActiveProfileName()
	sort.SliceStable(names, func(i, j int) bool {
		return names[i] == active && names[j] != active
	})

	for _, name := range names {
		p := s.global.Profiles[name]
		for _, option := range profileOptions {
			if v := profileOption(p, option); v != "" {
				entries = append(entries, Entry{
					Key:   fmt.Sprintf("profile.%s.%s", name, option),
					Value: v,
					Layer: LayerProfile,
				})
			}
		}
	}

	if s.local != nil {
		for _, kv := range []struct{ k, v string }{
			{"workspace", s.local.Workspace},
			{"repository", s.local.Repository},
			{"remote", s.local.Remote},
		} {
			if kv.v != "" {
				entries = append(entries, Entry{Key: kv.k, Value: kv.v, Layer: LayerLocal})
			}
		}
	}

	return entries
}

// InitLocal writes a local override file in dir. It refuses to clobber
// an existing one.
func InitLocal(dir string, override LocalOverride) (string, error) {
	path := filepath.Join(dir, LocalFileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("local configuration already exists at %s", path)
	}

	data, err := yaml.Marshal(&override)
	if err != nil {
		return "", fmt.Errorf("encoding local config: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// save persists the global layer. The local override is only ever
// written by InitLocal.
func (s *Store) save() error {
	dir := filepath.Dir(s.globalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(&s.global)
	if err != nil {
		return fmt.Errorf("encoding global config: %w", err)
	}
	return writeFileAtomic(s.globalPath, data)
}

// writeFileAtomic writes via a temp file in the target directory and
// renames it into place, so a crash mid-write never leaves a corrupt
// config behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		if werr != nil {
			return fmt.Errorf("writing %s: %w", tmpName, werr)
		}
		return fmt.Errorf("closing %s: %w", tmpName, cerr)
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting permissions on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// splitProfileKey validates a `profile.<name>.<option>` key.
func splitProfileKey(key string) (name, option string, err error) {
	parts := strings.Split(key, ".")
	if len(parts) != 3 || parts[0] != "profile" || parts[1] == "" || parts[2] == "" {
		return "", "", common.NewValidationError(key,
			"recognized keys are `user` and `profile.<name>.<option>`")
	}
	return parts[1], parts[2], nil
}

// profileOption reads a profile field by option name.
func profileOption(p Profile, option string) string {
	switch option {
	case "workspace":
		return p.Workspace
	case "repository":
		return p.Repository
	case "remote":
		return p.Remote
	case "user":
		return p.User
	case "api_url":
		return p.APIURL
	}
	return ""
}
