// Package config loads the optional xfs-irecover defaults file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the optional xfs-irecover configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
}

// DefaultsConfig holds persistent flag defaults. Nil means unset. Sizes use
// the same syntax as the command-line flags ("1G", "512K").
type DefaultsConfig struct {
	Debugger          *string `toml:"debugger"`
	SizeCutoff        *string `toml:"size_cutoff"`
	TruncateThreshold *string `toml:"truncate_threshold"`
	MinSize           *string `toml:"min_size"`
	BWLimit           *string `toml:"bwlimit"`
	Timeout           *string `toml:"timeout"`
	Journal           *bool   `toml:"journal"`
}

// TimeoutDuration parses Timeout. ok is false when it is unset.
func (d DefaultsConfig) TimeoutDuration() (time.Duration, bool, error) {
	if d.Timeout == nil {
		return 0, false, nil
	}
	v, err := time.ParseDuration(*d.Timeout)
	if err != nil {
		return 0, false, fmt.Errorf("defaults.timeout: %w", err)
	}
	if v < 0 {
		return 0, false, fmt.Errorf("defaults.timeout: negative duration %s", v)
	}
	return v, true, nil
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "xfs-irecover", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the config file at path. A missing file yields a zero
// Config. Unknown keys are an error so typos do not pass silently.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}
