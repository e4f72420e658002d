package interpose

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is looked up next to the host executable.
const ConfigFileName = "interpose.toml"

// Config is the runtime configuration.
type Config struct {
	Log    LogConfig    `toml:"log"`
	Report ReportConfig `toml:"report"`

	// Dir is the directory the config was loaded from (set at load time).
	Dir string `toml:"-"`
}

// LogConfig configures the runtime logger.
type LogConfig struct {
	// Level is a zap level name; empty keeps info
	Level string `toml:"level"`
	// File receives log output; empty writes to stderr
	File string `toml:"file"`
}

// ReportConfig configures the crash report.
type ReportConfig struct {
	Path string `toml:"path"`
}

// LoadConfig reads interpose.toml from dir. A missing file yields the
// defaults.
func LoadConfig(dir string) (*Config, error) {
	cfg := &Config{Dir: dir}
	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	}

	// Defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Report.Path == "" {
		cfg.Report.Path = filepath.Join(dir, "interpose-crash.txt")
	} else if !filepath.IsAbs(cfg.Report.Path) {
		cfg.Report.Path = filepath.Join(dir, cfg.Report.Path)
	}
	if cfg.Log.File != "" && !filepath.IsAbs(cfg.Log.File) {
		cfg.Log.File = filepath.Join(dir, cfg.Log.File)
	}
	return cfg, nil
}

// ExecutableDir returns the directory of the host executable.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}
