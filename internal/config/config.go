package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains input locations and output directories.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	ModsDir      string `toml:"mods_dir"`
	PluginsFile  string `toml:"plugins_file"`
	ModlistFile  string `toml:"modlist_file"`
	ManifestFile string `toml:"manifest_file"`
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
}

// Extraction controls the per-file parsing pass.
type Extraction struct {
	// Workers bounds concurrent file parsing. Zero means one per CPU.
	Workers int `toml:"workers"`
	// RecordTypes limits extraction to the listed 4-byte tags. Empty means all.
	RecordTypes []string `toml:"record_types"`
	// StrictGroupSpans turns group span mismatches into fatal per-file errors.
	StrictGroupSpans bool `toml:"strict_group_spans"`
	// Decode runs the typed record decoders on every extracted record.
	Decode bool `toml:"decode"`
}

// Conflict controls winner selection.
type Conflict struct {
	// StrictTies reports tied stack orders as errors instead of warnings.
	StrictTies bool `toml:"strict_ties"`
}

// Output selects the sinks that receive resolved records.
type Output struct {
	Formats  []string `toml:"formats"`
	Database string   `toml:"database"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for esparse.
//
// Configuration sections by subsystem:
//   - Paths: plugin data directory, load order files, output and log dirs
//   - Extraction: worker count, record type filter, group span strictness
//   - Conflict: tie handling during winner selection
//   - Output: sink formats and database location
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Extraction Extraction `toml:"extraction"`
	Conflict   Conflict   `toml:"conflict"`
	Output     Output     `toml:"output"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("esparse.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite store location.
func (c *Config) DatabasePath() string {
	if c.Output.Database != "" {
		return c.Output.Database
	}
	return filepath.Join(c.Paths.OutputDir, defaultDatabaseName)
}

// WantsFormat reports whether the named output sink is enabled.
func (c *Config) WantsFormat(name string) bool {
	for _, f := range c.Output.Formats {
		if f == name {
			return true
		}
	}
	return false
}

// WantsRecordType reports whether extraction includes the given tag.
func (c *Config) WantsRecordType(tag string) bool {
	if len(c.Extraction.RecordTypes) == 0 {
		return true
	}
	for _, t := range c.Extraction.RecordTypes {
		if t == tag {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
