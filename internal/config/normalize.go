package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeExtraction(); err != nil {
		return err
	}
	if err := c.normalizeOutput(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		if value, ok := os.LookupEnv("ESPARSE_DATA_DIR"); ok {
			c.Paths.DataDir = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}

	fields := []struct {
		key   string
		value *string
	}{
		{"paths.data_dir", &c.Paths.DataDir},
		{"paths.mods_dir", &c.Paths.ModsDir},
		{"paths.plugins_file", &c.Paths.PluginsFile},
		{"paths.modlist_file", &c.Paths.ModlistFile},
		{"paths.manifest_file", &c.Paths.ManifestFile},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.log_dir", &c.Paths.LogDir},
	}
	for _, f := range fields {
		expanded, err := expandPath(strings.TrimSpace(*f.value))
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.value = expanded
	}
	return nil
}

func (c *Config) normalizeExtraction() error {
	if value, ok := os.LookupEnv("ESPARSE_WORKERS"); ok && strings.TrimSpace(value) != "" {
		workers, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("ESPARSE_WORKERS: %w", err)
		}
		c.Extraction.Workers = workers
	}
	if c.Extraction.Workers == 0 {
		c.Extraction.Workers = runtime.NumCPU()
	}

	if len(c.Extraction.RecordTypes) > 0 {
		types := make([]string, 0, len(c.Extraction.RecordTypes))
		seen := make(map[string]struct{}, len(c.Extraction.RecordTypes))
		for _, tag := range c.Extraction.RecordTypes {
			normalized := strings.ToUpper(strings.TrimSpace(tag))
			if normalized == "" {
				continue
			}
			if _, exists := seen[normalized]; exists {
				continue
			}
			seen[normalized] = struct{}{}
			types = append(types, normalized)
		}
		c.Extraction.RecordTypes = types
	}
	return nil
}

func (c *Config) normalizeOutput() error {
	formats := make([]string, 0, len(c.Output.Formats))
	seen := make(map[string]struct{}, len(c.Output.Formats))
	for _, f := range c.Output.Formats {
		normalized := strings.ToLower(strings.TrimSpace(f))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		formats = append(formats, normalized)
	}
	c.Output.Formats = formats

	var err error
	if c.Output.Database, err = expandPath(strings.TrimSpace(c.Output.Database)); err != nil {
		return fmt.Errorf("output.database: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
