package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateInputs checks that a load order source is configured. Commands
// that only inspect single files skip it.
func (c *Config) ValidateInputs() error {
	if c.Paths.ManifestFile != "" {
		return nil
	}
	if c.Paths.PluginsFile == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("paths.plugins_file or paths.manifest_file is required. Edit %s (create with 'esparse config init')", defaultPath)
	}
	if c.Paths.DataDir == "" && c.Paths.ModsDir == "" {
		return errors.New("paths.data_dir (or ESPARSE_DATA_DIR) or paths.mods_dir must be set when using paths.plugins_file")
	}
	if c.Paths.ModlistFile != "" && c.Paths.ModsDir == "" {
		return errors.New("paths.mods_dir must be set when paths.modlist_file is used")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	if c.Extraction.Workers < 0 {
		return errors.New("extraction.workers must be >= 0")
	}
	for _, tag := range c.Extraction.RecordTypes {
		if len(tag) != 4 {
			return fmt.Errorf("extraction.record_types: %q is not a 4-character record tag", tag)
		}
	}
	return nil
}

func (c *Config) validateOutput() error {
	if len(c.Output.Formats) == 0 {
		return errors.New("output.formats must include at least one of sqlite, jsonl, cbor")
	}
	for _, f := range c.Output.Formats {
		switch f {
		case FormatSQLite, FormatJSONL, FormatCBOR:
		default:
			return fmt.Errorf("output.formats: unsupported format %q", f)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
