package preflight

import (
	"errors"
	"fmt"
	"strings"

	"esparse/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// ErrPreflightFailed is returned by Err when any check failed.
var ErrPreflightFailed = errors.New("preflight checks failed")

// RunAll executes the checks that apply to the given config. Inputs are only
// checked when configured.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Load order inputs
	if cfg.Paths.ManifestFile != "" {
		results = append(results, CheckFileReadable("Manifest", cfg.Paths.ManifestFile))
	} else {
		if cfg.Paths.DataDir != "" {
			results = append(results, CheckDirectoryReadable("Data directory", cfg.Paths.DataDir))
		}
		if cfg.Paths.PluginsFile != "" {
			results = append(results, CheckFileReadable("plugins.txt", cfg.Paths.PluginsFile))
		}
	}
	if cfg.Paths.ModlistFile != "" {
		results = append(results, CheckFileReadable("modlist.txt", cfg.Paths.ModlistFile))
	}
	if cfg.Paths.ModsDir != "" {
		results = append(results, CheckDirectoryReadable("Mods directory", cfg.Paths.ModsDir))
	}

	// Outputs (created by EnsureDirectories before the run)
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	return results
}

// Err summarizes failed results, or returns nil when every check passed.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPreflightFailed, strings.Join(failed, "; "))
}
