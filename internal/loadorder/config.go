package loadorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"esparse/internal/config"
	"esparse/internal/diag"
	"esparse/internal/formid"
)

// FromConfig reads the configured load order source and builds registry
// metadata. A manifest wins over plugins.txt when both are set.
func FromConfig(ctx context.Context, cfg *config.Config) ([]formid.PluginMeta, []diag.Diagnostic, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("load order: config is required")
	}

	var mods []string
	if cfg.Paths.ModlistFile != "" {
		f, err := os.Open(cfg.Paths.ModlistFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open modlist: %w", err)
		}
		mods, err = ParseModlist(f)
		f.Close()
		if err != nil {
			return nil, nil, err
		}
	}
	locate := DirLocator(cfg.Paths.DataDir, cfg.Paths.ModsDir, mods)

	if cfg.Paths.ManifestFile != "" {
		f, err := os.Open(cfg.Paths.ManifestFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open manifest: %w", err)
		}
		entries, err := ParseManifest(f)
		f.Close()
		if err != nil {
			return nil, nil, err
		}
		base := filepath.Dir(cfg.Paths.ManifestFile)
		for i := range entries {
			if entries[i].Path != "" && !filepath.IsAbs(entries[i].Path) {
				entries[i].Path = filepath.Join(base, entries[i].Path)
			}
		}
		return Build(ctx, entries, locate)
	}

	if cfg.Paths.PluginsFile == "" {
		return nil, nil, fmt.Errorf("load order: no plugins file or manifest configured")
	}
	f, err := os.Open(cfg.Paths.PluginsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open plugins file: %w", err)
	}
	defer f.Close()
	entries, err := ParsePluginsTxt(f)
	if err != nil {
		return nil, nil, err
	}
	return Build(ctx, entries, locate)
}
