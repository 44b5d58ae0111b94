package loadorder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"esparse/internal/diag"
	"esparse/internal/formid"
	"esparse/internal/plugin"
)

// Locator finds a plugin file by name and reports the mod folder it came
// from, if any.
type Locator func(name string) (path, modFolder string, ok bool)

// DirLocator searches mod folders under modsDir from the highest priority
// (last in mods) down, then dataDir. Names match case-insensitively.
func DirLocator(dataDir, modsDir string, mods []string) Locator {
	return func(name string) (string, string, bool) {
		for i := len(mods) - 1; i >= 0; i-- {
			if modsDir == "" {
				break
			}
			if path, ok := findFile(filepath.Join(modsDir, mods[i]), name); ok {
				return path, mods[i], true
			}
		}
		if dataDir != "" {
			if path, ok := findFile(dataDir, name); ok {
				return path, "", true
			}
		}
		return "", "", false
	}
}

func findFile(dir, name string) (string, bool) {
	candidate := filepath.Join(dir, name)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate, true
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(entry.Name(), name) {
			return filepath.Join(dir, entry.Name()), true
		}
	}
	return "", false
}

// IsLightPlugin reports whether a plugin uses the compact FormID space, either
// by extension or by the header flag.
func IsLightPlugin(name string, header plugin.FileHeader) bool {
	return strings.EqualFold(filepath.Ext(name), ".esl") || header.IsLight
}

// Build turns entries into registry metadata by reading each plugin's file
// header. Plugins that cannot be found are left out with a plugin_missing
// diagnostic. Plugins whose header cannot be parsed keep their slot with no
// master table so their records and references surface as resolution
// warnings downstream.
func Build(ctx context.Context, entries []Entry, locate Locator) ([]formid.PluginMeta, []diag.Diagnostic, error) {
	var (
		metas []formid.PluginMeta
		diags []diag.Diagnostic
		seen  = make(map[string]struct{}, len(entries))
	)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, diags, err
		}
		key := strings.ToLower(e.Name)
		if _, dup := seen[key]; dup {
			diags = append(diags, diag.Warning(diag.CodeDuplicatePlugin, e.Name, "plugin listed more than once; keeping the first entry"))
			continue
		}
		seen[key] = struct{}{}

		path, mod := e.Path, e.ModFolder
		if path == "" && locate != nil {
			if found, folder, ok := locate(e.Name); ok {
				path = found
				if mod == "" {
					mod = folder
				}
			}
		}
		if path == "" {
			diags = append(diags, diag.Warning(diag.CodePluginMissing, e.Name, "plugin file not found").WithTarget(e.Name))
			continue
		}

		meta := formid.PluginMeta{
			Name:      e.Name,
			Path:      path,
			ModFolder: mod,
			LoadOrder: len(metas),
		}
		header, err := plugin.ReadFileHeader(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			diags = append(diags, diag.Warning(diag.CodePluginMissing, e.Name, fmt.Sprintf("plugin file not found at %s", path)).WithTarget(e.Name))
			continue
		case err != nil:
			diags = append(diags, diag.Error(diag.CodeInvalidFileHeader, e.Name, err.Error()).At(0, plugin.FileHeaderTag))
			meta.IsESL = IsLightPlugin(e.Name, plugin.FileHeader{})
		default:
			meta.Masters = header.Masters
			meta.IsESL = IsLightPlugin(e.Name, header)
		}
		metas = append(metas, meta)
	}
	return metas, diags, nil
}
