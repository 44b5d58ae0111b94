package loadorder_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"esparse/internal/diag"
	"esparse/internal/formid"
	"esparse/internal/loadorder"
	"esparse/internal/plugin"
	"esparse/internal/testsupport"
)

func names(entries []loadorder.Entry) string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return strings.Join(out, ",")
}

func TestParsePluginsTxt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "active markers",
			in:   "# This file is used by the game\n*Skyrim.esm\nUnofficial.esp\n\n* Dawnguard.esm \n*Mod.esp\n",
			want: "Skyrim.esm,Dawnguard.esm,Mod.esp",
		},
		{
			name: "legacy list",
			in:   "\ufeffSkyrim.esm\r\nUpdate.esm\r\n",
			want: "Skyrim.esm,Update.esm",
		},
		{name: "empty", in: "# nothing\n", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := loadorder.ParsePluginsTxt(strings.NewReader(tc.in))
			if err != nil {
				t.Fatalf("ParsePluginsTxt: %v", err)
			}
			if got := names(entries); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseModlist(t *testing.T) {
	in := "# Managed by Mod Organizer\n+Patch Hub\n-Disabled Mod\n+Weapons_separator\n+SkyUI\n*Unmanaged: Dawnguard\n+Base Fixes\n"
	mods, err := loadorder.ParseModlist(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseModlist: %v", err)
	}
	if got := strings.Join(mods, ","); got != "Base Fixes,SkyUI,Patch Hub" {
		t.Fatalf("mods = %q", got)
	}
}

func TestParseManifest(t *testing.T) {
	in := `
plugins:
  - Skyrim.esm
  - name: SkyUI_SE.esp
    mod: SkyUI
  - path: extra/Loose.esp
`
	entries, err := loadorder.ParseManifest(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %+v", entries)
	}
	if entries[1].ModFolder != "SkyUI" || entries[2].Name != "Loose.esp" || entries[2].Path != "extra/Loose.esp" {
		t.Fatalf("unexpected entries %+v", entries)
	}

	if _, err := loadorder.ParseManifest(strings.NewReader("plugins:\n  - {mod: Orphan}\n")); err == nil {
		t.Fatal("expected error for nameless entry")
	}
	if _, err := loadorder.ParseManifest(strings.NewReader("plugin: []\n")); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestBuild(t *testing.T) {
	dataDir := t.TempDir()
	modsDir := t.TempDir()

	testsupport.NewPlugin(t, testsupport.PluginHeader{Flags: plugin.FlagMaster}).WriteFile(dataDir, "Skyrim.esm")
	testsupport.NewPlugin(t, testsupport.PluginHeader{Masters: []string{"Skyrim.esm"}}).WriteFile(dataDir, "ccFish.esl")
	testsupport.NewPlugin(t, testsupport.PluginHeader{Flags: plugin.FlagLight, Masters: []string{"Skyrim.esm"}}).
		WriteFile(filepath.Join(modsDir, "Tiny Mod"), "tiny.esp")
	// The higher priority mod supplies the file.
	testsupport.NewPlugin(t, testsupport.PluginHeader{Masters: []string{"Skyrim.esm"}}).
		WriteFile(filepath.Join(modsDir, "Old Patch"), "Patch.esp")
	testsupport.NewPlugin(t, testsupport.PluginHeader{Masters: []string{"Skyrim.esm", "Tiny.esp"}}).
		WriteFile(filepath.Join(modsDir, "New Patch"), "Patch.esp")
	testsupport.WriteBytes(t, filepath.Join(dataDir, "Broken.esp"), []byte("not a plugin at all, definitely"))

	entries := []loadorder.Entry{
		{Name: "Skyrim.esm"},
		{Name: "ccFish.esl"},
		{Name: "Tiny.esp"},
		{Name: "Missing.esp"},
		{Name: "Patch.esp"},
		{Name: "skyrim.esm"},
		{Name: "Broken.esp"},
	}
	locate := loadorder.DirLocator(dataDir, modsDir, []string{"Tiny Mod", "Old Patch", "New Patch"})
	metas, diags, err := loadorder.Build(context.Background(), entries, locate)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(metas) != 5 {
		t.Fatalf("expected 5 plugins, got %+v", metas)
	}
	if !metas[1].IsESL || !metas[2].IsESL || metas[0].IsESL || metas[3].IsESL {
		t.Fatalf("unexpected light flags %+v", metas)
	}
	if metas[2].ModFolder != "Tiny Mod" || metas[3].ModFolder != "New Patch" {
		t.Fatalf("unexpected mod folders %q %q", metas[2].ModFolder, metas[3].ModFolder)
	}
	if len(metas[3].Masters) != 2 || metas[3].LoadOrder != 3 {
		t.Fatalf("unexpected patch meta %+v", metas[3])
	}
	if metas[0].Masters == nil || len(metas[0].Masters) != 0 {
		t.Fatalf("a master without masters needs an empty master table: %#v", metas[0].Masters)
	}
	if metas[4].Name != "Broken.esp" || metas[4].Masters != nil {
		t.Fatalf("broken plugin should keep its slot without a master table: %+v", metas[4])
	}

	codes := map[diag.Code]int{}
	for _, d := range diags {
		codes[d.Code]++
	}
	if codes[diag.CodePluginMissing] != 1 || codes[diag.CodeDuplicatePlugin] != 1 || codes[diag.CodeInvalidFileHeader] != 1 {
		t.Fatalf("unexpected diagnostics %+v", diags)
	}

	reg, err := formid.NewRegistry(metas)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if res := reg.Resolve(0x01000801, "Patch.esp"); !res.OK || res.Global != 0xFE001801 {
		t.Fatalf("resolve through built registry: %+v", res)
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := loadorder.Build(ctx, []loadorder.Entry{{Name: "A.esp"}}, nil); err == nil {
		t.Fatal("expected context error")
	}
}

func TestFromConfigManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	testsupport.NewPlugin(t, testsupport.PluginHeader{}).WriteFile(filepath.Join(base, "plugins"), "Skyrim.esm")
	cfg.Paths.ManifestFile = testsupport.WriteText(t, filepath.Join(base, "manifest.yaml"),
		"plugins:",
		"  - path: plugins/Skyrim.esm",
	)

	metas, diags, err := loadorder.FromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if len(metas) != 1 || len(diags) != 0 || metas[0].Name != "Skyrim.esm" {
		t.Fatalf("unexpected result %+v %+v", metas, diags)
	}
}

func TestFromConfigPluginsTxt(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPluginsFile("*Skyrim.esm", "*Gone.esp"))
	testsupport.NewPlugin(t, testsupport.PluginHeader{}).WriteFile(cfg.Paths.DataDir, "Skyrim.esm")

	metas, diags, err := loadorder.FromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if len(metas) != 1 || len(diags) != 1 || diags[0].Target != "Gone.esp" {
		t.Fatalf("unexpected result %+v %+v", metas, diags)
	}
}
