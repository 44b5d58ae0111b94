package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"esparse/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("ESPARSE_DATA_DIR", "~/Data")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantOutput := filepath.Join(tempHome, ".local", "share", "esparse", "output")
	if cfg.Paths.OutputDir != wantOutput {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, wantOutput)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "Data") {
		t.Fatalf("expected data dir from env, got %q", cfg.Paths.DataDir)
	}
	if cfg.Extraction.Workers != runtime.NumCPU() {
		t.Fatalf("expected workers to default to NumCPU, got %d", cfg.Extraction.Workers)
	}
	if !cfg.WantsFormat(config.FormatSQLite) {
		t.Fatalf("expected sqlite output by default, got %v", cfg.Output.Formats)
	}
	if cfg.DatabasePath() != filepath.Join(wantOutput, "records.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
	if !cfg.WantsRecordType("ARMO") {
		t.Fatal("expected every record type wanted by default")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "esparse.toml")

	type payload struct {
		Paths struct {
			DataDir     string `toml:"data_dir"`
			PluginsFile string `toml:"plugins_file"`
		} `toml:"paths"`
		Extraction struct {
			Workers     int      `toml:"workers"`
			RecordTypes []string `toml:"record_types"`
		} `toml:"extraction"`
		Output struct {
			Formats []string `toml:"formats"`
		} `toml:"output"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "Data")
	custom.Paths.PluginsFile = filepath.Join(tempDir, "plugins.txt")
	custom.Extraction.Workers = 3
	custom.Extraction.RecordTypes = []string{"armo", " weap ", "ARMO", ""}
	custom.Output.Formats = []string{"JSONL", "cbor"}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Extraction.Workers != 3 {
		t.Fatalf("expected 3 workers, got %d", cfg.Extraction.Workers)
	}
	if strings.Join(cfg.Extraction.RecordTypes, ",") != "ARMO,WEAP" {
		t.Fatalf("unexpected record types %v", cfg.Extraction.RecordTypes)
	}
	if cfg.WantsRecordType("NPC_") || !cfg.WantsRecordType("WEAP") {
		t.Fatalf("record type filter not applied: %v", cfg.Extraction.RecordTypes)
	}
	if cfg.WantsFormat(config.FormatSQLite) || !cfg.WantsFormat(config.FormatJSONL) || !cfg.WantsFormat(config.FormatCBOR) {
		t.Fatalf("unexpected formats %v", cfg.Output.Formats)
	}
	if err := cfg.ValidateInputs(); err != nil {
		t.Fatalf("ValidateInputs: %v", err)
	}
}

func TestEnvWorkersOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "esparse.toml")
	if err := os.WriteFile(configPath, []byte("[extraction]\nworkers = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ESPARSE_WORKERS", "7")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Extraction.Workers != 7 {
		t.Fatalf("expected workers from env, got %d", cfg.Extraction.Workers)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"negative workers", func(c *config.Config) { c.Extraction.Workers = -1 }, "extraction.workers"},
		{"bad record tag", func(c *config.Config) { c.Extraction.RecordTypes = []string{"ARMOR"} }, "record_types"},
		{"no formats", func(c *config.Config) { c.Output.Formats = nil }, "output.formats"},
		{"unknown format", func(c *config.Config) { c.Output.Formats = []string{"xml"} }, "unsupported format"},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateInputsRequiresLoadOrderSource(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ValidateInputs(); err == nil {
		t.Fatal("expected error without plugins_file or manifest_file")
	}
	cfg.Paths.PluginsFile = "/tmp/plugins.txt"
	if err := cfg.ValidateInputs(); err == nil {
		t.Fatal("expected error without data_dir")
	}
	cfg.Paths.DataDir = "/tmp/Data"
	if err := cfg.ValidateInputs(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Paths.ModlistFile = "/tmp/modlist.txt"
	if err := cfg.ValidateInputs(); err == nil {
		t.Fatal("expected error for modlist without mods_dir")
	}

	manifestOnly := config.Default()
	manifestOnly.Paths.ManifestFile = "/tmp/loadorder.yaml"
	if err := manifestOnly.ValidateInputs(); err != nil {
		t.Fatalf("manifest should satisfy inputs: %v", err)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if !cfg.Extraction.Decode {
		t.Fatal("sample config enables decoding")
	}
}
