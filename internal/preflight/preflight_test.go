package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"esparse/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryReadable("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFileReadable(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "plugins.txt")
	if err := os.WriteFile(f, []byte("*Skyrim.esm\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckFileReadable("plugins", f); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckFileReadable("plugins", dir); result.Passed {
		t.Fatal("expected failure for directory")
	}
	if result := CheckFileReadable("plugins", filepath.Join(dir, "missing.txt")); result.Passed {
		t.Fatal("expected failure for missing file")
	}
}

func TestRunAll(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = ""
	cfg.Paths.PluginsFile = filepath.Join(base, "plugins.txt")

	results := RunAll(&cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %+v", results)
	}
	if err := Err(results); !errors.Is(err, ErrPreflightFailed) {
		t.Fatalf("expected failure before directories exist, got %v", err)
	}

	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(cfg.Paths.PluginsFile, []byte("*Skyrim.esm\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Err(RunAll(&cfg)); err != nil {
		t.Fatalf("expected all checks to pass: %v", err)
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatalf("expected nil, got %+v", results)
	}
}
