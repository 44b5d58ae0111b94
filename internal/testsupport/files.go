package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteBytes writes data to path, creating parent directories.
func WriteBytes(t testing.TB, path string, data []byte) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteText writes lines joined by newlines to path.
func WriteText(t testing.TB, path string, lines ...string) string {
	t.Helper()
	return WriteBytes(t, path, []byte(strings.Join(lines, "\n")+"\n"))
}
