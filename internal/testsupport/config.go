package testsupport

import (
	"path/filepath"
	"testing"

	"esparse/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Extraction.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFormats overrides the enabled output sinks.
func WithFormats(formats ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Output.Formats = formats
	}
}

// WithRecordTypes restricts extraction to the given tags.
func WithRecordTypes(types ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extraction.RecordTypes = types
	}
}

// WithPluginsFile writes a plugins.txt listing the given lines and points the
// config at it.
func WithPluginsFile(lines ...string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "plugins.txt")
		WriteText(b.t, path, lines...)
		b.cfg.Paths.PluginsFile = path
	}
}

// WithStrictTies enables ambiguity errors during conflict resolution.
func WithStrictTies() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conflict.StrictTies = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
