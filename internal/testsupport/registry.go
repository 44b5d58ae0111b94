package testsupport

import (
	"fmt"
	"testing"

	"esparse/internal/formid"
	"esparse/internal/plugin"
)

// NewRegistry writes each builder to dir as Plugin<N>.esp in load order and
// returns a registry built from the written headers.
func NewRegistry(t testing.TB, dir string, plugins ...*PluginBuilder) *formid.Registry {
	t.Helper()

	metas := make([]formid.PluginMeta, 0, len(plugins))
	for i, b := range plugins {
		name := fmt.Sprintf("Plugin%d.esp", i)
		path := b.WriteFile(dir, name)
		header, err := plugin.ReadFileHeader(path)
		if err != nil {
			t.Fatalf("read header of %s: %v", name, err)
		}
		metas = append(metas, formid.PluginMeta{
			Name:      name,
			Path:      path,
			IsESL:     header.IsLight,
			LoadOrder: i,
			Masters:   header.Masters,
		})
	}
	reg, err := formid.NewRegistry(metas)
	if err != nil {
		t.Fatalf("formid.NewRegistry: %v", err)
	}
	return reg
}
