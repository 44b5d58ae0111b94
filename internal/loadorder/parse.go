package loadorder

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one plugin in load order, earliest first. Path and ModFolder are
// optional; Build locates plugins without a Path.
type Entry struct {
	Name      string `yaml:"name"`
	Path      string `yaml:"path,omitempty"`
	ModFolder string `yaml:"mod,omitempty"`
}

// UnmarshalYAML accepts both a bare plugin name and the mapping form.
//
//	plugins:
//	  - Skyrim.esm
//	  - {name: SkyUI_SE.esp, mod: SkyUI}
func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Name = value.Value
		return nil
	}
	type rawEntry Entry
	var raw rawEntry
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*e = Entry(raw)
	return nil
}

// Manifest is the YAML load order description.
type Manifest struct {
	Plugins []Entry `yaml:"plugins"`
}

// ParseManifest reads a YAML manifest. Relative paths are kept as written.
func ParseManifest(r io.Reader) ([]Entry, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	entries := make([]Entry, 0, len(m.Plugins))
	for i, e := range m.Plugins {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" && e.Path != "" {
			e.Name = filepath.Base(e.Path)
		}
		if e.Name == "" {
			return nil, fmt.Errorf("parse manifest: plugin %d has no name or path", i)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ParsePluginsTxt reads a plugins.txt. When any line carries the '*' active
// marker only marked lines are returned; older files without markers list
// active plugins only.
func ParsePluginsTxt(r io.Reader) ([]Entry, error) {
	type line struct {
		name   string
		active bool
	}
	var (
		lines  []line
		marked bool
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		text := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		active := strings.HasPrefix(text, "*")
		if active {
			marked = true
			text = strings.TrimSpace(text[1:])
		}
		if text == "" {
			continue
		}
		lines = append(lines, line{name: text, active: active})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read plugins.txt: %w", err)
	}

	entries := make([]Entry, 0, len(lines))
	for _, l := range lines {
		if marked && !l.active {
			continue
		}
		entries = append(entries, Entry{Name: l.name})
	}
	return entries, nil
}

// ParseModlist reads a Mod Organizer modlist.txt and returns enabled mod
// folders lowest priority first. The file itself lists the highest priority
// mod first.
func ParseModlist(r io.Reader) ([]string, error) {
	var mods []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		text := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if !strings.HasPrefix(text, "+") {
			continue
		}
		name := strings.TrimSpace(text[1:])
		if name == "" || strings.HasSuffix(name, "_separator") {
			continue
		}
		mods = append(mods, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read modlist.txt: %w", err)
	}
	for i, j := 0, len(mods)-1; i < j; i, j = i+1, j-1 {
		mods[i], mods[j] = mods[j], mods[i]
	}
	return mods, nil
}
