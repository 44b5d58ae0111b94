package formid

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	// MaxStandardPlugins is the number of full-slot plugins a load order can
	// hold; 0xFE and 0xFF are reserved for light plugins and the active file.
	MaxStandardPlugins = 0xFE
	// MaxLightPlugins is the number of light plugins sharing the 0xFE slot.
	MaxLightPlugins = 0x1000
)

var (
	ErrDuplicatePlugin = errors.New("duplicate plugin")
	ErrTooManyPlugins  = errors.New("too many plugins")
	ErrUnnamedPlugin   = errors.New("plugin has no name")
)

// PluginMeta describes one loaded plugin. StandardIndex is -1 for light
// plugins and LightIndex is -1 for standard ones. A nil Masters slice means
// the plugin's master table is unknown; an empty one means it has none.
type PluginMeta struct {
	Name          string         `json:"name"`
	Path          string         `json:"path,omitempty"`
	ModFolder     string         `json:"mod_folder,omitempty"`
	IsESL         bool           `json:"is_esl"`
	LoadOrder     int            `json:"load_order"`
	StandardIndex int            `json:"standard_index"`
	LightIndex    int            `json:"light_index"`
	Masters       []string       `json:"masters"`
	MasterIndex   map[int]string `json:"-"`
	FileLoadOrder map[string]int `json:"-"`
}

// Slot returns the index used when encoding this plugin's FormIDs.
func (m PluginMeta) Slot() int {
	if m.IsESL {
		return m.LightIndex
	}
	return m.StandardIndex
}

// Registry is the load order built once per run. It is read-only after
// NewRegistry returns and safe for concurrent use.
type Registry struct {
	plugins []PluginMeta
	byName  map[string]int
}

// NewRegistry orders metas by LoadOrder, renumbers them densely from zero and
// derives the per-plugin index maps.
func NewRegistry(metas []PluginMeta) (*Registry, error) {
	plugins := make([]PluginMeta, len(metas))
	copy(plugins, metas)
	sort.SliceStable(plugins, func(i, j int) bool {
		return plugins[i].LoadOrder < plugins[j].LoadOrder
	})

	r := &Registry{
		plugins: plugins,
		byName:  make(map[string]int, len(plugins)),
	}
	standard, light := 0, 0
	for i := range plugins {
		p := &plugins[i]
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("%w at load order %d", ErrUnnamedPlugin, i)
		}
		key := foldName(p.Name)
		if prev, exists := r.byName[key]; exists {
			return nil, fmt.Errorf("%w: %s at load order %d and %d", ErrDuplicatePlugin, p.Name, prev, i)
		}
		r.byName[key] = i
		p.LoadOrder = i
		if p.IsESL {
			if light >= MaxLightPlugins {
				return nil, fmt.Errorf("%w: more than %d light plugins", ErrTooManyPlugins, MaxLightPlugins)
			}
			p.LightIndex, p.StandardIndex = light, -1
			light++
		} else {
			if standard >= MaxStandardPlugins {
				return nil, fmt.Errorf("%w: more than %d standard plugins", ErrTooManyPlugins, MaxStandardPlugins)
			}
			p.StandardIndex, p.LightIndex = standard, -1
			standard++
		}
	}

	for i := range plugins {
		p := &plugins[i]
		if p.Masters != nil {
			masters := make([]string, len(p.Masters))
			copy(masters, p.Masters)
			p.Masters = masters
			p.MasterIndex = make(map[int]string, len(p.Masters))
		}
		p.FileLoadOrder = map[string]int{foldName(p.Name): p.LoadOrder}
		for idx, master := range p.Masters {
			p.MasterIndex[idx] = master
			if pos, ok := r.byName[foldName(master)]; ok {
				p.FileLoadOrder[foldName(master)] = pos
			}
		}
	}
	return r, nil
}

// Lookup finds a plugin by name, ignoring case.
func (r *Registry) Lookup(name string) (PluginMeta, bool) {
	if r == nil {
		return PluginMeta{}, false
	}
	idx, ok := r.byName[foldName(name)]
	if !ok {
		return PluginMeta{}, false
	}
	return r.plugins[idx], true
}

// Plugins returns the registry entries in load order.
func (r *Registry) Plugins() []PluginMeta {
	if r == nil {
		return nil
	}
	out := make([]PluginMeta, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.plugins)
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
