package preset

import (
	"fmt"
	"sort"

	"github.com/forgeqa/forgeqa/internal/capability"
	"github.com/forgeqa/forgeqa/internal/shared"
)

// Preset is a named, complete capability template. Presets are assignment
// templates only; callers always receive copies, never the stored map.
type Preset struct {
	Name        string
	Description string
	Grants      capability.Map
}

// Registry holds the compiled-in presets keyed by name.
type Registry struct {
	catalog *capability.Catalog
	presets map[string]Preset
	order   []string
}

// NewRegistry builds an empty registry bound to a catalog.
func NewRegistry(catalog *capability.Catalog) *Registry {
	return &Registry{
		catalog: catalog,
		presets: make(map[string]Preset),
	}
}

// Register validates and stores a preset. A preset must assign a value to
// every catalog key and must not reference keys outside the catalog.
func (r *Registry) Register(p Preset) error {
	if p.Name == "" {
		return fmt.Errorf("preset: name required")
	}
	if _, dup := r.presets[p.Name]; dup {
		return fmt.Errorf("preset: duplicate name %q", p.Name)
	}
	for key := range p.Grants {
		if !r.catalog.Contains(key) {
			return fmt.Errorf("preset %q grants %q: %w", p.Name, key, shared.ErrUnknownCapability)
		}
	}
	for _, key := range r.catalog.Keys() {
		if _, ok := p.Grants[key]; !ok {
			return fmt.Errorf("preset %q missing %q: %w", p.Name, key, shared.ErrIncompletePreset)
		}
	}
	r.presets[p.Name] = Preset{
		Name:        p.Name,
		Description: p.Description,
		Grants:      p.Grants.Clone(),
	}
	r.order = append(r.order, p.Name)
	return nil
}

// Get returns a copy of the named preset.
func (r *Registry) Get(name string) (Preset, error) {
	p, ok := r.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("preset %q: %w", name, shared.ErrNotFound)
	}
	p.Grants = p.Grants.Clone()
	return p, nil
}

// List returns all presets in registration order.
func (r *Registry) List() []Preset {
	out := make([]Preset, 0, len(r.order))
	for _, name := range r.order {
		p := r.presets[name]
		p.Grants = p.Grants.Clone()
		out = append(out, p)
	}
	return out
}

// Names returns the registered preset names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.Strings(out)
	return out
}
