package permission

import (
	"fmt"

	"github.com/forgeqa/forgeqa/internal/capability"
	"github.com/forgeqa/forgeqa/internal/preset"
	"github.com/forgeqa/forgeqa/internal/shared"
)

// Override is a partial, user-specific capability assignment. Keys absent
// from the override inherit the baseline value.
type Override map[capability.Key]bool

// Clone returns an independent copy of the override.
func (o Override) Clone() Override {
	out := make(Override, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// CloneOverrides deep-copies a per-user override map. Absent overrides stay
// absent; empty overrides stay empty.
func CloneOverrides(in map[int64]Override) map[int64]Override {
	out := make(map[int64]Override, len(in))
	for id, o := range in {
		out[id] = o.Clone()
	}
	return out
}

// Resolver merges baselines with overrides and validates proposed mutations.
// Every method is a pure transform over its inputs so callers may invoke the
// resolver speculatively, for previews, without touching committed state.
type Resolver struct {
	catalog *capability.Catalog
	presets *preset.Registry
}

// NewResolver constructs a resolver over the given catalog and presets.
func NewResolver(catalog *capability.Catalog, presets *preset.Registry) *Resolver {
	return &Resolver{catalog: catalog, presets: presets}
}

// Catalog exposes the catalog the resolver closes over.
func (r *Resolver) Catalog() *capability.Catalog {
	return r.catalog
}

// ResolveEffective computes the effective capability map for one member:
// for every catalog key the override wins when present, the baseline
// otherwise, and implication closure is applied to the result.
func (r *Resolver) ResolveEffective(baseline capability.Map, override Override) capability.Map {
	merged := make(capability.Map, len(r.catalog.Keys()))
	for _, key := range r.catalog.Keys() {
		if v, ok := override[key]; ok {
			merged[key] = v
			continue
		}
		merged[key] = baseline[key]
	}
	return r.catalog.Closure(merged)
}

// ValidateOwnerContinuity checks that at least one member of the proposed
// permission map retains effective approve & merge. baselineFor supplies the
// inherited defaults per member. The check counts effective values, so a
// member with no override whose baseline grants approve & merge satisfies it.
func (r *Resolver) ValidateOwnerContinuity(baselineFor func(userID int64) capability.Map, proposed map[int64]Override) error {
	for userID, override := range proposed {
		effective := r.ResolveEffective(baselineFor(userID), override)
		if effective[capability.KeyApproveAndMerge] {
			return nil
		}
	}
	return fmt.Errorf("permission: no member retains %s: %w", capability.KeyApproveAndMerge, shared.ErrOwnerContinuity)
}

// SetCapability returns a copy of the proposed override map with one key
// changed for one member. Enabling a capability also enables everything it
// implies, transitively, inside the same override so no partial state is
// ever visible.
func (r *Resolver) SetCapability(overrides map[int64]Override, userID int64, key capability.Key, value bool) (map[int64]Override, error) {
	if !r.catalog.Contains(key) {
		return nil, fmt.Errorf("permission: %q: %w", key, shared.ErrUnknownCapability)
	}
	next := CloneOverrides(overrides)
	override, ok := next[userID]
	if !ok {
		override = Override{}
		next[userID] = override
	}
	override[key] = value
	if value {
		closed := r.catalog.Closure(capability.Map{key: true})
		for implied, v := range closed {
			if v {
				override[implied] = true
			}
		}
	}
	return next, nil
}

// ApplyPreset returns a copy of the proposed override map with the member's
// override replaced by a full copy of the named preset. The preset is copied
// at assignment time and never referenced live.
func (r *Resolver) ApplyPreset(overrides map[int64]Override, userID int64, presetName string) (map[int64]Override, error) {
	p, err := r.presets.Get(presetName)
	if err != nil {
		return nil, err
	}
	next := CloneOverrides(overrides)
	override := make(Override, len(p.Grants))
	for key, v := range p.Grants {
		override[key] = v
	}
	next[userID] = override
	return next, nil
}
