package capability

import (
	"fmt"
)

// Catalog holds the fixed, ordered set of capability definitions together
// with their implication metadata. Implications are directional and acyclic;
// a cyclic configuration is rejected at construction time.
type Catalog struct {
	order []Key
	defs  map[Key]Definition
}

// NewCatalog validates the definitions and builds a catalog.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		order: make([]Key, 0, len(defs)),
		defs:  make(map[Key]Definition, len(defs)),
	}
	for _, def := range defs {
		if _, dup := c.defs[def.Key]; dup {
			return nil, fmt.Errorf("capability: duplicate key %q", def.Key)
		}
		c.defs[def.Key] = def
		c.order = append(c.order, def.Key)
	}
	for _, def := range defs {
		for _, implied := range def.Implies {
			if _, ok := c.defs[implied]; !ok {
				return nil, fmt.Errorf("capability: %q implies unknown key %q", def.Key, implied)
			}
		}
	}
	if cycle := c.findCycle(); len(cycle) > 0 {
		return nil, fmt.Errorf("capability: implication cycle %v", cycle)
	}
	return c, nil
}

// MustCatalog builds a catalog and panics on invalid definitions. Intended
// for the compiled-in default catalog, where a failure is a build defect.
func MustCatalog(defs []Definition) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns the definitions in declaration order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.defs[key])
	}
	return out
}

// Keys returns the catalog keys in declaration order.
func (c *Catalog) Keys() []Key {
	out := make([]Key, len(c.order))
	copy(out, c.order)
	return out
}

// Lookup fetches a definition by key.
func (c *Catalog) Lookup(key Key) (Definition, bool) {
	def, ok := c.defs[key]
	return def, ok
}

// Contains reports whether the key exists in the catalog.
func (c *Catalog) Contains(key Key) bool {
	_, ok := c.defs[key]
	return ok
}

// Dependents returns the keys that directly imply the given key.
func (c *Catalog) Dependents(key Key) []Key {
	var out []Key
	for _, k := range c.order {
		for _, implied := range c.defs[k].Implies {
			if implied == key {
				out = append(out, k)
				break
			}
		}
	}
	return out
}

// Closure forces every capability implied by a true key to true, applied
// transitively until fixpoint. The input map is not modified.
func (c *Catalog) Closure(m Map) Map {
	out := m.Clone()
	changed := true
	for changed {
		changed = false
		for _, key := range c.order {
			if !out[key] {
				continue
			}
			for _, implied := range c.defs[key].Implies {
				if !out[implied] {
					out[implied] = true
					changed = true
				}
			}
		}
	}
	return out
}

// Complete reports whether the map assigns a value to every catalog key and
// nothing else.
func (c *Catalog) Complete(m Map) bool {
	if len(m) != len(c.order) {
		return false
	}
	for _, key := range c.order {
		if _, ok := m[key]; !ok {
			return false
		}
	}
	return true
}

func (c *Catalog) findCycle() []Key {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	colors := make(map[Key]int, len(c.defs))
	var stack []Key
	var visit func(Key) bool
	visit = func(key Key) bool {
		colors[key] = grey
		stack = append(stack, key)
		for _, implied := range c.defs[key].Implies {
			switch colors[implied] {
			case grey:
				stack = append(stack, implied)
				return true
			case white:
				if visit(implied) {
					return true
				}
			}
		}
		colors[key] = black
		stack = stack[:len(stack)-1]
		return false
	}
	for _, key := range c.order {
		if colors[key] == white {
			if visit(key) {
				return stack
			}
		}
	}
	return nil
}

// Default returns the compiled-in catalog used by the dashboard.
func Default() *Catalog {
	return defaultCatalog
}

var defaultCatalog = MustCatalog([]Definition{
	{
		Key:         KeyViewAssignedProjects,
		Label:       "View assigned projects",
		Description: "See projects the user is a member of, including test case browsing.",
	},
	{
		Key:         KeyAutomateTestCases,
		Label:       "Automate test cases",
		Description: "Generate automation scripts from manual test cases.",
		Implies:     []Key{KeyViewAssignedProjects},
	},
	{
		Key:         KeyCreateSourceStructure,
		Label:       "Create source structure",
		Description: "Create folders and suites in the project source tree.",
		Implies:     []Key{KeyViewAssignedProjects},
	},
	{
		Key:         KeyApproveAndMerge,
		Label:       "Approve & merge",
		Description: "Approve generated scripts and merge them into the project.",
		Implies:     []Key{KeyViewAssignedProjects},
	},
	{
		Key:         KeyRunPipelines,
		Label:       "Run pipelines",
		Description: "Trigger and re-run automation pipelines.",
		Implies:     []Key{KeyAutomateTestCases},
	},
	{
		Key:         KeyAssignUsers,
		Label:       "Assign users",
		Description: "Add or remove project members.",
		Implies:     []Key{KeyViewAssignedProjects},
	},
	{
		Key:         KeySyncExternalTracker,
		Label:       "Sync external tracker",
		Description: "Push and pull test assets to the linked tracker.",
		Implies:     []Key{KeyViewAssignedProjects},
	},
	{
		Key:         KeyApproveAccessRequests,
		Label:       "Approve access requests",
		Description: "Decide pending requests to join the project.",
		Implies:     []Key{KeyAssignUsers},
	},
	{
		Key:         KeyAdminOverride,
		Label:       "Admin override",
		Description: "Bypass preset restrictions for administrative fixes.",
		Implies:     []Key{KeyApproveAndMerge, KeyAssignUsers},
	},
})
