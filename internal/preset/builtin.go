package preset

import (
	"github.com/forgeqa/forgeqa/internal/capability"
	"github.com/forgeqa/forgeqa/internal/users"
)

// Builtin preset names used as quick-assign templates in the dashboard.
const (
	NameManager  = "Manager"
	NameSeniorQA = "Senior QA"
	NameTester   = "Tester"
	NameViewer   = "Viewer"
)

// NameForRole maps a global role to its default preset, the baseline for
// members without a project-assigned preset.
func NameForRole(role users.Role) string {
	if role == users.RoleManager {
		return NameManager
	}
	return NameTester
}

// Default returns the registry with the compiled-in presets. The registry is
// rebuilt on each call so callers cannot alias the stored grants.
func Default(catalog *capability.Catalog) *Registry {
	r := NewRegistry(catalog)
	for _, p := range builtins(catalog) {
		if err := r.Register(p); err != nil {
			// builtins are compiled-in data; a failure here is a build defect
			panic(err)
		}
	}
	return r
}

func builtins(catalog *capability.Catalog) []Preset {
	return []Preset{
		{
			Name:        NameManager,
			Description: "Full control over the project, its members and approvals.",
			Grants:      grantAll(catalog, true),
		},
		{
			Name:        NameSeniorQA,
			Description: "Builds and approves automation but does not manage people.",
			Grants: grants(catalog, map[capability.Key]bool{
				capability.KeyViewAssignedProjects:  true,
				capability.KeyAutomateTestCases:     true,
				capability.KeyCreateSourceStructure: true,
				capability.KeyApproveAndMerge:       true,
				capability.KeyRunPipelines:          true,
				capability.KeySyncExternalTracker:   true,
			}),
		},
		{
			Name:        NameTester,
			Description: "Automates assigned test cases and runs pipelines.",
			Grants: grants(catalog, map[capability.Key]bool{
				capability.KeyViewAssignedProjects: true,
				capability.KeyAutomateTestCases:    true,
				capability.KeyRunPipelines:         true,
			}),
		},
		{
			Name:        NameViewer,
			Description: "Read-only access to assigned projects.",
			Grants: grants(catalog, map[capability.Key]bool{
				capability.KeyViewAssignedProjects: true,
			}),
		},
	}
}

// grants expands a sparse grant list into a complete map over the catalog,
// defaulting every unmentioned key to false.
func grants(catalog *capability.Catalog, enabled map[capability.Key]bool) capability.Map {
	m := grantAll(catalog, false)
	for key, v := range enabled {
		m[key] = v
	}
	return m
}

func grantAll(catalog *capability.Catalog, value bool) capability.Map {
	m := make(capability.Map)
	for _, key := range catalog.Keys() {
		m[key] = value
	}
	return m
}
