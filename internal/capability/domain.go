package capability

// Key identifies a single boolean permission in the catalog.
type Key string

const (
	// KeyViewAssignedProjects allows viewing projects the user belongs to.
	KeyViewAssignedProjects Key = "viewAssignedProjects"
	// KeyAutomateTestCases allows turning manual test cases into automated scripts.
	KeyAutomateTestCases Key = "automateTestCases"
	// KeyCreateSourceStructure allows creating source folders and suites.
	KeyCreateSourceStructure Key = "createSourceStructure"
	// KeyApproveAndMerge allows approving and merging generated scripts.
	KeyApproveAndMerge Key = "approveAndMerge"
	// KeyRunPipelines allows triggering pipeline executions.
	KeyRunPipelines Key = "runPipelines"
	// KeyAssignUsers allows managing project membership.
	KeyAssignUsers Key = "assignUsers"
	// KeySyncExternalTracker allows syncing test assets with an external tracker.
	KeySyncExternalTracker Key = "syncExternalTracker"
	// KeyApproveAccessRequests allows deciding pending access requests.
	KeyApproveAccessRequests Key = "approveAccessRequests"
	// KeyAdminOverride allows administrative edits regardless of preset.
	KeyAdminOverride Key = "adminOverride"
)

// Definition describes one catalog entry.
type Definition struct {
	Key         Key
	Label       string
	Description string
	Implies     []Key
}

// Map is a complete capability assignment, one boolean per catalog key.
type Map map[Key]bool

// Clone returns an independent copy of the map.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal reports whether both maps assign the same value to every key.
func (m Map) Equal(other Map) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if other[k] != v {
			return false
		}
	}
	return true
}
