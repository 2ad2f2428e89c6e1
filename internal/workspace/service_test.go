package workspace

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeqa/forgeqa/internal/audit"
	"github.com/forgeqa/forgeqa/internal/capability"
	"github.com/forgeqa/forgeqa/internal/permission"
	"github.com/forgeqa/forgeqa/internal/preset"
	"github.com/forgeqa/forgeqa/internal/project"
	"github.com/forgeqa/forgeqa/internal/shared"
	"github.com/forgeqa/forgeqa/internal/users"
)

type fixture struct {
	svc    *Service
	dana   users.User // manager
	priya  users.User // employee
	miguel users.User // employee
	sofia  users.User // employee
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog := capability.Default()
	presets := preset.Default(catalog)
	ledger := audit.NewLedger(audit.WithClock(func() func() time.Time {
		current := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		return func() time.Time {
			current = current.Add(time.Second)
			return current
		}
	}()))
	svc := NewService(nil, users.NewStore(), project.NewStore(), presets, permission.NewResolver(catalog, presets), ledger)

	f := &fixture{svc: svc}
	var err error
	f.dana, err = svc.Bootstrap("Dana Reeve", "dana@example.com", users.RoleManager)
	require.NoError(t, err)
	f.priya, err = svc.Bootstrap("Priya Shah", "priya@example.com", users.RoleEmployee)
	require.NoError(t, err)
	f.miguel, err = svc.Bootstrap("Miguel Ortiz", "miguel@example.com", users.RoleEmployee)
	require.NoError(t, err)
	f.sofia, err = svc.Bootstrap("Sofia Lindqvist", "sofia@example.com", users.RoleEmployee)
	require.NoError(t, err)
	return f
}

func (f *fixture) createProject(t *testing.T, owner users.User, members ...users.User) project.Project {
	t.Helper()
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	proj, err := f.svc.CreateProject(context.Background(), f.dana.ID, CreateProjectInput{
		Name:      "Checkout",
		OwnerID:   owner.ID,
		MemberIDs: ids,
	})
	require.NoError(t, err)
	return proj
}

func TestCreateProjectLogsOneHighEntry(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.miguel)

	entries := f.svc.Ledger().Query(audit.Filter{ProjectIDs: []int64{proj.ID}})
	var high []audit.Entry
	for _, e := range entries {
		if e.Impact == audit.ImpactHigh {
			high = append(high, e)
		}
	}
	require.Len(t, high, 1)
	assert.Contains(t, high[0].Action, "Created project")
	assert.Equal(t, audit.KindProjectCreated, high[0].Kind)
}

func TestCreateProjectBundlesMembershipEntries(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.miguel, f.sofia)

	entries := f.svc.Ledger().Query(audit.Filter{ProjectIDs: []int64{proj.ID}})
	var added, summaries int
	for _, e := range entries {
		switch e.Kind {
		case audit.KindMemberAdded:
			added++
		case audit.KindPermissionsUpdated:
			summaries++
			assert.Contains(t, e.Action, "Updated permissions")
		}
	}
	assert.Equal(t, 2, added, "one entry per added member beyond the owner")
	assert.Equal(t, 1, summaries, "plus one summary entry")
}

func TestCreateProjectValidatesInput(t *testing.T) {
	f := newFixture(t)
	count := f.svc.Ledger().Len()

	_, err := f.svc.CreateProject(context.Background(), f.dana.ID, CreateProjectInput{OwnerID: f.priya.ID})
	require.Error(t, err, "name is required")

	_, err = f.svc.CreateProject(context.Background(), f.dana.ID, CreateProjectInput{Name: "X", OwnerID: 999})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.CreateProject(context.Background(), f.dana.ID, CreateProjectInput{Name: "X", OwnerID: f.priya.ID, PresetName: "Intern"})
	require.ErrorIs(t, err, shared.ErrNotFound)

	assert.Equal(t, count, f.svc.Ledger().Len(), "rejected mutations log nothing")
}

func TestOwnerGrantHoldsRegardlessOfRole(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya) // employee owner

	effective, err := f.svc.EffectivePermissions(proj.ID, f.priya.ID)
	require.NoError(t, err)
	assert.True(t, effective[capability.KeyApproveAndMerge])
	assert.True(t, effective[capability.KeyViewAssignedProjects], "implied by the grant")
}

func TestRevokingSoleApproverIsRejected(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.miguel)
	count := f.svc.Ledger().Len()

	_, err := f.svc.SetCapability(context.Background(), f.dana.ID, proj.ID, f.priya.ID, capability.KeyApproveAndMerge, false)
	require.ErrorIs(t, err, shared.ErrOwnerContinuity)

	// state unchanged, nothing logged
	effective, err := f.svc.EffectivePermissions(proj.ID, f.priya.ID)
	require.NoError(t, err)
	assert.True(t, effective[capability.KeyApproveAndMerge])
	assert.Equal(t, count, f.svc.Ledger().Len())
}

func TestRevokeSucceedsAfterSecondApprover(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.miguel)
	ctx := context.Background()

	_, err := f.svc.SetCapability(ctx, f.dana.ID, proj.ID, f.miguel.ID, capability.KeyApproveAndMerge, true)
	require.NoError(t, err)

	_, err = f.svc.SetCapability(ctx, f.dana.ID, proj.ID, f.priya.ID, capability.KeyApproveAndMerge, false)
	require.NoError(t, err)

	effective, err := f.svc.EffectivePermissions(proj.ID, f.miguel.ID)
	require.NoError(t, err)
	assert.True(t, effective[capability.KeyApproveAndMerge])
}

func TestInheritedBaselineCountsTowardContinuity(t *testing.T) {
	f := newFixture(t)
	// Dana is a manager member with no override; her role default grants
	// approve & merge, so revoking the owner's grant is still allowed.
	proj := f.createProject(t, f.priya, f.dana)

	_, err := f.svc.SetCapability(context.Background(), f.dana.ID, proj.ID, f.priya.ID, capability.KeyApproveAndMerge, false)
	require.NoError(t, err)
}

func TestSetCapabilityClosesImplications(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.miguel)
	ctx := context.Background()

	_, err := f.svc.SetCapability(ctx, f.dana.ID, proj.ID, f.miguel.ID, capability.KeyViewAssignedProjects, false)
	require.NoError(t, err)

	_, err = f.svc.SetCapability(ctx, f.dana.ID, proj.ID, f.miguel.ID, capability.KeyAutomateTestCases, true)
	require.NoError(t, err)

	effective, err := f.svc.EffectivePermissions(proj.ID, f.miguel.ID)
	require.NoError(t, err)
	assert.True(t, effective[capability.KeyAutomateTestCases])
	assert.True(t, effective[capability.KeyViewAssignedProjects], "granting automate re-enables view")
}

func TestSetCapabilityUnknownKey(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya)
	count := f.svc.Ledger().Len()

	_, err := f.svc.SetCapability(context.Background(), f.dana.ID, proj.ID, f.priya.ID, "fly", true)
	require.ErrorIs(t, err, shared.ErrUnknownCapability)
	assert.Equal(t, count, f.svc.Ledger().Len())
}

func TestApplyViewerPreset(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.miguel)

	_, err := f.svc.ApplyPreset(context.Background(), f.dana.ID, proj.ID, f.miguel.ID, preset.NameViewer)
	require.NoError(t, err)

	effective, err := f.svc.EffectivePermissions(proj.ID, f.miguel.ID)
	require.NoError(t, err)
	for key, v := range effective {
		if key == capability.KeyViewAssignedProjects {
			assert.True(t, v)
			continue
		}
		assert.Falsef(t, v, "viewer should not hold %s", key)
	}

	entries := f.svc.Ledger().Query(audit.Filter{Kinds: []audit.Kind{audit.KindPermissionsUpdated}, ProjectIDs: []int64{proj.ID}})
	require.NotEmpty(t, entries)
	assert.True(t, strings.HasPrefix(entries[0].Action, "Updated permissions for Miguel Ortiz"))
	assert.Equal(t, audit.ImpactMedium, entries[0].Impact)
}

func TestApplyPresetCannotStripLastApprover(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.miguel)

	_, err := f.svc.ApplyPreset(context.Background(), f.dana.ID, proj.ID, f.priya.ID, preset.NameViewer)
	require.ErrorIs(t, err, shared.ErrOwnerContinuity)
}

func TestMembershipAndPermissionKeysStayConsistent(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.miguel)
	ctx := context.Background()

	proj, err := f.svc.AddMembers(ctx, f.dana.ID, proj.ID, []int64{f.sofia.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{f.priya.ID, f.miguel.ID, f.sofia.ID}, proj.MemberIDs())

	proj, err = f.svc.RemoveMember(ctx, f.dana.ID, proj.ID, f.sofia.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{f.priya.ID, f.miguel.ID}, proj.MemberIDs())
	_, ok := proj.Permissions[f.sofia.ID]
	assert.False(t, ok, "removing a member deletes its override entry")
}

func TestAddExistingMemberRejected(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.miguel)

	_, err := f.svc.AddMembers(context.Background(), f.dana.ID, proj.ID, []int64{f.miguel.ID})
	require.Error(t, err)
}

func TestOwnerCannotBeRemoved(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.miguel)

	_, err := f.svc.RemoveMember(context.Background(), f.dana.ID, proj.ID, f.priya.ID)
	require.Error(t, err)
}

func TestRemovingLastApproverRequiresReassignment(t *testing.T) {
	f := newFixture(t)
	// Miguel carries the only effective approve & merge after the owner's
	// grant moves to him.
	proj := f.createProject(t, f.priya, f.miguel)
	ctx := context.Background()

	_, err := f.svc.SetCapability(ctx, f.dana.ID, proj.ID, f.miguel.ID, capability.KeyApproveAndMerge, true)
	require.NoError(t, err)
	_, err = f.svc.SetCapability(ctx, f.dana.ID, proj.ID, f.priya.ID, capability.KeyApproveAndMerge, false)
	require.NoError(t, err)

	_, err = f.svc.RemoveMember(ctx, f.dana.ID, proj.ID, f.miguel.ID)
	require.ErrorIs(t, err, shared.ErrOwnerContinuity)

	// reassign, then the removal goes through
	_, err = f.svc.SetCapability(ctx, f.dana.ID, proj.ID, f.priya.ID, capability.KeyApproveAndMerge, true)
	require.NoError(t, err)
	_, err = f.svc.RemoveMember(ctx, f.dana.ID, proj.ID, f.miguel.ID)
	require.NoError(t, err)
}

func TestChangeGlobalRoleRequiresManager(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ChangeGlobalRole(context.Background(), f.priya.ID, f.miguel.ID, users.RoleManager)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDemotionThatStrandsProjectIsRejected(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.dana)
	ctx := context.Background()

	// after this, Dana's manager baseline is the only effective approval
	_, err := f.svc.SetCapability(ctx, f.dana.ID, proj.ID, f.priya.ID, capability.KeyApproveAndMerge, false)
	require.NoError(t, err)

	_, err = f.svc.ChangeGlobalRole(ctx, f.dana.ID, f.dana.ID, users.RoleEmployee)
	require.ErrorIs(t, err, shared.ErrOwnerContinuity)

	u, err := f.svc.Users().Get(f.dana.ID)
	require.NoError(t, err)
	assert.Equal(t, users.RoleManager, u.Role, "rejected demotion must not commit")
}

func TestChangeGlobalRoleLogsMediumEntry(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ChangeGlobalRole(context.Background(), f.dana.ID, f.miguel.ID, users.RoleManager)
	require.NoError(t, err)

	entries := f.svc.Ledger().Query(audit.Filter{Kinds: []audit.Kind{audit.KindRoleChanged}})
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ImpactMedium, entries[0].Impact)
	assert.Contains(t, entries[0].Action, "Changed global role of Miguel Ortiz")
}

func TestEffectivePermissionsRecomputedAfterRoleChange(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.miguel)
	ctx := context.Background()

	before, err := f.svc.EffectivePermissions(proj.ID, f.miguel.ID)
	require.NoError(t, err)
	assert.False(t, before[capability.KeyAssignUsers])

	_, err = f.svc.ChangeGlobalRole(ctx, f.dana.ID, f.miguel.ID, users.RoleManager)
	require.NoError(t, err)

	after, err := f.svc.EffectivePermissions(proj.ID, f.miguel.ID)
	require.NoError(t, err)
	assert.True(t, after[capability.KeyAssignUsers], "baseline follows the new role")
}

func TestEffectivePermissionsRequiresMembership(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya)

	_, err := f.svc.EffectivePermissions(proj.ID, f.sofia.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestProjectPresetOverridesRoleBaseline(t *testing.T) {
	f := newFixture(t)
	proj, err := f.svc.CreateProject(context.Background(), f.dana.ID, CreateProjectInput{
		Name:       "Billing",
		OwnerID:    f.priya.ID,
		MemberIDs:  []int64{f.miguel.ID},
		PresetName: preset.NameViewer,
	})
	require.NoError(t, err)

	effective, err := f.svc.EffectivePermissions(proj.ID, f.miguel.ID)
	require.NoError(t, err)
	assert.False(t, effective[capability.KeyAutomateTestCases], "viewer baseline replaces the tester role default")
	assert.True(t, effective[capability.KeyViewAssignedProjects])
}

func TestPreviewDoesNotMutateOrLog(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.miguel)
	count := f.svc.Ledger().Len()

	previewed, err := f.svc.PreviewSetCapability(proj.ID, f.miguel.ID, capability.KeyApproveAndMerge, true)
	require.NoError(t, err)
	assert.True(t, previewed[capability.KeyApproveAndMerge])

	actual, err := f.svc.EffectivePermissions(proj.ID, f.miguel.ID)
	require.NoError(t, err)
	assert.False(t, actual[capability.KeyApproveAndMerge], "preview must not commit")
	assert.Equal(t, count, f.svc.Ledger().Len())

	_, err = f.svc.PreviewSetCapability(proj.ID, f.priya.ID, capability.KeyApproveAndMerge, false)
	require.ErrorIs(t, err, shared.ErrOwnerContinuity, "preview surfaces the same violation")
}

func TestCreateUserValidatesEmail(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateUser(context.Background(), f.dana.ID, CreateUserInput{
		Name:  "New Hire",
		Email: "not-an-email",
		Role:  users.RoleEmployee,
	})
	require.Error(t, err)
}

func TestLedgerCountMonotonicAcrossMixedOutcomes(t *testing.T) {
	f := newFixture(t)
	proj := f.createProject(t, f.priya, f.miguel)
	ctx := context.Background()
	last := f.svc.Ledger().Len()

	_, _ = f.svc.SetCapability(ctx, f.dana.ID, proj.ID, f.priya.ID, capability.KeyApproveAndMerge, false) // rejected
	assert.GreaterOrEqual(t, f.svc.Ledger().Len(), last)
	last = f.svc.Ledger().Len()

	_, err := f.svc.SetCapability(ctx, f.dana.ID, proj.ID, f.miguel.ID, capability.KeyRunPipelines, true)
	require.NoError(t, err)
	assert.Greater(t, f.svc.Ledger().Len(), last)
}
