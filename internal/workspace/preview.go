package workspace

import (
	"github.com/forgeqa/forgeqa/internal/capability"
)

// Preview operations run the same resolver validation as their committing
// counterparts but never touch state and never log. The UI uses them to
// grey out controls and to render "preview as user X" before anything is
// submitted.

// PreviewSetCapability reports the effective map the member would have if
// the capability were changed, or the validation error the real mutation
// would fail with.
func (s *Service) PreviewSetCapability(projectID, userID int64, key capability.Key, value bool) (capability.Map, error) {
	proj, _, err := s.projectMember(projectID, userID)
	if err != nil {
		return nil, err
	}
	next, err := s.resolver.SetCapability(proj.Permissions, userID, key, value)
	if err != nil {
		return nil, err
	}
	proj.Permissions = next
	if err := s.validateContinuity(proj); err != nil {
		return nil, err
	}
	return s.resolver.ResolveEffective(s.baseline(proj, userID), next[userID]), nil
}

// PreviewApplyPreset reports the effective map the member would have under
// the named preset, without committing anything.
func (s *Service) PreviewApplyPreset(projectID, userID int64, presetName string) (capability.Map, error) {
	proj, _, err := s.projectMember(projectID, userID)
	if err != nil {
		return nil, err
	}
	next, err := s.resolver.ApplyPreset(proj.Permissions, userID, presetName)
	if err != nil {
		return nil, err
	}
	proj.Permissions = next
	if err := s.validateContinuity(proj); err != nil {
		return nil, err
	}
	return s.resolver.ResolveEffective(s.baseline(proj, userID), next[userID]), nil
}
