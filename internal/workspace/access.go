package workspace

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/forgeqa/forgeqa/internal/audit"
	"github.com/forgeqa/forgeqa/internal/capability"
	"github.com/forgeqa/forgeqa/internal/project"
	"github.com/forgeqa/forgeqa/internal/shared"
	"github.com/forgeqa/forgeqa/internal/users"
)

// AccessStatus is the lifecycle state of an access request.
type AccessStatus string

const (
	// AccessPending awaits a decision.
	AccessPending AccessStatus = "pending"
	// AccessApproved was granted; the requester became a member.
	AccessApproved AccessStatus = "approved"
	// AccessDenied was refused.
	AccessDenied AccessStatus = "denied"
)

// AccessRequest is a user's pending request to join a project.
type AccessRequest struct {
	ID          uuid.UUID
	UserID      int64
	ProjectID   int64
	Status      AccessStatus
	RequestedAt time.Time
	DecidedAt   time.Time
	DecidedBy   int64
}

// RequestAccess files a request to join a project. Duplicate pending
// requests for the same user and project are rejected.
func (s *Service) RequestAccess(ctx context.Context, userID, projectID int64) (AccessRequest, error) {
	u, err := s.users.Get(userID)
	if err != nil {
		return AccessRequest{}, err
	}
	proj, err := s.projects.Get(projectID)
	if err != nil {
		return AccessRequest{}, err
	}
	if proj.IsMember(userID) {
		return AccessRequest{}, fmt.Errorf("workspace: %s is already a member of %q", u.Name, proj.Name)
	}

	s.reqMu.Lock()
	for _, req := range s.requests {
		if req.UserID == userID && req.ProjectID == projectID && req.Status == AccessPending {
			s.reqMu.Unlock()
			return AccessRequest{}, fmt.Errorf("workspace: request already pending for %s", u.Name)
		}
	}
	req := AccessRequest{
		ID:          uuid.New(),
		UserID:      userID,
		ProjectID:   projectID,
		Status:      AccessPending,
		RequestedAt: time.Now(),
	}
	s.requests[req.ID.String()] = req
	s.reqMu.Unlock()

	s.ledger.Append(ctx, audit.Record{
		Actor:     auditActor(u),
		ProjectID: projectID,
		Kind:      audit.KindAccessRequested,
		Action:    fmt.Sprintf("Requested access to %s", proj.Name),
	})
	return req, nil
}

// ApproveAccess grants a pending request and adds the requester as a member
// through the same validated path as AddMembers. The actor needs effective
// approveAccessRequests on the project.
func (s *Service) ApproveAccess(ctx context.Context, actorID int64, requestID uuid.UUID) (AccessRequest, error) {
	req, proj, err := s.pendingRequest(requestID)
	if err != nil {
		return AccessRequest{}, err
	}
	actor, err := s.authorizeDecision(actorID, proj)
	if err != nil {
		return AccessRequest{}, err
	}
	requester, err := s.users.Get(req.UserID)
	if err != nil {
		return AccessRequest{}, err
	}

	if _, err := s.AddMembers(ctx, actorID, proj.ID, []int64{req.UserID}); err != nil {
		return AccessRequest{}, err
	}

	req.Status = AccessApproved
	req.DecidedAt = time.Now()
	req.DecidedBy = actorID
	s.reqMu.Lock()
	s.requests[req.ID.String()] = req
	s.reqMu.Unlock()

	s.ledger.Append(ctx, audit.Record{
		Actor:     auditActor(actor),
		ProjectID: proj.ID,
		Kind:      audit.KindAccessApproved,
		Action:    fmt.Sprintf("Approved access request from %s", requester.Name),
		Detail:    fmt.Sprintf("project %s", proj.Name),
	})
	return req, nil
}

// DenyAccess refuses a pending request.
func (s *Service) DenyAccess(ctx context.Context, actorID int64, requestID uuid.UUID) (AccessRequest, error) {
	req, proj, err := s.pendingRequest(requestID)
	if err != nil {
		return AccessRequest{}, err
	}
	actor, err := s.authorizeDecision(actorID, proj)
	if err != nil {
		return AccessRequest{}, err
	}
	requester, err := s.users.Get(req.UserID)
	if err != nil {
		return AccessRequest{}, err
	}

	req.Status = AccessDenied
	req.DecidedAt = time.Now()
	req.DecidedBy = actorID
	s.reqMu.Lock()
	s.requests[req.ID.String()] = req
	s.reqMu.Unlock()

	s.ledger.Append(ctx, audit.Record{
		Actor:     auditActor(actor),
		ProjectID: proj.ID,
		Kind:      audit.KindAccessDenied,
		Action:    fmt.Sprintf("Denied access request from %s", requester.Name),
		Detail:    fmt.Sprintf("project %s", proj.Name),
	})
	return req, nil
}

// PendingRequests lists pending requests for a project, oldest first.
func (s *Service) PendingRequests(projectID int64) []AccessRequest {
	s.reqMu.RLock()
	defer s.reqMu.RUnlock()
	var out []AccessRequest
	for _, req := range s.requests {
		if req.ProjectID == projectID && req.Status == AccessPending {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out
}

func (s *Service) pendingRequest(requestID uuid.UUID) (AccessRequest, project.Project, error) {
	s.reqMu.RLock()
	req, ok := s.requests[requestID.String()]
	s.reqMu.RUnlock()
	if !ok {
		return AccessRequest{}, project.Project{}, fmt.Errorf("workspace: access request %s: %w", requestID, shared.ErrNotFound)
	}
	if req.Status != AccessPending {
		return AccessRequest{}, project.Project{}, fmt.Errorf("workspace: access request %s already %s", requestID, req.Status)
	}
	proj, err := s.projects.Get(req.ProjectID)
	if err != nil {
		return AccessRequest{}, project.Project{}, err
	}
	return req, proj, nil
}

func (s *Service) authorizeDecision(actorID int64, proj project.Project) (users.User, error) {
	u, err := s.users.Get(actorID)
	if err != nil {
		return users.User{}, err
	}
	if !proj.IsMember(actorID) {
		return users.User{}, fmt.Errorf("workspace: %s is not a member of %q: %w", u.Name, proj.Name, shared.ErrForbidden)
	}
	effective := s.resolver.ResolveEffective(s.baseline(proj, actorID), proj.Permissions[actorID])
	if !effective[capability.KeyApproveAccessRequests] {
		return users.User{}, fmt.Errorf("workspace: %s may not decide access requests for %q: %w", u.Name, proj.Name, shared.ErrForbidden)
	}
	return u, nil
}
