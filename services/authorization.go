package services

import "github.com/scmsdev/scms-app/models"

// Actor is the authenticated caller, as decoded from the JWT by the auth
// middleware. Role is expected to be canonical already; the policy
// normalizes again so direct service callers cannot get it wrong.
type Actor struct {
	ID   uint
	Role string
}

// Operations the authorization policy understands.
const (
	OpCreate  = "create"
	OpView    = "view"
	OpEdit    = "edit"
	OpSubmit  = "submit"
	OpDelete  = "delete"
	OpApprove = "approve"
	OpReject  = "reject"
	OpList    = "list"
)

// Scope is the listing slice a role may see.
type Scope int

const (
	ScopeOwnOnly Scope = iota
	ScopeAllExceptDraft
	ScopeAll
)

// VisibilityScope returns the listing scope for a role: creators see their
// own records, approvers everything that left Draft, administrators and
// auditors everything.
func VisibilityScope(role string) Scope {
	role = models.NormalizeRole(role)
	switch {
	case models.IsAdminRole(role):
		return ScopeAll
	case models.IsDeveloperRole(role):
		return ScopeOwnOnly
	case models.CanApproveCRs(role):
		return ScopeAllExceptDraft
	default:
		// Auditor and any future read-only role.
		return ScopeAll
	}
}

// CanPerform decides whether the actor may perform op on the record. For
// edit/delete the record state is part of the permission (a non-Draft record
// is off limits to everyone, which surfaces as Forbidden); for
// submit/approve/reject the state check is the lifecycle engine's job and
// failing it is an invalid transition, not a permission problem.
func CanPerform(op string, cr *models.ChangeRequest, actor Actor) bool {
	role := models.NormalizeRole(actor.Role)

	switch op {
	case OpCreate:
		return models.IsDeveloperRole(role)

	case OpView:
		if cr == nil {
			return false
		}
		if models.IsAdminRole(role) {
			return true
		}
		if models.IsDeveloperRole(role) {
			return cr.CreatedByID == actor.ID
		}
		if models.CanApproveCRs(role) {
			// Approvers never see anyone's Draft.
			return cr.Status != models.StatusDraft || cr.CreatedByID == actor.ID
		}
		return true

	case OpEdit, OpDelete:
		return cr != nil &&
			models.IsDeveloperRole(role) &&
			cr.CreatedByID == actor.ID &&
			cr.Status == models.StatusDraft

	case OpSubmit:
		return cr != nil &&
			models.IsDeveloperRole(role) &&
			cr.CreatedByID == actor.ID

	case OpApprove, OpReject:
		return models.CanApproveCRs(role)

	case OpList:
		return true
	}
	return false
}
