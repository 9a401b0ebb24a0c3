package models

import "time"

// Canonical role names. Accounts registered before the taxonomy cleanup may
// still carry "Reviewer" or "Admin"; NormalizeRole resolves those once at the
// auth boundary so policy code only ever sees canonical roles.
const (
	RoleDeveloper           = "Developer"
	RoleQAEngineer          = "QA Engineer"
	RoleDevOpsEngineer      = "DevOps Engineer"
	RoleTechnicalLead       = "Technical Lead"
	RoleChangeManager       = "Change Manager"
	RoleReleaseManager      = "Release Manager"
	RoleAuditor             = "Auditor"
	RoleSystemAdministrator = "System Administrator"

	// Legacy aliases, kept for backward compatibility.
	RoleLegacyReviewer = "Reviewer"
	RoleLegacyAdmin    = "Admin"
)

var roleAliases = map[string]string{
	RoleLegacyAdmin:    RoleSystemAdministrator,
	RoleLegacyReviewer: RoleChangeManager,
}

var allRoles = []string{
	RoleDeveloper,
	RoleQAEngineer,
	RoleDevOpsEngineer,
	RoleTechnicalLead,
	RoleChangeManager,
	RoleReleaseManager,
	RoleAuditor,
	RoleSystemAdministrator,
	RoleLegacyReviewer,
	RoleLegacyAdmin,
}

// NormalizeRole maps legacy role names to their canonical equivalent.
// Canonical names pass through unchanged.
func NormalizeRole(role string) string {
	if canonical, ok := roleAliases[role]; ok {
		return canonical
	}
	return role
}

// IsValidRole reports whether role is one of the accepted role names,
// legacy aliases included.
func IsValidRole(role string) bool {
	for _, r := range allRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsDeveloperRole -> roles that may author change requests.
func IsDeveloperRole(role string) bool {
	switch NormalizeRole(role) {
	case RoleDeveloper, RoleQAEngineer, RoleDevOpsEngineer:
		return true
	}
	return false
}

// CanApproveCRs -> roles that may approve or reject pending change requests.
func CanApproveCRs(role string) bool {
	switch NormalizeRole(role) {
	case RoleTechnicalLead, RoleChangeManager, RoleReleaseManager, RoleSystemAdministrator:
		return true
	}
	return false
}

// IsAdminRole -> account management and the unfiltered views.
func IsAdminRole(role string) bool {
	return NormalizeRole(role) == RoleSystemAdministrator
}

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(255);unique;not null" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	Role      string    `gorm:"type:varchar(50);not null;default:'Developer'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
