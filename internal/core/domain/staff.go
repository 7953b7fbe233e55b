package domain

// Staff roles recognized by the admin surface.
const (
	RoleAdmin        = "admin"
	RoleECOfficial   = "ec_official"
	RolePollingAgent = "polling_agent"
)

// StaffUser is an election official configured through the environment rather
// than the database: the operator list is small and fixed for an election.
type StaffUser struct {
	Username     string
	PasswordHash string
	Role         string
	Permissions  []string
}

// IsAdmin reports whether the staff user holds the admin role.
func (u StaffUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasPermission reports whether the staff user's role grants the permission.
func (u StaffUser) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// PermissionsForRole returns the default permission set for a staff role.
func PermissionsForRole(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{
			"manage_portfolios",
			"manage_candidates",
			"manage_voters",
			"generate_tokens",
			"view_results",
			"manage_users",
		}
	case RoleECOfficial:
		return []string{
			"generate_tokens",
			"view_voters",
			"verify_voters",
		}
	case RolePollingAgent:
		return []string{
			"view_results",
			"view_statistics",
		}
	default:
		return nil
	}
}
