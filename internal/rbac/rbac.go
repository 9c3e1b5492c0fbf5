package rbac

import "github.com/prosomo/agenthub/internal/domain"

// Capability is a named boolean permission granted per role
type Capability string

const (
	CapManageTeams        Capability = "canManageTeams"
	CapManageUsers        Capability = "canManageUsers"
	CapInviteUsers        Capability = "canInviteUsers"
	CapAssignAgents       Capability = "canAssignAgents"
	CapRemoveUsers        Capability = "canRemoveUsers"
	CapViewAllUsers       Capability = "canViewAllUsers"
	CapViewTeamManagement Capability = "canViewTeamManagement"
	CapViewSystemSettings Capability = "canViewSystemSettings"
	CapViewAnalytics      Capability = "canViewAnalytics"
	CapEditUserRoles      Capability = "canEditUserRoles"
	CapDeleteTeams        Capability = "canDeleteTeams"
	CapModifyUserTeams    Capability = "canModifyUserTeams"
	CapAccessAllAgents    Capability = "canAccessAllAgents"
	CapCreateAgents       Capability = "canCreateAgents"
	CapEditAgents         Capability = "canEditAgents"
	CapDeleteAgents       Capability = "canDeleteAgents"
)

// Page identifies a navigable view subject to access control
type Page string

const (
	PageStatistics      Page = "statistics"
	PageAgents          Page = "agents"
	PageProfile         Page = "profile"
	PageSettings        Page = "settings"
	PageTeamManagement  Page = "team-management"
	PageAgentManagement Page = "agent-management"
)

// permissions is the full role -> capability matrix. Adding a role or a
// capability is a table edit, never a control-flow change.
var permissions = map[domain.Role]map[Capability]bool{
	domain.RoleAdministrator: {
		CapManageTeams:        true,
		CapManageUsers:        true,
		CapInviteUsers:        true,
		CapAssignAgents:       true,
		CapRemoveUsers:        true,
		CapViewAllUsers:       true,
		CapViewTeamManagement: true,
		CapViewSystemSettings: true,
		CapViewAnalytics:      true,
		CapEditUserRoles:      true,
		CapDeleteTeams:        true,
		CapModifyUserTeams:    true,
		CapAccessAllAgents:    true,
		CapCreateAgents:       true,
		CapEditAgents:         true,
		CapDeleteAgents:       true,
	},
	domain.RoleTeamMember: {
		CapManageTeams:        false,
		CapManageUsers:        false,
		CapInviteUsers:        false,
		CapAssignAgents:       false,
		CapRemoveUsers:        false,
		CapViewAllUsers:       false,
		CapViewTeamManagement: false,
		CapViewSystemSettings: false,
		CapViewAnalytics:      true,
		CapEditUserRoles:      false,
		CapDeleteTeams:        false,
		CapModifyUserTeams:    false,
		CapAccessAllAgents:    false,
		CapCreateAgents:       false,
		CapEditAgents:         false,
		CapDeleteAgents:       false,
	},
}

// pageAccess maps each page to the capability predicate that grants it.
// Pages absent from the table are denied.
var pageAccess = map[Page]func(domain.Role) bool{
	PageStatistics:      func(domain.Role) bool { return true },
	PageAgents:          func(domain.Role) bool { return true },
	PageProfile:         func(domain.Role) bool { return true },
	PageSettings:        func(domain.Role) bool { return true },
	PageTeamManagement:  func(r domain.Role) bool { return HasCapability(r, CapViewTeamManagement) },
	PageAgentManagement: func(r domain.Role) bool { return HasCapability(r, CapEditAgents) },
}

// landingPages maps each role to its post-login page
var landingPages = map[domain.Role]Page{
	domain.RoleAdministrator: PageStatistics,
	domain.RoleTeamMember:    PageStatistics,
}

// defaultLandingPage is returned for unrecognized roles
const defaultLandingPage = PageStatistics

// HasCapability reports whether the role grants the capability. Unknown
// roles and unknown capabilities are denied.
func HasCapability(role domain.Role, cap Capability) bool {
	return permissions[role][cap]
}

// CanAccessPage reports whether the role may access the page, denying pages
// not present in the access table.
func CanAccessPage(role domain.Role, page Page) bool {
	rule, ok := pageAccess[page]
	if !ok {
		return false
	}
	return rule(role)
}

// LandingPageFor resolves the page a user should land on after sign-in.
// Total over all role values.
func LandingPageFor(role domain.Role) Page {
	if page, ok := landingPages[role]; ok {
		return page
	}
	return defaultLandingPage
}

// AssignableRoles returns the roles the given role may assign to others, in
// display order. Empty unless the role can edit user roles.
func AssignableRoles(role domain.Role) []domain.Role {
	if !HasCapability(role, CapEditUserRoles) {
		return nil
	}
	return []domain.Role{domain.RoleAdministrator, domain.RoleTeamMember}
}

// Capabilities returns a copy of the full capability map for the role.
// Unknown roles get an empty map.
func Capabilities(role domain.Role) map[Capability]bool {
	caps := make(map[Capability]bool, len(permissions[role]))
	for cap, allowed := range permissions[role] {
		caps[cap] = allowed
	}
	return caps
}
