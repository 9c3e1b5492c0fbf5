package rbac

import (
	"testing"

	"github.com/prosomo/agenthub/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestHasCapability(t *testing.T) {
	tests := []struct {
		name string
		role domain.Role
		cap  Capability
		want bool
	}{
		{"admin can manage teams", domain.RoleAdministrator, CapManageTeams, true},
		{"admin can access all agents", domain.RoleAdministrator, CapAccessAllAgents, true},
		{"member cannot manage teams", domain.RoleTeamMember, CapManageTeams, false},
		{"member cannot access all agents", domain.RoleTeamMember, CapAccessAllAgents, false},
		{"member can view analytics", domain.RoleTeamMember, CapViewAnalytics, true},
		{"unknown role denied", domain.Role("Superuser"), CapManageTeams, false},
		{"empty role denied", domain.Role(""), CapViewAnalytics, false},
		{"unknown capability denied for admin", domain.RoleAdministrator, Capability("canDoAnything"), false},
		{"unknown capability denied for member", domain.RoleTeamMember, Capability("canDoAnything"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasCapability(tt.role, tt.cap))
		})
	}
}

func TestCanAccessPage(t *testing.T) {
	tests := []struct {
		name string
		role domain.Role
		page Page
		want bool
	}{
		{"everyone can access statistics", domain.RoleTeamMember, PageStatistics, true},
		{"everyone can access agents", domain.RoleTeamMember, PageAgents, true},
		{"everyone can access profile", domain.RoleTeamMember, PageProfile, true},
		{"everyone can access settings", domain.RoleTeamMember, PageSettings, true},
		{"member denied team management", domain.RoleTeamMember, PageTeamManagement, false},
		{"admin allowed team management", domain.RoleAdministrator, PageTeamManagement, true},
		{"member denied agent management", domain.RoleTeamMember, PageAgentManagement, false},
		{"admin allowed agent management", domain.RoleAdministrator, PageAgentManagement, true},
		{"unknown page denied even for admin", domain.RoleAdministrator, Page("billing"), false},
		{"unknown role denied protected page", domain.Role("Superuser"), PageTeamManagement, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccessPage(tt.role, tt.page))
		})
	}
}

func TestLandingPageFor(t *testing.T) {
	assert.Equal(t, PageStatistics, LandingPageFor(domain.RoleAdministrator))
	assert.Equal(t, PageStatistics, LandingPageFor(domain.RoleTeamMember))
	assert.Equal(t, PageStatistics, LandingPageFor(domain.Role("Superuser")))
	assert.Equal(t, PageStatistics, LandingPageFor(domain.Role("")))
}

func TestAssignableRoles(t *testing.T) {
	t.Run("admin can assign both roles in order", func(t *testing.T) {
		roles := AssignableRoles(domain.RoleAdministrator)
		assert.Equal(t, []domain.Role{domain.RoleAdministrator, domain.RoleTeamMember}, roles)
	})

	t.Run("member cannot assign roles", func(t *testing.T) {
		assert.Empty(t, AssignableRoles(domain.RoleTeamMember))
	})

	t.Run("unknown role cannot assign roles", func(t *testing.T) {
		assert.Empty(t, AssignableRoles(domain.Role("Superuser")))
	})
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities(domain.RoleAdministrator)
	assert.Len(t, caps, 16)
	assert.True(t, caps[CapDeleteAgents])

	memberCaps := Capabilities(domain.RoleTeamMember)
	assert.Len(t, memberCaps, 16)
	assert.False(t, memberCaps[CapDeleteAgents])

	assert.Empty(t, Capabilities(domain.Role("Superuser")))
}
