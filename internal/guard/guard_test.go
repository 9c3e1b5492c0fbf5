package guard

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prosomo/agenthub/internal/domain"
	"github.com/prosomo/agenthub/internal/identity"
	"github.com/prosomo/agenthub/internal/rbac"
)

// stubProvider resolves every non-empty token to the fixed session
type stubProvider struct {
	session identity.AuthSession
}

func (s *stubProvider) GetSession(ctx context.Context, accessToken string) (*identity.AuthSession, error) {
	session := s.session
	return &session, nil
}

func (s *stubProvider) SignIn(ctx context.Context, email, password string) (*identity.Credentials, error) {
	return &identity.Credentials{Session: s.session}, nil
}

func (s *stubProvider) SignUp(ctx context.Context, email, password string) (*identity.SignUpResult, error) {
	return &identity.SignUpResult{Session: s.session}, nil
}

func (s *stubProvider) SignOut(ctx context.Context, accessToken string) error { return nil }

func (s *stubProvider) UpdateEmail(ctx context.Context, userID uuid.UUID, email string) error {
	return nil
}

func (s *stubProvider) Events(ctx context.Context) <-chan identity.Event {
	ch := make(chan identity.Event)
	close(ch)
	return ch
}

// stubProfiles serves one mutable profile row
type stubProfiles struct {
	profile *domain.Profile
}

func (s *stubProfiles) Create(ctx context.Context, profile *domain.Profile) error { return nil }

func (s *stubProfiles) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	if s.profile == nil {
		return nil, domain.ErrNotFound
	}
	profile := *s.profile
	return &profile, nil
}

func (s *stubProfiles) Update(ctx context.Context, id uuid.UUID, update domain.ProfileUpdate) error {
	return nil
}

func (s *stubProfiles) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	s.profile.Role = role
	return nil
}

type noopCache struct{}

func (noopCache) Put(ctx context.Context, identity *domain.Identity) error { return nil }

func (noopCache) Get(ctx context.Context, userID uuid.UUID) (*domain.Identity, error) {
	return nil, domain.ErrNotFound
}

func (noopCache) Clear(ctx context.Context, userID uuid.UUID) error { return nil }

func managerWithRole(t *testing.T, role domain.Role) (*identity.Manager, *stubProfiles) {
	t.Helper()
	userID := uuid.New()
	profiles := &stubProfiles{profile: &domain.Profile{ID: userID, Role: role}}
	manager := identity.NewManager(
		&stubProvider{session: identity.AuthSession{UserID: userID, Email: "u@example.com"}},
		profiles,
		noopCache{},
		zerolog.Nop(),
	)
	require.NoError(t, manager.Initialize(context.Background(), "token"))
	return manager, profiles
}

func TestGuard_PendingBeforeInitialization(t *testing.T) {
	manager := identity.NewManager(&stubProvider{}, &stubProfiles{}, noopCache{}, zerolog.Nop())
	g := New(manager)

	decision := g.Evaluate(Requirement{Capability: rbac.CapManageTeams})

	assert.Equal(t, Pending, decision)
}

func TestGuard_AnonymousIsDenied(t *testing.T) {
	manager := identity.NewManager(&stubProvider{}, &stubProfiles{}, noopCache{}, zerolog.Nop())
	require.NoError(t, manager.Initialize(context.Background(), ""))
	g := New(manager)

	assert.Equal(t, Denied, g.Evaluate(Requirement{Capability: rbac.CapManageTeams}))
	assert.Equal(t, Denied, g.Evaluate(Requirement{Page: rbac.PageStatistics}))
}

func TestGuard_EmptyRequirementGrantsAuthenticated(t *testing.T) {
	manager, _ := managerWithRole(t, domain.RoleTeamMember)
	g := New(manager)

	assert.Equal(t, Granted, g.Evaluate(Requirement{}))
}

func TestGuard_CapabilityByRole(t *testing.T) {
	tests := []struct {
		name string
		role domain.Role
		cap  rbac.Capability
		want Decision
	}{
		{"admin manages teams", domain.RoleAdministrator, rbac.CapManageTeams, Granted},
		{"member cannot manage teams", domain.RoleTeamMember, rbac.CapManageTeams, Denied},
		{"member views analytics", domain.RoleTeamMember, rbac.CapViewAnalytics, Granted},
		{"unknown capability denied for admin", domain.RoleAdministrator, rbac.Capability("canDoAnything"), Denied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, _ := managerWithRole(t, tt.role)
			g := New(manager)
			assert.Equal(t, tt.want, g.Evaluate(Requirement{Capability: tt.cap}))
		})
	}
}

func TestGuard_PageByRole(t *testing.T) {
	manager, _ := managerWithRole(t, domain.RoleTeamMember)
	g := New(manager)

	assert.Equal(t, Granted, g.Evaluate(Requirement{Page: rbac.PageStatistics}))
	assert.Equal(t, Denied, g.Evaluate(Requirement{Page: rbac.PageTeamManagement}))
	assert.Equal(t, Denied, g.Evaluate(Requirement{Page: rbac.Page("secret-page")}))
}

func TestGuard_ReevaluateSeesRoleChange(t *testing.T) {
	manager, profiles := managerWithRole(t, domain.RoleTeamMember)
	g := New(manager)
	req := Requirement{Page: rbac.PageTeamManagement}
	require.Equal(t, Denied, g.Evaluate(req))

	profiles.profile.Role = domain.RoleAdministrator

	decision, err := g.Reevaluate(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, Granted, decision)
}

func TestGuard_ReevaluateWithoutIdentityDeniesWithoutError(t *testing.T) {
	manager := identity.NewManager(&stubProvider{}, &stubProfiles{}, noopCache{}, zerolog.Nop())
	require.NoError(t, manager.Initialize(context.Background(), ""))
	g := New(manager)

	decision, err := g.Reevaluate(context.Background(), Requirement{Capability: rbac.CapManageTeams})

	require.NoError(t, err)
	assert.Equal(t, Denied, decision)
}

func TestGuard_ReevaluateDemotionRevokesAccess(t *testing.T) {
	manager, profiles := managerWithRole(t, domain.RoleAdministrator)
	g := New(manager)
	req := Requirement{Capability: rbac.CapDeleteTeams}
	require.Equal(t, Granted, g.Evaluate(req))

	profiles.profile.Role = domain.RoleTeamMember

	decision, err := g.Reevaluate(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, Denied, decision)
}
