package agentscope

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prosomo/agenthub/internal/domain"
)

type fakeMemberships struct {
	teams map[uuid.UUID][]uuid.UUID
}

func (f *fakeMemberships) Add(ctx context.Context, teamID, userID uuid.UUID) error    { return nil }
func (f *fakeMemberships) Remove(ctx context.Context, teamID, userID uuid.UUID) error { return nil }

func (f *fakeMemberships) ListTeamIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return f.teams[userID], nil
}

func (f *fakeMemberships) ListMemberIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

type fakeAllowLists struct {
	lists map[uuid.UUID][]string
	fail  map[uuid.UUID]bool
}

func (f *fakeAllowLists) Set(ctx context.Context, teamID uuid.UUID, agentIDs []string) error {
	return nil
}

func (f *fakeAllowLists) ListAgentIDs(ctx context.Context, teamID uuid.UUID) ([]string, error) {
	if f.fail[teamID] {
		return nil, errors.New("allow-list unavailable")
	}
	return f.lists[teamID], nil
}

type fakeTeams struct {
	teams map[uuid.UUID]domain.Team
}

func (f *fakeTeams) Create(ctx context.Context, team *domain.Team) error { return nil }
func (f *fakeTeams) Update(ctx context.Context, team *domain.Team) error { return nil }
func (f *fakeTeams) Delete(ctx context.Context, id uuid.UUID) error      { return nil }
func (f *fakeTeams) List(ctx context.Context) ([]domain.Team, error)     { return nil, nil }

func (f *fakeTeams) Get(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	team, ok := f.teams[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &team, nil
}

func member() *domain.Identity {
	return &domain.Identity{ID: uuid.New(), Role: domain.RoleTeamMember}
}

func admin() *domain.Identity {
	return &domain.Identity{ID: uuid.New(), Role: domain.RoleAdministrator}
}

func newTestResolver(memberships *fakeMemberships, allowLists *fakeAllowLists) *Resolver {
	return NewResolver(memberships, allowLists, &fakeTeams{}, NewRegistry(nil), zerolog.Nop())
}

func TestVisibleAgents_MemberWithoutTeamsSeesNothing(t *testing.T) {
	ident := member()
	r := newTestResolver(
		&fakeMemberships{teams: map[uuid.UUID][]uuid.UUID{}},
		&fakeAllowLists{},
	)

	visible, err := r.VisibleAgents(context.Background(), ident)

	require.NoError(t, err)
	assert.Empty(t, visible)
	assert.NotNil(t, visible)
}

func TestVisibleAgents_AdminWithoutTeamsSeesAll(t *testing.T) {
	ident := admin()
	r := newTestResolver(
		&fakeMemberships{teams: map[uuid.UUID][]uuid.UUID{}},
		&fakeAllowLists{},
	)

	visible, err := r.VisibleAgents(context.Background(), ident)

	require.NoError(t, err)
	assert.Equal(t, []string{"hr-manager", "seo-manager", "ads-manager"}, visible)
}

func TestVisibleAgents_AllowListScopesTeam(t *testing.T) {
	ident := member()
	team := uuid.New()
	r := newTestResolver(
		&fakeMemberships{teams: map[uuid.UUID][]uuid.UUID{ident.ID: {team}}},
		&fakeAllowLists{lists: map[uuid.UUID][]string{team: {"hr-manager", "seo-manager"}}},
	)

	visible, err := r.VisibleAgents(context.Background(), ident)

	require.NoError(t, err)
	assert.Equal(t, []string{"hr-manager", "seo-manager"}, visible)
}

func TestVisibleAgents_UnknownAllowListEntriesFiltered(t *testing.T) {
	ident := member()
	team := uuid.New()
	r := newTestResolver(
		&fakeMemberships{teams: map[uuid.UUID][]uuid.UUID{ident.ID: {team}}},
		&fakeAllowLists{lists: map[uuid.UUID][]string{team: {"ghost-agent", "ads-manager"}}},
	)

	visible, err := r.VisibleAgents(context.Background(), ident)

	require.NoError(t, err)
	assert.Equal(t, []string{"ads-manager"}, visible)
}

func TestVisibleAgents_MemberWithEmptyAllowListSeesNothing(t *testing.T) {
	ident := member()
	team := uuid.New()
	r := newTestResolver(
		&fakeMemberships{teams: map[uuid.UUID][]uuid.UUID{ident.ID: {team}}},
		&fakeAllowLists{lists: map[uuid.UUID][]string{}},
	)

	visible, err := r.VisibleAgents(context.Background(), ident)

	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestVisibleAgents_AdminWithEmptyAllowListSeesAll(t *testing.T) {
	ident := admin()
	team := uuid.New()
	r := newTestResolver(
		&fakeMemberships{teams: map[uuid.UUID][]uuid.UUID{ident.ID: {team}}},
		&fakeAllowLists{lists: map[uuid.UUID][]string{}},
	)

	visible, err := r.VisibleAgents(context.Background(), ident)

	require.NoError(t, err)
	assert.Len(t, visible, 3)
}

func TestVisibleAgents_AdminWithExplicitAllowListIsScoped(t *testing.T) {
	ident := admin()
	team := uuid.New()
	r := newTestResolver(
		&fakeMemberships{teams: map[uuid.UUID][]uuid.UUID{ident.ID: {team}}},
		&fakeAllowLists{lists: map[uuid.UUID][]string{team: {"seo-manager"}}},
	)

	visible, err := r.VisibleAgents(context.Background(), ident)

	require.NoError(t, err)
	assert.Equal(t, []string{"seo-manager"}, visible)
}

func TestVisibleAgents_OnlyFirstTeamApplies(t *testing.T) {
	ident := member()
	first := uuid.New()
	second := uuid.New()
	r := newTestResolver(
		&fakeMemberships{teams: map[uuid.UUID][]uuid.UUID{ident.ID: {first, second}}},
		&fakeAllowLists{lists: map[uuid.UUID][]string{
			first:  {"hr-manager"},
			second: {"seo-manager", "ads-manager"},
		}},
	)

	visible, err := r.VisibleAgents(context.Background(), ident)

	require.NoError(t, err)
	// never the union of both teams
	assert.Equal(t, []string{"hr-manager"}, visible)
}

func TestSwitchActiveTeam_ChangesVisibleSetAndSticks(t *testing.T) {
	ident := member()
	first := uuid.New()
	second := uuid.New()
	r := newTestResolver(
		&fakeMemberships{teams: map[uuid.UUID][]uuid.UUID{ident.ID: {first, second}}},
		&fakeAllowLists{lists: map[uuid.UUID][]string{
			first:  {"hr-manager"},
			second: {"seo-manager"},
		}},
	)

	_, err := r.VisibleAgents(context.Background(), ident)
	require.NoError(t, err)

	visible, err := r.SwitchActiveTeam(context.Background(), ident, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"seo-manager"}, visible)

	// the selection survives a recompute
	visible, err = r.VisibleAgents(context.Background(), ident)
	require.NoError(t, err)
	assert.Equal(t, []string{"seo-manager"}, visible)
}

func TestSwitchActiveTeam_FailureKeepsPreviousAgents(t *testing.T) {
	ident := member()
	first := uuid.New()
	broken := uuid.New()
	r := newTestResolver(
		&fakeMemberships{teams: map[uuid.UUID][]uuid.UUID{ident.ID: {first, broken}}},
		&fakeAllowLists{
			lists: map[uuid.UUID][]string{first: {"hr-manager"}},
			fail:  map[uuid.UUID]bool{broken: true},
		},
	)

	_, err := r.VisibleAgents(context.Background(), ident)
	require.NoError(t, err)

	visible, err := r.SwitchActiveTeam(context.Background(), ident, broken)

	require.NoError(t, err)
	assert.Equal(t, []string{"hr-manager"}, visible)
}

func TestRegistry_GetBuiltin(t *testing.T) {
	registry := NewRegistry(nil)

	agent, err := registry.Get(context.Background(), "hr-manager")

	require.NoError(t, err)
	assert.Equal(t, "HR Manager", agent.Name)
	assert.False(t, agent.Custom)

	_, err = registry.Get(context.Background(), "no-such-agent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
