package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prosomo/agenthub/internal/domain"
)

func newTestManager() (*Manager, *MockProvider, *MockProfileRepository, *MockCache) {
	provider := new(MockProvider)
	profiles := new(MockProfileRepository)
	cache := new(MockCache)
	manager := NewManager(provider, profiles, cache, zerolog.Nop())
	return manager, provider, profiles, cache
}

func TestManager_Initialize_EmptyTokenIsAnonymous(t *testing.T) {
	manager, _, _, _ := newTestManager()

	err := manager.Initialize(context.Background(), "")

	require.NoError(t, err)
	ident, state := manager.Current()
	assert.Nil(t, ident)
	assert.Equal(t, StateAnonymous, state)
}

func TestManager_Initialize_InvalidTokenIsAnonymousNotError(t *testing.T) {
	manager, provider, _, _ := newTestManager()
	provider.On("GetSession", mock.Anything, "expired").
		Return(nil, domain.ErrAuthentication)

	err := manager.Initialize(context.Background(), "expired")

	require.NoError(t, err)
	_, state := manager.Current()
	assert.Equal(t, StateAnonymous, state)
}

func TestManager_Initialize_MergesProfile(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("GetSession", mock.Anything, "token").
		Return(&AuthSession{UserID: userID, Email: "admin@example.com"}, nil)
	profiles.On("GetByID", mock.Anything, userID).
		Return(&domain.Profile{ID: userID, FullName: "Ada", Role: domain.RoleAdministrator, Language: "en"}, nil)
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)

	err := manager.Initialize(context.Background(), "token")

	require.NoError(t, err)
	ident, state := manager.Current()
	require.NotNil(t, ident)
	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, "admin@example.com", ident.Email)
	assert.Equal(t, domain.RoleAdministrator, ident.Role)
	assert.Equal(t, "en", ident.Language)
	cache.AssertCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestManager_Initialize_ProfileStoreDownRecoversCachedIdentity(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("GetSession", mock.Anything, "token").
		Return(&AuthSession{UserID: userID, Email: "admin@example.com"}, nil)
	profiles.On("GetByID", mock.Anything, userID).
		Return(nil, errors.New("connection refused"))
	cache.On("Get", mock.Anything, userID).
		Return(&domain.Identity{ID: userID, Email: "stale@example.com", FullName: "Ada", Role: domain.RoleAdministrator, Language: "fr"}, nil)
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)

	err := manager.Initialize(context.Background(), "token")

	require.NoError(t, err)
	ident, state := manager.Current()
	require.NotNil(t, ident)
	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, domain.RoleAdministrator, ident.Role)
	assert.Equal(t, "Ada", ident.FullName)
	assert.Equal(t, "admin@example.com", ident.Email)
}

func TestManager_Initialize_ProfileStoreDownCacheMissUsesDefaults(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("GetSession", mock.Anything, "token").
		Return(&AuthSession{UserID: userID, Email: "u@example.com"}, nil)
	profiles.On("GetByID", mock.Anything, userID).
		Return(nil, errors.New("connection refused"))
	cache.On("Get", mock.Anything, userID).Return(nil, domain.ErrNotFound)
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)

	err := manager.Initialize(context.Background(), "token")

	require.NoError(t, err)
	ident, _ := manager.Current()
	require.NotNil(t, ident)
	assert.Equal(t, domain.RoleTeamMember, ident.Role)
	assert.Equal(t, domain.DefaultLanguage, ident.Language)
}

func TestManager_SignIn_MissingProfileFallsBackToDefaults(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("SignIn", mock.Anything, "new@example.com", "secret").
		Return(&Credentials{Session: AuthSession{UserID: userID, Email: "new@example.com"}, AccessToken: "at"}, nil)
	profiles.On("GetByID", mock.Anything, userID).
		Return(nil, domain.ErrNotFound)
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)

	ident, creds, err := manager.SignIn(context.Background(), "new@example.com", "secret")

	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, domain.RoleTeamMember, ident.Role)
	assert.Equal(t, domain.DefaultLanguage, ident.Language)
}

func TestManager_SignIn_ProfileStoreDownStillAuthenticates(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("SignIn", mock.Anything, "u@example.com", "secret").
		Return(&Credentials{Session: AuthSession{UserID: userID, Email: "u@example.com"}}, nil)
	profiles.On("GetByID", mock.Anything, userID).
		Return(nil, errors.New("connection refused"))
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)

	ident, _, err := manager.SignIn(context.Background(), "u@example.com", "secret")

	require.ErrorIs(t, err, domain.ErrProfileFetch)
	require.NotNil(t, ident)
	assert.Equal(t, domain.RoleTeamMember, ident.Role)
	_, state := manager.Current()
	assert.Equal(t, StateAuthenticated, state)
}

func TestManager_SignIn_BadCredentials(t *testing.T) {
	manager, provider, _, _ := newTestManager()
	provider.On("SignIn", mock.Anything, "u@example.com", "wrong").
		Return(nil, domain.ErrAuthentication)

	ident, creds, err := manager.SignIn(context.Background(), "u@example.com", "wrong")

	assert.ErrorIs(t, err, domain.ErrAuthentication)
	assert.Nil(t, ident)
	assert.Nil(t, creds)
	_, state := manager.Current()
	assert.NotEqual(t, StateAuthenticated, state)
}

func TestManager_SignUp_SeedsTeamMemberProfile(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("SignUp", mock.Anything, "new@example.com", "secret").
		Return(&SignUpResult{Session: AuthSession{UserID: userID, Email: "new@example.com"}}, nil)
	profiles.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Profile) bool {
		return p.Role == domain.RoleTeamMember && p.FullName == "New User" && p.Language == "fr"
	})).Return(nil)
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)

	result, err := manager.SignUp(context.Background(), "new@example.com", "secret", "New User", "")

	require.NoError(t, err)
	assert.False(t, result.PendingVerification)
	_, state := manager.Current()
	assert.Equal(t, StateAuthenticated, state)
	profiles.AssertExpectations(t)
}

func TestManager_SignUp_PendingVerificationDoesNotAuthenticate(t *testing.T) {
	manager, provider, profiles, _ := newTestManager()
	userID := uuid.New()
	provider.On("SignUp", mock.Anything, "new@example.com", "secret").
		Return(&SignUpResult{Session: AuthSession{UserID: userID}, PendingVerification: true}, nil)
	profiles.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := manager.SignUp(context.Background(), "new@example.com", "secret", "New User", "en")

	require.NoError(t, err)
	assert.True(t, result.PendingVerification)
	ident, state := manager.Current()
	assert.Nil(t, ident)
	assert.NotEqual(t, StateAuthenticated, state)
}

func TestManager_SignOut_ClearsIdentityAndCache(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("GetSession", mock.Anything, "token").
		Return(&AuthSession{UserID: userID, Email: "u@example.com"}, nil)
	profiles.On("GetByID", mock.Anything, userID).Return(nil, domain.ErrNotFound)
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)
	cache.On("Clear", mock.Anything, userID).Return(nil)
	provider.On("SignOut", mock.Anything, "token").Return(nil)
	require.NoError(t, manager.Initialize(context.Background(), "token"))

	err := manager.SignOut(context.Background(), "token")

	require.NoError(t, err)
	ident, state := manager.Current()
	assert.Nil(t, ident)
	assert.Equal(t, StateAnonymous, state)
	cache.AssertCalled(t, "Clear", mock.Anything, userID)
}

func TestManager_SignOut_ClearsLocalStateEvenIfProviderFails(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("GetSession", mock.Anything, "token").
		Return(&AuthSession{UserID: userID}, nil)
	profiles.On("GetByID", mock.Anything, userID).Return(nil, domain.ErrNotFound)
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)
	cache.On("Clear", mock.Anything, userID).Return(nil)
	provider.On("SignOut", mock.Anything, "token").Return(errors.New("provider down"))
	require.NoError(t, manager.Initialize(context.Background(), "token"))

	err := manager.SignOut(context.Background(), "token")

	assert.Error(t, err)
	ident, state := manager.Current()
	assert.Nil(t, ident)
	assert.Equal(t, StateAnonymous, state)
}

func TestManager_RefreshProfile_PicksUpRoleChange(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("GetSession", mock.Anything, "token").
		Return(&AuthSession{UserID: userID, Email: "u@example.com"}, nil)
	profiles.On("GetByID", mock.Anything, userID).
		Return(&domain.Profile{ID: userID, Role: domain.RoleTeamMember}, nil).Once()
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, manager.Initialize(context.Background(), "token"))

	profiles.On("GetByID", mock.Anything, userID).
		Return(&domain.Profile{ID: userID, Role: domain.RoleAdministrator}, nil).Once()

	ident, err := manager.RefreshProfile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdministrator, ident.Role)
}

func TestManager_RefreshProfile_UnchangedProfileIsIdempotent(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("GetSession", mock.Anything, "token").
		Return(&AuthSession{UserID: userID, Email: "u@example.com"}, nil)
	profiles.On("GetByID", mock.Anything, userID).
		Return(&domain.Profile{ID: userID, FullName: "Ada", Role: domain.RoleAdministrator, Language: "en"}, nil)
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, manager.Initialize(context.Background(), "token"))

	first, err := manager.RefreshProfile(context.Background())
	require.NoError(t, err)
	second, err := manager.RefreshProfile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	current, state := manager.Current()
	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, first, current)
}

func TestManager_RefreshProfile_KeepsPreviousIdentityOnFetchFailure(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("GetSession", mock.Anything, "token").
		Return(&AuthSession{UserID: userID, Email: "u@example.com"}, nil)
	profiles.On("GetByID", mock.Anything, userID).
		Return(&domain.Profile{ID: userID, Role: domain.RoleAdministrator}, nil).Once()
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, manager.Initialize(context.Background(), "token"))

	profiles.On("GetByID", mock.Anything, userID).
		Return(nil, errors.New("timeout")).Once()

	ident, err := manager.RefreshProfile(context.Background())

	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Equal(t, domain.RoleAdministrator, ident.Role)
	_, state := manager.Current()
	assert.Equal(t, StateAuthenticated, state)
}

func TestManager_RefreshProfile_NoIdentity(t *testing.T) {
	manager, _, _, _ := newTestManager()

	ident, err := manager.RefreshProfile(context.Background())

	assert.ErrorIs(t, err, domain.ErrNoIdentity)
	assert.Nil(t, ident)
}

func TestManager_UpdateProfile_EmailFailureAbortsEverything(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("GetSession", mock.Anything, "token").
		Return(&AuthSession{UserID: userID, Email: "old@example.com"}, nil)
	profiles.On("GetByID", mock.Anything, userID).Return(nil, domain.ErrNotFound)
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, manager.Initialize(context.Background(), "token"))

	newEmail := "taken@example.com"
	provider.On("UpdateEmail", mock.Anything, userID, newEmail).
		Return(errors.New("email already in use"))

	name := "Changed"
	_, err := manager.UpdateProfile(context.Background(), domain.ProfileUpdate{Email: &newEmail, FullName: &name})

	assert.ErrorIs(t, err, domain.ErrUpdate)
	profiles.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	ident, _ := manager.Current()
	assert.Equal(t, "old@example.com", ident.Email)
}

func TestManager_UpdateProfile_MergesChangedFields(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("GetSession", mock.Anything, "token").
		Return(&AuthSession{UserID: userID, Email: "u@example.com"}, nil)
	profiles.On("GetByID", mock.Anything, userID).
		Return(&domain.Profile{ID: userID, FullName: "Old Name", Role: domain.RoleTeamMember, Language: "fr"}, nil)
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, manager.Initialize(context.Background(), "token"))

	profiles.On("Update", mock.Anything, userID, mock.Anything).Return(nil)

	name := "New Name"
	lang := "en"
	ident, err := manager.UpdateProfile(context.Background(), domain.ProfileUpdate{FullName: &name, Language: &lang})

	require.NoError(t, err)
	assert.Equal(t, "New Name", ident.FullName)
	assert.Equal(t, "en", ident.Language)
	assert.Equal(t, domain.RoleTeamMember, ident.Role)
}

func TestManager_HandleEvent_SignedOutClearsIdentity(t *testing.T) {
	manager, provider, profiles, cache := newTestManager()
	userID := uuid.New()
	provider.On("GetSession", mock.Anything, "token").
		Return(&AuthSession{UserID: userID}, nil)
	profiles.On("GetByID", mock.Anything, userID).Return(nil, domain.ErrNotFound)
	cache.On("Put", mock.Anything, mock.Anything).Return(nil)
	cache.On("Clear", mock.Anything, userID).Return(nil)
	require.NoError(t, manager.Initialize(context.Background(), "token"))

	manager.HandleEvent(context.Background(), Event{Type: EventSignedOut})

	ident, state := manager.Current()
	assert.Nil(t, ident)
	assert.Equal(t, StateAnonymous, state)
}

func TestMerge_Defaults(t *testing.T) {
	session := AuthSession{UserID: uuid.New(), Email: "u@example.com"}

	ident := merge(session, nil)

	assert.Equal(t, domain.RoleTeamMember, ident.Role)
	assert.Equal(t, "fr", ident.Language)
	assert.Equal(t, "u@example.com", ident.Email)
}
