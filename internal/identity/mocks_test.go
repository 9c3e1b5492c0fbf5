package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/prosomo/agenthub/internal/domain"
)

type MockProvider struct {
	mock.Mock
	events chan Event
}

func (m *MockProvider) GetSession(ctx context.Context, accessToken string) (*AuthSession, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AuthSession), args.Error(1)
}

func (m *MockProvider) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Credentials), args.Error(1)
}

func (m *MockProvider) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SignUpResult), args.Error(1)
}

func (m *MockProvider) SignOut(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}

func (m *MockProvider) UpdateEmail(ctx context.Context, userID uuid.UUID, email string) error {
	args := m.Called(ctx, userID, email)
	return args.Error(0)
}

func (m *MockProvider) Events(ctx context.Context) <-chan Event {
	if m.events == nil {
		m.events = make(chan Event)
	}
	return m.events
}

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockProfileRepository) Update(ctx context.Context, id uuid.UUID, update domain.ProfileUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *MockProfileRepository) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Put(ctx context.Context, identity *domain.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockCache) Get(ctx context.Context, userID uuid.UUID) (*domain.Identity, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *MockCache) Clear(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
