package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/turtacn/sharedcookie/internal/domain/models"
)

// MockKeyStore is a mock implementation of repository.KeyStore
type MockKeyStore struct {
	mock.Mock
}

func (m *MockKeyStore) LoadAll(ctx context.Context) ([]*models.KeyEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.KeyEntry), args.Error(1)
}

func (m *MockKeyStore) Save(ctx context.Context, key *models.KeyEntry) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockKeyStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockKeyStore) Name() string {
	return "mock"
}

// MockKeyRing is a mock implementation of service.KeyRing
type MockKeyRing struct {
	mock.Mock
}

func (m *MockKeyRing) CurrentKey() (*models.KeyEntry, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.KeyEntry), args.Error(1)
}

func (m *MockKeyRing) KeyByVersion(id uuid.UUID) (*models.KeyEntry, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.KeyEntry), args.Error(1)
}

func (m *MockKeyRing) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockKeyRing) Keys() []*models.KeyEntry {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*models.KeyEntry)
}
