package mocks

import (
	"context"

	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockStore covers the persistence the HTTP handlers call directly.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) CreateProduct(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockStore) ListProducts(ctx context.Context, includeInactive bool) ([]models.Product, error) {
	args := m.Called(ctx, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockStore) DeleteProduct(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) CreateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockStore) UpdateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) ListCustomers(ctx context.Context, activeOnly bool) ([]models.User, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStore) ListAssignments(ctx context.Context, customerID string) ([]models.CustomerProductAssignment, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CustomerProductAssignment), args.Error(1)
}

func (m *MockStore) GetBranding(ctx context.Context) (*models.Branding, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Branding), args.Error(1)
}

func (m *MockStore) UpdateBranding(ctx context.Context, b *models.Branding) error {
	return m.Called(ctx, b).Error(0)
}

func (m *MockStore) CreateReminder(ctx context.Context, r *models.Reminder) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockStore) UpdateReminder(ctx context.Context, r *models.Reminder) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockStore) DeleteReminder(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) ListReminders(ctx context.Context, activeOnly bool) ([]models.Reminder, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reminder), args.Error(1)
}
