package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/T1collo/agrofresh/models"
	"github.com/T1collo/agrofresh/repository"
)

// --- Mocks for Dependencies ---

type MockUserRepository struct{ mock.Mock }

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}
func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserRepository) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}
func (m *MockUserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) error {
	return m.Called(ctx, id, name, phone).Error(0)
}
func (m *MockUserRepository) CreateRefreshToken(ctx context.Context, rt *models.RefreshToken) error {
	return m.Called(ctx, rt).Error(0)
}
func (m *MockUserRepository) GetRefreshTokenByTokenID(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefreshToken), args.Error(1)
}
func (m *MockUserRepository) RevokeRefreshTokenByTokenID(ctx context.Context, tokenID string) error {
	return m.Called(ctx, tokenID).Error(0)
}
func (m *MockUserRepository) RevokeAllUserRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

type MockLocationRepository struct{ mock.Mock }

func (m *MockLocationRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Location, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Location), args.Error(1)
}
func (m *MockLocationRepository) Upsert(ctx context.Context, loc *models.Location) error {
	return m.Called(ctx, loc).Error(0)
}

type MockProductRepository struct{ mock.Mock }

func (m *MockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]models.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}
func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

type MockCategoryRepository struct{ mock.Mock }

func (m *MockCategoryRepository) FindAll(ctx context.Context) ([]models.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Category), args.Error(1)
}
func (m *MockCategoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) Publish(ctx context.Context, eventType string, payload map[string]interface{}) error {
	return m.Called(ctx, eventType, payload).Error(0)
}

// memoryCartRepo keeps carts in a map; enough for exercising the service.
type memoryCartRepo struct {
	carts   map[string]*models.Cart
	saveErr error
}

func newMemoryCartRepo() *memoryCartRepo {
	return &memoryCartRepo{carts: map[string]*models.Cart{}}
}

func (r *memoryCartRepo) GetCart(_ context.Context, userID string) (*models.Cart, error) {
	c, ok := r.carts[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memoryCartRepo) SaveCart(_ context.Context, c *models.Cart) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *c
	r.carts[c.UserID] = &cp
	return nil
}

func (r *memoryCartRepo) DeleteCart(_ context.Context, userID string) error {
	delete(r.carts, userID)
	return nil
}
