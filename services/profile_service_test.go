package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/T1collo/agrofresh/models"
)

func ptr(f float64) *float64 { return &f }

func TestGetProfile(t *testing.T) {
	ctx := context.Background()
	users := new(MockUserRepository)
	svc := NewProfileService(users, new(MockLocationRepository), zap.NewNop())

	found := uuid.New()
	missing := uuid.New()
	broken := uuid.New()
	users.On("FindByID", ctx, found).Return(&models.User{ID: found, Name: "Ama"}, nil)
	users.On("FindByID", ctx, missing).Return(nil, gorm.ErrRecordNotFound)
	users.On("FindByID", ctx, broken).Return(nil, errors.New("connection reset"))

	u, err := svc.GetProfile(ctx, found)
	require.NoError(t, err)
	assert.Equal(t, "Ama", u.Name)

	_, err = svc.GetProfile(ctx, missing)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = svc.GetProfile(ctx, broken)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrProfileNotFound)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	users := new(MockUserRepository)
	svc := NewProfileService(users, new(MockLocationRepository), zap.NewNop())
	id := uuid.New()

	users.On("UpdateProfile", ctx, id, "Kofi", "0200000000").Return(nil).Once()
	users.On("FindByID", ctx, id).Return(&models.User{ID: id, Name: "Kofi", Phone: "0200000000"}, nil).Once()

	u, err := svc.UpdateProfile(ctx, id, "  Kofi ", "0200000000")
	require.NoError(t, err)
	assert.Equal(t, "Kofi", u.Name)

	users.On("UpdateProfile", ctx, mock.Anything, mock.Anything, mock.Anything).Return(gorm.ErrRecordNotFound).Once()
	_, err = svc.UpdateProfile(ctx, uuid.New(), "x", "")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestSaveLocation(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("missing selection never reaches the database", func(t *testing.T) {
		locs := new(MockLocationRepository)
		svc := NewProfileService(new(MockUserRepository), locs, zap.NewNop())

		_, err := svc.SaveLocation(ctx, id, LocationInput{Latitude: ptr(5.6)})
		assert.ErrorIs(t, err, ErrLocationRequired)
		locs.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("out of range", func(t *testing.T) {
		svc := NewProfileService(new(MockUserRepository), new(MockLocationRepository), zap.NewNop())
		_, err := svc.SaveLocation(ctx, id, LocationInput{Latitude: ptr(91), Longitude: ptr(0)})
		assert.ErrorIs(t, err, ErrInvalidCoordinates)
	})

	t.Run("upserts", func(t *testing.T) {
		locs := new(MockLocationRepository)
		svc := NewProfileService(new(MockUserRepository), locs, zap.NewNop())
		locs.On("Upsert", ctx, mock.MatchedBy(func(l *models.Location) bool {
			return l.UserID == id && l.Latitude == 5.6037 && l.Longitude == -0.187 && l.Address == "Osu, Accra"
		})).Return(nil).Once()

		loc, err := svc.SaveLocation(ctx, id, LocationInput{Latitude: ptr(5.6037), Longitude: ptr(-0.187), Address: " Osu, Accra "})
		require.NoError(t, err)
		assert.Equal(t, "Osu, Accra", loc.Address)
		locs.AssertExpectations(t)
	})
}

func TestGetLocation_NotFound(t *testing.T) {
	ctx := context.Background()
	locs := new(MockLocationRepository)
	svc := NewProfileService(new(MockUserRepository), locs, zap.NewNop())
	id := uuid.New()
	locs.On("FindByUserID", ctx, id).Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.GetLocation(ctx, id)
	assert.ErrorIs(t, err, ErrLocationNotFound)
}
