package services

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/T1collo/agrofresh/models"
	"github.com/T1collo/agrofresh/repository"
)

// LocationInput is a delivery location as submitted. Nil coordinates mean
// nothing was picked on the map.
type LocationInput struct {
	Latitude  *float64
	Longitude *float64
	Address   string
}

type ProfileService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, name, phone string) (*models.User, error)
	GetLocation(ctx context.Context, userID uuid.UUID) (*models.Location, error)
	SaveLocation(ctx context.Context, userID uuid.UUID, in LocationInput) (*models.Location, error)
}

type profileServiceImpl struct {
	users     repository.UserRepository
	locations repository.LocationRepository
	logger    *zap.Logger
}

func NewProfileService(users repository.UserRepository, locations repository.LocationRepository, logger *zap.Logger) ProfileService {
	return &profileServiceImpl{users: users, locations: locations, logger: logger}
}

func (s *profileServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, internal("failed to load profile", err)
	}
	return user, nil
}

func (s *profileServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, name, phone string) (*models.User, error) {
	err := s.users.UpdateProfile(ctx, userID, strings.TrimSpace(name), strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, internal("failed to update profile", err)
	}
	s.logger.Info("profile updated", zap.String("user_id", userID.String()))
	return s.GetProfile(ctx, userID)
}

func (s *profileServiceImpl) GetLocation(ctx context.Context, userID uuid.UUID) (*models.Location, error) {
	loc, err := s.locations.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLocationNotFound
		}
		return nil, internal("failed to load location", err)
	}
	return loc, nil
}

// SaveLocation validates before touching the database: a missing pick is
// ErrLocationRequired, out-of-range coordinates ErrInvalidCoordinates.
func (s *profileServiceImpl) SaveLocation(ctx context.Context, userID uuid.UUID, in LocationInput) (*models.Location, error) {
	if in.Latitude == nil || in.Longitude == nil {
		return nil, ErrLocationRequired
	}
	lat, lng := *in.Latitude, *in.Longitude
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, ErrInvalidCoordinates
	}

	loc := &models.Location{
		UserID:    userID,
		Latitude:  lat,
		Longitude: lng,
		Address:   strings.TrimSpace(in.Address),
	}
	if err := s.locations.Upsert(ctx, loc); err != nil {
		return nil, internal("failed to save location", err)
	}
	return loc, nil
}
