package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/T1collo/agrofresh/common/errors"
	"github.com/T1collo/agrofresh/middleware"
	"github.com/T1collo/agrofresh/services"
)

type ProfileController struct {
	profiles services.ProfileService
}

func NewProfileController(profiles services.ProfileService) *ProfileController {
	return &ProfileController{profiles: profiles}
}

// GetProfile handles GET /api/profile
func (pc *ProfileController) GetProfile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Abort(c, apperrors.ErrUnauthorized)
		return
	}
	user, err := pc.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile handles PUT /api/profile
func (pc *ProfileController) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Abort(c, apperrors.ErrUnauthorized)
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, invalidRequest(err))
		return
	}
	user, err := pc.profiles.UpdateProfile(c.Request.Context(), userID, req.Name, req.Phone)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetLocation handles GET /api/profile/location
func (pc *ProfileController) GetLocation(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Abort(c, apperrors.ErrUnauthorized)
		return
	}
	loc, err := pc.profiles.GetLocation(c.Request.Context(), userID)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}

// SaveLocation handles PUT /api/profile/location
func (pc *ProfileController) SaveLocation(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Abort(c, apperrors.ErrUnauthorized)
		return
	}
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, invalidRequest(err))
		return
	}
	loc, err := pc.profiles.SaveLocation(c.Request.Context(), userID, services.LocationInput{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Address:   req.Address,
	})
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}
