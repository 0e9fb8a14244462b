package services

import (
	"errors"
	"net/http"

	apperrors "github.com/T1collo/agrofresh/common/errors"
)

// Sentinel errors returned by the services. Controllers hand them to
// apperrors.Abort unchanged so errors.Is keeps working.
var (
	ErrInvalidCredentials = apperrors.New(http.StatusUnauthorized, "Invalid email or password", nil)
	ErrInvalidToken       = apperrors.New(http.StatusUnauthorized, "Invalid or expired token", nil)
	ErrAccountDisabled    = apperrors.New(http.StatusForbidden, "Account is disabled", nil)
	ErrEmailTaken         = apperrors.New(http.StatusConflict, "Email already registered", nil)
	ErrPasswordMismatch   = apperrors.New(http.StatusBadRequest, "Passwords do not match", nil)
	ErrInvalidResetToken  = apperrors.New(http.StatusBadRequest, "Reset link is invalid or has expired", nil)

	ErrUserNotFound    = apperrors.New(http.StatusNotFound, "User not found", nil)
	ErrProfileNotFound = apperrors.New(http.StatusNotFound, "User profile not found", nil)

	ErrLocationRequired   = apperrors.New(http.StatusBadRequest, "Please select a location", nil)
	ErrInvalidCoordinates = apperrors.New(http.StatusBadRequest, "Invalid coordinates", nil)
	ErrLocationNotFound   = apperrors.New(http.StatusNotFound, "Location not found", nil)

	ErrCategoryNotFound = apperrors.New(http.StatusNotFound, "Category not found", nil)
	ErrProductNotFound  = apperrors.New(http.StatusNotFound, "Product not found", nil)
	ErrInvalidCategory  = apperrors.New(http.StatusBadRequest, "Invalid categoryId", nil)
	ErrInvalidSort      = apperrors.New(http.StatusBadRequest, "Invalid sort field", nil)
	ErrInvalidOrder     = apperrors.New(http.StatusBadRequest, "Order must be asc or desc", nil)
	ErrInvalidLimit     = apperrors.New(http.StatusBadRequest, "Limit must be a positive integer", nil)

	ErrOutOfStock          = apperrors.New(http.StatusConflict, "product is out of stock", nil)
	ErrInvalidQuantity     = apperrors.New(http.StatusBadRequest, "quantity must be positive", nil)
	ErrCheckoutUnavailable = apperrors.New(http.StatusNotImplemented, "checkout is not available yet", nil)
)

// invalid turns a plain validation error into a 400, keeping app errors
// as they are.
func invalid(err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.New(http.StatusBadRequest, err.Error(), err)
}

func internal(msg string, err error) error {
	return apperrors.New(http.StatusInternalServerError, msg, err)
}
