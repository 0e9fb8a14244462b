package services

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters long")
	ErrPasswordNoUpper  = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoLower  = errors.New("password must contain at least one lowercase letter")
	ErrPasswordNoNumber = errors.New("password must contain at least one number")
	ErrPasswordCommon   = errors.New("password is too common")
)

// PasswordValidator validates passwords against the storefront's rules.
type PasswordValidator struct {
	minLength       int
	requireUpper    bool
	requireLower    bool
	requireNumber   bool
	commonPasswords map[string]bool
}

func NewPasswordValidator() *PasswordValidator {
	return &PasswordValidator{
		minLength:     8,
		requireUpper:  true,
		requireLower:  true,
		requireNumber: true,
		commonPasswords: map[string]bool{
			"password":  true,
			"password1": true,
			"12345678":  true,
			"qwertyui":  true,
			"agrofresh": true,
		},
	}
}

func (pv *PasswordValidator) ValidatePassword(password string) error {
	if len(password) < pv.minLength {
		return ErrPasswordTooShort
	}
	if pv.commonPasswords[strings.ToLower(password)] {
		return ErrPasswordCommon
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	if pv.requireUpper && !hasUpper {
		return ErrPasswordNoUpper
	}
	if pv.requireLower && !hasLower {
		return ErrPasswordNoLower
	}
	if pv.requireNumber && !hasNumber {
		return ErrPasswordNoNumber
	}
	return nil
}

// ValidatePasswordPair checks the confirmation first, then the rules.
func (pv *PasswordValidator) ValidatePasswordPair(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	return pv.ValidatePassword(password)
}
