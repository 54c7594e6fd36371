package domain

import "errors"

var (
	ErrInvalidToken    = errors.New("invalid_token")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidPassword = errors.New("invalid_password")
	ErrUserNotFound    = errors.New("user_not_found")
	ErrUserExists      = errors.New("user_exists")
)
