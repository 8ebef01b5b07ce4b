package services

import "errors"

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrValidation      = errors.New("validation failed")
	ErrUserNotFound    = errors.New("user not found")
	ErrForbidden       = errors.New("not a participant of this room")
)
