package user

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidPin   = errors.New("invalid pin")
)
