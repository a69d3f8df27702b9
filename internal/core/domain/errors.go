package domain

import "errors"

var (
	ErrAuthRequired    = errors.New("authentication required")
	ErrAccessDenied    = errors.New("access denied")
	ErrNoSuchCamera    = errors.New("camera not found")
	ErrNoSuchTarget    = errors.New("target connection not found")
	ErrInvalidMessage  = errors.New("invalid message")
	ErrUserNotFound    = errors.New("user not found")
	ErrSettingNotFound = errors.New("setting not found")
	ErrLoginThrottled  = errors.New("too many failed login attempts")
)
