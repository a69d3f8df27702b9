package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// RoomIDRegex validates room ID format
	RoomIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// UsernameRegex validates username format
	UsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// EmailRegex validates email format
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// ValidateUsername validates username
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if len(username) > 50 {
		return fmt.Errorf("username is too long (max 50 characters)")
	}
	if !UsernameRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidatePassword validates password
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	if len(password) > 128 {
		return fmt.Errorf("password is too long (max 128 characters)")
	}
	return nil
}

// ValidateEmail validates email address
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil // optional field
	}
	if len(email) > 254 {
		return fmt.Errorf("email is too long (max 254 characters)")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateRoomID validates room ID
func ValidateRoomID(roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room ID is required")
	}
	if len(roomID) > 100 {
		return fmt.Errorf("room ID is too long (max 100 characters)")
	}
	if !RoomIDRegex.MatchString(roomID) {
		return fmt.Errorf("invalid room ID format")
	}
	return nil
}

// ValidateCameraName validates a camera display name
func ValidateCameraName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil // server substitutes a default
	}
	if utf8.RuneCountInString(name) > 100 {
		return fmt.Errorf("camera name is too long (max 100 characters)")
	}
	return nil
}
