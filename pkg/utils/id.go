package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateConnectionID generates an opaque, process-unique connection ID.
func GenerateConnectionID() string {
	return uuid.NewString()
}

// GenerateSessionID generates a unique session ID for the session store.
func GenerateSessionID() string {
	return uuid.NewString()
}

// GenerateRoomID generates a server-side room ID from a camera name seed.
// Clients normally supply their own room IDs; this is the fallback when
// they do not. The seed is reduced to room-ID-safe characters.
func GenerateRoomID(seed string) string {
	seed = sanitizeRoomSeed(seed)
	if seed == "" {
		seed = "camera"
	}
	return fmt.Sprintf("%s-%d-%s", seed, time.Now().Unix(), uuid.NewString()[:8])
}

func sanitizeRoomSeed(seed string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, seed)
	return strings.Trim(mapped, "-")
}
