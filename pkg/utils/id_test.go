package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateConnectionID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := GenerateConnectionID()
		assert.NotEmpty(t, id)
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestGenerateSessionID(t *testing.T) {
	assert.NotEqual(t, GenerateSessionID(), GenerateSessionID())
}

func TestGenerateRoomID(t *testing.T) {
	id := GenerateRoomID("porch")
	assert.True(t, strings.HasPrefix(id, "porch-"))

	fallback := GenerateRoomID("")
	assert.True(t, strings.HasPrefix(fallback, "camera-"))
	assert.NotEqual(t, GenerateRoomID("porch"), GenerateRoomID("porch"))
}

// Generated IDs must satisfy the room ID format even when the seed is
// an arbitrary display name.
func TestGenerateRoomID_SanitizesSeed(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateRoomID("Back Porch"), "back-porch-"))
	assert.True(t, strings.HasPrefix(GenerateRoomID("  !!!  "), "camera-"))

	id := GenerateRoomID("Café / Étage 2")
	for _, r := range id {
		valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		assert.True(t, valid, "unexpected rune %q in %q", r, id)
	}
}
