package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
	"camsignal/internal/core/services"
	"camsignal/internal/infrastructure/middleware"
	"camsignal/internal/infrastructure/monitoring"
	"camsignal/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPresence serves a canned per-identity camera listing.
type stubPresence struct {
	cameras map[domain.UserID][]*domain.CameraRecord
}

func (s *stubPresence) Join(domain.ConnectionID, domain.Identity, ports.JoinRequest) error {
	return nil
}
func (s *stubPresence) Disconnect(domain.ConnectionID, domain.Identity, domain.RoomID, domain.PeerRole) {
}
func (s *stubPresence) VisibleCameras(identity domain.Identity) []*domain.CameraRecord {
	return s.cameras[identity.UserID]
}
func (s *stubPresence) RoomCamera(domain.RoomID) (domain.ConnectionID, bool) { return "", false }
func (s *stubPresence) CameraRecord(domain.RoomID) (*domain.CameraRecord, bool) {
	return nil, false
}
func (s *stubPresence) RoomViewers(domain.RoomID) []domain.ConnectionID { return nil }
func (s *stubPresence) RoomCount() int                                  { return 0 }

func cameraHandlerRouter(t *testing.T, presence ports.PresenceService) (*gin.Engine, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.WebRTC.ICEServers = []struct {
		URLs       []string `yaml:"urls"`
		Username   string   `yaml:"username,omitempty"`
		Credential string   `yaml:"credential,omitempty"`
	}{
		{URLs: []string{"stun:stun.example.com:19302"}},
		{URLs: []string{"turn:turn.example.com:3478"}, Username: "u", Credential: "p"},
	}

	auth := services.NewAuthService("test-secret", 15*time.Minute, time.Hour)

	router := gin.New()
	handler := NewCameraHandler(presence, monitoring.NewHealthChecker(), cfg)
	handler.SetupRoutes(router, middleware.AuthMiddleware(auth))
	return router, auth
}

func bearerRequest(t *testing.T, auth services.AuthService, path string) *http.Request {
	t.Helper()
	token, err := auth.GenerateToken(&domain.User{ID: 1, Username: "alice", Role: domain.RoleUser})
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestListCameras_ReturnsCallerView(t *testing.T) {
	presence := &stubPresence{cameras: map[domain.UserID][]*domain.CameraRecord{
		1: {{RoomID: "room-a", OwnerUserID: 1, DisplayName: "Front door"}},
	}}
	router, auth := cameraHandlerRouter(t, presence)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, bearerRequest(t, auth, "/api/v1/cameras"))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Cameras []map[string]interface{} `json:"cameras"`
		Count   int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "room-a", body.Cameras[0]["roomId"])
	assert.Equal(t, "Front door", body.Cameras[0]["name"])
	// The connection ID is transport detail and never leaves the server.
	assert.NotContains(t, body.Cameras[0], "ConnectionID")
}

func TestListCameras_RequiresAuth(t *testing.T) {
	router, _ := cameraHandlerRouter(t, &stubPresence{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/cameras", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebRTCConfig(t *testing.T) {
	router, auth := cameraHandlerRouter(t, &stubPresence{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, bearerRequest(t, auth, "/api/v1/webrtc/config"))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ICEServers []map[string]interface{} `json:"iceServers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.ICEServers, 2)
	assert.Equal(t, "u", body.ICEServers[1]["username"])
}

func TestHealth(t *testing.T) {
	router, _ := cameraHandlerRouter(t, &stubPresence{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
