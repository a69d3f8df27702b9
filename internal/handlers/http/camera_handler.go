package http

import (
	"net/http"

	"camsignal/internal/core/ports"
	"camsignal/internal/infrastructure/middleware"
	"camsignal/internal/infrastructure/monitoring"
	"camsignal/pkg/config"

	webrtc "github.com/pion/webrtc/v3"

	"github.com/gin-gonic/gin"
)

// CameraHandler exposes the REST view of the camera directory plus the
// ICE configuration clients need before opening a peer connection.
type CameraHandler struct {
	presence ports.PresenceService
	health   *monitoring.HealthChecker
	cfg      *config.Config
}

func NewCameraHandler(
	presence ports.PresenceService,
	health *monitoring.HealthChecker,
	cfg *config.Config,
) *CameraHandler {
	return &CameraHandler{
		presence: presence,
		health:   health,
		cfg:      cfg,
	}
}

func (h *CameraHandler) SetupRoutes(router *gin.Engine, authMW gin.HandlerFunc) {
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	api.Use(authMW)
	{
		api.GET("/cameras", h.ListCameras)
		api.GET("/webrtc/config", h.WebRTCConfig)
	}
}

// ListCameras returns the cameras visible to the caller. The listing is
// filtered server-side with the same ownership rules the relay applies.
func (h *CameraHandler) ListCameras(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "AUTH_REQUIRED",
			"message": "authentication required",
		})
		return
	}

	cameras := h.presence.VisibleCameras(identity)
	c.JSON(http.StatusOK, gin.H{
		"cameras": cameras,
		"count":   len(cameras),
	})
}

// WebRTCConfig hands out the ICE server list. Clients use it verbatim
// as the RTCPeerConnection configuration.
func (h *CameraHandler) WebRTCConfig(c *gin.Context) {
	iceServers := make([]webrtc.ICEServer, 0, len(h.cfg.WebRTC.ICEServers))
	for _, server := range h.cfg.WebRTC.ICEServers {
		ice := webrtc.ICEServer{URLs: server.URLs}
		if server.Username != "" {
			ice.Username = server.Username
			ice.Credential = server.Credential
			ice.CredentialType = webrtc.ICECredentialTypePassword
		}
		iceServers = append(iceServers, ice)
	}

	c.JSON(http.StatusOK, gin.H{
		"iceServers": iceServers,
	})
}

func (h *CameraHandler) Health(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
