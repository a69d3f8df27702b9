package http

import (
	"errors"
	"net/http"

	"camsignal/internal/core/services"
	"camsignal/internal/infrastructure/monitoring"
	apperrors "camsignal/pkg/errors"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	userService services.UserService
	collector   *monitoring.PrometheusCollector
}

func NewAuthHandler(userService services.UserService, collector *monitoring.PrometheusCollector) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		collector:   collector,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.POST("/refresh", h.RefreshToken)
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required,max=128"`
	Email    string `json:"email" binding:"omitempty,max=254"`
	FullName string `json:"fullName" binding:"omitempty,max=100"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required,max=128"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required,max=2048"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Username, req.Password, req.Email, req.FullName)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"userId":   user.ID,
		"username": user.Username,
		"role":     string(user.Role),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	result, err := h.userService.Login(c.Request.Context(),
		req.Username, req.Password, c.ClientIP(), c.Request.UserAgent())
	if h.collector != nil {
		h.collector.RecordLoginAttempt(err == nil)
	}
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "AUTH_REQUIRED",
				"message": "invalid credentials",
			})
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":       result.User.ID,
		"username":     result.User.Username,
		"role":         string(result.User.Role),
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"expiresIn":    result.ExpiresIn,
	})
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	result, err := h.userService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "AUTH_REQUIRED",
			"message": "invalid refresh token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"expiresIn":    result.ExpiresIn,
	})
}
