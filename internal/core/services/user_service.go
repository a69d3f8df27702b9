package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
	apperrors "camsignal/pkg/errors"
	"camsignal/pkg/utils"
	"camsignal/pkg/validation"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is the single failure returned for unknown
// users, wrong passwords and inactive accounts alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

type LoginResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

type UserService interface {
	Login(ctx context.Context, username, password, ip, userAgent string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginResult, error)
	Register(ctx context.Context, username, password, email, fullName string) (*domain.User, error)
}

type userService struct {
	users          ports.UserRepository
	activity       ports.ActivityLog
	sessions       ports.SessionStore
	throttle       ports.LoginThrottle
	auth           AuthService
	accessTokenTTL time.Duration
	sessionTTL     time.Duration
	logger         *zap.SugaredLogger
}

func NewUserService(
	users ports.UserRepository,
	activity ports.ActivityLog,
	sessions ports.SessionStore,
	throttle ports.LoginThrottle,
	auth AuthService,
	accessTokenTTL, sessionTTL time.Duration,
	logger *zap.SugaredLogger,
) UserService {
	return &userService{
		users:          users,
		activity:       activity,
		sessions:       sessions,
		throttle:       throttle,
		auth:           auth,
		accessTokenTTL: accessTokenTTL,
		sessionTTL:     sessionTTL,
		logger:         logger,
	}
}

func (s *userService) Login(ctx context.Context, username, password, ip, userAgent string) (*LoginResult, error) {
	username = strings.TrimSpace(username)

	allowed, err := s.throttle.Allow(ctx, username, ip)
	if err != nil {
		// Throttle backend trouble must not lock everyone out.
		s.logger.Warnw("login throttle check failed", "error", err)
	} else if !allowed {
		s.recordAttempt(username, ip, userAgent, false, "account locked")
		return nil, apperrors.WrapError(domain.ErrLoginThrottled, apperrors.ErrCodeRateLimit,
			"too many failed login attempts, try again later", 429)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		s.failLogin(ctx, username, ip, userAgent, "unknown user")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.failLogin(ctx, username, ip, userAgent, "inactive account")
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.failLogin(ctx, username, ip, userAgent, "wrong password")
		return nil, ErrInvalidCredentials
	}

	if err := s.throttle.Reset(ctx, username, ip); err != nil {
		s.logger.Warnw("failed to reset login throttle", "username", username, "error", err)
	}
	s.recordAttempt(username, ip, userAgent, true, "")
	s.recordSession(user.ID, ip, userAgent)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
			s.logger.Warnw("failed to update last login", "user_id", user.ID, "error", err)
		}
	}()

	return s.issueTokens(user)
}

func (s *userService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	identity, err := s.auth.VerifyToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(user)
}

func (s *userService) Register(ctx context.Context, username, password, email, fullName string) (*domain.User, error) {
	username = strings.TrimSpace(username)

	if err := validation.ValidateUsername(username); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password")
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Email:        strings.TrimSpace(strings.ToLower(email)),
		FullName:     strings.TrimSpace(fullName),
		Role:         domain.RoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Infow("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *userService) issueTokens(user *domain.User) (*LoginResult, error) {
	accessToken, err := s.auth.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to generate token")
	}
	refreshToken, err := s.auth.GenerateRefreshToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to generate refresh token")
	}

	return &LoginResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.accessTokenTTL / time.Second),
	}, nil
}

func (s *userService) failLogin(ctx context.Context, username, ip, userAgent, reason string) {
	if err := s.throttle.RecordFailure(ctx, username, ip); err != nil {
		s.logger.Warnw("failed to record throttle failure", "username", username, "error", err)
	}
	s.recordAttempt(username, ip, userAgent, false, reason)
}

// recordSession writes a session audit row off the request path.
func (s *userService) recordSession(userID domain.UserID, ip, userAgent string) {
	if s.sessions == nil {
		return
	}
	now := time.Now()
	session := &domain.Session{
		SessionID: utils.GenerateSessionID(),
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.sessions.Create(ctx, session); err != nil {
			s.logger.Warnw("failed to record session", "user_id", userID, "error", err)
		}
	}()
}

// recordAttempt writes a login audit line off the request path.
func (s *userService) recordAttempt(username, ip, userAgent string, success bool, errorMessage string) {
	if s.activity == nil {
		return
	}
	attempt := &domain.LoginAttempt{
		Username:     username,
		IPAddress:    ip,
		UserAgent:    userAgent,
		Success:      success,
		ErrorMessage: errorMessage,
		Timestamp:    time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.activity.RecordLoginAttempt(ctx, attempt); err != nil {
			s.logger.Warnw("failed to record login attempt", "username", username, "error", err)
		}
	}()
}
