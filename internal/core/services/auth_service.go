package services

import (
	"errors"
	"time"

	"camsignal/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the single failure every verification problem
// collapses to. Missing, malformed, expired and forged credentials are
// indistinguishable to the caller.
var ErrInvalidToken = errors.New("invalid or expired token")

type AuthService interface {
	GenerateToken(user *domain.User) (string, error)
	GenerateRefreshToken(user *domain.User) (string, error)
	VerifyToken(tokenString string) (domain.Identity, error)
}

type Claims struct {
	UserID        int64  `json:"userId"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	Authenticated bool   `json:"authenticated"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret       []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewAuthService(jwtSecret string, accessTokenTTL, refreshTokenTTL time.Duration) AuthService {
	return &authService{
		jwtSecret:       []byte(jwtSecret),
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

func (s *authService) GenerateToken(user *domain.User) (string, error) {
	return s.sign(user, s.accessTokenTTL)
}

func (s *authService) GenerateRefreshToken(user *domain.User) (string, error) {
	return s.sign(user, s.refreshTokenTTL)
}

func (s *authService) sign(user *domain.User, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:        int64(user.ID),
		Username:      user.Username,
		Role:          string(user.Role),
		Authenticated: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifyToken validates the credential and derives an Identity from it.
// Every failure mode returns ErrInvalidToken so the response does not
// act as an oracle for which check tripped.
func (s *authService) VerifyToken(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || !claims.Authenticated {
		return domain.Identity{}, ErrInvalidToken
	}

	role := domain.Role(claims.Role)
	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}

	return domain.Identity{
		UserID:        domain.UserID(claims.UserID),
		Username:      claims.Username,
		Role:          role,
		Authenticated: true,
	}, nil
}
