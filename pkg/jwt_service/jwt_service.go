package jwtservice

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	errorvalues "github.com/limbo/plankup/internal/error_values"
	"github.com/limbo/plankup/pkg/entity"
)

var (
	defaultTokenTTL = 30 * 24 * time.Hour
)

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Guest  bool   `json:"guest"`
}

func (c *Claims) Identity() entity.Identity {
	return entity.Identity{
		UserID:  c.UserID,
		IsGuest: c.Guest,
	}
}

type JWTService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New creates HS256 token service. Non-positive ttl means 30 days.
func New(secret string, ttl time.Duration) *JWTService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *JWTService) GenerateToken(identity entity.Identity) (string, error) {
	if identity.UserID == "" {
		return "", errors.New("generating token error: empty user id")
	}
	now := s.now()
	claims := &Claims{
		UserID: identity.UserID,
		Guest:  identity.IsGuest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseToken verifies signature and time claims. Every rejection wraps
// errorvalues.ErrInvalidToken.
func (s *JWTService) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errorvalues.ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errorvalues.ErrInvalidToken
	}
	return claims, nil
}
