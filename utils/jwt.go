package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yeremiapane/restaurant-dispatch/models"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type CustomClaims struct {
	Role      models.Role `json:"role"`
	SubjectID uint        `json:"sub_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies identity tokens. A token carries exactly one
// identity.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

func (t *TokenIssuer) Generate(id models.Identity) (string, error) {
	if id.IsGuest() {
		return "", errors.New("guests do not get tokens")
	}
	now := time.Now()
	claims := &CustomClaims{
		Role:      id.Role,
		SubjectID: id.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "RestaurantDispatch",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *TokenIssuer) Parse(tokenString string) (models.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !claims.Role.Valid() || claims.Role == models.RoleGuest {
		return models.Identity{}, ErrInvalidToken
	}
	if claims.Role == models.RoleSuperAdmin {
		return models.SuperAdminIdentity(), nil
	}
	if claims.SubjectID == 0 {
		return models.Identity{}, ErrInvalidToken
	}
	return models.Identity{Role: claims.Role, ID: claims.SubjectID}, nil
}
