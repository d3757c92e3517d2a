package auth

import (
	"time"

	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

const DefaultTTL = 12 * time.Hour

// Claims identify a staff member. Masters never hold a token here.
type Claims struct {
	StaffID int64  `json:"staff_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewTokenManager(secretKey string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenManager{secretKey: []byte(secretKey), ttl: ttl, now: time.Now}
}

func (tm *TokenManager) GenerateToken(staff model.Staff) (string, error) {
	now := tm.now()
	claims := Claims{
		StaffID: staff.ID,
		Role:    staff.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staff.Login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

func (tm *TokenManager) ParseToken(tokenStr string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errs.ErrInvalidToken
		}
		return tm.secretKey, nil
	}, jwt.WithTimeFunc(tm.now))

	if err != nil || !token.Valid || claims.StaffID == 0 {
		return Claims{}, errs.ErrInvalidToken
	}

	return claims, nil
}
