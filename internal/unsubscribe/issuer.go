package unsubscribe

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const Purpose = "unsubscribe"

// DefaultTTL is how long an unsubscribe link stays valid.
const DefaultTTL = 90 * 24 * time.Hour

var (
	ErrTokenInvalid = errors.New("invalid unsubscribe token")
	ErrTokenExpired = errors.New("unsubscribe token has expired")
	ErrWrongPurpose = errors.New("token is not an unsubscribe token")
)

type Claims struct {
	UserID  int64  `json:"user_id"`
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies scoped HS256 unsubscribe tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("unsubscribe secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the issuer's time source.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) Issue(tenantID int64, email string) (string, error) {
	now := i.now().UTC()
	claims := Claims{
		UserID:  tenantID,
		Email:   strings.ToLower(strings.TrimSpace(email)),
		Purpose: Purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign unsubscribe token: %w", err)
	}
	return token, nil
}

func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Purpose != Purpose {
		return nil, ErrWrongPurpose
	}
	if claims.Email == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Link builds the footer URL for a token under the frontend base URL.
func Link(frontendURL, token string) string {
	return strings.TrimRight(frontendURL, "/") + "/unsubscribe?token=" + url.QueryEscape(token)
}
