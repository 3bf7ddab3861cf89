// Package auth provides admin session tokens and password checks for the
// site's management console. Access tokens (2h TTL) authorize admin API
// calls, refresh tokens (30d TTL) obtain new token pairs.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token scopes.
const (
	ScopeAccess  = "site.admin.access"
	ScopeRefresh = "site.admin.refresh"
)

// Token lifetimes.
const (
	AccessTTL  = 2 * time.Hour
	RefreshTTL = 30 * 24 * time.Hour
)

// AdminSubject is the subject of every admin token. The site has a single
// operator account.
const AdminSubject = "admin"

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims extends the standard JWT claims with a token scope.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// TokenPair holds an access/refresh JWT pair returned on login or refresh.
type TokenPair struct {
	AccessJwt  string    `json:"accessJwt"`
	RefreshJwt string    `json:"refreshJwt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// JWTManager signs and validates JWT tokens using HS256.
type JWTManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTManager creates a manager with the given HMAC secret and issuer
// URL. An empty secret is replaced with a random one, so sessions do not
// survive a restart.
func NewJWTManager(secret, issuer string) *JWTManager {
	if secret == "" {
		secret = GenerateSecret()
	}
	return &JWTManager{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// GenerateSecret returns a random 32-byte hex string for use as a JWT secret.
func GenerateSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// CreateTokenPair generates an access/refresh token pair for subject.
func (m *JWTManager) CreateTokenPair(subject string) (*TokenPair, error) {
	now := m.now()

	accessStr, err := m.sign(subject, ScopeAccess, now, AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("auth: sign access token: %w", err)
	}
	refreshStr, err := m.sign(subject, ScopeRefresh, now, RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("auth: sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessJwt:  accessStr,
		RefreshJwt: refreshStr,
		ExpiresAt:  now.Add(AccessTTL).UTC(),
	}, nil
}

func (m *JWTManager) sign(subject, scope string, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: scope,
	})
	return token.SignedString(m.secret)
}

// ValidateAccessToken parses and validates an access token, returning its
// subject.
func (m *JWTManager) ValidateAccessToken(tokenStr string) (string, error) {
	return m.validate(tokenStr, ScopeAccess)
}

// ValidateRefreshToken parses and validates a refresh token, returning
// its subject.
func (m *JWTManager) ValidateRefreshToken(tokenStr string) (string, error) {
	return m.validate(tokenStr, ScopeRefresh)
}

func (m *JWTManager) validate(tokenStr, expectedScope string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.issuer))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}
	if claims.Scope != expectedScope {
		return "", fmt.Errorf("%w: wrong scope: got %q, want %q", ErrInvalidToken, claims.Scope, expectedScope)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
