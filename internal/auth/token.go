package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL applies when no explicit lifetime is configured.
const DefaultAccessTokenTTL = 30 * time.Minute

var (
	// ErrInvalidToken covers malformed tokens and bad signatures.
	ErrInvalidToken = errors.New("could not validate credentials")
	// ErrExpiredToken indicates the token lifetime has elapsed.
	ErrExpiredToken = errors.New("token expired")
	// ErrForbidden indicates the token role does not grant access.
	ErrForbidden = errors.New("not enough permissions")
)

// Claims is the signed token payload. The subject carries the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the decoded caller of a validated token.
type Identity struct {
	SubjectID string
	Role      string
}

// TokenManager issues and validates HMAC-signed access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager constructs a manager; ttl <= 0 falls back to DefaultAccessTokenTTL.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the default token lifetime.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for the subject using the default lifetime.
func (m *TokenManager) Issue(subjectID, role string) (string, error) {
	return m.IssueWithTTL(subjectID, role, m.ttl)
}

// IssueWithTTL signs a token for the subject that expires after ttl.
func (m *TokenManager) IssueWithTTL(subjectID, role string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", fmt.Errorf("token subject must not be empty")
	}
	if ttl <= 0 {
		ttl = m.ttl
	}

	now := m.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature and expiry and returns the caller identity.
func (m *TokenManager) Validate(tokenString string) (Identity, error) {
	if strings.TrimSpace(tokenString) == "" {
		return Identity{}, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		SubjectID: claims.Subject,
		Role:      strings.ToLower(strings.TrimSpace(claims.Role)),
	}, nil
}

// RequireRole fails with ErrForbidden when the identity does not hold role.
func RequireRole(identity Identity, role string) error {
	if !strings.EqualFold(identity.Role, strings.TrimSpace(role)) {
		return ErrForbidden
	}
	return nil
}
