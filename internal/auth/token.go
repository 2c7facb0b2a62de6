package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hrconnect/hrconnect/internal/rbac"
)

const tokenIssuer = "hrconnect"

var (
	// ErrInvalidToken indicates a bearer token that failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenRevoked indicates a token whose login session has been signed out.
	ErrTokenRevoked = errors.New("auth: token revoked")
)

// Claims carries the principal's role and login session inside an access token.
type Claims struct {
	Role      rbac.Role `json:"role"`
	SessionID string    `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens for mobile clients.
type TokenIssuer struct {
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	revoked *RevocationList
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithRevocations makes verification consult list, and lets Revoke sign out
// the session a token is bound to.
func (t *TokenIssuer) WithRevocations(list *RevocationList) *TokenIssuer {
	t.revoked = list
	return t
}

// Issue signs a token for user bound to the login session sessionID.
func (t *TokenIssuer) Issue(user *User, sessionID string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := &Claims{
		Role:      user.Role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies a token and returns its claims.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyToken implements rbac.TokenVerifier. Tokens whose role is outside the
// enumeration, or whose login session was signed out, are rejected.
func (t *TokenIssuer) VerifyToken(ctx context.Context, token string) (rbac.Principal, error) {
	claims, err := t.Parse(token)
	if err != nil {
		return rbac.Principal{}, err
	}
	if !claims.Role.Valid() {
		return rbac.Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, rbac.ErrUnknownRole)
	}
	if t.revoked != nil {
		if claims.SessionID == "" {
			return rbac.Principal{}, fmt.Errorf("%w: no session bound", ErrInvalidToken)
		}
		revoked, err := t.revoked.Revoked(ctx, claims.SessionID)
		if err != nil {
			return rbac.Principal{}, fmt.Errorf("auth: check revocation: %w", err)
		}
		if revoked {
			return rbac.Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenRevoked)
		}
	}
	return rbac.Principal{Subject: claims.Subject, SessionID: claims.SessionID, Role: claims.Role}, nil
}

// Revoke signs out sessionID so every token bound to it stops verifying. It
// is a no-op without a revocation list.
func (t *TokenIssuer) Revoke(ctx context.Context, sessionID string) error {
	return t.revoked.Revoke(ctx, sessionID, t.ttl)
}

var _ rbac.TokenVerifier = (*TokenIssuer)(nil)
