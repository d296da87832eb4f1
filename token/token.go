// Package token issues and verifies the signed session credentials: short
// lived access tokens, long lived refresh tokens and the reduced-privilege
// token handed out mid-login when a second factor is still outstanding.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "typ" claim. A token of one type never verifies
// as another: the pending token in particular is only honored by the 2FA
// login endpoint, not by the general bearer path.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
	TypePending = "2fa_pending"
)

// pendingTTL bounds how long a half-finished login may wait for its TOTP code.
const pendingTTL = 5 * time.Minute

var (
	// ErrExpired is returned for structurally valid tokens past their expiry.
	ErrExpired = errors.New("token expired")
	// ErrInvalid covers every other verification failure: bad signature,
	// malformed token, wrong token type.
	ErrInvalid = errors.New("token invalid")
)

// Claims is the JWT claim set for all three token types.
type Claims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID `json:"user_id"`
	TokenType string    `json:"typ"`
}

// Service signs and verifies tokens. Access and refresh tokens use separate
// secrets so compromise of one cannot forge the other.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewService builds a token service from the two signing secrets and TTLs.
func NewService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (s *Service) sign(userID uuid.UUID, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		TokenType: tokenType,
	})
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", tokenType, err)
	}
	return signed, nil
}

// IssueAccess creates a short-lived access token for userID.
func (s *Service) IssueAccess(userID uuid.UUID) (string, error) {
	return s.sign(userID, TypeAccess, s.accessSecret, s.accessTTL)
}

// IssueRefresh creates a long-lived refresh token for userID.
func (s *Service) IssueRefresh(userID uuid.UUID) (string, error) {
	return s.sign(userID, TypeRefresh, s.refreshSecret, s.refreshTTL)
}

// IssuePair creates a fresh access+refresh pair.
func (s *Service) IssuePair(userID uuid.UUID) (access, refresh string, err error) {
	if access, err = s.IssueAccess(userID); err != nil {
		return "", "", err
	}
	if refresh, err = s.IssueRefresh(userID); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// IssuePending creates the step-up token returned when a password check
// succeeded but a TOTP code is still required. It authenticates the holder
// for that single purpose only.
func (s *Service) IssuePending(userID uuid.UUID) (string, error) {
	return s.sign(userID, TypePending, s.accessSecret, pendingTTL)
}

func (s *Service) parse(tokenString, wantType string, secret []byte) (uuid.UUID, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrExpired
		}
		return uuid.Nil, ErrInvalid
	}
	if !t.Valid || claims.TokenType != wantType || claims.UserID == uuid.Nil {
		return uuid.Nil, ErrInvalid
	}
	return claims.UserID, nil
}

// ParseAccess verifies an access token and returns the subject user ID.
func (s *Service) ParseAccess(tokenString string) (uuid.UUID, error) {
	return s.parse(tokenString, TypeAccess, s.accessSecret)
}

// ParseRefresh verifies a refresh token and returns the subject user ID.
func (s *Service) ParseRefresh(tokenString string) (uuid.UUID, error) {
	return s.parse(tokenString, TypeRefresh, s.refreshSecret)
}

// ParsePending verifies a two-factor step-up token.
func (s *Service) ParsePending(tokenString string) (uuid.UUID, error) {
	return s.parse(tokenString, TypePending, s.accessSecret)
}
