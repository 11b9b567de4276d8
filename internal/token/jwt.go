// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

// Package token issues and validates the stateless HMAC-SHA256 session
// tokens that gate relay access.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakya-app/sakya/models"
)

// Sentinel errors returned by [JWTService.ValidateToken]. Expiry is the
// only failure cause distinguished from the rest; everything else
// (bad signature, malformed token, wrong issuer) collapses into
// [ErrInvalidToken] so a caller learns nothing about which part was wrong.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// JWTService issues and validates session tokens signed with a server-held
// symmetric secret.
type JWTService struct {
	signKey  []byte
	issuer   string
	duration time.Duration
}

// NewJWTService constructs a JWTService. duration is the token lifetime;
// pass 0 to use the 24-hour default.
func NewJWTService(signKey, issuer string, duration time.Duration) (*JWTService, error) {
	if signKey == "" {
		return nil, errors.New("empty token sign key")
	}
	if duration == 0 {
		duration = 24 * time.Hour
	}

	return &JWTService{
		signKey:  []byte(signKey),
		issuer:   issuer,
		duration: duration,
	}, nil
}

// GenerateToken issues a signed session token for (accountID, deviceID)
// with iat = now and exp = now + the configured lifetime.
func (s *JWTService) GenerateToken(accountID, deviceID string) (models.SessionToken, error) {
	if accountID == "" || deviceID == "" {
		return models.SessionToken{}, errors.New("invalid params for generating session token")
	}

	now := time.Now()
	claims := models.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
		},
		DeviceID: deviceID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return models.SessionToken{}, fmt.Errorf("error occurred during signing session token: %w", err)
	}

	return models.SessionToken{SignedString: signed, Claims: claims}, nil
}

// ValidateToken checks the signature, issuer, and expiry of tokenString and
// returns the parsed token. It fails with [ErrTokenExpired] past expiry and
// [ErrInvalidToken] on any other signature or format problem.
func (s *JWTService) ValidateToken(tokenString string) (models.SessionToken, error) {
	claims := &models.SessionClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.signKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.SessionToken{}, ErrTokenExpired
		}
		return models.SessionToken{}, ErrInvalidToken
	}

	if !parsed.Valid || claims.Subject == "" || claims.DeviceID == "" {
		return models.SessionToken{}, ErrInvalidToken
	}

	return models.SessionToken{SignedString: tokenString, Claims: *claims}, nil
}

// ParseBearerToken extracts the bearer token string from a raw
// "Authorization" header value of the form "Bearer <token>".
func ParseBearerToken(authorizationHeader string) (string, error) {
	parts := strings.Split(strings.TrimSpace(authorizationHeader), " ")
	if len(parts) != 2 || parts[1] == "" {
		return "", errors.New("invalid authorization header")
	}
	return parts[1], nil
}
