// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

// Package service implements the server-side business logic between the
// HTTP/WebSocket handlers and the repositories.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakya-app/sakya/internal/config"
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/store"
	"github.com/sakya-app/sakya/internal/token"
	"github.com/sakya-app/sakya/models"
)

// rawTokenBytes is the entropy of a magic link token before encoding.
const rawTokenBytes = 32

// identityService is the concrete implementation of [IdentityService].
//
// Magic link tokens leave this layer exactly once, as the return value of
// RequestMagicLink; only their SHA-256 hashes are persisted, so the
// identity store never holds a redeemable credential.
type identityService struct {
	accounts   store.AccountRepository
	devices    store.DeviceRepository
	magicLinks store.MagicLinkRepository
	jwt        *token.JWTService

	// linkTTL bounds how long a magic link stays redeemable.
	linkTTL time.Duration

	// rateWindow and rateMax bound magic link requests per email.
	rateWindow time.Duration
	rateMax    int

	logger *logger.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewIdentityService constructs an [IdentityService] wired to the identity
// repositories and populated with token policy from cfg.
//
// The returned service is safe for concurrent use; all state is read-only
// after construction.
func NewIdentityService(repos *store.Repositories, jwt *token.JWTService, cfg config.Identity, logger *logger.Logger) IdentityService {
	return &identityService{
		accounts:   repos.AccountRepository,
		devices:    repos.DeviceRepository,
		magicLinks: repos.MagicLinkRepository,
		jwt:        jwt,
		linkTTL:    cfg.MagicLinkTTL,
		rateWindow: cfg.RateLimitWindow,
		rateMax:    cfg.RateLimitMax,
		logger:     logger,
		now:        time.Now,
	}
}

// RequestMagicLink mints a fresh login token for email and stores its hash
// with a TTL. The raw token is returned for out-of-band delivery.
//
// Rate limiting counts every link requested in the trailing window,
// consumed or not, and rejects the request with [ErrRateLimited] once the
// count reaches the configured maximum.
func (s *identityService) RequestMagicLink(ctx context.Context, email string) (string, error) {
	log := logger.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", ErrInvalidEmail
	}

	now := s.now().UTC()

	recent, err := s.magicLinks.CountRecent(ctx, email, now.Add(-s.rateWindow))
	if err != nil {
		log.Err(err).Str("email", email).Msg("magic link rate check failed")
		return "", fmt.Errorf("magic link rate check failed: %w", err)
	}
	if recent >= s.rateMax {
		log.Warn().Str("email", email).Int("recent", recent).Msg("magic link rate limit hit")
		return "", ErrRateLimited
	}

	raw := make([]byte, rawTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("error generating magic link token: %w", err)
	}
	rawToken := base64.RawURLEncoding.EncodeToString(raw)

	link := models.MagicLink{
		ID:        uuid.NewString(),
		Email:     email,
		TokenHash: hashToken(rawToken),
		ExpiresAt: now.Add(s.linkTTL),
		CreatedAt: now,
	}
	if err := s.magicLinks.CreateMagicLink(ctx, link); err != nil {
		log.Err(err).Str("email", email).Msg("magic link persistence failed")
		return "", fmt.Errorf("magic link persistence failed: %w", err)
	}

	return rawToken, nil
}

// VerifyMagicLink redeems rawToken: it consumes the matching link, creates
// the account on first login, registers the presenting device, and issues
// a session token bound to (account, device).
//
// Consumption happens through a conditional update, so concurrent
// redemptions of the same token cannot both succeed. An expired link is
// reported as [ErrMagicLinkExpired]; an unknown or used one as
// [ErrInvalidMagicLink].
func (s *identityService) VerifyMagicLink(ctx context.Context, rawToken string, device models.Device) (models.Account, models.SessionToken, error) {
	log := logger.FromContext(ctx)

	if err := validateDevice(device); err != nil {
		return models.Account{}, models.SessionToken{}, err
	}

	link, err := s.magicLinks.FindByTokenHash(ctx, hashToken(rawToken))
	if err != nil {
		if errors.Is(err, store.ErrMagicLinkNotFound) {
			return models.Account{}, models.SessionToken{}, ErrInvalidMagicLink
		}
		log.Err(err).Msg("magic link lookup failed")
		return models.Account{}, models.SessionToken{}, fmt.Errorf("magic link lookup failed: %w", err)
	}
	if link.Used {
		return models.Account{}, models.SessionToken{}, ErrInvalidMagicLink
	}
	if s.now().After(link.ExpiresAt) {
		return models.Account{}, models.SessionToken{}, ErrMagicLinkExpired
	}

	if err := s.magicLinks.MarkUsed(ctx, link.ID); err != nil {
		if errors.Is(err, store.ErrMagicLinkNotFound) {
			// Lost the race against a concurrent redemption.
			return models.Account{}, models.SessionToken{}, ErrInvalidMagicLink
		}
		log.Err(err).Msg("magic link consume failed")
		return models.Account{}, models.SessionToken{}, fmt.Errorf("magic link consume failed: %w", err)
	}

	account, err := s.findOrCreateAccount(ctx, link.Email)
	if err != nil {
		return models.Account{}, models.SessionToken{}, err
	}

	device.AccountID = account.ID
	if _, err := s.devices.RegisterDevice(ctx, device); err != nil {
		log.Err(err).Str("device_id", device.ID).Msg("device registration failed")
		return models.Account{}, models.SessionToken{}, fmt.Errorf("device registration failed: %w", err)
	}

	session, err := s.jwt.GenerateToken(account.ID, device.ID)
	if err != nil {
		return models.Account{}, models.SessionToken{}, fmt.Errorf("session token issue failed: %w", err)
	}

	log.Info().Str("account_id", account.ID).Str("device_id", device.ID).Msg("magic link redeemed")
	return account, session, nil
}

// RegisterDevice adds a provisioned device to an existing account.
func (s *identityService) RegisterDevice(ctx context.Context, accountID string, device models.Device) (models.Device, error) {
	if err := validateDevice(device); err != nil {
		return models.Device{}, err
	}

	device.AccountID = accountID
	registered, err := s.devices.RegisterDevice(ctx, device)
	if err != nil {
		return models.Device{}, fmt.Errorf("device registration failed: %w", err)
	}
	return registered, nil
}

// ListDevices returns every device of the account.
func (s *identityService) ListDevices(ctx context.Context, accountID string) ([]models.Device, error) {
	devices, err := s.devices.ListDevices(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("device listing failed: %w", err)
	}
	return devices, nil
}

// RemoveDevice revokes one device's access. Passes through
// [store.ErrDeviceNotFound] unchanged; an unowned device is reported
// identically to a missing one.
func (s *identityService) RemoveDevice(ctx context.Context, accountID, deviceID string) error {
	return s.devices.RemoveDevice(ctx, accountID, deviceID)
}

// TouchDevice stamps the device's last_seen.
func (s *identityService) TouchDevice(ctx context.Context, accountID, deviceID string) error {
	return s.devices.UpdateLastSeen(ctx, accountID, deviceID, s.now().UTC())
}

// ValidateSession parses and verifies a session token. Failures surface as
// [token.ErrTokenExpired] or [token.ErrInvalidToken].
func (s *identityService) ValidateSession(_ context.Context, signedToken string) (models.SessionToken, error) {
	return s.jwt.ValidateToken(signedToken)
}

// findOrCreateAccount resolves the account owning email, creating it on
// first login. A concurrent creation losing the unique-email race falls
// back to a second lookup.
func (s *identityService) findOrCreateAccount(ctx context.Context, email string) (models.Account, error) {
	log := logger.FromContext(ctx)

	account, err := s.accounts.FindAccountByEmail(ctx, email)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrAccountNotFound) {
		log.Err(err).Str("email", email).Msg("account lookup failed")
		return models.Account{}, fmt.Errorf("account lookup failed: %w", err)
	}

	account, err = s.accounts.CreateAccount(ctx, models.Account{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: s.now().UTC(),
	})
	if errors.Is(err, store.ErrEmailAlreadyExists) {
		return s.accounts.FindAccountByEmail(ctx, email)
	}
	if err != nil {
		log.Err(err).Str("email", email).Msg("account creation failed")
		return models.Account{}, fmt.Errorf("account creation failed: %w", err)
	}

	log.Info().Str("account_id", account.ID).Msg("account created")
	return account, nil
}

func validateDevice(device models.Device) error {
	if device.ID == "" || device.Name == "" || len(device.PublicKey) == 0 {
		return ErrInvalidDeviceData
	}
	return nil
}

// hashToken returns the hex-encoded SHA-256 hash of a raw magic link
// token, the only form the identity store ever sees.
func hashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
