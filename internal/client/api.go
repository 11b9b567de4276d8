// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

// Package client implements the device-side sync engine: the identity API
// client, per-project encryption state, and the relay connection with
// automatic reconnect.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/sakya-app/sakya/internal/config"
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/models"
)

// IdentityAPI is the REST client for the relay server's identity routes.
type IdentityAPI struct {
	client *resty.Client
	logger *logger.Logger
}

// NewIdentityAPI constructs an identity client against cfg.ServerURL.
func NewIdentityAPI(cfg *config.ClientConfig, logger *logger.Logger) *IdentityAPI {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.ServerURL, "/")).
		SetTimeout(cfg.RequestTimeout)

	return &IdentityAPI{
		client: client,
		logger: logger,
	}
}

type magicLinkRequest struct {
	Email string `json:"email"`
}

type magicLinkResponse struct {
	Token string `json:"token"`
}

type verifyRequest struct {
	Token  string        `json:"token"`
	Device models.Device `json:"device"`
}

type verifyResponse struct {
	Account models.Account `json:"account"`
	Device  models.Device  `json:"device"`
}

// RequestMagicLink asks the server to mint a login token for email. In a
// hosted deployment the token reaches the user by mail; against a
// self-hosted relay it comes straight back in the response.
func (a *IdentityAPI) RequestMagicLink(ctx context.Context, email string) (string, error) {
	var result magicLinkResponse

	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(magicLinkRequest{Email: email}).
		SetResult(&result).
		Post("/api/auth/magic-link")
	if err != nil {
		return "", fmt.Errorf("magic link request failed: %w", err)
	}
	if err := mapHTTPError(resp); err != nil {
		return "", err
	}

	return result.Token, nil
}

// VerifyMagicLink redeems rawToken for the given device and returns the
// created/resolved account together with the session token from the
// Authorization response header.
func (a *IdentityAPI) VerifyMagicLink(ctx context.Context, rawToken string, device models.Device) (models.Account, string, error) {
	var result verifyResponse

	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(verifyRequest{Token: rawToken, Device: device}).
		SetResult(&result).
		Post("/api/auth/verify")
	if err != nil {
		return models.Account{}, "", fmt.Errorf("magic link verification failed: %w", err)
	}
	if err := mapHTTPError(resp); err != nil {
		return models.Account{}, "", err
	}

	session := strings.TrimPrefix(resp.Header().Get("Authorization"), "Bearer ")
	if session == "" {
		return models.Account{}, "", fmt.Errorf("%w: no session token in response", ErrInternalServerError)
	}

	return result.Account, session, nil
}

// ListDevices returns all devices of the session's account.
func (a *IdentityAPI) ListDevices(ctx context.Context, sessionToken string) ([]models.Device, error) {
	var devices []models.Device

	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(sessionToken).
		SetResult(&devices).
		Get("/api/devices")
	if err != nil {
		return nil, fmt.Errorf("device listing failed: %w", err)
	}
	if err := mapHTTPError(resp); err != nil {
		return nil, err
	}

	return devices, nil
}

// RegisterDevice attaches a device to the session's account. It is the
// self-registration step of a provisioned device, which obtained its
// session through pairing rather than a magic link.
func (a *IdentityAPI) RegisterDevice(ctx context.Context, sessionToken string, device models.Device) (models.Device, error) {
	var registered models.Device

	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(sessionToken).
		SetBody(device).
		SetResult(&registered).
		Post("/api/devices")
	if err != nil {
		return models.Device{}, fmt.Errorf("device registration failed: %w", err)
	}
	if err := mapHTTPError(resp); err != nil {
		return models.Device{}, err
	}

	return registered, nil
}

// RemoveDevice revokes one device of the session's account.
func (a *IdentityAPI) RemoveDevice(ctx context.Context, sessionToken, deviceID string) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(sessionToken).
		Delete("/api/devices/" + deviceID)
	if err != nil {
		return fmt.Errorf("device removal failed: %w", err)
	}
	return mapHTTPError(resp)
}

func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}

	switch resp.StatusCode() {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, body)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, body)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, body)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, body)
	case http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", ErrInternalServerError, body)
	default:
		return fmt.Errorf("http %d: %s", resp.StatusCode(), body)
	}
}
