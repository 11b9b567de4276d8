package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/service"
	"github.com/sakya-app/sakya/internal/store"
	"github.com/sakya-app/sakya/internal/token"
	"github.com/sakya-app/sakya/models"
)

// scriptedIdentity is a hand-rolled IdentityService double driven by
// per-test fields.
type scriptedIdentity struct {
	requestErr error
	verifyErr  error

	devices   []models.Device
	removeErr error
}

func (s *scriptedIdentity) RequestMagicLink(_ context.Context, email string) (string, error) {
	if s.requestErr != nil {
		return "", s.requestErr
	}
	return "raw-token-for-" + email, nil
}

func (s *scriptedIdentity) VerifyMagicLink(_ context.Context, _ string, device models.Device) (models.Account, models.SessionToken, error) {
	if s.verifyErr != nil {
		return models.Account{}, models.SessionToken{}, s.verifyErr
	}
	account := models.Account{ID: "acc-1", Email: "kenji@example.com"}
	session := models.SessionToken{
		SignedString: "session-token",
		Claims: models.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: account.ID},
			DeviceID:         device.ID,
		},
	}
	return account, session, nil
}

func (s *scriptedIdentity) RegisterDevice(_ context.Context, accountID string, device models.Device) (models.Device, error) {
	device.AccountID = accountID
	return device, nil
}

func (s *scriptedIdentity) ListDevices(context.Context, string) ([]models.Device, error) {
	return s.devices, nil
}

func (s *scriptedIdentity) RemoveDevice(context.Context, string, string) error {
	return s.removeErr
}

func (s *scriptedIdentity) TouchDevice(context.Context, string, string) error {
	return nil
}

func (s *scriptedIdentity) ValidateSession(_ context.Context, signed string) (models.SessionToken, error) {
	if signed != "session-token" {
		return models.SessionToken{}, token.ErrInvalidToken
	}
	return models.SessionToken{
		SignedString: signed,
		Claims: models.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "acc-1"},
			DeviceID:         "dev-1",
		},
	}, nil
}

func newTestHandler(identity *scriptedIdentity) *Handler {
	services := &service.Services{IdentityService: identity}
	return NewHandler(services, nil, logger.Nop())
}

// testRouter mirrors Init without the websocket route, which needs a live
// relay.
func testRouter(h *Handler) http.Handler {
	router := h.Init()
	return router
}

func TestRequestMagicLink(t *testing.T) {
	h := newTestHandler(&scriptedIdentity{})
	router := testRouter(h)

	body := bytes.NewBufferString(`{"email":"kenji@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/magic-link", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp magicLinkResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("expected a token in the response, got %q (err=%v)", rec.Body.String(), err)
	}
}

func TestRequestMagicLink_RateLimited(t *testing.T) {
	h := newTestHandler(&scriptedIdentity{requestErr: service.ErrRateLimited})
	router := testRouter(h)

	body := bytes.NewBufferString(`{"email":"kenji@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/magic-link", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestVerifyMagicLink(t *testing.T) {
	h := newTestHandler(&scriptedIdentity{})
	router := testRouter(h)

	body := bytes.NewBufferString(`{"token":"raw","device":{"id":"dev-1","name":"laptop","public_key":"AQID"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Authorization"); got != "Bearer session-token" {
		t.Errorf("expected bearer session token header, got %q", got)
	}
	var resp verifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Account.ID != "acc-1" || resp.Device.AccountID != "acc-1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestVerifyMagicLink_Invalid(t *testing.T) {
	h := newTestHandler(&scriptedIdentity{verifyErr: service.ErrInvalidMagicLink})
	router := testRouter(h)

	body := bytes.NewBufferString(`{"token":"bogus","device":{"id":"dev-1","name":"laptop","public_key":"AQID"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListDevices_RequiresAuth(t *testing.T) {
	h := newTestHandler(&scriptedIdentity{})
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bad token, got %d", rec.Code)
	}
}

func TestListDevices(t *testing.T) {
	h := newTestHandler(&scriptedIdentity{devices: []models.Device{{ID: "dev-1", AccountID: "acc-1", Name: "laptop"}}})
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.Header.Set("Authorization", "Bearer session-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var devices []models.Device
	if err := json.Unmarshal(rec.Body.Bytes(), &devices); err != nil || len(devices) != 1 {
		t.Fatalf("expected 1 device, got %q (err=%v)", rec.Body.String(), err)
	}
}

func TestRemoveDevice_NotFound(t *testing.T) {
	h := newTestHandler(&scriptedIdentity{removeErr: store.ErrDeviceNotFound})
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodDelete, "/api/devices/dev-gone", nil)
	req.Header.Set("Authorization", "Bearer session-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRemoveDevice(t *testing.T) {
	h := newTestHandler(&scriptedIdentity{})
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodDelete, "/api/devices/dev-1", nil)
	req.Header.Set("Authorization", "Bearer session-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}
