package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakya-app/sakya/internal/config"
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/store"
	"github.com/sakya-app/sakya/internal/token"
	"github.com/sakya-app/sakya/models"
)

// In-memory repositories backing the identity service tests.

type memAccounts struct {
	byEmail map[string]models.Account
}

func (m *memAccounts) CreateAccount(_ context.Context, account models.Account) (models.Account, error) {
	if _, ok := m.byEmail[account.Email]; ok {
		return models.Account{}, store.ErrEmailAlreadyExists
	}
	m.byEmail[account.Email] = account
	return account, nil
}

func (m *memAccounts) FindAccountByEmail(_ context.Context, email string) (models.Account, error) {
	account, ok := m.byEmail[email]
	if !ok {
		return models.Account{}, store.ErrAccountNotFound
	}
	return account, nil
}

type memDevices struct {
	byID map[string]models.Device
}

func (m *memDevices) RegisterDevice(_ context.Context, device models.Device) (models.Device, error) {
	m.byID[device.ID] = device
	return device, nil
}

func (m *memDevices) ListDevices(_ context.Context, accountID string) ([]models.Device, error) {
	var out []models.Device
	for _, d := range m.byID {
		if d.AccountID == accountID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDevices) RemoveDevice(_ context.Context, accountID, deviceID string) error {
	d, ok := m.byID[deviceID]
	if !ok || d.AccountID != accountID {
		return store.ErrDeviceNotFound
	}
	delete(m.byID, deviceID)
	return nil
}

func (m *memDevices) UpdateLastSeen(_ context.Context, accountID, deviceID string, seenAt time.Time) error {
	d, ok := m.byID[deviceID]
	if !ok || d.AccountID != accountID {
		return store.ErrDeviceNotFound
	}
	d.LastSeen = seenAt
	m.byID[deviceID] = d
	return nil
}

type memMagicLinks struct {
	byHash map[string]models.MagicLink
}

func (m *memMagicLinks) CreateMagicLink(_ context.Context, link models.MagicLink) error {
	m.byHash[link.TokenHash] = link
	return nil
}

func (m *memMagicLinks) CountRecent(_ context.Context, email string, since time.Time) (int, error) {
	count := 0
	for _, l := range m.byHash {
		if l.Email == email && !l.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memMagicLinks) FindByTokenHash(_ context.Context, tokenHash string) (models.MagicLink, error) {
	link, ok := m.byHash[tokenHash]
	if !ok {
		return models.MagicLink{}, store.ErrMagicLinkNotFound
	}
	return link, nil
}

func (m *memMagicLinks) MarkUsed(_ context.Context, id string) error {
	for hash, l := range m.byHash {
		if l.ID == id && !l.Used {
			l.Used = true
			m.byHash[hash] = l
			return nil
		}
	}
	return store.ErrMagicLinkNotFound
}

func newTestIdentityService(t *testing.T) (*identityService, *memMagicLinks) {
	t.Helper()

	jwt, err := token.NewJWTService("test-sign-key", "sakya", time.Hour)
	if err != nil {
		t.Fatalf("failed to build jwt service: %v", err)
	}

	links := &memMagicLinks{byHash: map[string]models.MagicLink{}}
	repos := &store.Repositories{
		AccountRepository:   &memAccounts{byEmail: map[string]models.Account{}},
		DeviceRepository:    &memDevices{byID: map[string]models.Device{}},
		MagicLinkRepository: links,
	}

	cfg := config.Identity{
		MagicLinkTTL:    15 * time.Minute,
		RateLimitWindow: time.Hour,
		RateLimitMax:    3,
	}

	svc := NewIdentityService(repos, jwt, cfg, logger.Nop()).(*identityService)
	return svc, links
}

func testDevice(id string) models.Device {
	return models.Device{ID: id, Name: "laptop", PublicKey: []byte{1, 2, 3}}
}

func TestRequestMagicLink_StoresHashOnly(t *testing.T) {
	svc, links := newTestIdentityService(t)

	raw, err := svc.RequestMagicLink(context.Background(), "Kenji@Example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw == "" {
		t.Fatal("expected a raw token")
	}

	link, ok := links.byHash[hashToken(raw)]
	if !ok {
		t.Fatal("expected the token hash to be persisted")
	}
	if link.Email != "kenji@example.com" {
		t.Errorf("expected normalised email, got %s", link.Email)
	}
	if link.TokenHash == raw {
		t.Error("raw token must never be stored")
	}
}

func TestRequestMagicLink_InvalidEmail(t *testing.T) {
	svc, _ := newTestIdentityService(t)

	for _, email := range []string{"", "   ", "not-an-email"} {
		if _, err := svc.RequestMagicLink(context.Background(), email); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("email %q: expected ErrInvalidEmail, got %v", email, err)
		}
	}
}

func TestRequestMagicLink_RateLimited(t *testing.T) {
	svc, _ := newTestIdentityService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.RequestMagicLink(ctx, "kenji@example.com"); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}

	if _, err := svc.RequestMagicLink(ctx, "kenji@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on fourth request, got %v", err)
	}

	// A different address still has full budget.
	if _, err := svc.RequestMagicLink(ctx, "other@example.com"); err != nil {
		t.Fatalf("unrelated email should not be limited: %v", err)
	}
}

func TestVerifyMagicLink_CreatesAccountAndSession(t *testing.T) {
	svc, _ := newTestIdentityService(t)
	ctx := context.Background()

	raw, err := svc.RequestMagicLink(ctx, "kenji@example.com")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	account, session, err := svc.VerifyMagicLink(ctx, raw, testDevice("dev-1"))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if account.Email != "kenji@example.com" {
		t.Errorf("unexpected account email: %s", account.Email)
	}
	if session.AccountID() != account.ID {
		t.Errorf("session bound to %s, want %s", session.AccountID(), account.ID)
	}
	if session.Claims.DeviceID != "dev-1" {
		t.Errorf("session bound to device %s, want dev-1", session.Claims.DeviceID)
	}

	devices, err := svc.ListDevices(ctx, account.ID)
	if err != nil || len(devices) != 1 {
		t.Fatalf("expected 1 registered device, got %d (err=%v)", len(devices), err)
	}
}

func TestVerifyMagicLink_SecondLoginReusesAccount(t *testing.T) {
	svc, _ := newTestIdentityService(t)
	ctx := context.Background()

	raw1, _ := svc.RequestMagicLink(ctx, "kenji@example.com")
	first, _, err := svc.VerifyMagicLink(ctx, raw1, testDevice("dev-1"))
	if err != nil {
		t.Fatalf("first verify failed: %v", err)
	}

	raw2, _ := svc.RequestMagicLink(ctx, "kenji@example.com")
	second, _, err := svc.VerifyMagicLink(ctx, raw2, testDevice("dev-2"))
	if err != nil {
		t.Fatalf("second verify failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected the same account, got %s and %s", first.ID, second.ID)
	}
}

func TestVerifyMagicLink_ConsumedOnce(t *testing.T) {
	svc, _ := newTestIdentityService(t)
	ctx := context.Background()

	raw, _ := svc.RequestMagicLink(ctx, "kenji@example.com")
	if _, _, err := svc.VerifyMagicLink(ctx, raw, testDevice("dev-1")); err != nil {
		t.Fatalf("first verify failed: %v", err)
	}

	if _, _, err := svc.VerifyMagicLink(ctx, raw, testDevice("dev-2")); !errors.Is(err, ErrInvalidMagicLink) {
		t.Fatalf("expected ErrInvalidMagicLink on replay, got %v", err)
	}
}

func TestVerifyMagicLink_Expired(t *testing.T) {
	svc, _ := newTestIdentityService(t)
	ctx := context.Background()

	raw, _ := svc.RequestMagicLink(ctx, "kenji@example.com")

	svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	if _, _, err := svc.VerifyMagicLink(ctx, raw, testDevice("dev-1")); !errors.Is(err, ErrMagicLinkExpired) {
		t.Fatalf("expected ErrMagicLinkExpired, got %v", err)
	}
}

func TestVerifyMagicLink_UnknownToken(t *testing.T) {
	svc, _ := newTestIdentityService(t)

	if _, _, err := svc.VerifyMagicLink(context.Background(), "bogus", testDevice("dev-1")); !errors.Is(err, ErrInvalidMagicLink) {
		t.Fatalf("expected ErrInvalidMagicLink, got %v", err)
	}
}

func TestRemoveDevice_OtherAccountInvisible(t *testing.T) {
	svc, _ := newTestIdentityService(t)
	ctx := context.Background()

	raw, _ := svc.RequestMagicLink(ctx, "kenji@example.com")
	account, _, err := svc.VerifyMagicLink(ctx, raw, testDevice("dev-1"))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if err := svc.RemoveDevice(ctx, "someone-else", "dev-1"); !errors.Is(err, store.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound for foreign account, got %v", err)
	}
	if err := svc.RemoveDevice(ctx, account.ID, "dev-1"); err != nil {
		t.Fatalf("owner removal failed: %v", err)
	}
}

func TestValidateSession_RoundTrip(t *testing.T) {
	svc, _ := newTestIdentityService(t)
	ctx := context.Background()

	raw, _ := svc.RequestMagicLink(ctx, "kenji@example.com")
	account, session, err := svc.VerifyMagicLink(ctx, raw, testDevice("dev-1"))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	validated, err := svc.ValidateSession(ctx, session.String())
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if validated.AccountID() != account.ID || validated.Claims.DeviceID != "dev-1" {
		t.Errorf("claims did not survive the round trip: %+v", validated.Claims)
	}

	if _, err := svc.ValidateSession(ctx, "not-a-token"); !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
