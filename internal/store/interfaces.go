package store

import (
	"context"
	"time"

	"github.com/sakya-app/sakya/models"
)

// AccountRepository persists account rows in the identity store.
type AccountRepository interface {
	// CreateAccount inserts a new account and returns it with
	// server-assigned fields populated. Fails with [ErrEmailAlreadyExists]
	// on a duplicate email.
	CreateAccount(ctx context.Context, account models.Account) (models.Account, error)

	// FindAccountByEmail returns the account owning email, or
	// [ErrAccountNotFound].
	FindAccountByEmail(ctx context.Context, email string) (models.Account, error)
}

// DeviceRepository persists device rows scoped to an account. Every method
// that targets a single device reports a row owned by a different account
// as [ErrDeviceNotFound], identically to a nonexistent device.
type DeviceRepository interface {
	// RegisterDevice inserts a device row under its account.
	RegisterDevice(ctx context.Context, device models.Device) (models.Device, error)

	// ListDevices returns all devices of an account.
	ListDevices(ctx context.Context, accountID string) ([]models.Device, error)

	// RemoveDevice deletes one device of the account.
	RemoveDevice(ctx context.Context, accountID, deviceID string) error

	// UpdateLastSeen stamps the device's last_seen column.
	UpdateLastSeen(ctx context.Context, accountID, deviceID string, seenAt time.Time) error
}

// MagicLinkRepository persists single-use login tokens.
type MagicLinkRepository interface {
	// CreateMagicLink inserts a fresh magic link row.
	CreateMagicLink(ctx context.Context, link models.MagicLink) error

	// CountRecent counts links requested for email since the given moment.
	// Rate limiting builds on this count.
	CountRecent(ctx context.Context, email string, since time.Time) (int, error)

	// FindByTokenHash returns the link with the given token hash, or
	// [ErrMagicLinkNotFound].
	FindByTokenHash(ctx context.Context, tokenHash string) (models.MagicLink, error)

	// MarkUsed consumes the link. Fails with [ErrMagicLinkNotFound] when
	// the link does not exist or is already used, so a token verifies at
	// most once even under concurrent redemption.
	MarkUsed(ctx context.Context, id string) error
}

// UpdateRepository persists opaque encrypted document updates.
type UpdateRepository interface {
	// StoreUpdate inserts one update. A duplicate
	// (project_id, device_id, sequence) is silently ignored; the first
	// stored payload wins.
	StoreUpdate(ctx context.Context, update models.StoredUpdate) error

	// GetUpdatesSince returns up to limit updates of the project with
	// sequence > sinceSequence, strictly ascending by sequence.
	GetUpdatesSince(ctx context.Context, projectID string, sinceSequence int64, limit uint64) ([]models.StoredUpdate, error)

	// LatestSequences returns the highest persisted sequence per device for
	// the project. Used to build the server version vector.
	LatestSequences(ctx context.Context, projectID string) (map[string]int64, error)
}

// SnapshotRepository persists opaque encrypted document snapshots.
type SnapshotRepository interface {
	// StoreSnapshot upserts a snapshot by snapshot_id.
	StoreSnapshot(ctx context.Context, snapshot models.StoredSnapshot) error

	// GetLatestSnapshot returns the most recently inserted snapshot of the
	// project, or [ErrSnapshotNotFound].
	GetLatestSnapshot(ctx context.Context, projectID string) (models.StoredSnapshot, error)
}
