package models

import (
	"time"

	"github.com/sakya-app/sakya/internal/crypto"
)

// StoredUpdate is one persisted encrypted document update. The envelope is
// opaque to the server; (ProjectID, DeviceID, Sequence) is the idempotency
// key; a duplicate insert is silently ignored.
type StoredUpdate struct {
	// ID is the server-assigned row id.
	ID int64 `json:"-"`

	// ProjectID identifies the project whose document this update belongs to.
	ProjectID string `json:"project_id"`

	// DeviceID is the originating device.
	DeviceID string `json:"device_id"`

	// Sequence is the device-local monotonically increasing update counter.
	Sequence int64 `json:"sequence"`

	// Envelope is the encrypted update payload.
	Envelope crypto.Envelope `json:"envelope"`

	// CreatedAt is when the relay persisted the update.
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the name of the database table associated with the
// StoredUpdate model.
func (u StoredUpdate) TableName() string {
	return "encrypted_updates"
}

// StoredSnapshot is one persisted encrypted document snapshot. SnapshotID
// is unique; the most recently inserted snapshot for a project wins as
// "latest".
type StoredSnapshot struct {
	// ID is the server-assigned row id. Latest-snapshot resolution orders
	// by this column (insertion order), not by timestamp.
	ID int64 `json:"-"`

	// ProjectID identifies the project the snapshot captures.
	ProjectID string `json:"project_id"`

	// SnapshotID is the client-assigned unique snapshot identifier.
	SnapshotID string `json:"snapshot_id"`

	// Envelope is the encrypted snapshot payload.
	Envelope crypto.Envelope `json:"envelope"`

	// CreatedAt is when the relay persisted the snapshot.
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the name of the database table associated with the
// StoredSnapshot model.
func (s StoredSnapshot) TableName() string {
	return "encrypted_snapshots"
}
