package models

import "time"

// Device represents one device install registered under an account. The
// Ed25519 public key is the device's long-lived identity; the matching
// private key never reaches the server.
type Device struct {
	// ID is the device's unique identifier (UUID), generated on the device
	// at install time.
	ID string `json:"id"`

	// AccountID is the owning account. A device belongs to exactly one
	// account.
	AccountID string `json:"account_id"`

	// Name is the user-facing device label ("Kenji's laptop").
	Name string `json:"name"`

	// PublicKey is the device's Ed25519 public key.
	PublicKey []byte `json:"public_key"`

	// CreatedAt is when the device was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastSeen is the last time the device authenticated against the relay.
	LastSeen time.Time `json:"last_seen"`
}

// TableName returns the name of the database table associated with the
// Device model.
func (d Device) TableName() string {
	return "devices"
}
