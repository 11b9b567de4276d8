// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

// Package models defines the persistence and transfer entities shared by
// the identity layer, the relay, and the sync client.
package models

import "time"

// Account represents one user account, identified by a unique email. An
// account may own many devices; devices are deleted independently of the
// account.
type Account struct {
	// ID is the account's unique identifier (UUID).
	ID string `json:"id"`

	// Email is the unique address the account was created with.
	Email string `json:"email"`

	// CreatedAt is when the account was first verified into existence.
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the name of the database table associated with the
// Account model.
func (a Account) TableName() string {
	return "accounts"
}
