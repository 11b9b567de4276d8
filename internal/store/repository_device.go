// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/models"
)

// deviceRepository is the SQL-backed implementation of [DeviceRepository].
// Every single-device operation filters on account_id as well as the device
// id, so a device owned by another account behaves exactly like a missing
// one.
type deviceRepository struct {
	logger *logger.Logger
	db     *DB
}

// NewDeviceRepository constructs a [DeviceRepository] backed by the
// provided identity database.
func NewDeviceRepository(db *DB, logger *logger.Logger) DeviceRepository {
	logger.Debug().Msg("creating device repository")
	return &deviceRepository{
		db:     db,
		logger: logger,
	}
}

// RegisterDevice persists a new device row under its account.
func (r *deviceRepository) RegisterDevice(ctx context.Context, device models.Device) (models.Device, error) {
	log := logger.FromContext(ctx)

	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	if device.LastSeen.IsZero() {
		device.LastSeen = now
	}

	query := r.db.Builder().
		Insert(device.TableName()).
		Columns("id", "account_id", "name", "public_key", "created_at", "last_seen").
		Values(device.ID, device.AccountID, device.Name, device.PublicKey, device.CreatedAt, device.LastSeen)

	if _, err := query.ExecContext(ctx); err != nil {
		log.Err(err).Str("func", "*deviceRepository.RegisterDevice").Msg("device insert failed")
		return models.Device{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return device, nil
}

// ListDevices returns every device registered under the account, oldest
// first.
func (r *deviceRepository) ListDevices(ctx context.Context, accountID string) ([]models.Device, error) {
	log := logger.FromContext(ctx)

	query := r.db.Builder().
		Select("id", "account_id", "name", "public_key", "created_at", "last_seen").
		From(models.Device{}.TableName()).
		Where("account_id = ?", accountID).
		OrderBy("created_at ASC")

	rows, err := query.QueryContext(ctx)
	if err != nil {
		log.Err(err).Str("func", "*deviceRepository.ListDevices").Msg("device query failed")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(&d.ID, &d.AccountID, &d.Name, &d.PublicKey, &d.CreatedAt, &d.LastSeen); err != nil {
			log.Err(err).Str("func", "*deviceRepository.ListDevices").Msg("device scan failed")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return devices, nil
}

// RemoveDevice deletes one device of the account. Removing a device that
// does not exist, or that belongs to another account, fails with
// [ErrDeviceNotFound].
func (r *deviceRepository) RemoveDevice(ctx context.Context, accountID, deviceID string) error {
	log := logger.FromContext(ctx)

	query := r.db.Builder().
		Delete(models.Device{}.TableName()).
		Where("id = ?", deviceID).
		Where("account_id = ?", accountID)

	result, err := query.ExecContext(ctx)
	if err != nil {
		log.Err(err).Str("func", "*deviceRepository.RemoveDevice").Msg("device delete failed")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// UpdateLastSeen stamps the device's last_seen column. The same ownership
// scoping as [RemoveDevice] applies.
func (r *deviceRepository) UpdateLastSeen(ctx context.Context, accountID, deviceID string, seenAt time.Time) error {
	log := logger.FromContext(ctx)

	query := r.db.Builder().
		Update(models.Device{}.TableName()).
		Set("last_seen", seenAt.UTC()).
		Where("id = ?", deviceID).
		Where("account_id = ?", accountID)

	result, err := query.ExecContext(ctx)
	if err != nil {
		log.Err(err).Str("func", "*deviceRepository.UpdateLastSeen").Msg("last_seen update failed")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}
