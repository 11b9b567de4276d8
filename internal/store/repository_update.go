// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakya-app/sakya/internal/crypto"
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/models"
)

// updateRepository is the SQL-backed implementation of [UpdateRepository],
// working against the "encrypted_updates" table of the sync store.
// Envelopes are stored as JSON text; the server never parses them beyond
// that framing.
type updateRepository struct {
	logger *logger.Logger
	db     *DB
}

// NewUpdateRepository constructs an [UpdateRepository] backed by the
// provided sync database.
func NewUpdateRepository(db *DB, logger *logger.Logger) UpdateRepository {
	logger.Debug().Msg("creating update repository")
	return &updateRepository{
		db:     db,
		logger: logger,
	}
}

// StoreUpdate persists one encrypted update. The table carries a unique
// index on (project_id, device_id, sequence); a replayed insert hits
// ON CONFLICT DO NOTHING and the first stored payload wins.
func (r *updateRepository) StoreUpdate(ctx context.Context, update models.StoredUpdate) error {
	log := logger.FromContext(ctx)

	envelope, err := marshalEnvelope(update.Envelope)
	if err != nil {
		return err
	}

	if update.CreatedAt.IsZero() {
		update.CreatedAt = time.Now().UTC()
	}

	query := r.db.Builder().
		Insert(update.TableName()).
		Columns("project_id", "device_id", "sequence", "envelope", "created_at").
		Values(update.ProjectID, update.DeviceID, update.Sequence, envelope, update.CreatedAt).
		Suffix("ON CONFLICT (project_id, device_id, sequence) DO NOTHING")

	if _, err := query.ExecContext(ctx); err != nil {
		log.Err(err).Str("func", "*updateRepository.StoreUpdate").Msg("update insert failed")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

// GetUpdatesSince returns up to limit updates of the project with sequence
// strictly greater than sinceSequence, ascending by sequence. Pass limit 0
// for no cap.
func (r *updateRepository) GetUpdatesSince(ctx context.Context, projectID string, sinceSequence int64, limit uint64) ([]models.StoredUpdate, error) {
	log := logger.FromContext(ctx)

	query := r.db.Builder().
		Select("id", "project_id", "device_id", "sequence", "envelope", "created_at").
		From(models.StoredUpdate{}.TableName()).
		Where("project_id = ?", projectID).
		Where("sequence > ?", sinceSequence).
		OrderBy("sequence ASC", "id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	rows, err := query.QueryContext(ctx)
	if err != nil {
		log.Err(err).Str("func", "*updateRepository.GetUpdatesSince").Msg("update query failed")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var updates []models.StoredUpdate
	for rows.Next() {
		var (
			u       models.StoredUpdate
			payload []byte
		)
		if err := rows.Scan(&u.ID, &u.ProjectID, &u.DeviceID, &u.Sequence, &payload, &u.CreatedAt); err != nil {
			log.Err(err).Str("func", "*updateRepository.GetUpdatesSince").Msg("update scan failed")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		if u.Envelope, err = unmarshalEnvelope(payload); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return updates, nil
}

// LatestSequences returns the highest persisted sequence per device for the
// project. Devices that never pushed an update are absent from the map.
func (r *updateRepository) LatestSequences(ctx context.Context, projectID string) (map[string]int64, error) {
	log := logger.FromContext(ctx)

	query := r.db.Builder().
		Select("device_id", "MAX(sequence)").
		From(models.StoredUpdate{}.TableName()).
		Where("project_id = ?", projectID).
		GroupBy("device_id")

	rows, err := query.QueryContext(ctx)
	if err != nil {
		log.Err(err).Str("func", "*updateRepository.LatestSequences").Msg("sequence query failed")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	sequences := make(map[string]int64)
	for rows.Next() {
		var (
			deviceID string
			sequence int64
		)
		if err := rows.Scan(&deviceID, &sequence); err != nil {
			log.Err(err).Str("func", "*updateRepository.LatestSequences").Msg("sequence scan failed")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		sequences[deviceID] = sequence
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return sequences, nil
}

// marshalEnvelope serialises an envelope for storage as JSON text.
func marshalEnvelope(env crypto.Envelope) ([]byte, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return payload, nil
}

// unmarshalEnvelope restores an envelope from its stored JSON form.
func unmarshalEnvelope(payload []byte) (crypto.Envelope, error) {
	var env crypto.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return crypto.Envelope{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return env, nil
}
