// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/models"
)

// snapshotRepository is the SQL-backed implementation of
// [SnapshotRepository], working against the "encrypted_snapshots" table of
// the sync store.
type snapshotRepository struct {
	logger *logger.Logger
	db     *DB
}

// NewSnapshotRepository constructs a [SnapshotRepository] backed by the
// provided sync database.
func NewSnapshotRepository(db *DB, logger *logger.Logger) SnapshotRepository {
	logger.Debug().Msg("creating snapshot repository")
	return &snapshotRepository{
		db:     db,
		logger: logger,
	}
}

// StoreSnapshot persists one encrypted snapshot. A replayed snapshot_id
// replaces the stored envelope in place without changing insertion order,
// so retransmits cannot promote an old snapshot back to latest.
func (r *snapshotRepository) StoreSnapshot(ctx context.Context, snapshot models.StoredSnapshot) error {
	log := logger.FromContext(ctx)

	envelope, err := marshalEnvelope(snapshot.Envelope)
	if err != nil {
		return err
	}

	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	query := r.db.Builder().
		Insert(snapshot.TableName()).
		Columns("project_id", "snapshot_id", "envelope", "created_at").
		Values(snapshot.ProjectID, snapshot.SnapshotID, envelope, snapshot.CreatedAt).
		Suffix("ON CONFLICT (snapshot_id) DO UPDATE SET envelope = EXCLUDED.envelope")

	if _, err := query.ExecContext(ctx); err != nil {
		log.Err(err).Str("func", "*snapshotRepository.StoreSnapshot").Msg("snapshot insert failed")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

// GetLatestSnapshot returns the most recently inserted snapshot of the
// project, resolved by row id rather than timestamp, or
// [ErrSnapshotNotFound] when the project has none.
func (r *snapshotRepository) GetLatestSnapshot(ctx context.Context, projectID string) (models.StoredSnapshot, error) {
	log := logger.FromContext(ctx)

	query := r.db.Builder().
		Select("id", "project_id", "snapshot_id", "envelope", "created_at").
		From(models.StoredSnapshot{}.TableName()).
		Where("project_id = ?", projectID).
		OrderBy("id DESC").
		Limit(1)

	var (
		snapshot models.StoredSnapshot
		payload  []byte
	)
	err := query.QueryRowContext(ctx).
		Scan(&snapshot.ID, &snapshot.ProjectID, &snapshot.SnapshotID, &payload, &snapshot.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.StoredSnapshot{}, ErrSnapshotNotFound
	case err != nil:
		log.Err(err).Str("func", "*snapshotRepository.GetLatestSnapshot").Msg("snapshot lookup failed")
		return models.StoredSnapshot{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if snapshot.Envelope, err = unmarshalEnvelope(payload); err != nil {
		return models.StoredSnapshot{}, err
	}

	return snapshot, nil
}
