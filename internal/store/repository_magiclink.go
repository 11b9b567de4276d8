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

// magicLinkRepository is the SQL-backed implementation of
// [MagicLinkRepository]. Tokens never touch this layer; callers pass
// hex-encoded SHA-256 hashes.
type magicLinkRepository struct {
	logger *logger.Logger
	db     *DB
}

// NewMagicLinkRepository constructs a [MagicLinkRepository] backed by the
// provided identity database.
func NewMagicLinkRepository(db *DB, logger *logger.Logger) MagicLinkRepository {
	logger.Debug().Msg("creating magic link repository")
	return &magicLinkRepository{
		db:     db,
		logger: logger,
	}
}

// CreateMagicLink persists a fresh magic link row.
func (r *magicLinkRepository) CreateMagicLink(ctx context.Context, link models.MagicLink) error {
	log := logger.FromContext(ctx)

	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	query := r.db.Builder().
		Insert(link.TableName()).
		Columns("id", "email", "token_hash", "expires_at", "used", "created_at").
		Values(link.ID, link.Email, link.TokenHash, link.ExpiresAt, link.Used, link.CreatedAt)

	if _, err := query.ExecContext(ctx); err != nil {
		log.Err(err).Str("func", "*magicLinkRepository.CreateMagicLink").Msg("magic link insert failed")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

// CountRecent counts links requested for the email since the given moment,
// used or not. Consuming a link does not free up rate-limit budget.
func (r *magicLinkRepository) CountRecent(ctx context.Context, email string, since time.Time) (int, error) {
	log := logger.FromContext(ctx)

	query := r.db.Builder().
		Select("COUNT(*)").
		From(models.MagicLink{}.TableName()).
		Where("email = ?", email).
		Where("created_at >= ?", since.UTC())

	var count int
	if err := query.QueryRowContext(ctx).Scan(&count); err != nil {
		log.Err(err).Str("func", "*magicLinkRepository.CountRecent").Msg("magic link count failed")
		return 0, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return count, nil
}

// FindByTokenHash returns the link with the given token hash, or
// [ErrMagicLinkNotFound]. Used and expired links are still returned; the
// identity service decides what failure to report.
func (r *magicLinkRepository) FindByTokenHash(ctx context.Context, tokenHash string) (models.MagicLink, error) {
	log := logger.FromContext(ctx)

	query := r.db.Builder().
		Select("id", "email", "token_hash", "expires_at", "used", "created_at").
		From(models.MagicLink{}.TableName()).
		Where("token_hash = ?", tokenHash)

	var link models.MagicLink
	err := query.QueryRowContext(ctx).
		Scan(&link.ID, &link.Email, &link.TokenHash, &link.ExpiresAt, &link.Used, &link.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.MagicLink{}, ErrMagicLinkNotFound
	case err != nil:
		log.Err(err).Str("func", "*magicLinkRepository.FindByTokenHash").Msg("magic link lookup failed")
		return models.MagicLink{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return link, nil
}

// MarkUsed consumes the link. The WHERE clause excludes already-used rows,
// so two concurrent verifications of the same token cannot both succeed.
func (r *magicLinkRepository) MarkUsed(ctx context.Context, id string) error {
	log := logger.FromContext(ctx)

	query := r.db.Builder().
		Update(models.MagicLink{}.TableName()).
		Set("used", true).
		Where("id = ?", id).
		Where("used = ?", false)

	result, err := query.ExecContext(ctx)
	if err != nil {
		log.Err(err).Str("func", "*magicLinkRepository.MarkUsed").Msg("magic link update failed")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if affected == 0 {
		return ErrMagicLinkNotFound
	}

	return nil
}
