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

// accountRepository is the SQL-backed implementation of
// [AccountRepository], working against the "accounts" table of the
// identity store.
type accountRepository struct {
	logger *logger.Logger
	db     *DB
}

// NewAccountRepository constructs an [AccountRepository] backed by the
// provided identity database.
func NewAccountRepository(db *DB, logger *logger.Logger) AccountRepository {
	logger.Debug().Msg("creating account repository")
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

// CreateAccount persists a new account row and returns the canonical
// representation read back from the insert.
//
// Error handling:
//   - unique violation on email → [ErrEmailAlreadyExists]
//   - any other driver-level error → wrapped [ErrExecutingQuery]
func (r *accountRepository) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	log := logger.FromContext(ctx)

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	query := r.db.Builder().
		Insert(account.TableName()).
		Columns("id", "email", "created_at").
		Values(account.ID, account.Email, account.CreatedAt)

	if _, err := query.ExecContext(ctx); err != nil {
		if isUniqueViolation(err) {
			return models.Account{}, ErrEmailAlreadyExists
		}

		log.Err(err).Str("func", "*accountRepository.CreateAccount").Msg("account insert failed")
		return models.Account{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return account, nil
}

// FindAccountByEmail returns the account owning the given email, or
// [ErrAccountNotFound] when no such account exists.
func (r *accountRepository) FindAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	log := logger.FromContext(ctx)

	query := r.db.Builder().
		Select("id", "email", "created_at").
		From(models.Account{}.TableName()).
		Where("email = ?", email)

	var account models.Account
	err := query.QueryRowContext(ctx).Scan(&account.ID, &account.Email, &account.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Account{}, ErrAccountNotFound
	case err != nil:
		log.Err(err).Str("func", "*accountRepository.FindAccountByEmail").Msg("account lookup failed")
		return models.Account{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return account, nil
}
