package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sakya-app/sakya/internal/crypto"
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/models"
)

func testEnvelope(t *testing.T) (crypto.Envelope, []byte) {
	t.Helper()

	env := crypto.Envelope{
		Nonce:      []byte("nonce-nonce-nonce-nonce!"),
		Ciphertext: []byte("ciphertext"),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}
	return env, payload
}

func TestStoreUpdate(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewUpdateRepository(db, logger.Nop())

	env, payload := testEnvelope(t)
	update := models.StoredUpdate{
		ProjectID: "proj-1",
		DeviceID:  "dev-1",
		Sequence:  7,
		Envelope:  env,
	}

	mock.ExpectExec("INSERT INTO encrypted_updates").
		WithArgs(update.ProjectID, update.DeviceID, update.Sequence, payload, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.StoreUpdate(context.Background(), update); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStoreUpdate_DuplicateIsSilent(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewUpdateRepository(db, logger.Nop())

	env, payload := testEnvelope(t)
	update := models.StoredUpdate{ProjectID: "proj-1", DeviceID: "dev-1", Sequence: 7, Envelope: env}

	// ON CONFLICT DO NOTHING: zero rows affected, no error surfaced.
	mock.ExpectExec("INSERT INTO encrypted_updates").
		WithArgs(update.ProjectID, update.DeviceID, update.Sequence, payload, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.StoreUpdate(context.Background(), update); err != nil {
		t.Fatalf("expected duplicate insert to be silent, got %v", err)
	}
}

func TestGetUpdatesSince(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewUpdateRepository(db, logger.Nop())

	env, payload := testEnvelope(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "project_id", "device_id", "sequence", "envelope", "created_at"}).
		AddRow(1, "proj-1", "dev-1", int64(5), payload, now).
		AddRow(2, "proj-1", "dev-2", int64(6), payload, now)

	mock.ExpectQuery("SELECT (.+) FROM encrypted_updates").
		WithArgs("proj-1", int64(4)).
		WillReturnRows(rows)

	updates, err := repo.GetUpdatesSince(context.Background(), "proj-1", 4, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].Sequence != 5 || updates[1].Sequence != 6 {
		t.Errorf("unexpected sequences: %d, %d", updates[0].Sequence, updates[1].Sequence)
	}
	if string(updates[0].Envelope.Ciphertext) != string(env.Ciphertext) {
		t.Error("envelope did not survive the storage round trip")
	}
}

func TestLatestSequences(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewUpdateRepository(db, logger.Nop())

	rows := sqlmock.NewRows([]string{"device_id", "max"}).
		AddRow("dev-1", int64(12)).
		AddRow("dev-2", int64(3))

	mock.ExpectQuery(`SELECT device_id, MAX\(sequence\) FROM encrypted_updates`).
		WithArgs("proj-1").
		WillReturnRows(rows)

	sequences, err := repo.LatestSequences(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sequences["dev-1"] != 12 || sequences["dev-2"] != 3 {
		t.Errorf("unexpected version vector: %v", sequences)
	}
}

func TestGetUpdatesSince_QueryError(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewUpdateRepository(db, logger.Nop())

	mock.ExpectQuery("SELECT (.+) FROM encrypted_updates").
		WillReturnError(sql.ErrConnDone)

	_, err := repo.GetUpdatesSince(context.Background(), "proj-1", 0, 0)
	if !errors.Is(err, ErrExecutingQuery) {
		t.Fatalf("expected ErrExecutingQuery, got %v", err)
	}
}
