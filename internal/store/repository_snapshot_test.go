package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/models"
)

func TestStoreSnapshot(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSnapshotRepository(db, logger.Nop())

	env, payload := testEnvelope(t)
	snapshot := models.StoredSnapshot{
		ProjectID:  "proj-1",
		SnapshotID: "snap-1",
		Envelope:   env,
	}

	mock.ExpectExec("INSERT INTO encrypted_snapshots").
		WithArgs(snapshot.ProjectID, snapshot.SnapshotID, payload, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.StoreSnapshot(context.Background(), snapshot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetLatestSnapshot(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSnapshotRepository(db, logger.Nop())

	env, payload := testEnvelope(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "project_id", "snapshot_id", "envelope", "created_at"}).
		AddRow(9, "proj-1", "snap-9", payload, now)

	mock.ExpectQuery("SELECT (.+) FROM encrypted_snapshots").
		WithArgs("proj-1").
		WillReturnRows(rows)

	snapshot, err := repo.GetLatestSnapshot(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.SnapshotID != "snap-9" {
		t.Errorf("expected snap-9, got %s", snapshot.SnapshotID)
	}
	if string(snapshot.Envelope.Ciphertext) != string(env.Ciphertext) {
		t.Error("envelope did not survive the storage round trip")
	}
}

func TestGetLatestSnapshot_NotFound(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSnapshotRepository(db, logger.Nop())

	mock.ExpectQuery("SELECT (.+) FROM encrypted_snapshots").
		WithArgs("proj-empty").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetLatestSnapshot(context.Background(), "proj-empty")
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
}
