package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStore_InsertFirstWriterWins(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewSQLStore(db)
	ctx := context.Background()
	now := time.Now()

	rec := &Record{
		UserID:     "user-1",
		Operation:  "customers.create",
		Key:        "key-1",
		ParamsHash: "sha256:abc",
		Result:     []byte(`{"success":true}`),
		Success:    true,
		CreatedAt:  now,
		ExpiresAt:  now.Add(DefaultTTL),
	}

	// First insert lands.
	mock.ExpectExec("INSERT INTO idempotency_records").
		WithArgs(rec.UserID, rec.Operation, rec.Key, rec.ParamsHash,
			string(rec.Result), rec.Success, rec.CreatedAt, rec.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := store.Insert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Conflicting insert is ignored by the store.
	mock.ExpectExec("INSERT INTO idempotency_records").
		WithArgs(rec.UserID, rec.Operation, rec.Key, rec.ParamsHash,
			string(rec.Result), rec.Success, rec.CreatedAt, rec.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err = store.Insert(ctx, rec)
	require.NoError(t, err)
	assert.False(t, inserted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_GetMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewSQLStore(db)

	mock.ExpectQuery("SELECT (.+) FROM idempotency_records").
		WithArgs("user-1", "customers.create", "key-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "operation", "idem_key", "params_hash", "result", "success", "created_at", "expires_at",
		}))

	_, err = store.Get(context.Background(), "user-1", "customers.create", "key-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_GetHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewSQLStore(db)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM idempotency_records").
		WithArgs("user-1", "customers.create", "key-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "operation", "idem_key", "params_hash", "result", "success", "created_at", "expires_at",
		}).AddRow("user-1", "customers.create", "key-1", "sha256:abc", `{"success":true}`, true, now, now.Add(time.Hour)))

	rec, err := store.Get(context.Background(), "user-1", "customers.create", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "sha256:abc", rec.ParamsHash)
	assert.True(t, rec.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_DeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewSQLStore(db)
	now := time.Now()

	mock.ExpectExec("DELETE FROM idempotency_records WHERE expires_at <").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
