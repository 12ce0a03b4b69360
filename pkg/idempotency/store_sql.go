package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLStore implements Store using database/sql. It works with both Postgres
// and SQLite via standard drivers. The composite primary key enforces
// first-writer-wins at write time: a conflicting insert is ignored, so two
// concurrent executions can never both commit a stored outcome.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS idempotency_records (
	user_id TEXT NOT NULL,
	operation TEXT NOT NULL,
	idem_key TEXT NOT NULL,
	params_hash TEXT NOT NULL,
	result TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, operation, idem_key)
);
`

// Init creates the backing table.
func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLStore) Get(ctx context.Context, userID, operation, key string) (*Record, error) {
	query := `
		SELECT user_id, operation, idem_key, params_hash, result, success, created_at, expires_at
		FROM idempotency_records
		WHERE user_id = $1 AND operation = $2 AND idem_key = $3
	`
	row := s.db.QueryRowContext(ctx, query, userID, operation, key)

	var rec Record
	var result string
	err := row.Scan(&rec.UserID, &rec.Operation, &rec.Key, &rec.ParamsHash,
		&result, &rec.Success, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.Result = []byte(result)
	return &rec, nil
}

func (s *SQLStore) Insert(ctx context.Context, rec *Record) (bool, error) {
	query := `
		INSERT INTO idempotency_records
			(user_id, operation, idem_key, params_hash, result, success, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, operation, idem_key) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.UserID, rec.Operation, rec.Key, rec.ParamsHash,
		string(rec.Result), rec.Success, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *SQLStore) Delete(ctx context.Context, userID, operation, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE user_id = $1 AND operation = $2 AND idem_key = $3`,
		userID, operation, key)
	return err
}

func (s *SQLStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
