package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLStore implements Store using database/sql. It supports both Postgres
// and SQLite via standard drivers. The conditional UPDATE on version is what
// closes the concurrent-turn race.
type SQLStore struct {
	db     *sql.DB
	clock  func() time.Time
	driver string
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, clock: time.Now, driver: "sqlite"}
}

// WithDriver selects the DDL dialect for Init. Supported: "sqlite"
// (default) and "postgres". Queries are dialect-free; only the
// auto-increment id on the messages table differs.
func (s *SQLStore) WithDriver(driver string) *SQLStore {
	s.driver = driver
	return s
}

// WithClock overrides the clock for testing.
func (s *SQLStore) WithClock(clock func() time.Time) *SQLStore {
	s.clock = clock
	return s
}

const conversationsSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	state TEXT NOT NULL,
	plan TEXT,
	last_preview_id TEXT NOT NULL DEFAULT '',
	version INTEGER NOT NULL DEFAULT 1,
	updated_at TIMESTAMP NOT NULL
);
`

const messagesSchemaSQLite = `
CREATE TABLE IF NOT EXISTS conversation_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

const messagesSchemaPostgres = `
CREATE TABLE IF NOT EXISTS conversation_messages (
	id BIGSERIAL PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

// Init creates the backing tables.
func (s *SQLStore) Init(ctx context.Context) error {
	messages := messagesSchemaSQLite
	if s.driver == "postgres" {
		messages = messagesSchemaPostgres
	}
	_, err := s.db.ExecContext(ctx, conversationsSchema+messages)
	return err
}

func (s *SQLStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	query := `
		SELECT id, user_id, state, plan, last_preview_id, version, updated_at
		FROM conversations WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, id)

	var snap Snapshot
	var state string
	var plan sql.NullString
	err := row.Scan(&snap.ID, &snap.UserID, &state, &plan, &snap.LastPreviewID, &snap.Version, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	snap.State = State(state)
	if plan.Valid && plan.String != "" {
		var p PendingPlan
		if err := json.Unmarshal([]byte(plan.String), &p); err != nil {
			return nil, fmt.Errorf("conversation: decode plan: %w", err)
		}
		snap.Plan = &p
	}
	return &snap, nil
}

func (s *SQLStore) Create(ctx context.Context, id, userID string) (*Snapshot, error) {
	now := s.clock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, state, plan, last_preview_id, version, updated_at)
		 VALUES ($1, $2, $3, NULL, '', 1, $4)`,
		id, userID, string(StateIdle), now)
	if err != nil {
		return nil, err
	}
	return &Snapshot{ID: id, UserID: userID, State: StateIdle, Version: 1, UpdatedAt: now}, nil
}

func (s *SQLStore) Save(ctx context.Context, snap *Snapshot) error {
	var planJSON sql.NullString
	if snap.Plan != nil {
		raw, err := json.Marshal(snap.Plan)
		if err != nil {
			return fmt.Errorf("conversation: encode plan: %w", err)
		}
		planJSON = sql.NullString{String: string(raw), Valid: true}
	}

	now := s.clock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations
		 SET state = $1, plan = $2, last_preview_id = $3, version = version + 1, updated_at = $4
		 WHERE id = $5 AND version = $6`,
		string(snap.State), planJSON, snap.LastPreviewID, now, snap.ID, snap.Version)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	snap.Version++
	snap.UpdatedAt = now
	return nil
}

func (s *SQLStore) AppendMessage(ctx context.Context, conversationID, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_messages (conversation_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4)`,
		conversationID, role, content, s.clock())
	return err
}

// History returns the last n messages, oldest first.
func (s *SQLStore) History(ctx context.Context, conversationID string, n int) ([]Message, error) {
	query := `
		SELECT role, content, created_at FROM (
			SELECT role, content, created_at, id
			FROM conversation_messages
			WHERE conversation_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
