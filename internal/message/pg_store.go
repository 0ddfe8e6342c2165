package message

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the persistent Store: one row per message in the
// messages table. Concurrency control is delegated to Postgres. Any backend
// failure other than a missing row surfaces as ErrStoreUnavailable so that
// callers can tell "does not exist" from "cannot determine whether it
// exists".
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore on top of an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create inserts a new message with a generated UUID and returns it.
func (s *PostgresStore) Create(ctx context.Context, name, content string) (Message, error) {
	if err := validateNew(name, content); err != nil {
		return Message{}, err
	}

	m := Message{
		ID:      uuid.New().String(),
		Name:    name,
		Content: content,
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, name, content) VALUES ($1, $2, $3)`,
		m.ID, m.Name, m.Content,
	)
	if err != nil {
		return Message{}, unavailable("insert message", err)
	}
	return m, nil
}

// Get returns the message with the given id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Message, error) {
	var m Message
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, content FROM messages WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.Content)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, unavailable("get message", err)
	}
	return m, nil
}

// List returns all messages. Order is store-determined; creation time is
// used here so output is stable, but callers must not rely on it matching
// the in-memory store's insertion order.
func (s *PostgresStore) List(ctx context.Context) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, content FROM messages ORDER BY created_at`,
	)
	if err != nil {
		return nil, unavailable("list messages", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Content); err != nil {
			return nil, unavailable("scan message", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list messages", err)
	}
	return messages, nil
}

// Update replaces the mutable fields of the message with the given id.
func (s *PostgresStore) Update(ctx context.Context, id, content, name string) (Message, error) {
	var row pgx.Row
	if name != "" {
		row = s.pool.QueryRow(ctx,
			`UPDATE messages SET content = $2, name = $3 WHERE id = $1
			 RETURNING id, name, content`,
			id, content, name,
		)
	} else {
		row = s.pool.QueryRow(ctx,
			`UPDATE messages SET content = $2 WHERE id = $1
			 RETURNING id, name, content`,
			id, content,
		)
	}

	var m Message
	err := row.Scan(&m.ID, &m.Name, &m.Content)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, unavailable("update message", err)
	}
	return m, nil
}

// Delete removes the message with the given id. Messages are addressed by
// the logical id column, which is also the table's primary key.
func (s *PostgresStore) Delete(ctx context.Context, id string) (string, error) {
	var deleted string
	err := s.pool.QueryRow(ctx,
		`DELETE FROM messages WHERE id = $1 RETURNING id`, id,
	).Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", unavailable("delete message", err)
	}
	return deleted, nil
}

// unavailable wraps a backend failure so errors.Is(err, ErrStoreUnavailable)
// holds while the underlying cause stays in the message.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
