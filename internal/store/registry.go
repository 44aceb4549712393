package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roach88/vacatrack/internal/ir"
)

// RegisterSync records a deferred-delivery registration for tag.
// Registering an existing tag is a no-op. Registration never touches
// pending records.
func (s *Store) RegisterSync(ctx context.Context, tag string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_registrations (tag) VALUES (?)
		ON CONFLICT(tag) DO NOTHING
	`, tag)
	if err != nil {
		return ir.NewPersistenceError("register sync "+tag, err)
	}
	return nil
}

// SyncRegistrations lists registered tags in lexical order.
func (s *Store) SyncRegistrations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag FROM sync_registrations ORDER BY tag ASC`)
	if err != nil {
		return nil, ir.NewPersistenceError("list sync registrations", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, ir.NewPersistenceError("list sync registrations", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, ir.NewPersistenceError("list sync registrations", err)
	}
	return tags, nil
}

// ClearSync removes the registration for tag. Clearing an absent tag is a no-op.
func (s *Store) ClearSync(ctx context.Context, tag string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_registrations WHERE tag = ?`, tag); err != nil {
		return ir.NewPersistenceError("clear sync "+tag, err)
	}
	return nil
}

// SetState stores a lifecycle value (e.g. the controlling cache version).
func (s *Store) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return ir.NewPersistenceError("set state "+key, err)
	}
	return nil
}

// State returns a lifecycle value; ok is false when the key was never set.
func (s *Store) State(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM agent_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, ir.NewPersistenceError("get state "+key, err)
	}
	return value, true, nil
}
