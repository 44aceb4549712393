package store

import (
	"context"
	"fmt"

	"github.com/roach88/vacatrack/internal/ir"
)

// Enqueue durably appends a pending record and returns its auto-assigned id.
// The call returns only after the insert is committed. Any failure is
// reported as an ir PersistenceError; the core never retries it.
func (s *Store) Enqueue(ctx context.Context, payload string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_records (payload) VALUES (?)`, payload)
	if err != nil {
		return 0, ir.NewPersistenceError("enqueue", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, ir.NewPersistenceError("enqueue", fmt.Errorf("last insert id: %w", err))
	}
	return id, nil
}

// ListPending returns every record that has not been delivered yet.
// Results are ordered by id for stable output; callers must not rely on order.
func (s *Store) ListPending(ctx context.Context) ([]ir.PendingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload FROM pending_records ORDER BY id ASC`)
	if err != nil {
		return nil, ir.NewPersistenceError("list pending", err)
	}
	defer rows.Close()

	var records []ir.PendingRecord
	for rows.Next() {
		var rec ir.PendingRecord
		if err := rows.Scan(&rec.ID, &rec.Payload); err != nil {
			return nil, ir.NewPersistenceError("list pending", fmt.Errorf("scan: %w", err))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ir.NewPersistenceError("list pending", err)
	}
	return records, nil
}

// RemovePending deletes the record with the given id.
// Removing an absent id is a no-op, so the delete step itself can be retried
// and overlapping flushes can race on it safely.
func (s *Store) RemovePending(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_records WHERE id = ?`, id); err != nil {
		return ir.NewPersistenceError(fmt.Sprintf("remove pending %d", id), err)
	}
	return nil
}

// CountPending returns the number of undelivered records.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_records`).Scan(&n); err != nil {
		return 0, ir.NewPersistenceError("count pending", err)
	}
	return n, nil
}
